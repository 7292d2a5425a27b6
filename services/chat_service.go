package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"stampchat/composition"
	"stampchat/contract"
	"stampchat/domain"
	"stampchat/errors"
	"stampchat/repositories"
	"stampchat/runtime"
)

type IChatService interface {
	SendMessage(ctx context.Context, user domain.UserContext, groupID uuid.UUID,
		draft composition.Draft) (domain.Message, error)
	History(user domain.UserContext, groupID uuid.UUID) ([]domain.Message, error)
	Subscribe(ctx context.Context, user domain.UserContext, groupID uuid.UUID,
		sink contract.EventSink) ([]domain.Message, error)
	Unsubscribe(user domain.UserContext, groupID uuid.UUID)
}

// ChatService is the operation surface for messages. It enforces membership
// before anything reaches a group's worker; ordering and delivery guarantees
// live below, in the orchestrator.
type ChatService struct {
	groups       repositories.IGroupRepository
	pipeline     *composition.Pipeline
	orchestrator *runtime.Orchestrator
	log          *slog.Logger
}

func NewChatService(groups repositories.IGroupRepository, pipeline *composition.Pipeline,
	orchestrator *runtime.Orchestrator, log *slog.Logger) *ChatService {
	return &ChatService{
		groups:       groups,
		pipeline:     pipeline,
		orchestrator: orchestrator,
		log:          log,
	}
}

// SendMessage composes and appends atomically from the caller's view: the
// returned message is durable and already dispatched to live subscribers.
func (s *ChatService) SendMessage(ctx context.Context, user domain.UserContext,
	groupID uuid.UUID, draft composition.Draft) (domain.Message, error) {
	if err := s.requireMember(user, groupID); err != nil {
		return domain.Message{}, err
	}

	cmd, err := s.pipeline.Compose(ctx, user, groupID, draft)
	if err != nil {
		return domain.Message{}, err
	}
	return s.orchestrator.Append(ctx, cmd)
}

// History returns the group's full ordered log.
func (s *ChatService) History(user domain.UserContext, groupID uuid.UUID) ([]domain.Message, error) {
	if err := s.requireMember(user, groupID); err != nil {
		return nil, err
	}
	return s.orchestrator.History(groupID)
}

// Subscribe attaches a live sink and returns the snapshot. The snapshot and
// the subsequent live deliveries together contain every message exactly once.
func (s *ChatService) Subscribe(ctx context.Context, user domain.UserContext,
	groupID uuid.UUID, sink contract.EventSink) ([]domain.Message, error) {
	if err := s.requireMember(user, groupID); err != nil {
		return nil, err
	}
	return s.orchestrator.Subscribe(ctx, groupID, user.UserID, sink)
}

func (s *ChatService) Unsubscribe(user domain.UserContext, groupID uuid.UUID) {
	s.orchestrator.Unsubscribe(groupID, user.UserID)
}

func (s *ChatService) requireMember(user domain.UserContext, groupID uuid.UUID) error {
	if !user.Valid() {
		return errors.ErrInvalidCredentials
	}

	group, err := s.groups.GetGroup(groupID)
	if err != nil {
		return err
	}
	if !group.IsMember(user.UserID) {
		return fmt.Errorf("%w: %s", errors.ErrNotAMember, user.UserID)
	}
	return nil
}
