package services

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"stampchat/auth"
	"stampchat/domain"
	"stampchat/domain/event"
	"stampchat/errors"
	"stampchat/repositories"
	"stampchat/runtime"
)

type IDirectoryService interface {
	CreateGroup(user domain.UserContext, displayName, joinCode string) (domain.Group, error)
	JoinGroup(ctx context.Context, user domain.UserContext, joinCode string) (domain.Group, error)
	LeaveGroup(ctx context.Context, user domain.UserContext, groupID uuid.UUID) error
	RenameGroup(user domain.UserContext, groupID uuid.UUID, displayName string) (domain.Group, error)
	ListGroups(user domain.UserContext) ([]domain.GroupSummary, error)
	GetGroup(groupID uuid.UUID) (domain.Group, error)
	ResolveGroup(joinCode string) (domain.Group, error)
}

// Join codes use an unambiguous alphabet: no 0/O, no 1/I/L.
const (
	joinCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 8
	joinCodeRetries  = 5
)

// DirectoryService owns group membership. Mutations go through badger
// transactions in the repository; membership events reach live viewers via
// the orchestrator broadcast, outside the message log's total order.
type DirectoryService struct {
	groups       repositories.IGroupRepository
	orchestrator *runtime.Orchestrator
	log          *slog.Logger
}

func NewDirectoryService(groups repositories.IGroupRepository,
	orchestrator *runtime.Orchestrator, log *slog.Logger) *DirectoryService {
	return &DirectoryService{
		groups:       groups,
		orchestrator: orchestrator,
		log:          log,
	}
}

// CreateGroup registers a new group with the creator as first member. A
// caller-chosen join code is used as-is and a collision surfaces as
// ErrDuplicateJoinCode; an empty joinCode asks for a generated one, retried
// on the off chance randomness collides.
func (s *DirectoryService) CreateGroup(user domain.UserContext, displayName, joinCode string) (domain.Group, error) {
	if !user.Valid() {
		return domain.Group{}, errors.ErrInvalidCredentials
	}
	if err := auth.ValidateCreateGroup(auth.CreateGroupRequest{DisplayName: displayName}); err != nil {
		return domain.Group{}, err
	}

	if joinCode != "" {
		group := domain.NewGroup(joinCode, displayName, user.UserID)
		if err := s.groups.CreateGroup(group); err != nil {
			return domain.Group{}, err
		}
		s.log.Info("Created group",
			"group_id", group.ID,
			"creator_id", user.UserID)
		return group, nil
	}

	var lastErr error
	for attempt := 0; attempt < joinCodeRetries; attempt++ {
		code, err := newJoinCode()
		if err != nil {
			return domain.Group{}, err
		}

		group := domain.NewGroup(code, displayName, user.UserID)
		lastErr = s.groups.CreateGroup(group)
		if lastErr == nil {
			s.log.Info("Created group",
				"group_id", group.ID,
				"creator_id", user.UserID)
			return group, nil
		}
		if !stderrors.Is(lastErr, errors.ErrDuplicateJoinCode) {
			return domain.Group{}, lastErr
		}
	}
	return domain.Group{}, lastErr
}

// JoinGroup resolves a join code and adds the user. Idempotent: joining a
// group the user already belongs to succeeds without emitting an event.
func (s *DirectoryService) JoinGroup(ctx context.Context, user domain.UserContext,
	joinCode string) (domain.Group, error) {
	if !user.Valid() {
		return domain.Group{}, errors.ErrInvalidCredentials
	}

	group, err := s.groups.GetGroupByCode(joinCode)
	if err != nil {
		return domain.Group{}, err
	}

	group, changed, err := s.groups.AddMember(group.ID, user.UserID)
	if err != nil {
		return domain.Group{}, err
	}
	if changed {
		s.orchestrator.Broadcast(ctx, event.MemberJoined{
			GroupID: group.ID,
			UserID:  user.UserID,
			At:      time.Now().UTC(),
		})
	}
	return group, nil
}

// LeaveGroup removes the user. Idempotent: leaving a group the user is not
// in succeeds silently. Any live subscription of the user is torn down so
// a former member stops receiving messages immediately.
func (s *DirectoryService) LeaveGroup(ctx context.Context, user domain.UserContext,
	groupID uuid.UUID) error {
	if !user.Valid() {
		return errors.ErrInvalidCredentials
	}

	_, changed, err := s.groups.RemoveMember(groupID, user.UserID)
	if err != nil {
		return err
	}
	if changed {
		s.orchestrator.Unsubscribe(groupID, user.UserID)
		s.orchestrator.Broadcast(ctx, event.MemberLeft{
			GroupID: groupID,
			UserID:  user.UserID,
			At:      time.Now().UTC(),
		})
	}
	return nil
}

// RenameGroup changes the display name. Only members may rename; the join
// code never changes.
func (s *DirectoryService) RenameGroup(user domain.UserContext, groupID uuid.UUID,
	displayName string) (domain.Group, error) {
	if !user.Valid() {
		return domain.Group{}, errors.ErrInvalidCredentials
	}
	if err := auth.ValidateCreateGroup(auth.CreateGroupRequest{DisplayName: displayName}); err != nil {
		return domain.Group{}, err
	}

	group, err := s.groups.GetGroup(groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if !group.IsMember(user.UserID) {
		return domain.Group{}, fmt.Errorf("%w: %s", errors.ErrNotAMember, user.UserID)
	}

	return s.groups.Rename(groupID, displayName)
}

// ListGroups returns summaries of the groups the user belongs to.
func (s *DirectoryService) ListGroups(user domain.UserContext) ([]domain.GroupSummary, error) {
	if !user.Valid() {
		return nil, errors.ErrInvalidCredentials
	}

	groups, err := s.groups.ListGroupsForUser(user.UserID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.GroupSummary, 0, len(groups))
	for _, group := range groups {
		summaries = append(summaries, group.Summary())
	}
	return summaries, nil
}

func (s *DirectoryService) GetGroup(groupID uuid.UUID) (domain.Group, error) {
	return s.groups.GetGroup(groupID)
}

// ResolveGroup looks a group up by its join code without joining it.
func (s *DirectoryService) ResolveGroup(joinCode string) (domain.Group, error) {
	return s.groups.GetGroupByCode(joinCode)
}

func newJoinCode() (string, error) {
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(joinCodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
