package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stampchat/contract"
	"stampchat/domain"
	"stampchat/domain/event"
	"stampchat/repositories"
)

// Ensure *GroupWorker implements the contract.Worker interface at compile
// time. This prevents "type mismatch" errors from appearing late in other
// packages and acts as a static assertion of our architectural rules.
var _ contract.Worker = (*GroupWorker)(nil)

// AppendRequest carries a fully composed message intent into the worker.
type AppendRequest struct {
	Cmd   domain.AppendMessageCommand
	Reply chan AppendResult
}

type AppendResult struct {
	Message domain.Message
	Err     error
}

// SubscribeRequest asks for the full current history plus live membership
// of the viewer's sink, registered atomically with respect to appends.
type SubscribeRequest struct {
	ViewerID string
	Sink     contract.EventSink
	Reply    chan SubscribeResult
}

type SubscribeResult struct {
	Snapshot []domain.Message
	Err      error
}

// GroupWorker is the single writer of one group's log. Because appends and
// subscribes are handled on the same loop, the snapshot/live seam is exact:
// every message lands in exactly one of the subscribe snapshot or the live
// stream, with no gap and no duplicate.
type GroupWorker struct {
	groupID         uuid.UUID
	seq             uint64
	lastAt          time.Time
	appends         chan AppendRequest
	subscribes      chan SubscribeRequest
	messages        repositories.IMessageRepository
	registry        contract.IRegistry
	events          chan<- event.DomainEvent
	deliveryTimeout time.Duration
	clock           func() time.Time
	log             *slog.Logger
}

func NewGroupWorker(
	groupID uuid.UUID,
	messages repositories.IMessageRepository,
	registry contract.IRegistry,
	events chan<- event.DomainEvent,
	bufferSize int,
	deliveryTimeout time.Duration,
	log *slog.Logger) *GroupWorker {
	return &GroupWorker{
		groupID:         groupID,
		appends:         make(chan AppendRequest, bufferSize),
		subscribes:      make(chan SubscribeRequest, bufferSize),
		messages:        messages,
		registry:        registry,
		events:          events,
		deliveryTimeout: deliveryTimeout,
		clock:           time.Now,
		log:             log,
	}
}

// Appends exposes the command channel to the orchestrator.
func (w *GroupWorker) Appends() chan<- AppendRequest { return w.appends }

// Subscribes exposes the subscribe channel to the orchestrator.
func (w *GroupWorker) Subscribes() chan<- SubscribeRequest { return w.subscribes }

func (w *GroupWorker) Run(ctx context.Context) error {
	// Resume the sequence counter from the persisted log so the total
	// order survives restarts (including supervisor restarts after panic).
	seq, err := w.messages.LastSeq(w.groupID)
	if err != nil {
		return fmt.Errorf("loading last sequence for group %s: %w", w.groupID, err)
	}
	w.seq = seq

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker", "group_id", w.groupID)
			return ctx.Err()
		case req, ok := <-w.appends:
			if !ok {
				return nil
			}
			req.Reply <- w.handleAppend(ctx, req.Cmd)
		case req, ok := <-w.subscribes:
			if !ok {
				return nil
			}
			req.Reply <- w.handleSubscribe(req)
		}
	}
}

// handleAppend assigns the total order and persists before anything becomes
// visible. On storage failure nothing is delivered: the send fails entirely,
// no partial message state is observable.
func (w *GroupWorker) handleAppend(ctx context.Context, cmd domain.AppendMessageCommand) AppendResult {
	now := w.clock().UTC()
	if now.Before(w.lastAt) {
		// Wall clock went backwards; keep createdAt non-decreasing.
		now = w.lastAt
	}

	message := domain.Message{
		ID:             uuid.New(),
		GroupID:        w.groupID,
		SenderID:       cmd.SenderID,
		Body:           cmd.Body,
		AttachmentRef:  cmd.AttachmentRef,
		AttachmentKind: cmd.AttachmentKind,
		Lang:           cmd.Lang,
		CreatedAt:      now,
		Seq:            w.seq + 1,
	}

	if err := w.messages.StoreMessage(message); err != nil {
		return AppendResult{Err: err}
	}
	w.seq = message.Seq
	w.lastAt = now

	w.deliver(ctx, event.MessageAppended{Message: message})
	return AppendResult{Message: message}
}

// handleSubscribe reads the snapshot and registers the sink on the same
// loop iteration, so no append can fall between the two.
func (w *GroupWorker) handleSubscribe(req SubscribeRequest) SubscribeResult {
	snapshot, err := w.messages.ReadAll(w.groupID)
	if err != nil {
		return SubscribeResult{Err: err}
	}
	w.registry.Subscribe(req.ViewerID, w.groupID, req.Sink)
	return SubscribeResult{Snapshot: snapshot}
}

// deliver pushes the event to every live viewer of the group and to the
// permanent sink pipeline. A viewer whose sink blocks past the delivery
// timeout is dropped from the registry; the transport layer surfaces the
// loss and the viewer must re-subscribe.
func (w *GroupWorker) deliver(ctx context.Context, evt event.DomainEvent) {
	for viewerID, sink := range w.registry.SinksForGroup(w.groupID) {
		deliveryCtx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
		err := sink.Consume(deliveryCtx, evt)
		cancel()
		if err != nil {
			w.registry.Unsubscribe(viewerID, w.groupID)
			w.log.Warn("Dropping slow subscriber",
				"viewer_id", viewerID,
				"group_id", w.groupID,
				"error", err)
		}
	}

	select {
	case w.events <- evt:
	default:
		w.log.Debug("Permanent sink pipeline full, event lost for side consumers")
	}
}
