package ws

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"stampchat/contract"
	"stampchat/domain/event"
	"stampchat/errors"
)

// Sink adapts one viewer's websocket to the event fanout. Delivery never
// blocks the group worker: a full send buffer marks the subscription lost,
// the worker drops the sink, and the viewer is told to resubscribe for a
// fresh snapshot.
//
// The sink starts closed: the worker registers it before the handler has
// enqueued the snapshot frame, so live events arriving in that window are
// held back and flushed by Open once the snapshot is on the wire. No live
// frame can precede the snapshot.
type Sink struct {
	client  *Client
	groupID uuid.UUID
	lost    atomic.Bool

	mu      sync.Mutex
	open    bool
	pending []any
}

func NewSink(client *Client, groupID uuid.UUID) *Sink {
	return &Sink{client: client, groupID: groupID}
}

var _ contract.EventSink = (*Sink)(nil)

func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	if s.lost.Load() {
		return errors.ErrSubscriptionLost
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, ok := frameFor(e)
	if !ok {
		return nil
	}

	s.mu.Lock()
	if !s.open {
		if len(s.pending) >= sendBuffer {
			s.mu.Unlock()
			s.markLost()
			return fmt.Errorf("%w: pending buffer full for %s", errors.ErrSubscriptionLost, s.client.UserID)
		}
		s.pending = append(s.pending, frame)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.client.Enqueue(frame) {
		s.markLost()
		return fmt.Errorf("%w: send buffer full for %s", errors.ErrSubscriptionLost, s.client.UserID)
	}
	return nil
}

// Open flushes the frames held back during registration and switches the
// sink to direct delivery. Call it after the snapshot frame is enqueued.
func (s *Sink) Open() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.open = true
	s.mu.Unlock()

	for _, frame := range pending {
		if !s.client.Enqueue(frame) {
			s.markLost()
			return
		}
	}
}

// markLost flags the subscription dead and tells the viewer, best effort.
// The lost notice rides the same buffer; if even that fails the read pump's
// teardown is the final safety net.
func (s *Sink) markLost() {
	if s.lost.Swap(true) {
		return
	}
	s.client.Enqueue(SubscriptionLostFrame{
		Type:    TypeSubscriptionLost,
		GroupID: s.groupID,
	})
}

func frameFor(e event.DomainEvent) (any, bool) {
	switch evt := e.(type) {
	case event.MessageAppended:
		return MessageFrame{Type: TypeMessage, Message: toPayload(evt.Message)}, true
	case event.MemberJoined:
		return MembershipFrame{
			Type:    TypeMemberJoined,
			GroupID: evt.GroupID,
			UserID:  evt.UserID,
			At:      evt.At,
		}, true
	case event.MemberLeft:
		return MembershipFrame{
			Type:    TypeMemberLeft,
			GroupID: evt.GroupID,
			UserID:  evt.UserID,
			At:      evt.At,
		}, true
	default:
		return nil, false
	}
}
