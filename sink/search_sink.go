// Package sink holds permanent event consumers fed by the fanout worker.
// Sinks observe the stream; they never write back to the message log.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stampchat/contract"
	"stampchat/domain"
	"stampchat/domain/event"
	"stampchat/search"
)

// SearchSink buffers appended messages and indexes them in batches.
// A flush is triggered either by reaching the size threshold or by a
// time-based deadline, so low-traffic groups still become searchable.
type SearchSink struct {
	mu            sync.Mutex
	timer         *time.Timer
	index         *search.Index
	log           *slog.Logger
	pending       []domain.Message
	maxBatch      int
	bufferTimeout time.Duration
}

func NewSearchSink(index *search.Index, log *slog.Logger,
	maxBatch int, bufferTimeout time.Duration) *SearchSink {
	return &SearchSink{
		index:         index,
		log:           log,
		maxBatch:      maxBatch,
		bufferTimeout: bufferTimeout,
	}
}

var _ contract.EventSink = (*SearchSink)(nil)

// Consume buffers MessageAppended events; other event types pass through.
func (s *SearchSink) Consume(ctx context.Context, e event.DomainEvent) error {
	appended, ok := e.(event.MessageAppended)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.pending = append(s.pending, appended.Message)

	// First event of a batch arms the deadline flush.
	if len(s.pending) == 1 && s.timer == nil {
		s.timer = time.AfterFunc(s.bufferTimeout, func() {
			if err := s.Flush(); err != nil {
				s.log.Error("Deadline flush failed", "error", err)
			}
		})
	}

	isFull := len(s.pending) >= s.maxBatch
	s.mu.Unlock()

	if isFull {
		return s.Flush()
	}
	return nil
}

// Flush drains the buffer into the index. Swaps the slice under the lock so
// the next batch starts filling while indexing runs.
func (s *SearchSink) Flush() error {
	s.mu.Lock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}

	batch := s.pending
	s.pending = make([]domain.Message, 0, s.maxBatch)
	s.mu.Unlock()

	for _, msg := range batch {
		if err := s.index.IndexMessage(msg); err != nil {
			s.log.Error("Failed to index message",
				"message_id", msg.ID,
				"group_id", msg.GroupID,
				"error", err)
			return err
		}
	}
	s.log.Debug("Indexed message batch", "size", len(batch))
	return nil
}
