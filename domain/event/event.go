// Package event defines the domain events flowing from group workers to
// subscribers and permanent sinks.
package event

import (
	"time"

	"github.com/google/uuid"

	"stampchat/domain"
)

type DomainEvent interface {
	Group() uuid.UUID
}

// MessageAppended is emitted after a message has been durably appended to a
// group's log. Subscribers receive these in the log's total order.
type MessageAppended struct {
	Message domain.Message
}

func (e MessageAppended) Group() uuid.UUID {
	return e.Message.GroupID
}

// MemberJoined is emitted when a user enters a group's membership set.
type MemberJoined struct {
	GroupID uuid.UUID
	UserID  string
	At      time.Time
}

func (e MemberJoined) Group() uuid.UUID {
	return e.GroupID
}

// MemberLeft is emitted when a user leaves a group's membership set.
type MemberLeft struct {
	GroupID uuid.UUID
	UserID  string
	At      time.Time
}

func (e MemberLeft) Group() uuid.UUID {
	return e.GroupID
}
