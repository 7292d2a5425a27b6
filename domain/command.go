package domain

import (
	"time"

	"github.com/google/uuid"
)

// Command is a mutation intent routed to a group's worker.
type Command interface {
	Group() uuid.UUID
}

// AppendMessageCommand asks a group's worker to append a fully composed
// message to the log. CreatedAt and Seq are assigned by the worker, never
// by the sender.
type AppendMessageCommand struct {
	GroupID        uuid.UUID
	SenderID       string
	Body           string
	AttachmentRef  string
	AttachmentKind AttachmentKind
	Lang           string
	ReceivedAt     time.Time
}

func (c AppendMessageCommand) Group() uuid.UUID {
	return c.GroupID
}
