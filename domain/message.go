package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttachmentKind classifies a resolved attachment reference.
type AttachmentKind string

const (
	AttachmentNone  AttachmentKind = ""
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// Message represents an immutable chat event inside one group.
// The total order within a group is (CreatedAt, Seq): CreatedAt is assigned
// by the group's single writer and is non-decreasing, Seq breaks ties when
// two appends land on the same clock reading.
type Message struct {
	ID             uuid.UUID
	GroupID        uuid.UUID
	SenderID       string
	Body           string
	AttachmentRef  string
	AttachmentKind AttachmentKind
	Lang           string
	CreatedAt      time.Time
	Seq            uint64
}

// HasAttachment reports whether the message carries a resolved blob URL.
func (m Message) HasAttachment() bool {
	return m.AttachmentRef != ""
}

// Empty reports whether the message carries no content at all.
// A message with an attachment and no body is not empty.
func (m Message) Empty() bool {
	return m.Body == "" && !m.HasAttachment()
}
