// Package ws is the live transport: one websocket connection per viewer,
// carrying subscribe/post frames inbound and snapshot/live frames outbound.
package ws

import (
	"time"

	"github.com/google/uuid"

	"stampchat/domain"
)

// Frame types exchanged over the socket.
const (
	TypeSubscribe        = "subscribe"
	TypeUnsubscribe      = "unsubscribe"
	TypePost             = "post"
	TypePing             = "ping"
	TypePong             = "pong"
	TypeSnapshot         = "snapshot"
	TypeMessage          = "message"
	TypeMemberJoined     = "member_joined"
	TypeMemberLeft       = "member_left"
	TypeSubscriptionLost = "subscription_lost"
	TypeError            = "error"
)

// InboundFrame is the envelope of every client frame. Fields beyond Type are
// read depending on the frame type.
type InboundFrame struct {
	Type           string    `json:"type"`
	GroupID        uuid.UUID `json:"group_id,omitempty"`
	Body           string    `json:"body,omitempty"`
	Stamp          string    `json:"stamp,omitempty"`
	StampCursor    int       `json:"stamp_cursor,omitempty"`
	AttachmentRef  string    `json:"attachment_ref,omitempty"`
	AttachmentKind string    `json:"attachment_kind,omitempty"`
}

// MessagePayload is the wire shape of one message.
type MessagePayload struct {
	ID             uuid.UUID `json:"id"`
	GroupID        uuid.UUID `json:"group_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	AttachmentRef  string    `json:"attachment_ref,omitempty"`
	AttachmentKind string    `json:"attachment_kind,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Seq            uint64    `json:"seq"`
}

type SnapshotFrame struct {
	Type     string           `json:"type"`
	GroupID  uuid.UUID        `json:"group_id"`
	Messages []MessagePayload `json:"messages"`
}

type MessageFrame struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
}

type MembershipFrame struct {
	Type    string    `json:"type"`
	GroupID uuid.UUID `json:"group_id"`
	UserID  string    `json:"user_id"`
	At      time.Time `json:"at"`
}

type SubscriptionLostFrame struct {
	Type    string    `json:"type"`
	GroupID uuid.UUID `json:"group_id"`
}

type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func toPayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		GroupID:        m.GroupID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		AttachmentRef:  m.AttachmentRef,
		AttachmentKind: string(m.AttachmentKind),
		Lang:           m.Lang,
		CreatedAt:      m.CreatedAt,
		Seq:            m.Seq,
	}
}

func toPayloads(messages []domain.Message) []MessagePayload {
	payloads := make([]MessagePayload, 0, len(messages))
	for _, m := range messages {
		payloads = append(payloads, toPayload(m))
	}
	return payloads
}
