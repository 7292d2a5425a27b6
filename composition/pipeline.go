// Package composition turns user input into a well-formed append command
// before it reaches a group's log: content validation, stamp insertion,
// censored-word masking, and language annotation.
package composition

import (
	"context"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"stampchat/domain"
	"stampchat/errors"
	"stampchat/moderation"
)

// Draft is the raw sending intent as received from the viewer.
// An attachment must already be resolved to a URL by the blob store before
// the draft reaches the pipeline: upload is synchronous-before-send.
type Draft struct {
	Body           string
	Stamp          string
	StampCursor    int
	AttachmentRef  string
	AttachmentKind domain.AttachmentKind
}

type Pipeline struct {
	moderator moderation.Moderator
	log       *slog.Logger
}

func NewPipeline(moderator moderation.Moderator, log *slog.Logger) *Pipeline {
	return &Pipeline{moderator: moderator, log: log}
}

// Compose validates and normalizes a draft into an append command.
// Fails with ErrEmptyMessage when there is neither text nor attachment.
// Stamp names are not validated against any vocabulary: an unknown name
// flows through and is resolved (or not) at render time.
func (p *Pipeline) Compose(_ context.Context, user domain.UserContext,
	groupID uuid.UUID, draft Draft) (domain.AppendMessageCommand, error) {
	if !user.Valid() {
		return domain.AppendMessageCommand{}, errors.ErrInvalidCredentials
	}

	body := draft.Body
	if draft.Stamp != "" {
		body = domain.InsertStamp(body, draft.Stamp, draft.StampCursor)
	}

	if body == "" && draft.AttachmentRef == "" {
		return domain.AppendMessageCommand{}, errors.ErrEmptyMessage
	}

	masked, foundWords := p.moderator.Censor(body)
	if len(foundWords) > 0 {
		p.log.Warn("Masked censored words in outgoing message",
			"sender_id", user.UserID,
			"group_id", groupID,
			"count", len(foundWords))
	}

	return domain.AppendMessageCommand{
		GroupID:        groupID,
		SenderID:       user.UserID,
		Body:           masked,
		AttachmentRef:  draft.AttachmentRef,
		AttachmentKind: attachmentKind(draft),
		Lang:           detectLang(masked),
		ReceivedAt:     time.Now().UTC(),
	}, nil
}

func attachmentKind(draft Draft) domain.AttachmentKind {
	if draft.AttachmentRef == "" {
		return domain.AttachmentNone
	}
	return draft.AttachmentKind
}

// detectLang annotates the message with an ISO 639-1 code. Stamp-only or
// very short bodies carry no reliable signal and stay unannotated.
func detectLang(body string) string {
	plain := ""
	for _, segment := range domain.SplitStamps(body) {
		if segment.Kind == domain.SegmentText {
			plain += segment.Value
		}
	}
	if len(plain) < 8 {
		return ""
	}
	info := whatlanggo.Detect(plain)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
