package composition

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"stampchat/domain"
	"stampchat/errors"
	"stampchat/moderation"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	moderator, err := moderation.NewModerator([]string{"moron"}, '*')
	require.NoError(t, err)
	return NewPipeline(moderator, slog.Default())
}

func Test_Compose_Empty_Draft_Fails(t *testing.T) {
	req := require.New(t)
	pipeline := newTestPipeline(t)
	user := domain.UserContext{UserID: "u1"}

	_, err := pipeline.Compose(context.Background(), user, uuid.New(), Draft{})

	req.ErrorIs(err, errors.ErrEmptyMessage)
}

func Test_Compose_Attachment_Only_Is_Valid(t *testing.T) {
	req := require.New(t)
	pipeline := newTestPipeline(t)
	user := domain.UserContext{UserID: "u1"}

	cmd, err := pipeline.Compose(context.Background(), user, uuid.New(), Draft{
		AttachmentRef:  "http://localhost:8080/blobs/abcd.png",
		AttachmentKind: domain.AttachmentImage,
	})

	req.NoError(err)
	req.Empty(cmd.Body)
	req.Equal(domain.AttachmentImage, cmd.AttachmentKind)
}

func Test_Compose_Stamp_Only_Is_Valid(t *testing.T) {
	req := require.New(t)
	pipeline := newTestPipeline(t)
	user := domain.UserContext{UserID: "u1"}

	// A stamp with no text still produces a non-empty body
	cmd, err := pipeline.Compose(context.Background(), user, uuid.New(), Draft{
		Stamp:       "wave",
		StampCursor: -1,
	})

	req.NoError(err)
	req.Equal("[stamp:wave]", cmd.Body)
	req.Empty(cmd.Lang)
}

func Test_Compose_Inserts_Stamp_At_Cursor(t *testing.T) {
	req := require.New(t)
	pipeline := newTestPipeline(t)
	user := domain.UserContext{UserID: "u1"}

	cmd, err := pipeline.Compose(context.Background(), user, uuid.New(), Draft{
		Body:        "hello world",
		Stamp:       "cat",
		StampCursor: 5,
	})

	req.NoError(err)
	req.Equal("hello[stamp:cat] world", cmd.Body)
}

func Test_Compose_Masks_Censored_Words(t *testing.T) {
	req := require.New(t)
	pipeline := newTestPipeline(t)
	user := domain.UserContext{UserID: "u1"}

	cmd, err := pipeline.Compose(context.Background(), user, uuid.New(), Draft{
		Body: "what a moron",
	})

	req.NoError(err)
	req.Equal("what a *****", cmd.Body)
}

func Test_Compose_Requires_User_Context(t *testing.T) {
	req := require.New(t)
	pipeline := newTestPipeline(t)

	_, err := pipeline.Compose(context.Background(), domain.UserContext{}, uuid.New(), Draft{
		Body: "hello",
	})

	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
