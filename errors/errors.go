package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDuplicateJoinCode      = fmt.Errorf("join code already in use")
	ErrUnknownJoinCode        = fmt.Errorf("no group matches this join code")
	ErrUnknownGroup           = fmt.Errorf("group does not exist")
	ErrEmptyMessage           = fmt.Errorf("message has no text and no attachment")
	ErrAttachmentUploadFailed = fmt.Errorf("attachment upload failed")
	ErrUnsupportedAttachment  = fmt.Errorf("attachment content type not supported")
	ErrSubscriptionLost       = fmt.Errorf("subscription transport lost")
	ErrNotAMember             = fmt.Errorf("caller is not a member of this group")
	ErrUserAlreadyExists      = fmt.Errorf("user already exists")
	ErrInvalidCredentials     = fmt.Errorf("invalid credentials")
	ErrInvalidPassword        = fmt.Errorf("password does not meet requirements")
	ErrTokenGeneration        = fmt.Errorf("token generation failed")
	ErrWorkerPanic            = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates domain errors to transport status codes at the
// HTTP edge. Unknown errors are reported as internal: callers should wrap
// with %w so errors.Is keeps matching through layers.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrDuplicateJoinCode), errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownJoinCode), errors.Is(err, ErrUnknownGroup):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUnsupportedAttachment):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrAttachmentUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
