package domain

// UserContext carries the identity of the caller through every directory,
// log, and composition operation. It is always passed explicitly; nothing
// in the system reads a process-wide current user.
type UserContext struct {
	UserID string
}

func (u UserContext) Valid() bool {
	return u.UserID != ""
}
