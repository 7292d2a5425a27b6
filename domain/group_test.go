package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroup_AddMember_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	group := NewGroup("abc123", "Family", "u1")

	// Given the creator is the only member
	req.Len(group.Members, 1)
	req.True(group.IsMember("u1"))

	// When a second user joins twice
	req.True(group.AddMember("u2"))
	req.False(group.AddMember("u2"))

	// Then the membership set is unchanged after the second call
	req.Len(group.Members, 2)
	req.True(group.IsMember("u2"))
}

func TestGroup_RemoveMember_NonMember_Is_NoOp(t *testing.T) {
	req := require.New(t)
	group := NewGroup("abc123", "Family", "u1")

	// When a user that never joined leaves
	req.False(group.RemoveMember("u2"))

	// Then nothing changed
	req.Len(group.Members, 1)
	req.True(group.IsMember("u1"))
}

func TestGroup_Leave_Then_Rejoin_Restores_Membership(t *testing.T) {
	req := require.New(t)
	group := NewGroup("abc123", "Family", "u1")
	group.AddMember("u2")

	// When u2 leaves
	req.True(group.RemoveMember("u2"))
	req.Len(group.Members, 1)

	// Then re-joining succeeds with no residual state
	req.True(group.AddMember("u2"))
	req.Len(group.Members, 2)
}

func TestGroup_Membership_May_Shrink_To_Empty(t *testing.T) {
	req := require.New(t)
	group := NewGroup("abc123", "Family", "u1")

	group.RemoveMember("u1")

	// The group survives with an empty membership set
	req.Empty(group.Members)
	req.Equal(0, group.Summary().MemberCount)
}
