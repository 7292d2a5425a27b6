// Package domain contains core concepts of the group chat system.
// Entities here are pure data plus their invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Group is a named collection of users sharing a single ordered message log,
// addressed by a unique join code. The join code is the permanent key of a
// group: the display name may change, the code never does.
type Group struct {
	ID          uuid.UUID
	JoinCode    string
	DisplayName string
	Members     map[string]struct{}
	CreatedAt   time.Time
}

// NewGroup builds a group with its creator as first member.
func NewGroup(joinCode, displayName, creatorID string) Group {
	return Group{
		ID:          uuid.New(),
		JoinCode:    joinCode,
		DisplayName: displayName,
		Members:     map[string]struct{}{creatorID: {}},
		CreatedAt:   time.Now().UTC(),
	}
}

// AddMember inserts a user into the membership set.
// Re-adding an existing member is a no-op; the return value reports
// whether the set actually changed.
func (g *Group) AddMember(userID string) bool {
	if g.Members == nil {
		g.Members = make(map[string]struct{})
	}
	if _, ok := g.Members[userID]; ok {
		return false
	}
	g.Members[userID] = struct{}{}
	return true
}

// RemoveMember deletes a user from the membership set.
// Removing a non-member is a no-op. The group survives even when the
// membership set becomes empty.
func (g *Group) RemoveMember(userID string) bool {
	if _, ok := g.Members[userID]; !ok {
		return false
	}
	delete(g.Members, userID)
	return true
}

func (g Group) IsMember(userID string) bool {
	_, ok := g.Members[userID]
	return ok
}

// GroupSummary is the membership-listing view of a group.
type GroupSummary struct {
	ID          uuid.UUID
	JoinCode    string
	DisplayName string
	MemberCount int
}

func (g Group) Summary() GroupSummary {
	return GroupSummary{
		ID:          g.ID,
		JoinCode:    g.JoinCode,
		DisplayName: g.DisplayName,
		MemberCount: len(g.Members),
	}
}
