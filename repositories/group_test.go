package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"stampchat/domain"
	"stampchat/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_CreateGroup_And_Resolve_By_Code(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	group := domain.NewGroup("abc123", "Family", "u1")
	req.NoError(repository.CreateGroup(group))

	fetched, err := repository.GetGroupByCode("abc123")
	req.NoError(err)
	req.Equal(group.ID, fetched.ID)
	req.Equal("Family", fetched.DisplayName)
	req.True(fetched.IsMember("u1"))
}

func Test_CreateGroup_Duplicate_Code_Fails_Without_Mutation(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	first := domain.NewGroup("abc123", "Family", "u1")
	req.NoError(repository.CreateGroup(first))

	// When a second group claims the same code
	second := domain.NewGroup("abc123", "Imposters", "u2")
	err := repository.CreateGroup(second)

	// Then the create fails and the directory still resolves to the first
	req.ErrorIs(err, errors.ErrDuplicateJoinCode)
	fetched, err := repository.GetGroupByCode("abc123")
	req.NoError(err)
	req.Equal(first.ID, fetched.ID)
	_, err = repository.GetGroup(second.ID)
	req.ErrorIs(err, errors.ErrUnknownGroup)
}

func Test_Membership_Update_Retries_On_Conflict(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	// A conflicted transaction is re-run against the fresh record
	var calls int
	err := repository.updateWithRetry(func(txn *badger.Txn) error {
		calls++
		if calls < 3 {
			return badger.ErrConflict
		}
		return nil
	})
	req.NoError(err)
	req.Equal(3, calls)

	// A conflict that never resolves still surfaces
	err = repository.updateWithRetry(func(txn *badger.Txn) error {
		return badger.ErrConflict
	})
	req.ErrorIs(err, badger.ErrConflict)
}

func Test_Concurrent_Joins_All_Land(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	group := domain.NewGroup("abc123", "Family", "u1")
	req.NoError(repository.CreateGroup(group))

	// Each conflicted attempt retries; with fewer contenders than retry
	// budget every joiner is guaranteed to land.
	const joiners = 4
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := repository.AddMember(group.ID, fmt.Sprintf("joiner-%d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	fetched, err := repository.GetGroup(group.ID)
	req.NoError(err)
	req.Len(fetched.Members, joiners+1)
}

func Test_Resolve_Unknown_Code(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	_, err := repository.GetGroupByCode("nope")
	req.ErrorIs(err, errors.ErrUnknownJoinCode)
}

func Test_Join_Codes_Are_Case_Sensitive(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	req.NoError(repository.CreateGroup(domain.NewGroup("Abc123", "Family", "u1")))

	_, err := repository.GetGroupByCode("abc123")
	req.ErrorIs(err, errors.ErrUnknownJoinCode)
}

func Test_Join_Leave_Rejoin_Scenario(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	// Given group "abc123" created by U1
	group := domain.NewGroup("abc123", "Family", "U1")
	req.NoError(repository.CreateGroup(group))

	// When U2 joins
	updated, changed, err := repository.AddMember(group.ID, "U2")
	req.NoError(err)
	req.True(changed)
	req.Len(updated.Members, 2)

	// And joining again is a no-op
	updated, changed, err = repository.AddMember(group.ID, "U2")
	req.NoError(err)
	req.False(changed)
	req.Len(updated.Members, 2)

	// When U2 leaves
	updated, changed, err = repository.RemoveMember(group.ID, "U2")
	req.NoError(err)
	req.True(changed)
	req.Len(updated.Members, 1)
	req.True(updated.IsMember("U1"))

	// Then re-joining succeeds with no residual state from the prior leave
	updated, changed, err = repository.AddMember(group.ID, "U2")
	req.NoError(err)
	req.True(changed)
	req.Len(updated.Members, 2)
}

func Test_ListGroupsForUser_Follows_Membership(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	family := domain.NewGroup("family1", "Family", "u1")
	work := domain.NewGroup("work1", "Work", "u2")
	req.NoError(repository.CreateGroup(family))
	req.NoError(repository.CreateGroup(work))

	_, _, err := repository.AddMember(work.ID, "u1")
	req.NoError(err)

	groups, err := repository.ListGroupsForUser("u1")
	req.NoError(err)
	req.Len(groups, 2)

	_, _, err = repository.RemoveMember(work.ID, "u1")
	req.NoError(err)

	groups, err = repository.ListGroupsForUser("u1")
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(family.ID, groups[0].ID)
}

func Test_Rename_Keeps_Code_And_Members(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t), slog.Default())

	group := domain.NewGroup("abc123", "Family", "u1")
	req.NoError(repository.CreateGroup(group))

	renamed, err := repository.Rename(group.ID, "The Family")
	req.NoError(err)
	req.Equal("The Family", renamed.DisplayName)
	req.Equal("abc123", renamed.JoinCode)
	req.True(renamed.IsMember("u1"))
}
