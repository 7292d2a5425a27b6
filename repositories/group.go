//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"stampchat/domain"
	"stampchat/errors"
)

type IGroupRepository interface {
	CreateGroup(group domain.Group) error
	GetGroup(id uuid.UUID) (domain.Group, error)
	GetGroupByCode(joinCode string) (domain.Group, error)
	AddMember(groupID uuid.UUID, userID string) (domain.Group, bool, error)
	RemoveMember(groupID uuid.UUID, userID string) (domain.Group, bool, error)
	Rename(groupID uuid.UUID, displayName string) (domain.Group, error)
	ListGroupsForUser(userID string) ([]domain.Group, error)
}

// GroupRepository persists groups in BadgerDB under three key families:
//
//	group:{id}              -> GroupRecord (CBOR)
//	code:{joinCode}         -> group id bytes (unique join-code index)
//	member:{userID}:{id}    -> empty (membership index for listing)
//
// The code: index is checked and written inside the same transaction as the
// group record, so two concurrent creates with the same join code cannot
// both win: Badger aborts one of them and the caller sees the duplicate.
type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) GroupRepository {
	return GroupRepository{db: db, log: log}
}

// GroupRecord is the storage shape of a group.
type GroupRecord struct {
	ID          string   `cbor:"id"`
	JoinCode    string   `cbor:"join_code"`
	DisplayName string   `cbor:"display_name"`
	Members     []string `cbor:"members"`
	CreatedAt   int64    `cbor:"created_at"`
}

// Concurrent mutations of the same group record can abort with badger's
// ErrConflict. Membership changes are idempotent, so a conflicted
// transaction is simply re-run against the fresh record.
const conflictRetries = 5

func (r GroupRepository) updateWithRetry(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Retrying conflicted group transaction", "attempt", attempt+1)
	}
	return err
}

func groupKey(id uuid.UUID) []byte {
	return []byte("group:" + id.String())
}

func codeKey(joinCode string) []byte {
	return []byte("code:" + joinCode)
}

func memberKey(userID string, groupID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userID, groupID))
}

func (r GroupRepository) CreateGroup(group domain.Group) error {
	data, err := cbor.Marshal(fromGroup(group))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(codeKey(group.JoinCode)); err == nil {
			return errors.ErrDuplicateJoinCode
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(codeKey(group.JoinCode), []byte(group.ID.String())); err != nil {
			return err
		}
		if err := txn.Set(groupKey(group.ID), data); err != nil {
			return err
		}
		for memberID := range group.Members {
			if err := txn.Set(memberKey(memberID, group.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r GroupRepository) GetGroup(id uuid.UUID) (domain.Group, error) {
	var group domain.Group
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		group, err = readGroup(txn, id)
		return err
	})
	return group, err
}

func (r GroupRepository) GetGroupByCode(joinCode string) (domain.Group, error) {
	var group domain.Group
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := resolveCode(txn, joinCode)
		if err != nil {
			return err
		}
		group, err = readGroup(txn, id)
		return err
	})
	return group, err
}

// AddMember inserts a user into a group's membership set. The returned bool
// reports whether the set actually changed; re-joining is a no-op.
func (r GroupRepository) AddMember(groupID uuid.UUID, userID string) (domain.Group, bool, error) {
	var group domain.Group
	var changed bool
	err := r.updateWithRetry(func(txn *badger.Txn) error {
		var err error
		group, err = readGroup(txn, groupID)
		if err != nil {
			return err
		}
		changed = group.AddMember(userID)
		if !changed {
			return nil
		}
		if err := txn.Set(memberKey(userID, groupID), nil); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
	return group, changed, err
}

// RemoveMember deletes a user from the membership set. Removing a
// non-member is a no-op, and the group record stays even when empty.
func (r GroupRepository) RemoveMember(groupID uuid.UUID, userID string) (domain.Group, bool, error) {
	var group domain.Group
	var changed bool
	err := r.updateWithRetry(func(txn *badger.Txn) error {
		var err error
		group, err = readGroup(txn, groupID)
		if err != nil {
			return err
		}
		changed = group.RemoveMember(userID)
		if !changed {
			return nil
		}
		if err := txn.Delete(memberKey(userID, groupID)); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
	return group, changed, err
}

func (r GroupRepository) Rename(groupID uuid.UUID, displayName string) (domain.Group, error) {
	var group domain.Group
	err := r.updateWithRetry(func(txn *badger.Txn) error {
		var err error
		group, err = readGroup(txn, groupID)
		if err != nil {
			return err
		}
		group.DisplayName = displayName
		return writeGroup(txn, group)
	})
	return group, err
}

// ListGroupsForUser scans the membership index. No ordering is guaranteed
// beyond the index's own key order.
func (r GroupRepository) ListGroupsForUser(userID string) ([]domain.Group, error) {
	var groups []domain.Group
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("member:" + userID + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rawID := it.Item().Key()[len(prefix):]
			id, err := uuid.Parse(string(rawID))
			if err != nil {
				r.log.Warn("Skipping malformed membership index key",
					"key", string(it.Item().Key()))
				continue
			}
			group, err := readGroup(txn, id)
			if err != nil {
				return err
			}
			groups = append(groups, group)
		}
		return nil
	})
	return groups, err
}

func resolveCode(txn *badger.Txn, joinCode string) (uuid.UUID, error) {
	item, err := txn.Get(codeKey(joinCode))
	if err == badger.ErrKeyNotFound {
		return uuid.Nil, errors.ErrUnknownJoinCode
	}
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err = item.Value(func(val []byte) error {
		id, err = uuid.Parse(string(val))
		return err
	})
	return id, err
}

func readGroup(txn *badger.Txn, id uuid.UUID) (domain.Group, error) {
	item, err := txn.Get(groupKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Group{}, errors.ErrUnknownGroup
	}
	if err != nil {
		return domain.Group{}, err
	}
	var record GroupRecord
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &record)
	}); err != nil {
		return domain.Group{}, err
	}
	return toGroup(record)
}

func writeGroup(txn *badger.Txn, group domain.Group) error {
	data, err := cbor.Marshal(fromGroup(group))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(groupKey(group.ID), data)
}

func fromGroup(group domain.Group) GroupRecord {
	return GroupRecord{
		ID:          group.ID.String(),
		JoinCode:    group.JoinCode,
		DisplayName: group.DisplayName,
		Members:     lo.Keys(group.Members),
		CreatedAt:   group.CreatedAt.UnixNano(),
	}
}

func toGroup(record GroupRecord) (domain.Group, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Group{}, err
	}
	return domain.Group{
		ID:          id,
		JoinCode:    record.JoinCode,
		DisplayName: record.DisplayName,
		Members: lo.SliceToMap(record.Members, func(m string) (string, struct{}) {
			return m, struct{}{}
		}),
		CreatedAt: time.Unix(0, record.CreatedAt).UTC(),
	}, nil
}
