//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"stampchat/domain"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	ReadAll(groupID uuid.UUID) ([]domain.Message, error)
	LastSeq(groupID uuid.UUID) (uint64, error)
}

// MessageRepository persists the append-only log in BadgerDB.
// The key is formatted as "msg:{group_id}:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Keep the order total under timestamp collisions: the per-group
//     sequence number disambiguates two appends landing on the same
//     clock reading.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// MessageRecord is the storage shape of a message.
type MessageRecord struct {
	ID             string `cbor:"id"`
	GroupID        string `cbor:"group_id"`
	SenderID       string `cbor:"sender_id"`
	Body           string `cbor:"body"`
	AttachmentRef  string `cbor:"attachment_ref,omitempty"`
	AttachmentKind string `cbor:"attachment_kind,omitempty"`
	Lang           string `cbor:"lang,omitempty"`
	At             int64  `cbor:"at"`
	Seq            uint64 `cbor:"seq"`
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%012d",
		m.GroupID, m.CreatedAt.UnixNano(), m.Seq))
}

func messagePrefix(groupID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", groupID))
}

func (r MessageRepository) StoreMessage(message domain.Message) error {
	data, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
}

// ReadAll returns the full history of a group in ascending order. Thanks to
// the padded key layout, a forward prefix scan is already the total order.
// There is no pagination: history is always loaded whole.
func (r MessageRepository) ReadAll(groupID uuid.UUID) ([]domain.Message, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				raw = append(raw, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var record MessageRecord
		if err := cbor.Unmarshal(b, &record); err != nil {
			return nil, err
		}
		message, err := toMessage(record)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// LastSeq returns the sequence number of the newest message in a group,
// or zero for an empty log. Group workers call this once at boot to resume
// their counter.
func (r MessageRepository) LastSeq(groupID uuid.UUID) (uint64, error) {
	var seq uint64
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past every possible timestamp, then step back onto the
		// newest real key.
		seekKey := append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var record MessageRecord
			if err := cbor.Unmarshal(val, &record); err != nil {
				return err
			}
			seq = record.Seq
			return nil
		})
	})
	return seq, err
}

func fromMessage(m domain.Message) MessageRecord {
	return MessageRecord{
		ID:             m.ID.String(),
		GroupID:        m.GroupID.String(),
		SenderID:       m.SenderID,
		Body:           m.Body,
		AttachmentRef:  m.AttachmentRef,
		AttachmentKind: string(m.AttachmentKind),
		Lang:           m.Lang,
		At:             m.CreatedAt.UnixNano(),
		Seq:            m.Seq,
	}
}

func toMessage(record MessageRecord) (domain.Message, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	groupID, err := uuid.Parse(record.GroupID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             id,
		GroupID:        groupID,
		SenderID:       record.SenderID,
		Body:           record.Body,
		AttachmentRef:  record.AttachmentRef,
		AttachmentKind: domain.AttachmentKind(record.AttachmentKind),
		Lang:           record.Lang,
		CreatedAt:      time.Unix(0, record.At).UTC(),
		Seq:            record.Seq,
	}, nil
}
