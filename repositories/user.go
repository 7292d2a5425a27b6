//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"stampchat/errors"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword, displayName string) (string, error)
	GetUserByEmail(email string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-layer representation of an account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// UserRecord is the storage shape of a user.
type UserRecord struct {
	ID           string `cbor:"id"`
	Email        string `cbor:"email"`
	PasswordHash string `cbor:"password_hash"`
	DisplayName  string `cbor:"display_name"`
	CreatedAt    int64  `cbor:"created_at"`
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}

// CreateUser persists the user and returns the newly generated user ID.
// The email key is checked and set in one transaction, so duplicate
// registrations lose cleanly with ErrUserAlreadyExists.
func (u UserRepository) CreateUser(email, hashedPassword, displayName string) (string, error) {
	newID := uuid.NewString()
	record := UserRecord{
		ID:           newID,
		Email:        email,
		PasswordHash: hashedPassword,
		DisplayName:  displayName,
		CreatedAt:    time.Now().Unix(),
	}

	data, err := cbor.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(userKey(email), data)
	})

	return newID, err
}

func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var record UserRecord

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if err != nil {
			return err // Surfaced to the service as ErrInvalidCredentials
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return User{}, err
	}

	return User{
		ID:           record.ID,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		DisplayName:  record.DisplayName,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
	}, nil
}
