package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stampchat/auth"
	"stampchat/errors"
	"stampchat/mocks"
	"stampchat/repositories"
)

func newTestAuthService(repo repositories.IUserRepository) IAuthService {
	tokens := auth.NewTokenManager("test_secret_key_for_unit_tests", "stampchat", 24*time.Hour)
	return NewAuthService(repo, tokens, auth.NewNotifier(4))
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := newTestAuthService(mockRepo)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		email := "test@example.com"
		password := "ComplexPass123!"
		expectedUserID := "user-uuid"

		// Expect CreateUser to be called with a hashed password, never the plain one
		mockRepo.EXPECT().
			CreateUser(email, gomock.Not(password), "Alice").
			Return(expectedUserID, nil).
			Times(1)

		token, err := svc.Register(email, password, "Alice")

		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register("test@example.com", "simple", "Alice")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		email := "duplicate@example.com"

		mockRepo.EXPECT().
			CreateUser(email, gomock.Any(), gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		token, err := svc.Register(email, "ComplexPass123!", "Alice")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
		req.Empty(token)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := newTestAuthService(mockRepo)

	password := "ComplexPass123!"
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	t.Run("should return a token for valid credentials", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("alice@example.com").
			Return(repositories.User{
				ID:           "user-1",
				Email:        "alice@example.com",
				PasswordHash: hash,
				DisplayName:  "Alice",
			}, nil).
			Times(1)

		token, err := svc.Login("alice@example.com", password)

		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should fail with generic error for wrong password", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("alice@example.com").
			Return(repositories.User{ID: "user-1", PasswordHash: hash}, nil).
			Times(1)

		token, err := svc.Login("alice@example.com", "WrongPassword1!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
		req.Empty(token)
	})

	t.Run("should fail with generic error for unknown user", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("ghost@example.com").
			Return(repositories.User{}, errors.ErrInvalidCredentials).
			Times(1)

		token, err := svc.Login("ghost@example.com", password)

		req.ErrorIs(err, errors.ErrInvalidCredentials)
		req.Empty(token)
	})
}
