package services

import (
	"fmt"
	"time"

	"stampchat/auth"
	"stampchat/errors"
	"stampchat/repositories"
)

type IAuthService interface {
	Register(email, password, displayName string) (Token, error)
	Login(email, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
	notifier       *auth.Notifier
}

type Token string

func NewAuthService(repo repositories.IUserRepository,
	tokens *auth.TokenManager, notifier *auth.Notifier) IAuthService {
	return &AuthService{
		userRepository: repo,
		tokens:         tokens,
		notifier:       notifier,
	}
}

func (s *AuthService) Register(email, password, displayName string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}

	// Business rules first, before any expensive cryptographic work
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, hashedPassword, displayName)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the email is taken
	}

	token, err := s.tokens.Generate(userID, displayName)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	s.notifier.Publish(auth.StateChange{
		UserID: userID,
		Event:  "registered",
		At:     time.Now().UTC(),
	})
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.DisplayName)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	s.notifier.Publish(auth.StateChange{
		UserID: user.ID,
		Event:  "logged_in",
		At:     time.Now().UTC(),
	})
	return Token(token), nil
}
