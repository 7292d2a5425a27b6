package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MySuperSecurePassw0rd!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!", "Alice"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!", "Alice"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!", "Alice"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPassword!", "Alice"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar123", "Alice"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase123!!", "Alice"}, true},
		{"Missing display name", RegisterRequest{"test@example.com", "ComplexPass123!", ""}, true},
		{"Password too long", RegisterRequest{"test@example.com", strings.Repeat("a", 73), "Alice"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test_secret_key_for_unit_tests", "stampchat", time.Hour)

	token, err := manager.Generate("user-42", "Alice")
	req.NoError(err)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("Alice", claims.DisplayName)
	req.Equal("stampchat", claims.Issuer)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("secret_one", "stampchat", time.Hour)
	other := NewTokenManager("secret_two", "stampchat", time.Hour)

	token, err := manager.Generate("user-42", "Alice")
	req.NoError(err)

	_, err = other.Validate(token)
	req.Error(err)
}

func TestTokenRejectsExpired(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test_secret_key_for_unit_tests", "stampchat", -time.Minute)

	token, err := manager.Generate("user-42", "Alice")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestNotifierFanout(t *testing.T) {
	req := require.New(t)
	notifier := NewNotifier(4)

	ch := notifier.Subscribe("listener-1")
	notifier.Publish(StateChange{UserID: "u1", Event: "logged_in", At: time.Now().UTC()})

	change := <-ch
	req.Equal("u1", change.UserID)
	req.Equal("logged_in", change.Event)

	notifier.Unsubscribe("listener-1")
	_, open := <-ch
	req.False(open)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
