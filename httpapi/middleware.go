package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"stampchat/domain"
	"stampchat/errors"
)

type contextKey string

const userContextKey contextKey = "user_context"

// withUser resolves the bearer token into a UserContext and rejects requests
// without one. No group or message operation runs unauthenticated.
func (s *Server) withUser(next func(http.ResponseWriter, *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			s.jsonError(w, errors.ErrInvalidCredentials)
			return
		}

		claims, err := s.tokens.Validate(tokenStr)
		if err != nil {
			s.jsonError(w, errors.ErrInvalidCredentials)
			return
		}

		user := domain.UserContext{UserID: claims.UserID}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func userFrom(r *http.Request) domain.UserContext {
	user, _ := r.Context().Value(userContextKey).(domain.UserContext)
	return user
}

func (s *Server) jsonError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
