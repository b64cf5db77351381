// Package interceptors provides the HTTP middleware chain and response
// helpers shared by the API handlers.
package interceptors

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserIDHeader carries the caller's identity, set by the upstream gateway.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns a context carrying the user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns the user ID attached by UserID.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// UserID copies the identity header into the request context.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUserID returns the caller's ID, or writes a 400 response and
// reports false when the identity header is missing or not a UUID.
func RequireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := GetUserIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusBadRequest, "missing "+UserIDHeader+" header")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid "+UserIDHeader+" header")
		return uuid.Nil, false
	}
	return id, true
}
