package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/doucovani/backend/internal/services"
)

type contextKey string

const (
	tutorIDKey contextKey = "tutorID"
	tokenKey   contextKey = "token"
)

// Authenticator resolves a bearer token to a tutor id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int64, error)
}

// AuthMiddleware requires a valid bearer token and stores the tutor id in
// the request context.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
				return
			}

			tutorID, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
				return
			}

			ctx := context.WithValue(r.Context(), tutorIDKey, tutorID)
			ctx = context.WithValue(ctx, tokenKey, parts[1])
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminKey guards the back-office routes with a shared key sent in the
// X-Admin-Key header. An empty configured key disables the routes.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get("X-Admin-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
				services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithTutorID returns a context carrying an authenticated tutor id.
func WithTutorID(ctx context.Context, tutorID int64) context.Context {
	return context.WithValue(ctx, tutorIDKey, tutorID)
}

func TutorIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(tutorIDKey).(int64)
	return id, ok && id > 0
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
