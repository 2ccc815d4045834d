package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/pkg/errors"
)

type contextKey string

const userContextKey contextKey = "authUser"

// UserFromContext returns the authenticated user set by Authenticator.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// AuthMiddleware validates bearer tokens and loads the current user row.
// Role changes take effect on the next request, not the next token.
type AuthMiddleware struct {
	userRepo  *repositories.UserRepository
	jwtSecret string
	onError   func(w http.ResponseWriter, r *http.Request, err error)
}

func NewAuthMiddleware(userRepo *repositories.UserRepository, jwtSecret string, onError func(http.ResponseWriter, *http.Request, error)) *AuthMiddleware {
	return &AuthMiddleware{userRepo: userRepo, jwtSecret: jwtSecret, onError: onError}
}

// Authenticator rejects requests without a valid bearer token.
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			m.onError(w, r, errors.New(errors.ErrCodeUnauthorized, "missing bearer token"))
			return
		}

		claims, err := security.ValidateJWT(strings.TrimPrefix(header, "Bearer "), m.jwtSecret)
		if err != nil {
			m.onError(w, r, errors.New(errors.ErrCodeUnauthorized, "invalid or expired token"))
			return
		}

		user, err := m.userRepo.GetUserByID(claims.UserID)
		if err != nil {
			m.onError(w, r, errors.New(errors.ErrCodeUnauthorized, "account no longer exists"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireClearance gates a route subtree on a minimum role.
func (m *AuthMiddleware) RequireClearance(required models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				m.onError(w, r, errors.New(errors.ErrCodeUnauthorized, "missing bearer token"))
				return
			}
			if !user.Role.HasClearance(required) {
				m.onError(w, r, errors.New(errors.ErrCodeForbidden, "insufficient clearance"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
