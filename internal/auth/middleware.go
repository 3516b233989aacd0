package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "auth_user"

// Authenticator resolves an access token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*user.User, error)
}

// Middleware handles authentication for protected routes
type Middleware struct {
	authenticator Authenticator
}

func NewMiddleware(authenticator Authenticator) *Middleware {
	return &Middleware{authenticator: authenticator}
}

const unauthenticatedMessage = "authentication required"

// RequireAuth validates the access token and loads the caller. The cookie
// wins over the Authorization header. Every failure is the same 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.GetLoggerFromContext(r.Context())

		token, err := GetAccessTokenFromCookie(r)
		if err != nil {
			token = bearerToken(r)
		}
		if token == "" {
			httputil.RespondErrorWithCode(w, unauthenticatedMessage, httputil.CodeUnauthenticated, http.StatusUnauthorized)
			return
		}

		u, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				logger.Error("failed to authenticate request", "error", err)
			}
			httputil.RespondErrorWithCode(w, unauthenticatedMessage, httputil.CodeUnauthenticated, http.StatusUnauthorized)
			return
		}

		ctx := WithUser(r.Context(), u)
		ctx = logging.WithLogger(ctx, logger.WithFields(map[string]any{"user_id": u.ID}))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated callers whose role is not listed.
// It must run after RequireAuth.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				httputil.RespondErrorWithCode(w, unauthenticatedMessage, httputil.CodeUnauthenticated, http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, u.Role) {
				httputil.RespondErrorWithCode(w, "you do not have permission to access this resource", httputil.CodeForbidden, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok && u != nil
}

// WithUser stores u in ctx the same way RequireAuth does.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
