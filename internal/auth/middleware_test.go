package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

func protected(env *testEnv, roles ...user.Role) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(u.Email))
	})

	mw := NewMiddleware(env.svc)
	if len(roles) == 0 {
		return mw.RequireAuth(final)
	}
	return mw.RequireAuth(RequireRole(roles...)(final))
}

func serve(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerVerified(t, "alice@x.com", "1", "pw123456")
	bob := env.registerVerified(t, "bob@x.com", "2", "pw123456")
	h := protected(env)

	t.Run("bearer header", func(t *testing.T) {
		rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+alice.AccessToken) })
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice@x.com", rec.Body.String())
	})

	t.Run("cookie", func(t *testing.T) {
		rec := serve(h, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: bob.AccessToken}) })
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bob@x.com", rec.Body.String())
	})

	t.Run("cookie takes precedence", func(t *testing.T) {
		rec := serve(h, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: bob.AccessToken})
			r.Header.Set("Authorization", "Bearer "+alice.AccessToken)
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bob@x.com", rec.Body.String())
	})

	rejected := map[string]func(*http.Request){
		"missing":       nil,
		"wrong scheme":  func(r *http.Request) { r.Header.Set("Authorization", "Basic "+alice.AccessToken) },
		"garbage":       func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
		"refresh token": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+alice.RefreshToken) },
	}
	for name, mutate := range rejected {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, mutate)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, httputil.CodeUnauthenticated, decodeError(t, rec).Code)
		})
	}

	t.Run("deactivated user", func(t *testing.T) {
		require.NoError(t, env.svc.Deactivate(context.Background(), alice.User.ID))
		rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+alice.AccessToken) })
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.registerVerified(t, "t@x.com", "1", "pw123456")

	env.register(t, "admin@x.com", "2", "pw123456", user.RoleAdmin)
	admin, _, err := env.svc.VerifyRegistrationOTP(context.Background(), "admin@x.com", env.mailer.lastCode(t))
	require.NoError(t, err)

	h := protected(env, user.RoleAdmin)

	rec := serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tenant.AccessToken) })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+admin.AccessToken) })
	assert.Equal(t, http.StatusOK, rec.Code)

	// Without RequireAuth in front there is no user at all.
	rec = serve(RequireRole(user.RoleAdmin)(http.NotFoundHandler()), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

