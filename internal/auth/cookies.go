package auth

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieSettings controls the flags on auth cookies.
type CookieSettings struct {
	Secure     bool // production only
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func newAuthCookie(name, value string, secure bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetAuthCookies writes both tokens as HttpOnly cookies.
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, cs CookieSettings) {
	http.SetCookie(w, newAuthCookie(AccessTokenCookie, accessToken, cs.Secure, int(cs.AccessTTL.Seconds())))
	http.SetCookie(w, newAuthCookie(RefreshTokenCookie, refreshToken, cs.Secure, int(cs.RefreshTTL.Seconds())))
}

// ClearAuthCookies expires both auth cookies.
func ClearAuthCookies(w http.ResponseWriter, cs CookieSettings) {
	http.SetCookie(w, newAuthCookie(AccessTokenCookie, "", cs.Secure, -1))
	http.SetCookie(w, newAuthCookie(RefreshTokenCookie, "", cs.Secure, -1))
}

func GetAccessTokenFromCookie(r *http.Request) (string, error) {
	return cookieValue(r, AccessTokenCookie)
}

func GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	return cookieValue(r, RefreshTokenCookie)
}

func cookieValue(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	if c.Value == "" {
		return "", http.ErrNoCookie
	}
	return c.Value, nil
}
