package httputil

import (
	"net/http"
	"time"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

const (
	AccessCookieName  = "access-token"
	RefreshCookieName = "refresh-token"
)

// CookieConfig controls the auth cookie attributes
type CookieConfig struct {
	Secure        bool
	Domain        string
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// DefaultCookieConfig matches the default token lifetimes
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Secure:        true,
		AccessMaxAge:  auth.DefaultAccessTTL,
		RefreshMaxAge: auth.DefaultRefreshTTL,
	}
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetAuthCookies writes both token cookies
func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, pair auth.TokenPair) {
	http.SetCookie(w, cfg.cookie(AccessCookieName, pair.AccessToken, cfg.AccessMaxAge))
	http.SetCookie(w, cfg.cookie(RefreshCookieName, pair.RefreshToken, cfg.RefreshMaxAge))
}

// ClearAuthCookies expires both token cookies
func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c := cfg.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// ReadAuthCookies returns the token cookie values. A missing cookie yields "".
func ReadAuthCookies(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(AccessCookieName); err == nil {
		access = c.Value
	}
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		refresh = c.Value
	}
	return access, refresh
}
