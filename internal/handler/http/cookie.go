package http

import (
	"net/http"
	"time"
)

// setRefreshCookie attaches the refresh token as a cross-site credential
// cookie. SameSite=None requires Secure, so the cookie only round-trips over
// HTTPS.
func setRefreshCookie(w http.ResponseWriter, name, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// clearRefreshCookie expires the refresh cookie immediately.
func clearRefreshCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// refreshTokenFromRequest returns the refresh cookie value, empty if absent.
func refreshTokenFromRequest(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
