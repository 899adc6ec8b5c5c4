package session

import (
	"net/http"
)

// CookieStore keeps the credential itself in an HttpOnly cookie, so it lives entirely in the browser.
type CookieStore struct {
	name   string
	secure bool
}

// NewCookieStore creates a CookieStore using the named cookie. Secure cookies are only sent over
// HTTPS.
func NewCookieStore(name string, secure bool) CookieStore {
	if name == "" {
		name = DefaultCookieName
	}
	return CookieStore{name: name, secure: secure}
}

// Get returns the credential carried by the request, if any.
func (c CookieStore) Get(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Set stores token in the browser, replacing the previous credential.
func (c CookieStore) Set(w http.ResponseWriter, _ *http.Request, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	http.SetCookie(w, persistentCookie(c.name, token, c.secure))
	return nil
}

// Clear removes the credential from the browser.
func (c CookieStore) Clear(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, expiredCookie(c.name, c.secure))
	return nil
}
