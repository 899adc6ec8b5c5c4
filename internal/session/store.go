package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// Store holds the single credential of a browser. Set replaces any credential already held, and a
// credential is kept until Clear is called, it never expires on its own.
type Store interface {
	Get(r *http.Request) (string, bool)
	Set(w http.ResponseWriter, r *http.Request, token string) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// DefaultCookieName is the cookie used when none is configured.
const DefaultCookieName = "access_token"

// cookieMaxAge is the longest lifetime browsers accept for a persistent cookie.
const cookieMaxAge = 400 * 24 * time.Hour

// ErrEmptyToken is returned when storing an empty credential.
var ErrEmptyToken = errors.New("empty token")

type tokenContextKey struct{}

// WithToken returns a copy of ctx carrying the credential of the current request.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the credential injected by a RequireAuthenticated gate.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok && token != ""
}

// Key derives a stable, non-reversible key from a credential. It is used to index per-browser view
// state without keeping the credential itself around.
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

func persistentCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
