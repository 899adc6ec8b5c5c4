package session

import (
	"net/http"
)

// Variant selects which visitors a Gate lets through.
type Variant int

const (
	// RequireAuthenticated admits visitors holding a credential and sends everybody else to the
	// login page.
	RequireAuthenticated Variant = iota
	// RequireAnonymous admits visitors without a credential and sends signed-in visitors to the
	// landing page. It guards the login and signup pages.
	RequireAnonymous
)

// Default redirect targets of the gate variants.
const (
	LoginPath   = "/login"
	LandingPath = "/"
)

// Gate is a route guard evaluated before the guarded handler runs. It reads the store exactly once
// per request and either redirects or calls the next handler; a credential the server later rejects
// is not detected here.
type Gate struct {
	Variant  Variant
	Store    Store
	Redirect string
}

// Protected returns the gate for pages that need a credential.
func Protected(store Store) Gate {
	return Gate{Variant: RequireAuthenticated, Store: store, Redirect: LoginPath}
}

// NoAuth returns the gate for pages that only make sense without a credential.
func NoAuth(store Store) Gate {
	return Gate{Variant: RequireAnonymous, Store: store, Redirect: LandingPath}
}

// Allow reports whether a visitor with the given authentication state passes the gate.
func (g Gate) Allow(authenticated bool) bool {
	if g.Variant == RequireAnonymous {
		return !authenticated
	}
	return authenticated
}

// Wrap guards next. Requests passing a RequireAuthenticated gate carry the credential in their
// context, see TokenFromContext.
func (g Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := g.Store.Get(r)
		if !g.Allow(ok) {
			http.Redirect(w, r, g.redirect(), http.StatusSeeOther)
			return
		}
		if ok {
			r = r.WithContext(WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// WrapFunc is Wrap for handler functions.
func (g Gate) WrapFunc(next http.HandlerFunc) http.Handler {
	return g.Wrap(next)
}

func (g Gate) redirect() string {
	if g.Redirect != "" {
		return g.Redirect
	}
	if g.Variant == RequireAnonymous {
		return LandingPath
	}
	return LoginPath
}
