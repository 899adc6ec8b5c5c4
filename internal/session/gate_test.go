package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/queryhub/chat-web-ui/internal/session"
)

type fakeStore struct {
	token string
	gets  int
}

func (f *fakeStore) Get(*http.Request) (string, bool) {
	f.gets++
	return f.token, f.token != ""
}

func (f *fakeStore) Set(_ http.ResponseWriter, _ *http.Request, token string) error {
	f.token = token
	return nil
}

func (f *fakeStore) Clear(http.ResponseWriter, *http.Request) error {
	f.token = ""
	return nil
}

func TestGate(t *testing.T) {
	tests := []struct {
		name         string
		gate         func(session.Store) session.Gate
		token        string
		wantStatus   int
		wantLocation string
		wantToken    string
	}{
		{
			name:         "protected page without credential",
			gate:         session.Protected,
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login",
		},
		{
			name:       "protected page with credential",
			gate:       session.Protected,
			token:      "T",
			wantStatus: http.StatusOK,
			wantToken:  "T",
		},
		{
			name:       "public page without credential",
			gate:       session.NoAuth,
			wantStatus: http.StatusOK,
		},
		{
			name:         "public page with credential",
			gate:         session.NoAuth,
			token:        "T",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{token: tt.token}
			called := false
			var gotToken string

			h := tt.gate(store).WrapFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotToken, _ = session.TokenFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if loc := w.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
			if gotToken != tt.wantToken {
				t.Errorf("context token = %q, want %q", gotToken, tt.wantToken)
			}
			if store.gets != 1 {
				t.Errorf("store read %d times, want exactly once", store.gets)
			}
		})
	}
}

func TestGateAllow(t *testing.T) {
	for _, authenticated := range []bool{false, true} {
		if got := session.Protected(nil).Allow(authenticated); got != authenticated {
			t.Errorf("Protected.Allow(%v) = %v", authenticated, got)
		}
		if got := session.NoAuth(nil).Allow(authenticated); got == authenticated {
			t.Errorf("NoAuth.Allow(%v) = %v", authenticated, got)
		}
	}
}

func TestGateCustomRedirect(t *testing.T) {
	g := session.Gate{Variant: session.RequireAuthenticated, Store: &fakeStore{}, Redirect: "/signin"}

	w := httptest.NewRecorder()
	g.WrapFunc(func(http.ResponseWriter, *http.Request) {}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if loc := w.Header().Get("Location"); loc != "/signin" {
		t.Errorf("Location = %q, want /signin", loc)
	}
}
