package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/queryhub/chat-web-ui/internal/session"
)

type authPageData struct {
	Email    string
	FullName string
	Error    string
}

// Validation messages shown above the login and signup forms.
const (
	loginFieldsRequired  = "Both fields are required!"
	signupFieldsRequired = "All fields are required!"
	passwordMismatch     = "Passwords do not match!"
	termsNotAccepted     = "You must accept the terms and conditions."
)

// HandleLogin serves the login form on GET and signs the user in on POST. Empty fields are rejected
// without contacting the API. On success the credential is stored and the browser is sent to the
// conversation page.
func (m Main) HandleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.render(w, http.StatusOK, "login.html", authPageData{})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	data := authPageData{Email: email}

	if email == "" || password == "" {
		data.Error = loginFieldsRequired
		m.render(w, http.StatusBadRequest, "login.html", data)
		return
	}

	token, err := m.api.Login(r.Context(), email, password)
	if err != nil {
		m.logger.Warn("Login failed",
			slog.String("email", email),
			slog.String(errLoggerKey, err.Error()))
		data.Error = userMessage(err)
		m.render(w, http.StatusUnauthorized, "login.html", data)
		return
	}

	m.signIn(w, r, token, "login.html", data)
}

// HandleSignup serves the signup form on GET and registers the user on POST. The form checks run
// in order: missing fields, password confirmation, then the terms checkbox. Any failure is shown
// without contacting the API.
func (m Main) HandleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.render(w, http.StatusOK, "signup.html", authPageData{})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fullName := strings.TrimSpace(r.FormValue("full_name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")
	data := authPageData{Email: email, FullName: fullName}

	switch {
	case fullName == "" || email == "" || password == "" || confirm == "":
		data.Error = signupFieldsRequired
	case password != confirm:
		data.Error = passwordMismatch
	case r.FormValue("terms") == "":
		data.Error = termsNotAccepted
	}
	if data.Error != "" {
		m.render(w, http.StatusBadRequest, "signup.html", data)
		return
	}

	token, err := m.api.Signup(r.Context(), fullName, email, password)
	if err != nil {
		m.logger.Warn("Signup failed",
			slog.String("email", email),
			slog.String(errLoggerKey, err.Error()))
		data.Error = userMessage(err)
		m.render(w, http.StatusBadRequest, "signup.html", data)
		return
	}

	m.signIn(w, r, token, "signup.html", data)
}

// HandleLogout forgets the conversation state of the browser and clears its credential.
func (m Main) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if token, ok := session.TokenFromContext(r.Context()); ok {
		m.views.Drop(session.Key(token))
	}
	if err := m.sessions.Clear(w, r); err != nil {
		m.logger.Error("Failed to clear session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
}

func (m Main) signIn(w http.ResponseWriter, r *http.Request, token, page string, data authPageData) {
	if err := m.sessions.Set(w, r, token); err != nil {
		m.logger.Error("Failed to store session", slog.String(errLoggerKey, err.Error()))
		data.Error = "Could not start a session. Please try again."
		m.render(w, http.StatusInternalServerError, page, data)
		return
	}

	http.Redirect(w, r, session.LandingPath, http.StatusSeeOther)
}
