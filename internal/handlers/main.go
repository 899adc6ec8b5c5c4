package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	chatwebui "github.com/queryhub/chat-web-ui"
	"github.com/queryhub/chat-web-ui/internal/conversation"
	"github.com/queryhub/chat-web-ui/internal/models"
	"github.com/queryhub/chat-web-ui/internal/session"
	"github.com/queryhub/chat-web-ui/internal/stream"
	"github.com/tmaxmax/go-sse"
)

// API is the remote chat backend. Query returns the live answer body; failures while it is being
// read end the answer early.
type API interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, fullName, email, password string) (string, error)
	Chats(ctx context.Context, token string) ([]models.Chat, error)
	CreateChat(ctx context.Context, token string) (models.Chat, error)
	Query(ctx context.Context, token string, chatID int64, prompt string) (io.ReadCloser, error)
}

// Main serves the web interface: the login and signup pages, the conversation page, and the
// server-sent events that repaint an answer while it streams in.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	api       API
	sessions  session.Store
	views     *conversation.Registry
	assembler stream.Assembler

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates a Main using api for every backend call and sessions to persist credentials. The
// SSE server only accepts authenticated requests, and subscribes each of them to the topic of the
// message named by the "message_id" query parameter.
func NewMain(api API, sessions session.Store, assembler stream.Assembler, logger *slog.Logger) (Main, error) {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(
		chatwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				token, ok := session.TokenFromContext(s.Req.Context())
				if !ok {
					return sse.Subscription{}, false
				}

				topics := []string{sse.DefaultTopic}
				if messageID := s.Req.URL.Query().Get("message_id"); messageID != "" {
					topics = append(topics, messageIDTopic(session.Key(token), messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		api:       api,
		sessions:  sessions,
		views:     conversation.NewRegistry(conversation.DefaultIdleTimeout),
		assembler: assembler,
		logger:    logger.With(slog.String("module", "handlers")),
	}, nil
}

// messageIDTopic scopes a message topic to the browser session, so events never reach another user.
func messageIDTopic(sessionKey string, messageID any) string {
	return fmt.Sprintf("message-%s-%v", sessionKey, messageID)
}

// HandleSSE serves the event stream of a message.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected
// clients and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE requires data on every event.
	e.AppendData("bye")

	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func (m Main) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := m.templates.ExecuteTemplate(w, name, data); err != nil {
		m.logger.Error("Failed to execute template",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
	}
}
