package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/queryhub/chat-web-ui/internal/conversation"
	"github.com/queryhub/chat-web-ui/internal/models"
	"github.com/queryhub/chat-web-ui/internal/services"
	"github.com/queryhub/chat-web-ui/internal/session"
	"github.com/tmaxmax/go-sse"
)

// SSE event types for real-time updates.
var (
	messagesSSEType     = sse.Type("messages")
	closeMessageSSEType = sse.Type("closeMessage")
)

// HandleCreateChat creates an empty chat on the server and sends the browser to it. The listing is
// fetched again by the page it lands on.
func (m Main) HandleCreateChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, _ := session.TokenFromContext(r.Context())
	c, err := m.api.CreateChat(r.Context(), token)
	if err != nil {
		m.logger.Error("Failed to create chat", slog.String(errLoggerKey, err.Error()))
		http.Error(w, userMessage(err), apiStatus(err))
		return
	}

	http.Redirect(w, r, fmt.Sprintf("%s?chat_id=%d", session.LandingPath, c.ID), http.StatusSeeOther)
}

// HandleMessages submits a prompt to the selected chat. It appends a placeholder answer to the
// transcript, starts streaming the answer in the background, and responds with the placeholder
// row. The browser then follows the answer through the SSE topic of that row.
//
// The handler expects a "message" form field and an optional "chat_id" field selecting the chat
// first. Only one answer may stream per browser at a time; a second prompt is refused with 409.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prompt := strings.TrimSpace(r.FormValue("message"))
	if prompt == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	token, _ := session.TokenFromContext(r.Context())
	key := session.Key(token)
	view := m.views.View(key)

	if raw := r.FormValue("chat_id"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid chat id", http.StatusBadRequest)
			return
		}
		if err := m.selectChat(r.Context(), token, view, chatID); err != nil {
			m.logger.Error("Failed to select chat",
				slog.Int64("chatID", chatID),
				slog.String(errLoggerKey, err.Error()))
			if errors.Is(err, conversation.ErrChatNotFound) {
				http.Error(w, "Chat not found", http.StatusNotFound)
				return
			}
			http.Error(w, userMessage(err), apiStatus(err))
			return
		}
	}

	ticket, err := view.Begin(prompt, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrNoChatSelected):
			http.Error(w, "Select or create a chat first", http.StatusBadRequest)
		case errors.Is(err, conversation.ErrStreamInFlight):
			http.Error(w, "Please wait for the current answer to finish", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	go m.chat(key, token, view, ticket)

	msg, _, _ := view.Message(ticket.MessageID)
	m.render(w, http.StatusOK, "message", messageView(msg, models.StreamingStateLoading))
}

// HandleMessage renders the current state of one message of the transcript. Browsers use it to
// catch up with updates published before their SSE subscription was established.
func (m Main) HandleMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	token, _ := session.TokenFromContext(r.Context())
	msg, open, ok := m.views.View(session.Key(token)).Message(id)
	if !ok {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	state := models.StreamingStateEnded
	if open {
		state = streamingState(msg.Content)
	}
	m.render(w, http.StatusOK, "message", messageView(msg, state))
}

// selectChat selects chatID, refreshing the listing once when the chat is not known yet.
func (m Main) selectChat(ctx context.Context, token string, view *conversation.View, chatID int64) error {
	if current, ok := view.Selected(); ok && current == chatID {
		return nil
	}

	err := view.Select(chatID)
	if !errors.Is(err, conversation.ErrChatNotFound) {
		return err
	}

	chats, err := m.api.Chats(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to list chats: %w", err)
	}
	view.SetChats(chats)

	return view.Select(chatID)
}

// chat streams the answer of ticket into view. Every update is rendered and published on the
// message's topic while the message is still displayed. A detached answer is read to the end and
// discarded.
func (m Main) chat(key, token string, view *conversation.View, ticket conversation.Ticket) {
	topic := messageIDTopic(key, ticket.MessageID)

	// Ensure SSE connection cleanup on function exit
	defer func() {
		e := &sse.Message{Type: closeMessageSSEType}
		e.AppendData("bye")
		_ = m.sseSrv.Publish(e, topic)
	}()

	logger := m.logger.With(
		slog.Int64("chatID", ticket.ChatID),
		slog.Int64("messageID", ticket.MessageID))

	body, err := m.api.Query(context.Background(), token, ticket.ChatID, ticket.Prompt)
	if err != nil {
		logger.Error("Failed to query chat", slog.String(errLoggerKey, err.Error()))
		if view.Finish(ticket, "") {
			m.publishMessage(view, ticket, topic, userMessage(err))
		}
		return
	}
	defer body.Close()

	var content string
	for update, err := range m.assembler.Assemble(context.Background(), body) {
		content = update
		if err != nil {
			// The answer keeps what arrived before the failure.
			logger.Warn("Answer stream ended early", slog.String(errLoggerKey, err.Error()))
			break
		}

		if view.Publish(ticket, content) {
			m.publishMessage(view, ticket, topic, "")
		}
	}

	if view.Finish(ticket, content) {
		m.publishMessage(view, ticket, topic, "")
	}
	logger.Debug("Answer finished", slog.Int("length", len(content)))
}

func (m Main) publishMessage(view *conversation.View, ticket conversation.Ticket, topic, errText string) {
	msg, open, ok := view.Message(ticket.MessageID)
	if !ok {
		return
	}

	state := models.StreamingStateEnded
	if open {
		state = streamingState(msg.Content)
	}
	data := messageView(msg, state)
	data.Error = errText

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "message", data); err != nil {
		m.logger.Error("Failed to execute message template",
			slog.Int64("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	e := sse.Message{Type: messagesSSEType}
	e.AppendData(sb.String())
	if err := m.sseSrv.Publish(&e, topic); err != nil {
		m.logger.Error("Failed to publish message",
			slog.Int64("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// apiStatus maps a backend failure to the status answered to the browser.
func apiStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNetwork), errors.Is(err, services.ErrMalformedResponse):
		return http.StatusBadGateway
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
