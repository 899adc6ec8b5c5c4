package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/queryhub/chat-web-ui/internal/models"
	"github.com/queryhub/chat-web-ui/internal/services"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
)

type chat struct {
	ID     int64
	Title  string
	Active bool
}

type message struct {
	ID           int64
	Role         string
	QuestionText string
	Content      string
	Timestamp    time.Time

	StreamingState string
	Error          string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
	),
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown": renderMarkdown,
	}
}

// renderMarkdown converts answer text to HTML. Raw HTML in the text is omitted by the renderer.
func renderMarkdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

func messageView(msg models.Message, state string) message {
	return message{
		ID:             msg.ID,
		Role:           string(msg.Role),
		QuestionText:   msg.QuestionText,
		Content:        msg.Content,
		Timestamp:      msg.CreatedAt,
		StreamingState: state,
	}
}

func messageViews(msgs []models.Message, openID int64, open bool) []message {
	res := make([]message, len(msgs))
	for i, msg := range msgs {
		state := models.StreamingStateEnded
		if open && msg.ID == openID {
			state = streamingState(msg.Content)
		}
		res[i] = messageView(msg, state)
	}
	return res
}

func streamingState(content string) string {
	if content == "" {
		return models.StreamingStateLoading
	}
	return models.StreamingStateStreaming
}

func chatViews(chats []models.Chat, activeID int64) []chat {
	res := make([]chat, len(chats))
	for i, c := range chats {
		res[i] = chat{
			ID:     c.ID,
			Title:  chatTitle(c),
			Active: c.ID == activeID,
		}
	}
	return res
}

func chatTitle(c models.Chat) string {
	for _, msg := range c.Messages {
		if q := strings.TrimSpace(msg.QuestionText); q != "" {
			if r := []rune(q); len(r) > 40 {
				return string(r[:40]) + "…"
			}
			return q
		}
	}
	return ""
}

// userMessage turns an API error into the text shown to the user. A server detail is shown verbatim.
func userMessage(err error) string {
	if detail := services.Detail(err); detail != "" {
		return detail
	}

	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return "Your session was rejected by the server. Please log out and log in again."
	case errors.Is(err, services.ErrNetwork):
		return "Could not reach the server. Please try again."
	case errors.Is(err, services.ErrMalformedResponse):
		return "The server sent an unexpected response."
	default:
		return "Something went wrong."
	}
}
