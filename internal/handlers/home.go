package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/queryhub/chat-web-ui/internal/session"
)

type homePageData struct {
	Identity string

	Chats         []chat
	CurrentChatID int64
	HasChat       bool
	Messages      []message
	Streaming     bool

	Error string
}

// HandleHome renders the conversation page: the chat listing on the side and the transcript of the
// selected chat. The optional "chat_id" query parameter selects a chat; without it the current
// selection is kept, or the first chat is shown.
//
// A listing failure is not fatal. The page is rendered with an empty list and a banner describing
// the failure, and the transcript already shown is kept.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	token, _ := session.TokenFromContext(r.Context())
	view := m.views.View(session.Key(token))

	data := homePageData{
		Identity: session.Identity(token),
	}

	// A failed listing leaves the view as it was, so an answer still streaming stays attached.
	chats, err := m.api.Chats(r.Context(), token)
	if err != nil {
		m.logger.Error("Failed to list chats", slog.String(errLoggerKey, err.Error()))
		data.Error = userMessage(err)
	} else {
		view.SetChats(chats)
	}

	if raw := r.URL.Query().Get("chat_id"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			err = view.Select(chatID)
		}
		if err != nil {
			m.logger.Warn("Ignoring chat selection",
				slog.String("chatID", raw),
				slog.String(errLoggerKey, err.Error()))
		}
	}

	data.CurrentChatID, data.HasChat = view.Selected()
	if data.Error == "" {
		data.Chats = chatViews(view.Chats(), data.CurrentChatID)
	}

	var openID int64
	transcript := view.Transcript()
	data.Streaming = view.Streaming()
	if data.Streaming && len(transcript) > 0 {
		openID = transcript[len(transcript)-1].ID
	}
	data.Messages = messageViews(transcript, openID, data.Streaming)

	m.render(w, http.StatusOK, "home.html", data)
}
