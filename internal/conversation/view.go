package conversation

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/queryhub/chat-web-ui/internal/models"
)

var (
	// ErrNoChatSelected is returned when a prompt is submitted before any chat is selected.
	ErrNoChatSelected = errors.New("no chat selected")
	// ErrChatNotFound is returned when selecting a chat that is not in the listing.
	ErrChatNotFound = errors.New("chat not found")
	// ErrStreamInFlight is returned when a prompt is submitted while the previous answer is still
	// streaming.
	ErrStreamInFlight = errors.New("an answer is still streaming")
)

// View is the transcript state of one browser: the listed chats, the selected chat and the messages
// currently shown for it. At most one message, the last placeholder appended by Begin, is open for
// mutation, and only through the Ticket returned with it.
type View struct {
	mu sync.Mutex

	chats      []models.Chat
	selected   int64
	hasChat    bool
	transcript []models.Message

	generation uint64
	open       *Ticket
	lastID     int64
}

// Ticket identifies the message opened by Begin. Updates made with a ticket whose chat is no longer
// displayed are dropped.
type Ticket struct {
	ChatID     int64
	MessageID  int64
	Prompt     string
	generation uint64
}

// SetChats replaces the chat listing. The current selection is kept when the chat is still listed,
// otherwise the first chat is selected. Selecting replaces the transcript, see Select.
func (v *View) SetChats(chats []models.Chat) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.chats = make([]models.Chat, len(chats))
	for i := range chats {
		v.chats[i] = chats[i].Clone()
	}

	id := v.selected
	if !v.hasChat || v.indexOf(id) < 0 {
		if len(v.chats) == 0 {
			v.clearSelection()
			return
		}
		id = v.chats[0].ID
	} else if v.open != nil {
		// The selected chat is streaming; its transcript stays until the answer finishes.
		return
	}
	v.selectLocked(id)
}

// Select shows the stored messages of the chat. Any answer still streaming into the previous
// transcript is detached: its further updates are dropped. Selecting the chat already shown changes
// nothing.
func (v *View) Select(chatID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.indexOf(chatID) < 0 {
		return ErrChatNotFound
	}
	if v.hasChat && v.selected == chatID {
		return nil
	}
	v.selectLocked(chatID)
	return nil
}

// Begin appends a placeholder answer for prompt to the transcript and opens it for mutation.
func (v *View) Begin(prompt string, now time.Time) (Ticket, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.hasChat {
		return Ticket{}, ErrNoChatSelected
	}
	if v.open != nil {
		return Ticket{}, ErrStreamInFlight
	}

	id := now.UnixMilli()
	if id <= v.lastID {
		id = v.lastID + 1
	}
	v.lastID = id

	v.transcript = append(v.transcript, models.Message{
		ID:           id,
		Role:         models.RoleAssistant,
		QuestionText: prompt,
		CreatedAt:    now,
	})

	t := Ticket{
		ChatID:     v.selected,
		MessageID:  id,
		Prompt:     prompt,
		generation: v.generation,
	}
	v.open = &t
	return t, nil
}

// Publish replaces the content of the ticket's message. It reports whether the message is still
// displayed; updates for a detached message change nothing.
func (v *View) Publish(t Ticket, content string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.publishLocked(t, content)
}

// Finish publishes the final content and closes the message. The message is immutable afterwards.
func (v *View) Finish(t Ticket, content string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	shown := v.publishLocked(t, content)
	if shown {
		v.open = nil
	}
	return shown
}

// Streaming reports whether an answer is open for mutation.
func (v *View) Streaming() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.open != nil
}

// Chats returns the chat listing.
func (v *View) Chats() []models.Chat {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Clone(v.chats)
}

// Selected returns the id of the selected chat.
func (v *View) Selected() (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.selected, v.hasChat
}

// Transcript returns a copy of the displayed messages.
func (v *View) Transcript() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Clone(v.transcript)
}

// Message returns a displayed message and whether it is still open for mutation.
func (v *View) Message(id int64) (models.Message, bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := slices.IndexFunc(v.transcript, func(m models.Message) bool { return m.ID == id })
	if i < 0 {
		return models.Message{}, false, false
	}
	return v.transcript[i], v.open != nil && v.open.MessageID == id, true
}

func (v *View) publishLocked(t Ticket, content string) bool {
	if v.open == nil || v.open.MessageID != t.MessageID || v.open.generation != t.generation {
		return false
	}

	last := len(v.transcript) - 1
	if last < 0 || v.transcript[last].ID != t.MessageID {
		return false
	}
	v.transcript[last].Content = content
	return true
}

func (v *View) selectLocked(chatID int64) {
	v.selected = chatID
	v.hasChat = true
	v.transcript = slices.Clone(v.chats[v.indexOf(chatID)].Messages)
	v.generation++
	v.open = nil
}

func (v *View) clearSelection() {
	v.selected = 0
	v.hasChat = false
	v.transcript = nil
	v.generation++
	v.open = nil
}

func (v *View) indexOf(chatID int64) int {
	return slices.IndexFunc(v.chats, func(c models.Chat) bool { return c.ID == chatID })
}
