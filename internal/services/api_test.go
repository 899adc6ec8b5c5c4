package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/queryhub/chat-web-ui/internal/models"
	"github.com/queryhub/chat-web-ui/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) services.APIClient {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := services.NewAPIClient(srv.URL+"/", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestNewAPIClientInvalidURL(t *testing.T) {
	_, err := services.NewAPIClient("http://", 0, slog.Default())
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/server/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"email": "a@b.com", "password": "x"}, body)

		_, _ = io.WriteString(w, `{"access_token":"T","token_type":"bearer"}`)
	})

	token, err := c.Login(context.Background(), "a@b.com", "x")
	require.NoError(t, err)
	assert.Equal(t, "T", token)
}

func TestSignup(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/server/signup", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada Lovelace", body["full_name"])

		_, _ = io.WriteString(w, `{"access_token":"S"}`)
	})

	token, err := c.Signup(context.Background(), "Ada Lovelace", "ada@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "S", token)
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantIs     error
	}{
		{
			name:       "rejected credentials",
			status:     http.StatusUnauthorized,
			body:       `{"detail":"Invalid email or password"}`,
			wantDetail: "Invalid email or password",
			wantIs:     services.ErrUnauthorized,
		},
		{
			name:       "validation error list",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`,
			wantDetail: "value is not a valid email address",
		},
		{
			name:   "error without detail",
			status: http.StatusInternalServerError,
			body:   `oops`,
		},
		{
			name:   "missing token",
			status: http.StatusOK,
			body:   `{}`,
			wantIs: services.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Login(context.Background(), "a@b.com", "x")
			require.Error(t, err)
			assert.Equal(t, tt.wantDetail, services.Detail(err))
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestChats(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `[
			{"chat_id": 7, "created_at": "2025-02-01T10:00:00.123456", "responses": [
				{"id": 1, "question_text": "hi", "response_text": "User: hi", "created_at": "2025-02-01T10:00:01Z"},
				{"id": 2, "question_text": null, "response_text": "Hello!", "created_at": "2025-02-01 10:00:02"}
			]},
			{"chat_id": 8, "created_at": "2025-02-02T10:00:00Z", "responses": []}
		]`)
	})

	chats, err := c.Chats(context.Background(), "T")
	require.NoError(t, err)
	require.Len(t, chats, 2)

	assert.Equal(t, int64(7), chats[0].ID)
	assert.Equal(t, 2025, chats[0].CreatedAt.Year())
	require.Len(t, chats[0].Messages, 2)
	assert.Equal(t, models.Message{
		ID:           1,
		Role:         models.RoleUser,
		QuestionText: "hi",
		Content:      "User: hi",
		CreatedAt:    time.Date(2025, 2, 1, 10, 0, 1, 0, time.UTC),
	}, chats[0].Messages[0])
	assert.Equal(t, models.RoleAssistant, chats[0].Messages[1].Role)
	assert.Empty(t, chats[0].Messages[1].QuestionText)
	assert.Empty(t, chats[1].Messages)
}

func TestChatsMalformed(t *testing.T) {
	for _, body := range []string{`{"detail":"not a list"}`, `not json`, `[{"chat_id":"x"}]`} {
		c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		})

		chats, err := c.Chats(context.Background(), "T")
		assert.ErrorIs(t, err, services.ErrMalformedResponse, body)
		assert.Empty(t, chats)
	}
}

func TestChatsUnauthorized(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	})

	_, err := c.Chats(context.Background(), "bad")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	assert.Equal(t, "Could not validate credentials", services.Detail(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := services.NewAPIClient(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = c.Chats(context.Background(), "T")
	assert.ErrorIs(t, err, services.ErrNetwork)

	_, err = c.Query(context.Background(), "T", 1, "hi")
	assert.ErrorIs(t, err, services.ErrNetwork)
}

func TestCreateChat(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/server/chats", r.URL.Path)
		_, _ = io.WriteString(w, `{"chat_id": 9, "created_at": "2025-03-01T00:00:00Z", "responses": []}`)
	})

	chat, err := c.CreateChat(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, int64(9), chat.ID)
}

func TestQuery(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt string `json:"prompt"`
			ChatID int64  `json:"chat_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Prompt)
		assert.Equal(t, int64(3), body.ChatID)

		_, _ = io.WriteString(w, "data: Hi")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, " there")
	})

	body, err := c.Query(context.Background(), "T", 3, "hello")
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: Hi there", string(raw))
}

func TestQueryFailsBeforeStreaming(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"Not your chat"}`)
	})

	body, err := c.Query(context.Background(), "T", 3, "hello")
	assert.Nil(t, body)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	assert.Equal(t, "Not your chat", services.Detail(err))
}
