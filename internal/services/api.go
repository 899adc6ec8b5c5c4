package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/queryhub/chat-web-ui/internal/models"
)

// APIClient talks to the chat backend. JSON calls are bounded by the client timeout; the body of a
// query is streamed and only bounded by the caller's context.
type APIClient struct {
	baseURL string
	timeout time.Duration

	client *http.Client

	logger *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type queryRequest struct {
	Prompt string `json:"prompt"`
	ChatID int64  `json:"chat_id"`
}

type apiChat struct {
	ChatID    int64         `json:"chat_id"`
	CreatedAt apiTime       `json:"created_at"`
	Responses []apiResponse `json:"responses"`
}

type apiResponse struct {
	ID           int64   `json:"id"`
	QuestionText *string `json:"question_text"`
	ResponseText string  `json:"response_text"`
	CreatedAt    apiTime `json:"created_at"`
}

type apiErrorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// apiTime accepts RFC 3339 timestamps as well as the zone-less ISO form Python backends emit.
type apiTime struct {
	time.Time
}

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

const (
	endpointLogin  = "/server/login"
	endpointSignup = "/server/signup"
	endpointChats  = "/server/chats"
	endpointQuery  = "/server/query"

	// DefaultTimeout bounds the JSON calls when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	errLoggerKey = "err"
)

// NewAPIClient creates a client for the backend at baseURL. A missing scheme defaults to http and a
// trailing slash is dropped.
func NewAPIClient(baseURL string, timeout time.Duration, logger *slog.Logger) (APIClient, error) {
	u, err := normalizeBaseURL(baseURL)
	if err != nil {
		return APIClient{}, fmt.Errorf("invalid api base url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return APIClient{
		baseURL: u,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "api")),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}

	return strings.TrimRight(fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path), "/"), nil
}

// Login exchanges an email and password for a credential.
func (a APIClient) Login(ctx context.Context, email, password string) (string, error) {
	return a.token(ctx, endpointLogin, loginRequest{Email: email, Password: password})
}

// Signup creates an account and returns its credential.
func (a APIClient) Signup(ctx context.Context, fullName, email, password string) (string, error) {
	return a.token(ctx, endpointSignup, signupRequest{FullName: fullName, Email: email, Password: password})
}

func (a APIClient) token(ctx context.Context, endpoint string, body any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var res tokenResponse
	if err := a.doJSON(ctx, http.MethodPost, endpoint, "", body, &res); err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrMalformedResponse)
	}
	return res.AccessToken, nil
}

// Chats lists the chats of the credential's owner with their history. Roles are rebuilt from the
// response text, see models.RoleFromResponse.
func (a APIClient) Chats(ctx context.Context, token string) ([]models.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var res []apiChat
	if err := a.doJSON(ctx, http.MethodGet, endpointChats, token, nil, &res); err != nil {
		return nil, err
	}

	chats := make([]models.Chat, len(res))
	for i, c := range res {
		chats[i] = c.chat()
	}
	return chats, nil
}

// CreateChat creates an empty chat on the server. Listings fetched earlier do not include it.
func (a APIClient) CreateChat(ctx context.Context, token string) (models.Chat, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var res apiChat
	if err := a.doJSON(ctx, http.MethodPost, endpointChats, token, nil, &res); err != nil {
		return models.Chat{}, err
	}
	return res.chat(), nil
}

// Query sends a prompt to a chat and returns the live answer body, which the caller must close.
// Errors happen before any byte of the answer is read; failures while reading the body are the
// caller's to handle.
func (a APIClient) Query(ctx context.Context, token string, chatID int64, prompt string) (io.ReadCloser, error) {
	resp, err := a.do(ctx, http.MethodPost, endpointQuery, token, queryRequest{Prompt: prompt, ChatID: chatID})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a APIClient) doJSON(ctx context.Context, method, endpoint, token string, body, out any) error {
	resp, err := a.do(ctx, method, endpoint, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: error reading response: %w", ErrNetwork, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		a.logger.Warn("Unexpected response payload",
			slog.String("endpoint", endpoint),
			slog.String("body", truncate(string(raw), 512)),
			slog.String(errLoggerKey, err.Error()))
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func (a APIClient) do(ctx context.Context, method, endpoint, token string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		a.logger.Debug("API error",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("detail", apiErr.Detail))
		return nil, apiErr
	}

	return resp, nil
}

// readDetail extracts the "detail" member of an error body. Validation errors carry a list of
// objects with a "msg" member instead of a string.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}

	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		return detail
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(body.Detail)
}

func (c apiChat) chat() models.Chat {
	msgs := make([]models.Message, len(c.Responses))
	for i, r := range c.Responses {
		msgs[i] = models.Message{
			ID:        r.ID,
			Role:      models.RoleFromResponse(r.ResponseText),
			Content:   r.ResponseText,
			CreatedAt: r.CreatedAt.Time,
		}
		if r.QuestionText != nil {
			msgs[i].QuestionText = *r.QuestionText
		}
	}

	return models.Chat{
		ID:        c.ChatID,
		CreatedAt: c.CreatedAt.Time,
		Messages:  msgs,
	}
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}

	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
