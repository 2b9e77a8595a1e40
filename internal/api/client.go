package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codechat/pkg/logger"
)

// TokenStore is the narrow slice of the credential cache the client needs:
// read the bearer token, and purge it when the backend says it is no longer
// valid.
type TokenStore interface {
	Token() string
	Clear() error
}

// Client is the sole network boundary of the application. Every method maps
// to one backend operation; failures come back as *Error with a Kind from
// the taxonomy in errors.go.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

func New(baseURL string, timeout time.Duration, tokens TokenStore) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		tokens: tokens,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "codechat/1.0")

	authed := false
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
			authed = true
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warnf("api: %s %s: %v", method, path, err)
		return &Error{
			Kind:    KindConnectivity,
			Message: fmt.Sprintf("Cannot reach the backend at %s. Make sure the server is running.", c.baseURL),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}

		// A rejected bearer token invalidates the whole session, no matter
		// which operation tripped it. Login/register carry no token, so a
		// 401 there is an ordinary validation failure.
		if authed && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			if c.tokens != nil {
				_ = c.tokens.Clear()
			}
			logger.Infof("api: auth failure on %s %s, session purged", method, path)
			return &Error{Kind: KindAuth, Status: resp.StatusCode, Message: msg}
		}

		kind := KindValidation
		if resp.StatusCode >= 500 {
			kind = KindServer
		}
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return &Error{Kind: kind, Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &res)
	return res, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	return res, err
}

// CurrentUser validates the stored token at bootstrap. The backend inlines
// the user fields and a needs_language hint in one object.
func (c *Client) CurrentUser(ctx context.Context) (User, bool, error) {
	var res struct {
		User
		NeedsLanguage bool `json:"needs_language"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return User{}, false, err
	}
	return res.User, res.NeedsLanguage, nil
}

func (c *Client) SetLanguage(ctx context.Context, language string) error {
	return c.do(ctx, http.MethodPost, "/auth/language", map[string]string{"language": language}, nil)
}

// Username reads the configured username of the local (no-auth) deployment.
// An empty result means onboarding has not happened yet.
func (c *Client) Username(ctx context.Context) (string, error) {
	var res struct {
		Username string `json:"username"`
	}
	if err := c.do(ctx, http.MethodGet, "/config/user", nil, &res); err != nil {
		return "", err
	}
	return res.Username, nil
}

func (c *Client) SetUsername(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/config/user", map[string]string{"username": username}, nil)
}

func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var res []Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	if title == "" {
		title = "New conversation"
	}
	var res Conversation
	err := c.do(ctx, http.MethodPost, "/conversations", map[string]string{"title": title}, &res)
	return res, err
}

func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/conversations/%d", id), nil, nil)
}

func (c *Client) Messages(ctx context.Context, conversationID int64) ([]Message, error) {
	var res []Message
	path := fmt.Sprintf("/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// SendMessage submits one user turn. conversationID 0 means "no conversation
// yet": the backend creates one and returns its id in the result.
func (c *Client) SendMessage(ctx context.Context, text string, conversationID int64) (ChatResult, error) {
	body := map[string]any{"message": text}
	if conversationID != 0 {
		body["conversation_id"] = conversationID
	}
	var res ChatResult
	err := c.do(ctx, http.MethodPost, "/chat", body, &res)
	return res, err
}

func (c *Client) Execute(ctx context.Context, script, language string) (ExecResult, error) {
	var res ExecResult
	err := c.do(ctx, http.MethodPost, "/execute", map[string]string{
		"script":   script,
		"language": language,
	}, &res)
	return res, err
}
