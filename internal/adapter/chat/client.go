// Package chat is the Rocket.Chat REST v1 client. It logs users in, manages
// private groups and posts or purges messages on behalf of the credentials
// passed to each call.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heartmarshall/account-import/internal/config"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

const (
	headerUserID    = "X-User-Id"
	headerAuthToken = "X-Auth-Token"

	maxErrorBody = 512
)

// SystemMessageAuthor is the Rocket.Chat pseudo-user that authors join and
// leave notifications.
const SystemMessageAuthor = "rocket.cat"

// APIError is returned when Rocket.Chat rejects a call.
type APIError struct {
	Method string
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("chat: %s: status %d", e.Method, e.Status)
	}
	return fmt.Sprintf("chat: %s: status %d: %s", e.Method, e.Status, e.Reason)
}

// Unwrap maps authentication failures to domain.ErrUnauthorized.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return domain.ErrUnauthorized
	}
	return nil
}

// Client talks to the Rocket.Chat REST API.
type Client struct {
	baseURL     string
	callTimeout time.Duration
	httpClient  *http.Client
	log         *slog.Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg config.ChatConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		callTimeout: cfg.CallTimeout,
		httpClient:  &http.Client{},
		log:         logger.With("adapter", "chat"),
	}
}

// Login authenticates username. For a freshly created identity account this
// is also the first login that makes Rocket.Chat create the chat user.
func (c *Client) Login(ctx context.Context, username, password string) (domain.ChatCredentials, error) {
	var resp loginResponse
	if err := c.call(ctx, "login", domain.ChatCredentials{}, loginRequest{User: username, Password: password}, &resp); err != nil {
		return domain.ChatCredentials{}, err
	}
	if resp.Data.UserID == "" || resp.Data.AuthToken == "" {
		return domain.ChatCredentials{}, fmt.Errorf("chat: login %s: empty credentials in reply", username)
	}

	c.log.DebugContext(ctx, "chat login", slog.String("chat_user_id", resp.Data.UserID))
	return domain.ChatCredentials{UserID: resp.Data.UserID, Token: resp.Data.AuthToken}, nil
}

// Logout invalidates the token of creds.
func (c *Client) Logout(ctx context.Context, creds domain.ChatCredentials) error {
	var resp envelope
	return c.call(ctx, "logout", creds, nil, &resp)
}

// CreatePrivateRoom creates a private group owned by creds and returns its id.
func (c *Client) CreatePrivateRoom(ctx context.Context, creds domain.ChatCredentials, name string) (string, error) {
	var resp createGroupResponse
	if err := c.call(ctx, "groups.create", creds, createGroupRequest{Name: name, Members: []string{}}, &resp); err != nil {
		return "", err
	}
	if resp.Group.ID == "" {
		return "", fmt.Errorf("chat: groups.create %s: empty group id in reply", name)
	}
	return resp.Group.ID, nil
}

// AddUserToRoom invites userID into the private group roomID.
func (c *Client) AddUserToRoom(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error {
	var resp envelope
	return c.call(ctx, "groups.invite", creds, roomUserRequest{RoomID: roomID, UserID: userID}, &resp)
}

// RemoveUserFromRoom kicks userID out of the private group roomID.
func (c *Client) RemoveUserFromRoom(ctx context.Context, creds domain.ChatCredentials, roomID, userID string) error {
	var resp envelope
	return c.call(ctx, "groups.kick", creds, roomUserRequest{RoomID: roomID, UserID: userID}, &resp)
}

// PurgeSystemMessages removes the system notifications written into roomID
// between oldest and latest, both inclusive.
func (c *Client) PurgeSystemMessages(ctx context.Context, creds domain.ChatCredentials, roomID string, oldest, latest time.Time) error {
	req := cleanHistoryRequest{
		RoomID:        roomID,
		Oldest:        oldest.UTC().Format(time.RFC3339Nano),
		Latest:        latest.UTC().Format(time.RFC3339Nano),
		Inclusive:     true,
		ExcludePinned: true,
		Users:         []string{SystemMessageAuthor},
	}
	var resp envelope
	return c.call(ctx, "rooms.cleanHistory", creds, req, &resp)
}

// PostMessage posts text into roomID as creds.
func (c *Client) PostMessage(ctx context.Context, creds domain.ChatCredentials, roomID, text string) error {
	var resp postMessageResponse
	return c.call(ctx, "chat.postMessage", creds, postMessageRequest{RoomID: roomID, Text: text}, &resp)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// replyEnvelope is implemented by every response type through the embedded
// envelope.
type replyEnvelope interface {
	ok() bool
	reason() string
}

// call POSTs in to /api/v1/<method> and decodes the reply into out. An empty
// creds sends no auth headers.
func (c *Client) call(ctx context.Context, method string, creds domain.ChatCredentials, in any, out replyEnvelope) error {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, c.callTimeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("chat: %s: encode: %w", method, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/"+method, body)
	if err != nil {
		return fmt.Errorf("chat: %s: create request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !creds.IsZero() {
		req.Header.Set(headerUserID, creds.UserID)
		req.Header.Set(headerAuthToken, creds.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "chat request failed", slog.String("method", method), slog.String("error", err.Error()))
		return fmt.Errorf("chat: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chat: %s: read body: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		reason := snippet(raw)
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.reason() != "" {
			reason = env.reason()
		}
		return &APIError{Method: method, Status: resp.StatusCode, Reason: reason}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("chat: %s: decode json: %w", method, err)
	}
	if !out.ok() {
		return &APIError{Method: method, Status: resp.StatusCode, Reason: out.reason()}
	}

	c.log.DebugContext(ctx, "chat response", slog.String("method", method))
	return nil
}

func snippet(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return strings.TrimSpace(string(raw))
}
