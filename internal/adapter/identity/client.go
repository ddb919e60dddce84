// Package identity is the Keycloak admin REST client used to create accounts,
// set passwords and grant realm roles. Every call authenticates with an
// admin access token that is cached until shortly before it expires.
package identity

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
	"path"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heartmarshall/account-import/internal/config"
	"github.com/heartmarshall/account-import/internal/domain"
	"github.com/heartmarshall/account-import/pkg/ctxutil"
)

// tokenLeeway is subtracted from the token expiry so a token is never used
// in its last seconds.
const tokenLeeway = 10 * time.Second

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

// APIError is returned for any unexpected HTTP status.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("identity: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("identity: %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Unwrap maps well-known statuses to domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrAlreadyExists
	}
	return nil
}

// Client talks to the Keycloak admin API.
type Client struct {
	cfg        config.IdentityConfig
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a Client. The http.Client has no timeout of its own; per-call
// bounds come from cfg.CallTimeout.
func New(cfg config.IdentityConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        logger.With("adapter", "identity"),
		now:        time.Now,
	}
}

// ---------------------------------------------------------------------------
// Account operations
// ---------------------------------------------------------------------------

// IsUsernameAvailable reports whether no account with exactly this username exists.
func (c *Client) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("exact", "true")

	var users []userRepresentation
	if err := c.do(ctx, "search user", http.MethodGet, c.adminURL("users")+"?"+q.Encode(), nil, http.StatusOK, &users, nil); err != nil {
		return false, err
	}

	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return false, nil
		}
	}
	return true, nil
}

// CreateAccount creates an enabled account and returns its id, taken from
// the Location header of the reply.
func (c *Client) CreateAccount(ctx context.Context, profile domain.AccountProfile) (string, error) {
	body := userRepresentation{
		Username:  profile.Username,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Enabled:   true,
	}

	var location string
	if err := c.do(ctx, "create user", http.MethodPost, c.adminURL("users"), body, http.StatusCreated, nil, &location); err != nil {
		return "", err
	}

	id := path.Base(strings.TrimRight(location, "/"))
	if location == "" || id == "." || id == "/" {
		return "", fmt.Errorf("identity: create user %s: no account id in Location header", profile.Username)
	}

	c.log.DebugContext(ctx, "account created", slog.String("account_id", id))
	return id, nil
}

// SetPassword sets a permanent password.
func (c *Client) SetPassword(ctx context.Context, accountID, password string) error {
	body := credentialRepresentation{Type: "password", Value: password, Temporary: false}
	return c.do(ctx, "reset password", http.MethodPut,
		c.adminURL("users", accountID, "reset-password"), body, http.StatusNoContent, nil, nil)
}

// AssignRole grants a realm role to the account.
func (c *Client) AssignRole(ctx context.Context, accountID string, role domain.Role) error {
	var rep roleRepresentation
	if err := c.do(ctx, "get role "+role.String(), http.MethodGet,
		c.adminURL("roles", role.String()), nil, http.StatusOK, &rep, nil); err != nil {
		return err
	}

	return c.do(ctx, "assign role "+role.String(), http.MethodPost,
		c.adminURL("users", accountID, "role-mappings", "realm"), []roleRepresentation{rep}, http.StatusNoContent, nil, nil)
}

// UserHasAuthority reports whether the effective realm roles of the account
// (composites included) grant authority.
func (c *Client) UserHasAuthority(ctx context.Context, accountID string, authority domain.Authority) (bool, error) {
	var reps []roleRepresentation
	if err := c.do(ctx, "get effective roles", http.MethodGet,
		c.adminURL("users", accountID, "role-mappings", "realm", "composite"), nil, http.StatusOK, &reps, nil); err != nil {
		return false, err
	}

	roles := make([]domain.Role, 0, len(reps))
	for _, r := range reps {
		roles = append(roles, domain.Role(r.Name))
	}
	return domain.RolesGrant(roles, authority), nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) adminURL(segments ...string) string {
	escaped := make([]string, 0, len(segments)+3)
	escaped = append(escaped, "admin", "realms", url.PathEscape(c.cfg.Realm))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}

// do sends one authenticated JSON request. out receives the decoded body on
// wantStatus; location receives the Location header.
func (c *Client) do(ctx context.Context, op, method, reqURL string, in any, wantStatus int, out any, location *string) error {
	ctx, cancel := ctxutil.WithOptionalTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("identity: %s: encode: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("identity: %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "identity request failed", slog.String("op", op), slog.String("error", err.Error()))
		return fmt.Errorf("identity: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidateToken()
		}
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if location != nil {
		*location = resp.Header.Get("Location")
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("identity: %s: decode json: %w", op, err)
		}
	}

	c.log.DebugContext(ctx, "identity response", slog.String("op", op), slog.Int("status", resp.StatusCode))
	return nil
}

// adminToken returns the cached admin token, logging in when it is missing
// or about to expire. Calls are serialised; the importer is single-threaded
// so this never contends in practice.
func (c *Client) adminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.cfg.AdminClientID)
	form.Set("username", c.cfg.AdminUsername)
	form.Set("password", c.cfg.AdminPassword)

	tokenURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/realms/" + url.PathEscape(c.cfg.AdminRealm) + "/protocol/openid-connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("identity: admin login: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity: admin login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{Op: "admin login", Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("identity: admin login: decode json: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("identity: admin login: empty access token")
	}

	c.token = tr.AccessToken
	c.tokenExpiry = c.expiry(tr)
	c.log.DebugContext(ctx, "admin token refreshed", slog.Time("expires", c.tokenExpiry))

	return c.token, nil
}

// expiry reads the exp claim of the access token. The token is not verified:
// it came straight from the issuer over the admin connection and is only
// inspected to schedule the refresh. expires_in is the fallback.
func (c *Client) expiry(tr tokenResponse) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Add(-tokenLeeway)
	}
	return c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenLeeway)
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}
