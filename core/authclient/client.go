package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the profile record returned by the auth service.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the best available human-readable name for the user.
func (u User) DisplayName() string {
	switch {
	case u.Nickname != "":
		return u.Nickname
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}

// RegisterParams holds the registration payload. The two API keys are opaque
// pass-through credentials for the assistant's AI provider integrations; the
// client does not interpret them.
type RegisterParams struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	ClaudeAPIKey string `json:"claude_api_key"`
	TavilyAPIKey string `json:"tavily_api_key,omitempty"`
}

// Config holds auth client configuration with environment variable mapping.
type Config struct {
	BaseURL        string        `env:"AUTH_API_BASE_URL,required"`
	RequestTimeout time.Duration `env:"AUTH_API_REQUEST_TIMEOUT" envDefault:"15s"`
}

const defaultRequestTimeout = 15 * time.Second

// Client is a stateless HTTP client for the auth service. It holds no token:
// callers pass the bearer token per request, keeping the session manager the
// single owner of credential state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRequestTimeout caps the duration of each request. A hung auth service
// call fails with a context deadline error instead of pending forever.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger configures structured logging for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an auth service client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    defaultRequestTimeout,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a client from an env-loaded Config.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	opts = append([]Option{WithRequestTimeout(cfg.RequestTimeout)}, opts...)
	return New(cfg.BaseURL, opts...)
}

// Login exchanges credentials for a bearer token. Credential validation is
// entirely server-side; bad credentials surface as *APIError with the
// server's message.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Register creates an account and returns a bearer token. Duplicate-email
// and validation errors surface as *APIError with the server's message.
func (c *Client) Register(ctx context.Context, params RegisterParams) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", params, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// CurrentUser fetches the profile for the given bearer token. An invalid or
// expired token fails with an error matching ErrUnauthorized.
func (c *Client) CurrentUser(ctx context.Context, token string) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// InvalidateToken asks the auth service to revoke the token server-side.
// Logout does not depend on this call succeeding.
func (c *Client) InvalidateToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Join(ErrRequestFailed, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "auth request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    decodeErrorMessage(data),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	return nil
}

// decodeErrorMessage extracts the server's error text. The backend reports
// errors under "detail"; "message" and "error" are accepted as fallbacks.
func decodeErrorMessage(data []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Err     string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch {
	case payload.Detail != "":
		return payload.Detail
	case payload.Message != "":
		return payload.Message
	default:
		return payload.Err
	}
}
