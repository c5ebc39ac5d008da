package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpilot/sessionkit/core/authclient"
)

func newStubAuthServer(t *testing.T) (*httptest.Server, uuid.UUID) {
	t.Helper()

	userID := uuid.New()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Email != "a@b.com" || body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})

	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body authclient.RegisterParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.Email == "taken@b.com" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "email already registered"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-456"})
	})

	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "could not validate credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       userID.String(),
			"email":    "a@b.com",
			"name":     "Alice",
			"is_admin": true,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, userID
}

func TestClient_Login(t *testing.T) {
	t.Parallel()

	server, _ := newStubAuthServer(t)
	client, err := authclient.New(server.URL)
	require.NoError(t, err)

	t.Run("returns token on valid credentials", func(t *testing.T) {
		t.Parallel()

		token, err := client.Login(context.Background(), "a@b.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)
	})

	t.Run("surfaces server message on bad credentials", func(t *testing.T) {
		t.Parallel()

		_, err := client.Login(context.Background(), "a@b.com", "wrong")
		require.Error(t, err)

		var apiErr *authclient.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid credentials", apiErr.Message)
		assert.ErrorIs(t, err, authclient.ErrUnauthorized)
	})
}

func TestClient_Register(t *testing.T) {
	t.Parallel()

	server, _ := newStubAuthServer(t)
	client, err := authclient.New(server.URL)
	require.NoError(t, err)

	t.Run("returns token", func(t *testing.T) {
		t.Parallel()

		token, err := client.Register(context.Background(), authclient.RegisterParams{
			Email:        "new@b.com",
			Password:     "pw",
			Name:         "New",
			ClaudeAPIKey: "sk-ant-xxx",
		})
		require.NoError(t, err)
		assert.Equal(t, "tok-456", token)
	})

	t.Run("surfaces duplicate email error", func(t *testing.T) {
		t.Parallel()

		_, err := client.Register(context.Background(), authclient.RegisterParams{
			Email:    "taken@b.com",
			Password: "pw",
			Name:     "Dup",
		})
		var apiErr *authclient.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "email already registered", apiErr.Message)
		assert.NotErrorIs(t, err, authclient.ErrUnauthorized)
	})
}

func TestClient_CurrentUser(t *testing.T) {
	t.Parallel()

	server, userID := newStubAuthServer(t)
	client, err := authclient.New(server.URL)
	require.NoError(t, err)

	t.Run("returns profile for valid token", func(t *testing.T) {
		t.Parallel()

		user, err := client.CurrentUser(context.Background(), "tok-123")
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "a@b.com", user.Email)
		assert.Equal(t, "Alice", user.DisplayName())
		assert.True(t, user.IsAdmin)
	})

	t.Run("rejects invalid token with ErrUnauthorized", func(t *testing.T) {
		t.Parallel()

		_, err := client.CurrentUser(context.Background(), "garbage")
		assert.ErrorIs(t, err, authclient.ErrUnauthorized)
	})
}

func TestClient_RequestTimeout(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	client, err := authclient.New(slow.URL, authclient.WithRequestTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, authclient.ErrRequestFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := authclient.New("")
	assert.ErrorIs(t, err, authclient.ErrEmptyBaseURL)

	client, err := authclient.New("http://api.local/")
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	_, err := authclient.NewFromConfig(authclient.Config{})
	assert.ErrorIs(t, err, authclient.ErrEmptyBaseURL)

	client, err := authclient.NewFromConfig(authclient.Config{
		BaseURL:        "http://api.local",
		RequestTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, client)
}
