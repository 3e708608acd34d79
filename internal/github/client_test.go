package github

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/BartugKaan/developer-match/pkg/httpclient"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, apiBaseURL string) *Client {
	t.Helper()
	cfg := Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		CallbackURL:  "http://localhost:8080/api/v1/auth/github/callback",
		APIBaseURL:   apiBaseURL,
	}
	hc := httpclient.NewCircuitBreakerClient(nil, httpclient.DefaultCircuitBreakerConfig("github-"+t.Name()), newTestLogger())
	return NewClient(cfg, hc, newTestLogger())
}

func TestAuthCodeURL(t *testing.T) {
	c := newTestClient(t, "")

	url := c.AuthCodeURL("csrf-state-token")

	assert.Contains(t, url, "github.com/login/oauth/authorize")
	assert.Contains(t, url, "state=csrf-state-token")
	assert.Contains(t, url, "client_id=test-client-id")
	assert.Contains(t, url, "user%3Aemail")
}

func TestFetchProfile_PublicEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer gho_testtoken", r.Header.Get("Authorization"))
		require.Equal(t, "/user", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         424242,
			"login":      "ada-gh",
			"name":       "Ada Lovelace",
			"email":      "ada@example.com",
			"avatar_url": "https://avatars.example.com/ada.png",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	profile, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "gho_testtoken"})

	require.NoError(t, err)
	assert.Equal(t, "424242", profile.ProviderID)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "ada-gh", profile.Username)
	assert.Equal(t, "Ada Lovelace", profile.DisplayName)
	assert.Equal(t, "https://avatars.example.com/ada.png", profile.Avatar)
	assert.Equal(t, "gho_testtoken", profile.AccessToken)
}

func TestFetchProfile_HiddenEmailUsesEmailsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    424242,
				"login": "ada-gh",
			})
		case "/user/emails":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"email": "old@example.com", "primary": false, "verified": true},
				{"email": "ada@example.com", "primary": true, "verified": true},
				{"email": "spam@example.com", "primary": false, "verified": false},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	profile, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "gho_testtoken"})

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email, "primary verified email wins")
	assert.Equal(t, "ada-gh", profile.DisplayName, "display name falls back to login")
}

func TestFetchProfile_NoVerifiedEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 424242, "login": "ada-gh"})
		case "/user/emails":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"email": "spam@example.com", "primary": true, "verified": false},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	profile, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "gho_testtoken"})

	require.NoError(t, err)
	assert.Empty(t, profile.Email, "unverified addresses must not be used")
}

func TestFetchProfile_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "expired"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFetchProfile_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "ada-gh"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "gho_testtoken"})

	require.Error(t, err)
}

func TestExchange_UsesConfiguredEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_exchanged","token_type":"bearer"}`))
	}))
	defer srv.Close()

	cfg := Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		CallbackURL:  "http://localhost:8080/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
		},
	}
	hc := httpclient.NewCircuitBreakerClient(nil, httpclient.DefaultCircuitBreakerConfig("github-exchange-test"), newTestLogger())
	c := NewClient(cfg, hc, newTestLogger())

	token, err := c.Exchange(context.Background(), "auth-code")

	require.NoError(t, err)
	assert.Equal(t, "gho_exchanged", token.AccessToken)
}
