package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/BartugKaan/developer-match/internal/domain"
	"github.com/BartugKaan/developer-match/pkg/httpclient"
)

const defaultAPIBaseURL = "https://api.github.com"

// Config holds the GitHub OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	// APIBaseURL overrides the GitHub REST API base, used in tests.
	APIBaseURL string
	// Endpoint overrides the OAuth endpoint, used in tests. The zero value
	// means the real GitHub endpoint.
	Endpoint oauth2.Endpoint
}

// Client drives the GitHub OAuth code flow and fetches the authenticated
// user's profile from the REST API.
type Client struct {
	oauth      *oauth2.Config
	http       *httpclient.CircuitBreakerClient
	apiBaseURL string
	logger     *slog.Logger
}

// NewClient creates a GitHub OAuth client. The user:email scope is required
// because GitHub hides the email on many profiles and it must be read from
// the emails endpoint instead.
func NewClient(cfg Config, hc *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = githuboauth.Endpoint
	}

	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		http:       hc,
		apiBaseURL: apiBase,
		logger:     logger,
	}
}

// AuthCodeURL builds the GitHub authorization URL carrying the CSRF state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a provider access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github code exchange: %w", err)
	}
	return token, nil
}

// githubUser mirrors the fields of GET /user that the service consumes.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
}

// githubEmail mirrors an entry of GET /user/emails.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile loads the authenticated user via the REST API and normalizes
// it into an OAuthProfile. When the public profile hides the email, the
// primary verified address from the emails endpoint is used instead.
func (c *Client) FetchProfile(ctx context.Context, token *oauth2.Token) (*domain.OAuthProfile, error) {
	var user githubUser
	if err := c.getJSON(ctx, "/user", token.AccessToken, &user); err != nil {
		return nil, fmt.Errorf("fetch github user: %w", err)
	}

	if user.ID == 0 || user.Login == "" {
		return nil, fmt.Errorf("github user response missing id or login")
	}

	email := user.Email
	if email == "" {
		resolved, err := c.resolveEmail(ctx, token.AccessToken)
		if err != nil {
			return nil, err
		}
		email = resolved
	}

	displayName := user.Name
	if displayName == "" {
		displayName = user.Login
	}

	return &domain.OAuthProfile{
		ProviderID:  strconv.FormatInt(user.ID, 10),
		Email:       email,
		Username:    user.Login,
		DisplayName: displayName,
		Avatar:      user.AvatarURL,
		AccessToken: token.AccessToken,
	}, nil
}

// resolveEmail picks the primary verified address, falling back to any
// verified one. Accounts with no verified email resolve to empty and the
// service rejects them.
func (c *Client) resolveEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := c.getJSON(ctx, "/user/emails", accessToken, &emails); err != nil {
		return "", fmt.Errorf("fetch github emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}

	return "", nil
}

func (c *Client) getJSON(ctx context.Context, path, accessToken string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "github api request failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("github api %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}

	return nil
}
