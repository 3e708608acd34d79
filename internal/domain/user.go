package domain

import (
	"strings"
	"time"
)

// User is the canonical identity record unifying local and GitHub-provided
// credentials. Secret-bearing fields are never serialized and are only
// populated by the explicit with-secret repository reads.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	Bio         string `json:"bio,omitempty"`

	// PasswordHash is empty for OAuth-only accounts.
	PasswordHash string `json:"-"`

	// GithubID is set once the account is linked to a GitHub identity.
	GithubID          string `json:"github_id,omitempty"`
	GithubUsername    string `json:"github_username,omitempty"`
	GithubAccessToken string `json:"-"`

	// RefreshTokenHash holds the single active session slot; empty means no
	// active session.
	RefreshTokenHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword reports whether the user can authenticate with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// OAuthProfile is the ephemeral, provider-supplied identity. It is never
// persisted as-is; its fields are merged into a User during resolution.
type OAuthProfile struct {
	ProviderID  string
	Email       string
	Username    string
	DisplayName string
	Avatar      string
	AccessToken string
}

// GithubLink carries the provider fields bound onto a User when a GitHub
// identity is attached or refreshed. An empty Avatar preserves the user's
// existing avatar.
type GithubLink struct {
	GithubID          string
	GithubUsername    string
	GithubAccessToken string
	Avatar            string
}

// TokenPair holds the signed access and refresh tokens returned on every
// successful authentication or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// NormalizeEmail lowercases and trims an email address. Email uniqueness is
// case-insensitive everywhere in the service.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
