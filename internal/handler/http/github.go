package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/BartugKaan/developer-match/internal/auth"
	"github.com/BartugKaan/developer-match/internal/github"
	"github.com/BartugKaan/developer-match/internal/service"
)

// GithubHandler drives the browser-facing half of the GitHub OAuth flow.
type GithubHandler struct {
	service *service.AuthService
	client  *github.Client
	states  *auth.StateStore
	// frontendURL is where the callback lands after a successful login. When
	// empty, the callback answers with JSON instead of redirecting.
	frontendURL string
	logger      *slog.Logger
}

// NewGithubHandler creates a new GitHub OAuth handler.
func NewGithubHandler(
	svc *service.AuthService,
	client *github.Client,
	states *auth.StateStore,
	frontendURL string,
	logger *slog.Logger,
) *GithubHandler {
	return &GithubHandler{
		service:     svc,
		client:      client,
		states:      states,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// Redirect handles GET /api/v1/auth/github
func (h *GithubHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context())
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	http.Redirect(w, r, h.client.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /api/v1/auth/github/callback
func (h *GithubHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.logger.WarnContext(r.Context(), "github authorization denied",
			slog.String("error", errMsg),
		)
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "github authorization was denied"},
		})
		return
	}

	if err := h.states.Consume(r.Context(), r.URL.Query().Get("state")); err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "missing authorization code"},
		})
		return
	}

	token, err := h.client.Exchange(r.Context(), code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "github code exchange failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "github code exchange failed"},
		})
		return
	}

	profile, err := h.client.FetchProfile(r.Context(), token)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "github profile fetch failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, response{
			Error: &errorResponse{Code: "UPSTREAM_ERROR", Message: "could not fetch github profile"},
		})
		return
	}

	user, tokens, err := h.service.AuthenticateGithub(r.Context(), *profile)
	if err != nil {
		writeAppError(w, r, err, h.logger)
		return
	}

	if h.frontendURL != "" {
		target, err := url.Parse(h.frontendURL + "/auth/callback")
		if err != nil {
			writeAppError(w, r, err, h.logger)
			return
		}
		q := target.Query()
		q.Set("access_token", tokens.AccessToken)
		q.Set("refresh_token", tokens.RefreshToken)
		target.RawQuery = q.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: AuthResponse{
			User:   user,
			Tokens: tokens,
		},
	})
}
