package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/BartugKaan/developer-match/internal/auth"
	"github.com/BartugKaan/developer-match/internal/domain"
	"github.com/BartugKaan/developer-match/internal/event"
	"github.com/BartugKaan/developer-match/internal/repository"
	apperrors "github.com/BartugKaan/developer-match/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// Provider identifiers recorded on registration events.
const (
	ProviderLocal  = "local"
	ProviderGithub = "github"
)

// AuthService implements registration, login, GitHub identity resolution, and
// the refresh-token session lifecycle.
type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.TokenManager
	hasher   *auth.Hasher
	producer *event.Producer
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.Hasher,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		producer: producer,
		logger:   logger,
	}
}

// RegisterInput holds the parameters for registering a new password account.
type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

// LoginInput holds the parameters for password login.
type LoginInput struct {
	Email    string
	Password string
}

// Register creates a new password-backed account and opens a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Username == "" {
		return nil, nil, apperrors.InvalidInput("username is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	displayName := input.DisplayName
	if displayName == "" {
		displayName = input.Username
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        domain.NormalizeEmail(input.Email),
		Username:     input.Username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user, ProviderLocal); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, tokens, nil
}

// Login authenticates a password account and opens a session. Every failure
// mode returns the same generic message so callers cannot probe which emails
// have accounts.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.users.GetByEmailWithPassword(ctx, input.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	// OAuth-only accounts have no password hash; Verify rejects those too.
	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// AuthenticateGithub resolves a provider profile to a canonical user and
// opens a session. Resolution order is fixed: an existing GitHub link wins,
// then an account with the same email is linked, and only then is a new
// account created.
func (s *AuthService) AuthenticateGithub(ctx context.Context, profile domain.OAuthProfile) (*domain.User, *domain.TokenPair, error) {
	if profile.ProviderID == "" {
		return nil, nil, apperrors.InvalidInput("provider id is required")
	}

	link := domain.GithubLink{
		GithubID:          profile.ProviderID,
		GithubUsername:    profile.Username,
		GithubAccessToken: profile.AccessToken,
		Avatar:            profile.Avatar,
	}

	// Branch 1: already linked.
	existing, err := s.users.GetByGithubID(ctx, profile.ProviderID)
	if err == nil {
		user, err := s.users.LinkGithub(ctx, existing.ID, link)
		if err != nil {
			return nil, nil, fmt.Errorf("refresh github link: %w", err)
		}
		tokens, err := s.issueTokens(ctx, user)
		if err != nil {
			return nil, nil, fmt.Errorf("issue tokens: %w", err)
		}
		s.logger.InfoContext(ctx, "github login",
			slog.String("user_id", user.ID),
		)
		return user, tokens, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, fmt.Errorf("lookup user by github id: %w", err)
	}

	// Branch 2: same email, different entry point. Attach the GitHub identity
	// to the existing account.
	if profile.Email != "" {
		byEmail, err := s.users.GetByEmail(ctx, profile.Email)
		if err == nil {
			user, err := s.users.LinkGithub(ctx, byEmail.ID, link)
			if err != nil {
				return nil, nil, fmt.Errorf("link github identity: %w", err)
			}
			tokens, err := s.issueTokens(ctx, user)
			if err != nil {
				return nil, nil, fmt.Errorf("issue tokens: %w", err)
			}
			if err := s.producer.PublishUserGithubLinked(ctx, user); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish user.github_linked event",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			}
			s.logger.InfoContext(ctx, "github identity linked to existing account",
				slog.String("user_id", user.ID),
			)
			return user, tokens, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, fmt.Errorf("lookup user by email: %w", err)
		}
	}

	// Branch 3: first sight of this identity, create an account.
	user, err := s.createGithubUser(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user, ProviderGithub); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered via github",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, tokens, nil
}

// Refresh validates a presented refresh token against the stored hash and
// rotates the session: the old token is unusable once the new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.users.GetByIDWithRefreshToken(ctx, claims.Subject)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	// An empty slot means the session was logged out or never opened; a
	// mismatch means the token was already rotated away.
	if user.RefreshTokenHash == "" || !s.hasher.Verify(refreshToken, user.RefreshTokenHash) {
		return nil, nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "session refreshed",
		slog.String("user_id", user.ID),
	)

	return user, tokens, nil
}

// Logout clears the user's refresh-token slot. Logging out with no active
// session is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	if err := s.producer.PublishUserLoggedOut(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.logged_out event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", userID),
	)

	return nil
}

// GetUser retrieves a user's public profile by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// --- Helpers ---

// createGithubUser builds a fresh account from a provider profile. A taken
// username gets a timestamp suffix instead of failing the whole login.
func (s *AuthService) createGithubUser(ctx context.Context, profile domain.OAuthProfile) (*domain.User, error) {
	if profile.Email == "" {
		return nil, apperrors.InvalidInput("github profile has no verified email")
	}

	username := profile.Username
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		username = uniqueUsername(username)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check username availability: %w", err)
	}

	displayName := profile.DisplayName
	if displayName == "" {
		displayName = username
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:                uuid.New().String(),
		Email:             domain.NormalizeEmail(profile.Email),
		Username:          username,
		DisplayName:       displayName,
		Avatar:            profile.Avatar,
		GithubID:          profile.ProviderID,
		GithubUsername:    profile.Username,
		GithubAccessToken: profile.AccessToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create github user: %w", err)
	}

	return user, nil
}

// issueTokens signs a fresh access/refresh pair and replaces the stored
// refresh-token hash, rotating out whatever session came before.
func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	refreshHash, err := s.hasher.Hash(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("hash refresh token: %w", err)
	}

	if err := s.users.SetRefreshTokenHash(ctx, user.ID, &refreshHash); err != nil {
		return nil, fmt.Errorf("store refresh token hash: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// uniqueUsername appends a base-36 millisecond timestamp to a taken username.
func uniqueUsername(username string) string {
	return username + "_" + strconv.FormatInt(time.Now().UnixMilli(), 36)
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
