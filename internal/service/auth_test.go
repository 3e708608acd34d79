package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BartugKaan/developer-match/internal/auth"
	"github.com/BartugKaan/developer-match/internal/domain"
	"github.com/BartugKaan/developer-match/internal/event"
	apperrors "github.com/BartugKaan/developer-match/pkg/errors"
	pkgkafka "github.com/BartugKaan/developer-match/pkg/kafka"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByIDWithRefreshToken(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmailWithPassword(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByGithubID(ctx context.Context, githubID string) (*domain.User, error) {
	args := m.Called(ctx, githubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) LinkGithub(ctx context.Context, id string, link domain.GithubLink) (*domain.User, error) {
	args := m.Called(ctx, id, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(
		"access-secret-for-testing-only-0000",
		"refresh-secret-for-testing-only-000",
		15*time.Minute,
		7*24*time.Hour,
	)
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

// testHasher uses the minimum bcrypt cost for fast tests.
func testHasher() *auth.Hasher {
	return auth.NewHasher(4)
}

func newTestService(users *mockUserRepository) *AuthService {
	return NewAuthService(users, newTestTokenManager(), testHasher(), newTestEventProducer(), newTestLogger())
}

func sampleStoredUser() *domain.User {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return &domain.User{
		ID:          "user-001",
		Email:       "ada@example.com",
		Username:    "ada",
		DisplayName: "Ada Lovelace",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	users.On("SetRefreshTokenHash", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("*string")).Return(nil)

	input := RegisterInput{
		Email:    "Ada@Example.com",
		Username: "ada",
		Password: "SecurePass123",
	}

	user, tokens, err := svc.Register(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@example.com", user.Email, "email must be normalized before storage")
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "ada", user.DisplayName, "display name defaults to username")
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEqual(t, tokens.AccessToken, tokens.RefreshToken)
	assert.NotEqual(t, "SecurePass123", user.PasswordHash)
	assert.True(t, testHasher().Verify("SecurePass123", user.PasswordHash))
	users.AssertExpectations(t)
}

func TestRegister_StoresRefreshHashNotToken(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	var storedHash string
	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	users.On("SetRefreshTokenHash", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("*string")).
		Run(func(args mock.Arguments) {
			storedHash = *args.Get(2).(*string)
		}).
		Return(nil)

	_, tokens, err := svc.Register(ctx, RegisterInput{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "SecurePass123",
	})

	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, storedHash, "raw refresh token must never be persisted")
	assert.True(t, testHasher().Verify(tokens.RefreshToken, storedHash))
}

func TestRegister_WeakPassword(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	cases := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1"},
		{"no uppercase", "alllower123"},
		{"no digit", "NoDigitsHere"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, RegisterInput{
				Email:    "ada@example.com",
				Username: "ada",
				Password: tc.password,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	users.AssertNotCalled(t, "Create")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.Conflict("user", "email", "ada@example.com"))

	_, _, err := svc.Register(ctx, RegisterInput{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "SecurePass123",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	users.AssertNotCalled(t, "SetRefreshTokenHash")
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	hash, err := testHasher().Hash("SecurePass123")
	require.NoError(t, err)
	stored.PasswordHash = hash

	users.On("GetByEmailWithPassword", ctx, "ada@example.com").Return(stored, nil)
	users.On("SetRefreshTokenHash", ctx, stored.ID, mock.AnythingOfType("*string")).Return(nil)

	user, tokens, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "SecurePass123"})

	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	users.AssertExpectations(t)
}

func TestLogin_WrongPassword_GenericError(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	hash, err := testHasher().Hash("SecurePass123")
	require.NoError(t, err)
	stored.PasswordHash = hash

	users.On("GetByEmailWithPassword", ctx, "ada@example.com").Return(stored, nil)

	_, _, err = svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "WrongPass123"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid email or password")
	users.AssertNotCalled(t, "SetRefreshTokenHash")
}

func TestLogin_UnknownEmail_SameGenericError(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("GetByEmailWithPassword", ctx, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "SecurePass123"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid email or password")
	assert.NotContains(t, strings.ToLower(err.Error()), "not found", "must not reveal account existence")
}

func TestLogin_OAuthOnlyAccount(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	stored.PasswordHash = "" // created through GitHub, no local password

	users.On("GetByEmailWithPassword", ctx, "ada@example.com").Return(stored, nil)

	_, _, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "SecurePass123"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid email or password")
}

// --- AuthenticateGithub ---

func sampleProfile() domain.OAuthProfile {
	return domain.OAuthProfile{
		ProviderID:  "424242",
		Email:       "ada@example.com",
		Username:    "ada-gh",
		DisplayName: "Ada Lovelace",
		Avatar:      "https://avatars.example.com/ada.png",
		AccessToken: "gho_testtoken",
	}
}

func TestAuthenticateGithub_ExistingLink(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	stored.GithubID = "424242"

	users.On("GetByGithubID", ctx, "424242").Return(stored, nil)
	users.On("LinkGithub", ctx, stored.ID, mock.AnythingOfType("domain.GithubLink")).Return(stored, nil)
	users.On("SetRefreshTokenHash", ctx, stored.ID, mock.AnythingOfType("*string")).Return(nil)

	user, tokens, err := svc.AuthenticateGithub(ctx, sampleProfile())

	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.NotEmpty(t, tokens.RefreshToken)
	users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	users.AssertExpectations(t)
}

func TestAuthenticateGithub_LinksByEmail(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	linked := *stored
	linked.GithubID = "424242"
	linked.GithubUsername = "ada-gh"

	users.On("GetByGithubID", ctx, "424242").Return(nil, apperrors.ErrNotFound)
	users.On("GetByEmail", ctx, "ada@example.com").Return(stored, nil)
	users.On("LinkGithub", ctx, stored.ID, domain.GithubLink{
		GithubID:          "424242",
		GithubUsername:    "ada-gh",
		GithubAccessToken: "gho_testtoken",
		Avatar:            "https://avatars.example.com/ada.png",
	}).Return(&linked, nil)
	users.On("SetRefreshTokenHash", ctx, stored.ID, mock.AnythingOfType("*string")).Return(nil)

	user, _, err := svc.AuthenticateGithub(ctx, sampleProfile())

	require.NoError(t, err)
	assert.Equal(t, "424242", user.GithubID)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	users.AssertExpectations(t)
}

func TestAuthenticateGithub_CreatesNewUser(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("GetByGithubID", ctx, "424242").Return(nil, apperrors.ErrNotFound)
	users.On("GetByEmail", ctx, "ada@example.com").Return(nil, apperrors.ErrNotFound)
	users.On("GetByUsername", ctx, "ada-gh").Return(nil, apperrors.ErrNotFound)
	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	users.On("SetRefreshTokenHash", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("*string")).Return(nil)

	user, tokens, err := svc.AuthenticateGithub(ctx, sampleProfile())

	require.NoError(t, err)
	assert.Equal(t, "ada-gh", user.Username)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "424242", user.GithubID)
	assert.Empty(t, user.PasswordHash)
	assert.NotEmpty(t, tokens.AccessToken)
	users.AssertExpectations(t)
}

func TestAuthenticateGithub_UsernameCollisionGetsSuffix(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	taken := sampleStoredUser()
	taken.Username = "ada-gh"

	users.On("GetByGithubID", ctx, "424242").Return(nil, apperrors.ErrNotFound)
	users.On("GetByEmail", ctx, "new@example.com").Return(nil, apperrors.ErrNotFound)
	users.On("GetByUsername", ctx, "ada-gh").Return(taken, nil)
	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	users.On("SetRefreshTokenHash", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("*string")).Return(nil)

	profile := sampleProfile()
	profile.Email = "new@example.com"

	user, _, err := svc.AuthenticateGithub(ctx, profile)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.Username, "ada-gh_"), "expected suffixed username, got %q", user.Username)
	assert.Greater(t, len(user.Username), len("ada-gh_"))
	assert.Equal(t, "ada-gh", user.GithubUsername, "provider username is kept verbatim")
	users.AssertExpectations(t)
}

func TestAuthenticateGithub_NoEmail(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("GetByGithubID", ctx, "424242").Return(nil, apperrors.ErrNotFound)

	profile := sampleProfile()
	profile.Email = ""

	_, _, err := svc.AuthenticateGithub(ctx, profile)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- Refresh ---

func TestRefresh_SuccessAndRotation(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	hash, err := testHasher().Hash("SecurePass123")
	require.NoError(t, err)
	stored.PasswordHash = hash

	// The mock persists the rotating slot like the real repository would.
	var currentHash string
	users.On("GetByEmailWithPassword", ctx, stored.Email).Return(stored, nil)
	users.On("SetRefreshTokenHash", ctx, stored.ID, mock.AnythingOfType("*string")).
		Run(func(args mock.Arguments) {
			currentHash = *args.Get(2).(*string)
		}).
		Return(nil)
	users.On("GetByIDWithRefreshToken", ctx, stored.ID).
		Return(stored, nil).
		Run(func(mock.Arguments) {
			stored.RefreshTokenHash = currentHash
		})

	_, firstPair, err := svc.Login(ctx, LoginInput{Email: stored.Email, Password: "SecurePass123"})
	require.NoError(t, err)

	user, secondPair, err := svc.Refresh(ctx, firstPair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.NotEqual(t, firstPair.RefreshToken, secondPair.RefreshToken, "refresh must rotate the token")

	// The first token was rotated out, so presenting it again must fail.
	_, _, err = svc.Refresh(ctx, firstPair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// The freshly issued token still works.
	_, thirdPair, err := svc.Refresh(ctx, secondPair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, secondPair.RefreshToken, thirdPair.RefreshToken)
}

func TestRefresh_MalformedToken(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	_, _, err := svc.Refresh(ctx, "not-a-jwt")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	users.AssertNotCalled(t, "GetByIDWithRefreshToken", mock.Anything, mock.Anything)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	// An access token is signed with the access secret and must not pass
	// refresh validation.
	accessToken, err := newTestTokenManager().GenerateAccessToken("user-001", "ada@example.com", "ada")
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, accessToken)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_AfterLogout(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	hash, err := testHasher().Hash("SecurePass123")
	require.NoError(t, err)
	stored.PasswordHash = hash

	var currentHash string
	users.On("GetByEmailWithPassword", ctx, stored.Email).Return(stored, nil)
	users.On("SetRefreshTokenHash", ctx, stored.ID, mock.AnythingOfType("*string")).
		Run(func(args mock.Arguments) {
			if h := args.Get(2).(*string); h != nil {
				currentHash = *h
			} else {
				currentHash = ""
			}
		}).
		Return(nil)
	users.On("GetByIDWithRefreshToken", ctx, stored.ID).
		Return(stored, nil).
		Run(func(mock.Arguments) {
			stored.RefreshTokenHash = currentHash
		})

	_, pair, err := svc.Login(ctx, LoginInput{Email: stored.Email, Password: "SecurePass123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, stored.ID))

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestRefresh_UnknownUser(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	token, err := newTestTokenManager().GenerateRefreshToken("ghost-user", "ghost@example.com", "ghost")
	require.NoError(t, err)

	users.On("GetByIDWithRefreshToken", ctx, "ghost-user").Return(nil, apperrors.ErrNotFound)

	_, _, err = svc.Refresh(ctx, token)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized, "deleted account must surface as unauthorized, not not-found")
}

// --- Logout ---

func TestLogout_ClearsSlot(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("SetRefreshTokenHash", ctx, "user-001", (*string)(nil)).Return(nil)

	require.NoError(t, svc.Logout(ctx, "user-001"))
	users.AssertExpectations(t)
}

func TestLogout_Idempotent(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("SetRefreshTokenHash", ctx, "user-001", (*string)(nil)).Return(nil).Twice()

	require.NoError(t, svc.Logout(ctx, "user-001"))
	require.NoError(t, svc.Logout(ctx, "user-001"))
	users.AssertExpectations(t)
}

// --- GetUser ---

func TestGetUser_Success(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	stored := sampleStoredUser()
	users.On("GetByID", ctx, stored.ID).Return(stored, nil)

	user, err := svc.GetUser(ctx, stored.ID)

	require.NoError(t, err)
	assert.Equal(t, stored.Email, user.Email)
}

func TestGetUser_NotFound(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestService(users)
	ctx := context.Background()

	users.On("GetByID", ctx, "missing-id").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetUser(ctx, "missing-id")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
