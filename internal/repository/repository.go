package repository

import (
	"context"

	"github.com/BartugKaan/developer-match/internal/domain"
)

// UserRepository defines the persistence interface for user identities.
//
// Reads come in two shapes: the default methods return the public projection
// (secret columns left empty), while the WithPassword / WithRefreshToken
// variants explicitly include the corresponding secret hash. Callers must use
// the explicit variants for credential verification and nothing else.
type UserRepository interface {
	// Create inserts a new user. It fails with a Conflict error if the email,
	// username, or GitHub ID is already taken; uniqueness is enforced
	// atomically by the store, not by pre-check reads.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID (public projection).
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByIDWithRefreshToken retrieves a user by ID including the stored
	// refresh-token hash.
	GetByIDWithRefreshToken(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by normalized email (public projection).
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByEmailWithPassword retrieves a user by normalized email including
	// the password hash.
	GetByEmailWithPassword(ctx context.Context, email string) (*domain.User, error)

	// GetByUsername retrieves a user by username (public projection).
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByGithubID retrieves a user by linked GitHub provider ID (public projection).
	GetByGithubID(ctx context.Context, githubID string) (*domain.User, error)

	// LinkGithub binds provider fields onto an existing user and returns the
	// updated record. An empty link.Avatar preserves the current avatar.
	LinkGithub(ctx context.Context, id string, link domain.GithubLink) (*domain.User, error)

	// SetRefreshTokenHash replaces the user's single refresh-token slot.
	// A nil hash clears the slot (logout).
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
}
