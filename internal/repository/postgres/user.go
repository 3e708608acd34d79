package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BartugKaan/developer-match/internal/domain"
	"github.com/BartugKaan/developer-match/pkg/database"
	apperrors "github.com/BartugKaan/developer-match/pkg/errors"
)

// publicColumns is the default projection: secret-bearing columns
// (password_hash, github_access_token, refresh_token_hash) are excluded and
// only fetched by the explicit with-secret reads.
const publicColumns = `id, email, username, display_name, avatar, bio, COALESCE(github_id, ''), github_username, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Unique violations on email, username, or
// github_id surface as Conflict errors straight from the database constraint,
// so concurrent creates cannot race past a pre-check.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, username, display_name, avatar, bio, password_hash, github_id, github_username, github_access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Username,
		u.DisplayName,
		u.Avatar,
		u.Bio,
		u.PasswordHash,
		u.GithubID,
		u.GithubUsername,
		u.GithubAccessToken,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if conflict := conflictFromUniqueViolation(err, u); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID using the public projection.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + publicColumns + ` FROM users WHERE id = $1`
	return r.scanPublic(ctx, query, id)
}

// GetByIDWithRefreshToken retrieves a user by ID including the stored
// refresh-token hash.
func (r *UserRepository) GetByIDWithRefreshToken(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + publicColumns + `, COALESCE(refresh_token_hash, '') FROM users WHERE id = $1`

	var u domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Avatar, &u.Bio,
		&u.GithubID, &u.GithubUsername, &u.CreatedAt, &u.UpdatedAt,
		&u.RefreshTokenHash,
	)
	if err != nil {
		return nil, wrapScanError(err)
	}

	return &u, nil
}

// GetByEmail retrieves a user by normalized email using the public projection.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + publicColumns + ` FROM users WHERE email = $1`
	return r.scanPublic(ctx, query, domain.NormalizeEmail(email))
}

// GetByEmailWithPassword retrieves a user by normalized email including the
// password hash.
func (r *UserRepository) GetByEmailWithPassword(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + publicColumns + `, COALESCE(password_hash, '') FROM users WHERE email = $1`

	var u domain.User
	err := r.db.QueryRow(ctx, query, domain.NormalizeEmail(email)).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Avatar, &u.Bio,
		&u.GithubID, &u.GithubUsername, &u.CreatedAt, &u.UpdatedAt,
		&u.PasswordHash,
	)
	if err != nil {
		return nil, wrapScanError(err)
	}

	return &u, nil
}

// GetByUsername retrieves a user by username using the public projection.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + publicColumns + ` FROM users WHERE username = $1`
	return r.scanPublic(ctx, query, username)
}

// GetByGithubID retrieves a user by linked GitHub ID using the public projection.
func (r *UserRepository) GetByGithubID(ctx context.Context, githubID string) (*domain.User, error) {
	query := `SELECT ` + publicColumns + ` FROM users WHERE github_id = $1`
	return r.scanPublic(ctx, query, githubID)
}

// LinkGithub binds provider fields onto an existing user. The avatar is only
// replaced when the link supplies a non-empty value.
func (r *UserRepository) LinkGithub(ctx context.Context, id string, link domain.GithubLink) (*domain.User, error) {
	query := `
		UPDATE users
		SET github_id = NULLIF($1, ''),
		    github_username = $2,
		    github_access_token = $3,
		    avatar = CASE WHEN $4 <> '' THEN $4 ELSE avatar END,
		    updated_at = $5
		WHERE id = $6
		RETURNING ` + publicColumns

	var u domain.User
	err := r.db.QueryRow(ctx, query,
		link.GithubID,
		link.GithubUsername,
		link.GithubAccessToken,
		link.Avatar,
		time.Now().UTC(),
		id,
	).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Avatar, &u.Bio,
		&u.GithubID, &u.GithubUsername, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		if conflict := conflictFromUniqueViolation(err, &domain.User{GithubID: link.GithubID}); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("link github identity: %w", err)
	}

	return &u, nil
}

// SetRefreshTokenHash replaces the user's refresh-token slot. A nil hash
// clears the slot; the write is a single atomic update.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	query := `UPDATE users SET refresh_token_hash = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set refresh token hash: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

func (r *UserRepository) scanPublic(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Avatar, &u.Bio,
		&u.GithubID, &u.GithubUsername, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, wrapScanError(err)
	}
	return &u, nil
}

func wrapScanError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return fmt.Errorf("scan user: %w", err)
}

// conflictFromUniqueViolation maps a SQLSTATE 23505 error to a Conflict naming
// the violated field, or nil when the error is not a unique violation.
func conflictFromUniqueViolation(err error, u *domain.User) *apperrors.AppError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}

	switch pgErr.ConstraintName {
	case "users_username_key":
		return apperrors.Conflict("user", "username", u.Username)
	case "users_github_id_key":
		return apperrors.Conflict("user", "github_id", u.GithubID)
	default:
		return apperrors.Conflict("user", "email", u.Email)
	}
}
