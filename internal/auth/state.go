package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/BartugKaan/developer-match/pkg/errors"
)

const (
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 10 * time.Minute
	stateBytes     = 32
)

// StateStore issues and consumes single-use OAuth CSRF states backed by
// Redis, so callbacks can land on any instance of the service.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore creates a state store with the default TTL.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client, ttl: stateTTL}
}

// Issue generates a random state and stores it with a TTL. The state is only
// valid until consumed or expired.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	if err := s.client.Set(ctx, stateKeyPrefix+state, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return state, nil
}

// Consume validates and deletes a state in one round trip. A replayed or
// expired state is an authentication failure, not an internal error.
func (s *StateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return apperrors.Unauthorized("missing oauth state")
	}

	val, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if err == redis.Nil {
		return apperrors.Unauthorized("invalid or expired oauth state")
	}
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	if val == "" {
		return apperrors.Unauthorized("invalid or expired oauth state")
	}

	return nil
}
