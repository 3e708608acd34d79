package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHashCost keeps bcrypt fast in tests.
const testHashCost = 4

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(testHashCost)

	hash, err := h.Hash("Passw0rd1")
	require.NoError(t, err)

	assert.NotEqual(t, "Passw0rd1", hash)
	assert.True(t, h.Verify("Passw0rd1", hash))
	assert.False(t, h.Verify("Passw0rd2", hash))
}

func TestHasher_DistinctHashesPerCall(t *testing.T) {
	h := NewHasher(testHashCost)

	first, err := h.Hash("Passw0rd1")
	require.NoError(t, err)
	second, err := h.Hash("Passw0rd1")
	require.NoError(t, err)

	// bcrypt salts every hash; both must still verify.
	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("Passw0rd1", first))
	assert.True(t, h.Verify("Passw0rd1", second))
}

func TestHasher_LongSecret(t *testing.T) {
	h := NewHasher(testHashCost)

	// Signed refresh tokens are far longer than bcrypt's 72-byte input limit.
	token := strings.Repeat("eyJhbGciOiJIUzI1NiJ9.", 20)

	hash, err := h.Hash(token)
	require.NoError(t, err)
	assert.True(t, h.Verify(token, hash))
	assert.False(t, h.Verify(token+"x", hash))
}

func TestHasher_Verify_MissingOrMalformedHash(t *testing.T) {
	h := NewHasher(testHashCost)

	assert.False(t, h.Verify("Passw0rd1", ""))
	assert.False(t, h.Verify("Passw0rd1", "not-a-bcrypt-hash"))
}

func TestNewHasher_CostFallback(t *testing.T) {
	h := NewHasher(99)
	assert.Equal(t, DefaultHashCost, h.cost)

	h = NewHasher(0)
	assert.Equal(t, DefaultHashCost, h.cost)
}
