package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestTokenPairCarriesRole(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	pair, err := m.IssuePair("u1", "passenger")
	require.NoError(t, err)

	claims, err := m.Validate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "passenger", claims.Role)
	assert.NotEmpty(t, claims.ID)

	// refresh tokens drop the role claim
	refreshClaims, err := m.Validate(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refreshClaims.Role)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute, time.Hour)
	pair, err := m.IssuePair("u1", "driver")
	require.NoError(t, err)

	_, err = m.Validate(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour, time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour, time.Hour)
	pair, err := issuer.IssuePair("u1", "driver")
	require.NoError(t, err)

	_, err = verifier.Validate(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	pair, err := m.IssuePair("u1", "driver")
	require.NoError(t, err)

	access, err := m.Refresh(pair.RefreshToken, "driver")
	require.NoError(t, err)
	claims, err := m.Validate(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "driver", claims.Role)
}

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Hour))
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryRevocationStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRevocationStore()
	require.NoError(t, store.Revoke(ctx, "jti-2", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	revoked, err := store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
