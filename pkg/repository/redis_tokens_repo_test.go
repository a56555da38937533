package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

func newRedisRepo(t *testing.T) (*RedisTokensRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokensRepository(client), mr
}

func newToken(ownerID uuid.UUID, kind domain.TokenKind, value string, ttl time.Duration) *domain.Token {
	now := time.Now()
	return &domain.Token{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Value:     value,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRedisTokens_CreateAndFind(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	ownerID := uuid.New()

	token := newToken(ownerID, domain.TokenKindVerifyOTP, "482913", 10*time.Minute)
	require.NoError(t, repo.Create(ctx, token))

	got, err := repo.FindByValue(ctx, domain.TokenKindVerifyOTP, "482913")
	require.NoError(t, err)
	assert.Equal(t, ownerID, got.OwnerID)
	assert.Equal(t, domain.TokenKindVerifyOTP, got.Kind)

	got, err = repo.FindByValueAndOwner(ctx, domain.TokenKindVerifyOTP, "482913", ownerID)
	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)

	// Wrong owner and wrong kind both miss.
	_, err = repo.FindByValueAndOwner(ctx, domain.TokenKindVerifyOTP, "482913", uuid.New())
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	_, err = repo.FindByValue(ctx, domain.TokenKindVerifyEmail, "482913")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRedisTokens_DeleteByValue(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	token := newToken(uuid.New(), domain.TokenKindRefresh, "refresh-token-value", time.Hour)
	require.NoError(t, repo.Create(ctx, token))

	require.NoError(t, repo.DeleteByValue(ctx, domain.TokenKindRefresh, "refresh-token-value"))

	_, err := repo.FindByValue(ctx, domain.TokenKindRefresh, "refresh-token-value")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	err = repo.DeleteByValue(ctx, domain.TokenKindRefresh, "refresh-token-value")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRedisTokens_DeleteByOwnerAndKind(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	ownerID := uuid.New()

	require.NoError(t, repo.Create(ctx, newToken(ownerID, domain.TokenKindRefresh, "session-one", time.Hour)))
	require.NoError(t, repo.Create(ctx, newToken(ownerID, domain.TokenKindRefresh, "session-two", time.Hour)))
	require.NoError(t, repo.Create(ctx, newToken(ownerID, domain.TokenKindVerifyOTP, "771234", time.Hour)))

	require.NoError(t, repo.DeleteByOwnerAndKind(ctx, ownerID, domain.TokenKindRefresh))

	_, err := repo.FindByValue(ctx, domain.TokenKindRefresh, "session-one")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	_, err = repo.FindByValue(ctx, domain.TokenKindRefresh, "session-two")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	// Other kinds are untouched.
	_, err = repo.FindByValue(ctx, domain.TokenKindVerifyOTP, "771234")
	require.NoError(t, err)

	// Deleting an empty set is not an error.
	require.NoError(t, repo.DeleteByOwnerAndKind(ctx, ownerID, domain.TokenKindRefresh))
}

func TestRedisTokens_Blacklist(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	token := newToken(uuid.New(), domain.TokenKindRefresh, "revoked-token", time.Hour)
	require.NoError(t, repo.Create(ctx, token))

	require.NoError(t, repo.Blacklist(ctx, domain.TokenKindRefresh, "revoked-token"))

	_, err := repo.FindByValue(ctx, domain.TokenKindRefresh, "revoked-token")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	// Already hidden, so a second blacklist misses.
	err = repo.Blacklist(ctx, domain.TokenKindRefresh, "revoked-token")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRedisTokens_TTLExpiry(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	token := newToken(uuid.New(), domain.TokenKindVerifyOTP, "314159", time.Minute)
	require.NoError(t, repo.Create(ctx, token))

	mr.FastForward(2 * time.Minute)

	_, err := repo.FindByValue(ctx, domain.TokenKindVerifyOTP, "314159")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRedisTokens_OwnerIndexExpires(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	ownerID := uuid.New()

	require.NoError(t, repo.Create(ctx, newToken(ownerID, domain.TokenKindVerifyOTP, "271828", time.Minute)))

	key := ownerKey(domain.TokenKindVerifyOTP, ownerID)
	require.True(t, mr.Exists(key))
	assert.Greater(t, mr.TTL(key), time.Duration(0))

	// A longer-lived token extends the index TTL.
	require.NoError(t, repo.Create(ctx, newToken(ownerID, domain.TokenKindVerifyOTP, "161803", time.Hour)))
	assert.Greater(t, mr.TTL(key), time.Minute)

	// The index vanishes with its members instead of accumulating stale values.
	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(key))
}

func TestRedisTokens_AlreadyExpiredNotStored(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	token := newToken(uuid.New(), domain.TokenKindVerifyOTP, "999111", -time.Minute)
	require.NoError(t, repo.Create(ctx, token))

	_, err := repo.FindByValue(ctx, domain.TokenKindVerifyOTP, "999111")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}
