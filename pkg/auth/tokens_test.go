package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// memStore is an in-memory TokenStore for tests.
type memStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.Token
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]*domain.Token)}
}

func storeKey(kind domain.TokenKind, value string) string {
	return string(kind) + ":" + value
}

func (m *memStore) Create(ctx context.Context, token *domain.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *token
	m.tokens[storeKey(token.Kind, token.Value)] = &copied
	return nil
}

func (m *memStore) FindByValue(ctx context.Context, kind domain.TokenKind, value string) (*domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[storeKey(kind, value)]
	if !ok || token.Blacklisted {
		return nil, domain.ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (m *memStore) FindByValueAndOwner(ctx context.Context, kind domain.TokenKind, value string, ownerID uuid.UUID) (*domain.Token, error) {
	token, err := m.FindByValue(ctx, kind, value)
	if err != nil {
		return nil, err
	}
	if token.OwnerID != ownerID {
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

func (m *memStore) DeleteByValue(ctx context.Context, kind domain.TokenKind, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := storeKey(kind, value)
	if _, ok := m.tokens[key]; !ok {
		return domain.ErrTokenNotFound
	}
	delete(m.tokens, key)
	return nil
}

func (m *memStore) DeleteByOwnerAndKind(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, token := range m.tokens {
		if token.OwnerID == ownerID && token.Kind == kind {
			delete(m.tokens, key)
		}
	}
	return nil
}

func (m *memStore) Blacklist(ctx context.Context, kind domain.TokenKind, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[storeKey(kind, value)]
	if !ok || token.Blacklisted {
		return domain.ErrTokenNotFound
	}
	token.Blacklisted = true
	return nil
}

func (m *memStore) countByKind(kind domain.TokenKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, token := range m.tokens {
		if token.Kind == kind && !token.Blacklisted {
			n++
		}
	}
	return n
}

// fakeClock is a settable clock for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokenService(t *testing.T) (*TokenService, *memStore, *fakeClock) {
	t.Helper()
	store := newMemStore()
	clock := newFakeClock()
	svc := NewTokenService(TokenConfig{
		Secret: []byte("test-secret-key-that-is-long-enough"),
		Issuer: "gatekeeper-test",
		Now:    clock.Now,
	}, store)
	return svc, store, clock
}

func TestGenerateAuthTokens(t *testing.T) {
	svc, store, clock := newTestTokenService(t)
	userID := uuid.New()

	pair, err := svc.GenerateAuthTokens(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, clock.Now().Add(DefaultAccessTokenTTL), pair.AccessExpiresAt)
	assert.Equal(t, clock.Now().Add(DefaultRefreshTokenTTL), pair.RefreshExpiresAt)

	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, string(domain.TokenKindAccess), claims.Kind)

	// Only the refresh token is persisted.
	assert.Equal(t, 1, store.countByKind(domain.TokenKindRefresh))
	assert.Equal(t, 0, store.countByKind(domain.TokenKindAccess))
}

func TestGenerateAuthTokens_ConcurrentSessions(t *testing.T) {
	svc, store, _ := newTestTokenService(t)
	userID := uuid.New()

	// Two logins at the same instant: the clock never advances between them.
	first, err := svc.GenerateAuthTokens(context.Background(), userID)
	require.NoError(t, err)
	second, err := svc.GenerateAuthTokens(context.Background(), userID)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 2, store.countByKind(domain.TokenKindRefresh))

	// Ending one session leaves the other live.
	require.NoError(t, svc.DeleteRefreshToken(context.Background(), first.RefreshToken))
	_, ownerID, err := svc.RotateAuthTokens(context.Background(), second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, ownerID)
}

func TestVerifyAccessToken_Expiry(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	pair, err := svc.GenerateAuthTokens(context.Background(), uuid.New())
	require.NoError(t, err)

	clock.Advance(DefaultAccessTokenTTL - time.Second)
	_, err = svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = svc.VerifyAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyAccessToken_KindConfusion(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	userID := uuid.New()

	reset, err := svc.GenerateResetPasswordToken(context.Background(), userID)
	require.NoError(t, err)

	// A reset token has a valid signature but the wrong kind claim.
	_, err = svc.VerifyAccessToken(reset)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.VerifyToken(context.Background(), domain.TokenKindRefresh, reset)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyAccessToken_BadSignature(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	other := NewTokenService(TokenConfig{
		Secret: []byte("a-completely-different-signing-key!!"),
	}, newMemStore())

	pair, err := other.GenerateAuthTokens(context.Background(), uuid.New())
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRotateAuthTokens_SingleUse(t *testing.T) {
	svc, store, _ := newTestTokenService(t)
	userID := uuid.New()

	pair, err := svc.GenerateAuthTokens(context.Background(), userID)
	require.NoError(t, err)

	newPair, ownerID, err := svc.RotateAuthTokens(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, ownerID)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)
	assert.Equal(t, 1, store.countByKind(domain.TokenKindRefresh))

	// The consumed token grants nothing on a second presentation.
	_, _, err = svc.RotateAuthTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestRotateAuthTokens_Expired(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	pair, err := svc.GenerateAuthTokens(context.Background(), uuid.New())
	require.NoError(t, err)

	clock.Advance(DefaultRefreshTokenTTL + time.Second)
	_, _, err = svc.RotateAuthTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestDeleteRefreshToken(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	pair, err := svc.GenerateAuthTokens(context.Background(), uuid.New())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRefreshToken(context.Background(), pair.RefreshToken))

	_, _, err = svc.RotateAuthTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	err = svc.DeleteRefreshToken(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestBlacklistRefreshToken(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	pair, err := svc.GenerateAuthTokens(context.Background(), uuid.New())
	require.NoError(t, err)

	require.NoError(t, svc.BlacklistRefreshToken(context.Background(), pair.RefreshToken))

	// Blacklisted tokens are invisible to lookups.
	_, _, err = svc.RotateAuthTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestGenerateResetPasswordToken_LatestOnly(t *testing.T) {
	svc, store, _ := newTestTokenService(t)
	userID := uuid.New()

	first, err := svc.GenerateResetPasswordToken(context.Background(), userID)
	require.NoError(t, err)
	second, err := svc.GenerateResetPasswordToken(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 1, store.countByKind(domain.TokenKindResetPassword))

	_, err = svc.VerifyToken(context.Background(), domain.TokenKindResetPassword, first)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	token, err := svc.VerifyToken(context.Background(), domain.TokenKindResetPassword, second)
	require.NoError(t, err)
	assert.Equal(t, userID, token.OwnerID)
}

func TestGenerateAccessOTP_Supersedes(t *testing.T) {
	svc, store, _ := newTestTokenService(t)
	userID := uuid.New()

	first, err := svc.GenerateAccessOTP(context.Background(), userID)
	require.NoError(t, err)
	second, err := svc.GenerateAccessOTP(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 1, store.countByKind(domain.TokenKindVerifyOTP))

	if first != second {
		_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyOTP, userID, first)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	}

	_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyOTP, userID, second)
	require.NoError(t, err)
}

func TestVerifyCode_SingleUse(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	userID := uuid.New()

	code, err := svc.GenerateVerifyEmailCode(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, code, 6)

	_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyEmail, userID, code)
	require.NoError(t, err)

	_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyEmail, userID, code)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestVerifyCode_Expired(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	userID := uuid.New()

	code, err := svc.GenerateAccessOTP(context.Background(), userID)
	require.NoError(t, err)

	clock.Advance(DefaultVerifyOTPTTL + time.Second)
	_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyOTP, userID, code)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyCode_WrongOwner(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	userID := uuid.New()

	code, err := svc.GenerateAccessOTP(context.Background(), userID)
	require.NoError(t, err)

	_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyOTP, uuid.New(), code)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestGenerateUpdateEmailCode(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	userID := uuid.New()

	code, err := svc.GenerateUpdateEmailCode(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, code, 6)

	token, err := svc.VerifyUpdateEmailCode(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, userID, token.OwnerID)

	// Consumed on first verification.
	_, err = svc.VerifyUpdateEmailCode(context.Background(), code)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestGenerateSignupVerificationCode(t *testing.T) {
	svc, store, _ := newTestTokenService(t)
	userID := uuid.New()

	code, err := svc.GenerateSignupVerificationCode(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, code, signupCodeLength)
	assert.False(t, strings.ContainsAny(code, "0OIl"), "code %q contains ambiguous glyph", code)
	assert.Equal(t, 1, store.countByKind(domain.TokenKindVerifyEmail))

	_, err = svc.VerifyCode(context.Background(), domain.TokenKindVerifyEmail, userID, code)
	require.NoError(t, err)
}

func TestInviteToken_Roundtrip(t *testing.T) {
	svc, store, _ := newTestTokenService(t)
	invite := domain.ConsoleInvite{
		Role:      domain.RoleManager,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Workmail:  "ada@example.com",
	}

	token, err := svc.GenerateInviteToken(invite)
	require.NoError(t, err)

	// Invites are self-contained; nothing is persisted.
	assert.Equal(t, 0, store.countByKind(domain.TokenKindInvite))

	got, err := svc.VerifyInviteToken(token)
	require.NoError(t, err)
	assert.Equal(t, invite, *got)
}

func TestInviteToken_Expired(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	token, err := svc.GenerateInviteToken(domain.ConsoleInvite{Workmail: "a@b.com"})
	require.NoError(t, err)

	clock.Advance(DefaultInviteTTL + time.Second)
	_, err = svc.VerifyInviteToken(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestInviteToken_BadSignature(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	other := NewTokenService(TokenConfig{
		Secret: []byte("a-completely-different-signing-key!!"),
	}, newMemStore())

	token, err := other.GenerateInviteToken(domain.ConsoleInvite{Workmail: "a@b.com"})
	require.NoError(t, err)

	_, err = svc.VerifyInviteToken(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestSixDigitCode_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := sixDigitCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		require.GreaterOrEqual(t, code, "100000")
		require.LessOrEqual(t, code, "999999")
	}
}
