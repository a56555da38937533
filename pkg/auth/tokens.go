package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/haqqman/gatekeeper/pkg/domain"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL   = 30 * time.Minute
	DefaultRefreshTokenTTL  = 30 * 24 * time.Hour
	DefaultResetPasswordTTL = 10 * time.Minute
	DefaultVerifyEmailTTL   = 10 * time.Minute
	DefaultVerifyOTPTTL     = 10 * time.Minute
	DefaultUpdateEmailTTL   = 10 * time.Minute
	DefaultInviteTTL        = 72 * time.Hour
)

// signupCodeLength is the length of the allocator-minted signup verification
// code.
const signupCodeLength = 6

// TokenStore is the persistence boundary for issued tokens and codes.
// Criteria always carry the kind plus the value or the owner. Find methods
// return only non-blacklisted records and map absence to
// domain.ErrTokenNotFound.
type TokenStore interface {
	Create(ctx context.Context, token *domain.Token) error
	FindByValue(ctx context.Context, kind domain.TokenKind, value string) (*domain.Token, error)
	FindByValueAndOwner(ctx context.Context, kind domain.TokenKind, value string, ownerID uuid.UUID) (*domain.Token, error)
	DeleteByValue(ctx context.Context, kind domain.TokenKind, value string) error
	DeleteByOwnerAndKind(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind) error
	Blacklist(ctx context.Context, kind domain.TokenKind, value string) error
}

// TokenConfig holds signing material and per-kind lifetimes.
type TokenConfig struct {
	Secret []byte
	Issuer string

	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	ResetPasswordTTL time.Duration
	VerifyEmailTTL   time.Duration
	VerifyOTPTTL     time.Duration
	UpdateEmailTTL   time.Duration
	InviteTTL        time.Duration

	// Now is the clock used for issuance and expiry checks (default: time.Now).
	Now func() time.Time
}

// TokenService issues, verifies, and revokes every token and code kind.
// Access tokens are stateless JWTs; refresh and reset-password tokens are
// JWTs persisted by value; the verification kinds are persisted short codes.
// Expiry is checked lazily at verification time, and deletion on consumption
// is the authoritative single-use mechanism.
type TokenService struct {
	config TokenConfig
	store  TokenStore
}

// NewTokenService creates a token service over the given store.
func NewTokenService(config TokenConfig, store TokenStore) *TokenService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.ResetPasswordTTL == 0 {
		config.ResetPasswordTTL = DefaultResetPasswordTTL
	}
	if config.VerifyEmailTTL == 0 {
		config.VerifyEmailTTL = DefaultVerifyEmailTTL
	}
	if config.VerifyOTPTTL == 0 {
		config.VerifyOTPTTL = DefaultVerifyOTPTTL
	}
	if config.UpdateEmailTTL == 0 {
		config.UpdateEmailTTL = DefaultUpdateEmailTTL
	}
	if config.InviteTTL == 0 {
		config.InviteTTL = DefaultInviteTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TokenService{config: config, store: store}
}

func (s *TokenService) now() time.Time {
	return s.config.Now()
}

// Claims are carried by every signed token. The type claim binds a token to
// one kind so a reset token can never pass as a refresh token.
type Claims struct {
	jwt.RegisteredClaims
	Kind string `json:"type"`
}

// InviteClaims carry the full invitee payload inside an invite token.
type InviteClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"type"`
	domain.ConsoleInvite
}

func (s *TokenService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, domain.ErrInvalidToken
	}
	return s.config.Secret, nil
}

func (s *TokenService) sign(ownerID uuid.UUID, kind domain.TokenKind, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// iat/exp are whole seconds, so the jti is what keeps two
			// same-instant tokens for one owner distinct.
			ID:        uuid.NewString(),
			Subject:   ownerID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
		},
		Kind: string(kind),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

func (s *TokenService) parse(value string, kind domain.TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, s.keyFunc,
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Kind != string(kind) {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// GenerateAuthTokens mints a stateless access token and a persisted refresh
// token for the user. Multiple refresh tokens per user may be live at once,
// one per session; each is consumed exactly once at rotation time.
func (s *TokenService) GenerateAuthTokens(ctx context.Context, userID uuid.UUID) (*domain.TokenPair, error) {
	now := s.now()

	accessExpires := now.Add(s.config.AccessTokenTTL)
	access, err := s.sign(userID, domain.TokenKindAccess, now, accessExpires)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpires := now.Add(s.config.RefreshTokenTTL)
	refresh, err := s.sign(userID, domain.TokenKindRefresh, now, refreshExpires)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	token := &domain.Token{
		ID:        uuid.New(),
		OwnerID:   userID,
		Value:     refresh,
		Kind:      domain.TokenKindRefresh,
		CreatedAt: now,
		ExpiresAt: refreshExpires,
	}
	if err := s.store.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

// VerifyAccessToken validates a stateless access token and returns its
// claims. No store lookup is involved.
func (s *TokenService) VerifyAccessToken(value string) (*Claims, error) {
	return s.parse(value, domain.TokenKindAccess)
}

// VerifyToken validates a persisted JWT-backed token: signature and expiry
// first (a structural or signature failure is domain.ErrInvalidToken), then
// a store lookup by value, kind, and the subject encoded in the claims.
func (s *TokenService) VerifyToken(ctx context.Context, kind domain.TokenKind, value string) (*domain.Token, error) {
	claims, err := s.parse(value, kind)
	if err != nil {
		return nil, err
	}
	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return s.store.FindByValueAndOwner(ctx, kind, value, ownerID)
}

// RotateAuthTokens consumes a refresh token and issues a fresh pair. The
// presented token is deleted before the new pair is minted, so each refresh
// token grants exactly one rotation.
func (s *TokenService) RotateAuthTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, uuid.UUID, error) {
	token, err := s.VerifyToken(ctx, domain.TokenKindRefresh, refreshToken)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if err := s.store.DeleteByValue(ctx, domain.TokenKindRefresh, token.Value); err != nil {
		return nil, uuid.Nil, fmt.Errorf("consume refresh token: %w", err)
	}
	pair, err := s.GenerateAuthTokens(ctx, token.OwnerID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return pair, token.OwnerID, nil
}

// DeleteRefreshToken removes a live refresh token, ending its session.
func (s *TokenService) DeleteRefreshToken(ctx context.Context, refreshToken string) error {
	token, err := s.store.FindByValue(ctx, domain.TokenKindRefresh, refreshToken)
	if err != nil {
		return err
	}
	return s.store.DeleteByValue(ctx, domain.TokenKindRefresh, token.Value)
}

// BlacklistRefreshToken flags a refresh token as administratively revoked
// without deleting the record.
func (s *TokenService) BlacklistRefreshToken(ctx context.Context, refreshToken string) error {
	return s.store.Blacklist(ctx, domain.TokenKindRefresh, refreshToken)
}

// GenerateResetPasswordToken mints a persisted reset token for the user.
// Prior reset tokens for the user are deleted first, so only the most recent
// request can complete.
func (s *TokenService) GenerateResetPasswordToken(ctx context.Context, userID uuid.UUID) (string, error) {
	now := s.now()
	expires := now.Add(s.config.ResetPasswordTTL)
	value, err := s.sign(userID, domain.TokenKindResetPassword, now, expires)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	if err := s.store.DeleteByOwnerAndKind(ctx, userID, domain.TokenKindResetPassword); err != nil {
		return "", fmt.Errorf("invalidate prior reset tokens: %w", err)
	}
	token := &domain.Token{
		ID:        uuid.New(),
		OwnerID:   userID,
		Value:     value,
		Kind:      domain.TokenKindResetPassword,
		CreatedAt: now,
		ExpiresAt: expires,
	}
	if err := s.store.Create(ctx, token); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}
	return value, nil
}

// GenerateVerifyEmailCode mints a 6-digit email verification code for the
// user, invalidating any prior live code of the same kind.
func (s *TokenService) GenerateVerifyEmailCode(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := sixDigitCode()
	if err != nil {
		return "", err
	}
	return s.issueCode(ctx, userID, domain.TokenKindVerifyEmail, s.config.VerifyEmailTTL, code)
}

// GenerateSignupVerificationCode mints the verification code sent on account
// creation. Unlike the numeric codes this one is allocated through the
// unique-code generator with the token store as the liveness set, so two
// pending signups can never hold the same code.
func (s *TokenService) GenerateSignupVerificationCode(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := AllocateUniqueCode(ctx, signupCodeLength, CharsetAlphanumeric, func(ctx context.Context, candidate string) (bool, error) {
		_, err := s.store.FindByValue(ctx, domain.TokenKindVerifyEmail, candidate)
		if errors.Is(err, domain.ErrTokenNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return s.issueCode(ctx, userID, domain.TokenKindVerifyEmail, s.config.VerifyEmailTTL, code)
}

// GenerateAccessOTP mints a 6-digit one-time passcode used as the second
// factor after password login.
func (s *TokenService) GenerateAccessOTP(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := sixDigitCode()
	if err != nil {
		return "", err
	}
	return s.issueCode(ctx, userID, domain.TokenKindVerifyOTP, s.config.VerifyOTPTTL, code)
}

// GenerateUpdateEmailCode mints a 6-digit code confirming an email change.
func (s *TokenService) GenerateUpdateEmailCode(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := sixDigitCode()
	if err != nil {
		return "", err
	}
	return s.issueCode(ctx, userID, domain.TokenKindUpdateEmail, s.config.UpdateEmailTTL, code)
}

// VerifyCode validates a short code for an owner. On success every code of
// that kind for the owner is deleted: a verified code can never verify twice.
// Expired codes fail with domain.ErrTokenExpired and are left for the next
// issuance to overwrite.
func (s *TokenService) VerifyCode(ctx context.Context, kind domain.TokenKind, ownerID uuid.UUID, code string) (*domain.Token, error) {
	token, err := s.store.FindByValueAndOwner(ctx, kind, code, ownerID)
	if err != nil {
		return nil, err
	}
	if token.Expired(s.now()) {
		return nil, domain.ErrTokenExpired
	}
	if err := s.store.DeleteByOwnerAndKind(ctx, ownerID, kind); err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	return token, nil
}

// VerifyUpdateEmailCode validates an email-change code without knowing the
// owner up front; the matched token identifies the user.
func (s *TokenService) VerifyUpdateEmailCode(ctx context.Context, code string) (*domain.Token, error) {
	token, err := s.store.FindByValue(ctx, domain.TokenKindUpdateEmail, code)
	if err != nil {
		return nil, err
	}
	if token.Expired(s.now()) {
		return nil, domain.ErrTokenExpired
	}
	if err := s.store.DeleteByOwnerAndKind(ctx, token.OwnerID, domain.TokenKindUpdateEmail); err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	return token, nil
}

// DeleteTokens removes every token of a kind for an owner.
func (s *TokenService) DeleteTokens(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind) error {
	return s.store.DeleteByOwnerAndKind(ctx, ownerID, kind)
}

// GenerateInviteToken signs a self-contained invite token carrying the
// invitee payload. Invite tokens are never persisted and cannot be revoked
// before they expire.
func (s *TokenService) GenerateInviteToken(invite domain.ConsoleInvite) (string, error) {
	now := s.now()
	claims := InviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.InviteTTL)),
			Issuer:    s.config.Issuer,
		},
		Kind:          string(domain.TokenKindInvite),
		ConsoleInvite: invite,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
}

// VerifyInviteToken validates an invite token and returns the invitee
// payload. Verification is pure JWT signature plus expiry; there is no store
// lookup.
func (s *TokenService) VerifyInviteToken(value string) (*domain.ConsoleInvite, error) {
	token, err := jwt.ParseWithClaims(value, &InviteClaims{}, s.keyFunc,
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	claims, ok := token.Claims.(*InviteClaims)
	if !ok || claims.Kind != string(domain.TokenKindInvite) {
		return nil, domain.ErrInvalidToken
	}
	return &claims.ConsoleInvite, nil
}

func (s *TokenService) issueCode(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind, ttl time.Duration, code string) (string, error) {
	now := s.now()
	// Invalidate any prior live code of this kind for the owner.
	if err := s.store.DeleteByOwnerAndKind(ctx, ownerID, kind); err != nil {
		return "", fmt.Errorf("invalidate prior codes: %w", err)
	}
	token := &domain.Token{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Value:     code,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.store.Create(ctx, token); err != nil {
		return "", fmt.Errorf("save code: %w", err)
	}
	return code, nil
}

// sixDigitCode draws uniformly from [100000, 999999]. The verification kinds
// use the full 6-digit numeric space rather than the unique-char allocator.
func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRandomSourceUnavailable, err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
