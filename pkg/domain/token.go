package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind identifies what an issued token or code is good for. A value is
// only ever valid for the single kind it was issued under.
type TokenKind string

const (
	TokenKindAccess        TokenKind = "access"
	TokenKindRefresh       TokenKind = "refresh"
	TokenKindResetPassword TokenKind = "resetPassword"
	TokenKindVerifyEmail   TokenKind = "verifyEmail"
	TokenKindVerifyOTP     TokenKind = "verifyOTP"
	TokenKindUpdateEmail   TokenKind = "updateEmail"
	TokenKindInvite        TokenKind = "inviteConsoleUser"
)

// ExclusiveKinds are the kinds for which an owner holds at most one live
// value: issuing a new one supersedes the previous.
var ExclusiveKinds = []TokenKind{
	TokenKindResetPassword,
	TokenKindVerifyEmail,
	TokenKindVerifyOTP,
	TokenKindUpdateEmail,
}

// Token is a persisted token or verification code.
type Token struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Value       string    `json:"value"`
	Kind        TokenKind `json:"kind"`
	Blacklisted bool      `json:"blacklisted"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the token is expired at the given instant. A token
// is expired from its expiry instant onward.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenPair is the access/refresh pair granted on successful authentication.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// ConsoleInvite is the invitee payload carried inside a signed invite token.
type ConsoleInvite struct {
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Workmail  string `json:"workmail"`
}
