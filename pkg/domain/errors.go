package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAppNotFound        = errors.New("app not found")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateWorkmail  = errors.New("workmail already registered")
	ErrBlockedDomain      = errors.New("workmail domain is not allowed")
	ErrEmailMismatch      = errors.New("old email does not match current email")
)

// Token errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrInvalidToken  = errors.New("invalid token")
)

// Code generation errors
var (
	ErrAllocationExhausted     = errors.New("unique code allocation attempts exhausted")
	ErrRandomSourceUnavailable = errors.New("secure random source unavailable")
)
