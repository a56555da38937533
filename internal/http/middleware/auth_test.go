package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/auth"
	"github.com/haqqman/gatekeeper/pkg/domain"
)

// nullStore satisfies auth.TokenStore for middleware tests; access token
// verification never touches the store.
type nullStore struct{}

func (nullStore) Create(ctx context.Context, token *domain.Token) error { return nil }
func (nullStore) FindByValue(ctx context.Context, kind domain.TokenKind, value string) (*domain.Token, error) {
	return nil, domain.ErrTokenNotFound
}
func (nullStore) FindByValueAndOwner(ctx context.Context, kind domain.TokenKind, value string, ownerID uuid.UUID) (*domain.Token, error) {
	return nil, domain.ErrTokenNotFound
}
func (nullStore) DeleteByValue(ctx context.Context, kind domain.TokenKind, value string) error {
	return nil
}
func (nullStore) DeleteByOwnerAndKind(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind) error {
	return nil
}
func (nullStore) Blacklist(ctx context.Context, kind domain.TokenKind, value string) error {
	return nil
}

func newTestService() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		Secret: []byte("test-secret-key-that-is-long-enough"),
	}, nullStore{})
}

func TestAuth_ValidToken(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()
	pair, err := svc.GenerateAuthTokens(context.Background(), userID)
	if err != nil {
		t.Fatalf("GenerateAuthTokens: %v", err)
	}

	var gotUserID uuid.UUID
	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserID(r.Context())
		if !ok {
			t.Error("user ID missing from context")
		}
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != userID {
		t.Errorf("got user ID %s, want %s", gotUserID, userID)
	}
}

func TestAuth_Rejections(t *testing.T) {
	svc := newTestService()

	other := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte("a-completely-different-signing-key!!"),
	}, nullStore{})
	foreignPair, err := other.GenerateAuthTokens(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GenerateAuthTokens: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong signing key", "Bearer " + foreignPair.AccessToken},
	}

	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}
