package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// TokensRepository persists issued tokens in PostgreSQL. Lookups never
// return blacklisted rows; expired rows are filtered by the caller.
type TokensRepository struct {
	db *sql.DB
}

// NewTokensRepository creates a new tokens repository.
func NewTokensRepository(db *sql.DB) *TokensRepository {
	return &TokensRepository{db: db}
}

// Create inserts a token row.
func (r *TokensRepository) Create(ctx context.Context, token *domain.Token) error {
	query := `
		INSERT INTO tokens (id, owner_id, value, kind, blacklisted, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.OwnerID, token.Value, string(token.Kind),
		token.Blacklisted, token.CreatedAt, token.ExpiresAt,
	)
	return err
}

// FindByValue retrieves a live token by kind and value.
func (r *TokensRepository) FindByValue(ctx context.Context, kind domain.TokenKind, value string) (*domain.Token, error) {
	query := `
		SELECT id, owner_id, value, kind, blacklisted, created_at, expires_at
		FROM tokens
		WHERE kind = $1 AND value = $2 AND blacklisted = FALSE
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, string(kind), value))
}

// FindByValueAndOwner retrieves a live token by kind, value, and owner.
func (r *TokensRepository) FindByValueAndOwner(ctx context.Context, kind domain.TokenKind, value string, ownerID uuid.UUID) (*domain.Token, error) {
	query := `
		SELECT id, owner_id, value, kind, blacklisted, created_at, expires_at
		FROM tokens
		WHERE kind = $1 AND value = $2 AND owner_id = $3 AND blacklisted = FALSE
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, string(kind), value, ownerID))
}

// DeleteByValue deletes a token by kind and value.
func (r *TokensRepository) DeleteByValue(ctx context.Context, kind domain.TokenKind, value string) error {
	query := `DELETE FROM tokens WHERE kind = $1 AND value = $2`
	result, err := r.db.ExecContext(ctx, query, string(kind), value)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// DeleteByOwnerAndKind deletes every token of a kind held by an owner.
// Deleting zero rows is not an error.
func (r *TokensRepository) DeleteByOwnerAndKind(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind) error {
	query := `DELETE FROM tokens WHERE owner_id = $1 AND kind = $2`
	_, err := r.db.ExecContext(ctx, query, ownerID, string(kind))
	return err
}

// Blacklist marks a token as revoked without deleting the row.
func (r *TokensRepository) Blacklist(ctx context.Context, kind domain.TokenKind, value string) error {
	query := `
		UPDATE tokens
		SET blacklisted = TRUE
		WHERE kind = $1 AND value = $2 AND blacklisted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, string(kind), value)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

// DeleteExpired removes rows whose expiry is behind the cutoff.
func (r *TokensRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM tokens WHERE expires_at < NOW()`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *TokensRepository) scanOne(row *sql.Row) (*domain.Token, error) {
	token := &domain.Token{}
	var kind string
	err := row.Scan(
		&token.ID, &token.OwnerID, &token.Value, &kind,
		&token.Blacklisted, &token.CreatedAt, &token.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	token.Kind = domain.TokenKind(kind)
	return token, nil
}
