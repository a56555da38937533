package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// PortalUsersRepository handles portal user persistence.
type PortalUsersRepository struct {
	db *sql.DB
}

// NewPortalUsersRepository creates a new portal users repository.
func NewPortalUsersRepository(db *sql.DB) *PortalUsersRepository {
	return &PortalUsersRepository{db: db}
}

const portalUserColumns = `
	id, app_id, email, first_name, last_name, password_hash,
	is_email_verified, otp_enabled, created_at, updated_at
`

// Create creates a new portal user.
func (r *PortalUsersRepository) Create(ctx context.Context, user *domain.PortalUser) error {
	query := `
		INSERT INTO portal_users (id, app_id, email, first_name, last_name, password_hash,
			is_email_verified, otp_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.AppID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.IsEmailVerified, user.OTPEnabled, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// FindByEmail retrieves a portal user by email.
func (r *PortalUsersRepository) FindByEmail(ctx context.Context, email string) (*domain.PortalUser, error) {
	query := `SELECT ` + portalUserColumns + ` FROM portal_users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// FindByID retrieves a portal user by ID.
func (r *PortalUsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PortalUser, error) {
	query := `SELECT ` + portalUserColumns + ` FROM portal_users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Update updates a portal user.
func (r *PortalUsersRepository) Update(ctx context.Context, user *domain.PortalUser) error {
	query := `
		UPDATE portal_users
		SET email = $2, first_name = $3, last_name = $4, password_hash = $5,
		    is_email_verified = $6, otp_enabled = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.IsEmailVerified, user.OTPEnabled, user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// IsEmailTaken checks whether the email belongs to an account other than
// excludeID.
func (r *PortalUsersRepository) IsEmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM portal_users WHERE email = $1 AND id <> $2)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, email, excludeID).Scan(&exists)
	return exists, err
}

func (r *PortalUsersRepository) scanOne(row *sql.Row) (*domain.PortalUser, error) {
	user := &domain.PortalUser{}
	err := row.Scan(
		&user.ID, &user.AppID, &user.Email, &user.FirstName, &user.LastName,
		&user.PasswordHash, &user.IsEmailVerified, &user.OTPEnabled,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
