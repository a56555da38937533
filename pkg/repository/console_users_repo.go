package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// ConsoleUsersRepository handles console user persistence.
type ConsoleUsersRepository struct {
	db *sql.DB
}

// NewConsoleUsersRepository creates a new console users repository.
func NewConsoleUsersRepository(db *sql.DB) *ConsoleUsersRepository {
	return &ConsoleUsersRepository{db: db}
}

const consoleUserColumns = `
	id, app_id, workmail, first_name, last_name, role, password_hash,
	otp_enabled, created_at, updated_at
`

// Create creates a new console user.
func (r *ConsoleUsersRepository) Create(ctx context.Context, user *domain.ConsoleUser) error {
	query := `
		INSERT INTO console_users (id, app_id, workmail, first_name, last_name, role,
			password_hash, otp_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.AppID, user.Workmail, user.FirstName, user.LastName, user.Role,
		user.PasswordHash, user.OTPEnabled, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// FindByWorkmail retrieves a console user by workmail.
func (r *ConsoleUsersRepository) FindByWorkmail(ctx context.Context, workmail string) (*domain.ConsoleUser, error) {
	query := `SELECT ` + consoleUserColumns + ` FROM console_users WHERE workmail = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, workmail))
}

// FindByID retrieves a console user by ID.
func (r *ConsoleUsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ConsoleUser, error) {
	query := `SELECT ` + consoleUserColumns + ` FROM console_users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Update updates a console user.
func (r *ConsoleUsersRepository) Update(ctx context.Context, user *domain.ConsoleUser) error {
	query := `
		UPDATE console_users
		SET workmail = $2, first_name = $3, last_name = $4, role = $5,
		    password_hash = $6, otp_enabled = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Workmail, user.FirstName, user.LastName, user.Role,
		user.PasswordHash, user.OTPEnabled, user.UpdatedAt,
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

// IsWorkmailTaken checks whether the workmail belongs to an account other
// than excludeID.
func (r *ConsoleUsersRepository) IsWorkmailTaken(ctx context.Context, workmail string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM console_users WHERE workmail = $1 AND id <> $2)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, workmail, excludeID).Scan(&exists)
	return exists, err
}

func (r *ConsoleUsersRepository) scanOne(row *sql.Row) (*domain.ConsoleUser, error) {
	user := &domain.ConsoleUser{}
	err := row.Scan(
		&user.ID, &user.AppID, &user.Workmail, &user.FirstName, &user.LastName,
		&user.Role, &user.PasswordHash, &user.OTPEnabled,
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
