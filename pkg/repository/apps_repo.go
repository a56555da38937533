package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// AppsRepository handles tenant app persistence.
type AppsRepository struct {
	db *sql.DB
}

// NewAppsRepository creates a new apps repository.
func NewAppsRepository(db *sql.DB) *AppsRepository {
	return &AppsRepository{db: db}
}

const appColumns = `
	id, name, slug, portal_url, console_url, portal_otp_required,
	blocked_workmail_domains, created_at, updated_at
`

// Create creates a new app.
func (r *AppsRepository) Create(ctx context.Context, app *domain.App) error {
	query := `
		INSERT INTO apps (id, name, slug, portal_url, console_url, portal_otp_required,
			blocked_workmail_domains, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		app.ID, app.Name, app.Slug, app.PortalURL, app.ConsoleURL, app.PortalOTPRequired,
		pq.Array(app.BlockedWorkmailDomains), app.CreatedAt, app.UpdatedAt,
	)
	return err
}

// FindBySlug retrieves an app by slug.
func (r *AppsRepository) FindBySlug(ctx context.Context, slug string) (*domain.App, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE slug = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, slug))
}

// FindByID retrieves an app by ID.
func (r *AppsRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.App, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Update updates an app.
func (r *AppsRepository) Update(ctx context.Context, app *domain.App) error {
	query := `
		UPDATE apps
		SET name = $2, slug = $3, portal_url = $4, console_url = $5,
		    portal_otp_required = $6, blocked_workmail_domains = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		app.ID, app.Name, app.Slug, app.PortalURL, app.ConsoleURL,
		app.PortalOTPRequired, pq.Array(app.BlockedWorkmailDomains), app.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAppNotFound
	}
	return nil
}

func (r *AppsRepository) scanOne(row *sql.Row) (*domain.App, error) {
	app := &domain.App{}
	err := row.Scan(
		&app.ID, &app.Name, &app.Slug, &app.PortalURL, &app.ConsoleURL,
		&app.PortalOTPRequired, pq.Array(&app.BlockedWorkmailDomains),
		&app.CreatedAt, &app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}
