package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
	"mosaic/internal/sqlinline"
)

// ProfileRepositoryPG implements domain.ProfileRepository backed by PostgreSQL.
type ProfileRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewProfileRepository creates a new ProfileRepositoryPG.
func NewProfileRepository(sql infra.SQLExecutor) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{sql: sql}
}

// Upsert inserts the profile keyed by auth user id or refreshes its contact fields.
func (r *ProfileRepositoryPG) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertProfile,
		profile.ID,
		strings.TrimSpace(profile.Email),
		strings.TrimSpace(profile.FullName),
		strings.TrimSpace(profile.Locale),
	)
	return scanProfile(row)
}

func (r *ProfileRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	return scanProfile(r.sql.QueryRow(ctx, sqlinline.QSelectProfileByID, id))
}

func (r *ProfileRepositoryPG) GetByCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	return scanProfile(r.sql.QueryRow(ctx, sqlinline.QSelectProfileByCustomerID, customerID))
}

func (r *ProfileRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return scanProfile(r.sql.QueryRow(ctx, sqlinline.QSelectProfileByEmail, strings.TrimSpace(email)))
}

// SetStripeCustomer links a Stripe customer to the profile.
func (r *ProfileRepositoryPG) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetProfileStripeCustomer, userID, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Locale, &p.StripeCustomerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
