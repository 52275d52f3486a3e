package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory implements directory.Directory over the representative and
// support tables.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a Directory backed by the given pool.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// ParentRepresentative returns the earliest registered representative of the business.
func (d *Directory) ParentRepresentative(ctx context.Context, businessID string) (string, bool, error) {
	var repID string
	err := d.pool.QueryRow(ctx,
		`SELECT id FROM business_representatives
		 WHERE business_id = $1
		 ORDER BY created_at, id
		 LIMIT 1`, businessID).Scan(&repID)
	found, err := lookupOptional(err, "parent representative of %s", businessID)
	return repID, found, err
}

// IsSupportActor reports whether userID is in the support table.
func (d *Directory) IsSupportActor(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM support_users WHERE user_id = $1)`, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("support role of %s: %w", userID, err)
	}
	return ok, nil
}

// BusinessForRep returns the business a representative belongs to.
func (d *Directory) BusinessForRep(ctx context.Context, repID string) (string, bool, error) {
	var businessID string
	err := d.pool.QueryRow(ctx,
		`SELECT business_id FROM business_representatives WHERE id = $1`, repID).Scan(&businessID)
	found, err := lookupOptional(err, "business of representative %s", repID)
	return businessID, found, err
}

// RegisterRepresentative records a representative of a business. Registering
// an existing id is a no-op, so the parent never changes.
func (d *Directory) RegisterRepresentative(ctx context.Context, repID, businessID string, createdAt time.Time) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO business_representatives (id, business_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`, repID, businessID, createdAt)
	if err != nil {
		return fmt.Errorf("register representative %s: %w", repID, err)
	}
	return nil
}

// GrantSupport gives userID the support role.
func (d *Directory) GrantSupport(ctx context.Context, userID string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO support_users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("grant support %s: %w", userID, err)
	}
	return nil
}
