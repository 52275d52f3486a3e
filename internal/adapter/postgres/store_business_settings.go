package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/settingsd/internal/domain"
	"github.com/Strob0t/settingsd/internal/domain/settings"
)

const businessSettingsColumns = `id, business_id, reviews_private, reviews_private_enabled_at, private_reviews_reason,
	dnd_mode_enabled, dnd_mode_enabled_at, dnd_mode_expires_at, dnd_mode_reason, dnd_extension_count,
	dnd_mode_message, modified_by_user_id, version, created_at, updated_at`

func scanBusinessSettings(row scannable) (settings.BusinessSettings, error) {
	var b settings.BusinessSettings
	err := row.Scan(
		&b.ID, &b.BusinessID, &b.ReviewsPrivate, &b.ReviewsPrivateEnabledAt, &b.PrivateReviewsReason,
		&b.DndModeEnabled, &b.DndModeEnabledAt, &b.DndModeExpiresAt, &b.DndModeReason, &b.DndExtensionCount,
		&b.DndModeMessage, &b.ModifiedByUserID, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// GetBusinessSettings returns the settings row of a business.
func (s *Store) GetBusinessSettings(ctx context.Context, businessID string) (*settings.BusinessSettings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+businessSettingsColumns+` FROM business_settings WHERE business_id = $1`, businessID)
	b, err := scanBusinessSettings(row)
	if err != nil {
		return nil, notFoundWrap(err, "get business settings %s", businessID)
	}
	return &b, nil
}

// CreateBusinessSettings inserts the default row for a business. When a
// concurrent caller inserted it first, the existing row is returned.
func (s *Store) CreateBusinessSettings(ctx context.Context, businessID string, now time.Time) (*settings.BusinessSettings, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO business_settings (id, business_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (business_id) DO NOTHING`,
		uuid.NewString(), businessID, now)
	if err != nil {
		return nil, fmt.Errorf("create business settings %s: %w", businessID, err)
	}
	return s.GetBusinessSettings(ctx, businessID)
}

// UpdateBusinessSettings writes b if its version is current and bumps b.Version.
func (s *Store) UpdateBusinessSettings(ctx context.Context, b *settings.BusinessSettings) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE business_settings SET
			reviews_private = $2, reviews_private_enabled_at = $3, private_reviews_reason = $4,
			dnd_mode_enabled = $5, dnd_mode_enabled_at = $6, dnd_mode_expires_at = $7,
			dnd_mode_reason = $8, dnd_extension_count = $9, dnd_mode_message = $10,
			modified_by_user_id = $11, updated_at = $12, version = version + 1
		 WHERE business_id = $1 AND version = $13`,
		b.BusinessID, b.ReviewsPrivate, b.ReviewsPrivateEnabledAt, b.PrivateReviewsReason,
		b.DndModeEnabled, b.DndModeEnabledAt, b.DndModeExpiresAt,
		b.DndModeReason, b.DndExtensionCount, b.DndModeMessage,
		b.ModifiedByUserID, b.UpdatedAt, b.Version)
	if err != nil {
		return fmt.Errorf("update business settings %s: %w", b.BusinessID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update business settings %s: %w", b.BusinessID, domain.ErrConflict)
	}
	b.Version++
	return nil
}

// FindExpiredDndSettings returns active rows whose window ended at or before now.
func (s *Store) FindExpiredDndSettings(ctx context.Context, now time.Time) ([]settings.BusinessSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+businessSettingsColumns+` FROM business_settings
		 WHERE dnd_mode_enabled AND dnd_mode_expires_at <= $1
		 ORDER BY dnd_mode_expires_at`, now)
	if err != nil {
		return nil, fmt.Errorf("find expired dnd settings: %w", err)
	}
	defer rows.Close()

	var result []settings.BusinessSettings
	for rows.Next() {
		b, err := scanBusinessSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan business settings: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
