package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/settingsd/internal/domain"
	"github.com/Strob0t/settingsd/internal/domain/settings"
)

func scanRepSettings(row scannable) (settings.RepSettings, error) {
	var (
		r         settings.RepSettings
		prefsJSON []byte
		tmplJSON  []byte
	)
	err := row.Scan(
		&r.ID, &r.BusinessRepID, &prefsJSON, &r.DarkMode, &tmplJSON, &r.DisabledAccessUsernames,
		&r.ModifiedByUserID, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(prefsJSON, &r.NotificationPreferences); err != nil {
		return r, fmt.Errorf("unmarshal notification preferences: %w", err)
	}
	if err := json.Unmarshal(tmplJSON, &r.AutoResponseTemplates); err != nil {
		return r, fmt.Errorf("unmarshal auto response templates: %w", err)
	}
	r.DisabledAccessUsernames = pgTextArray(r.DisabledAccessUsernames)
	return r, nil
}

// GetRepSettings returns the settings row of a representative.
func (s *Store) GetRepSettings(ctx context.Context, repID string) (*settings.RepSettings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, business_rep_id, notification_preferences, dark_mode, auto_response_templates,
		        disabled_access_usernames, modified_by_user_id, version, created_at, updated_at
		 FROM rep_settings WHERE business_rep_id = $1`, repID)
	r, err := scanRepSettings(row)
	if err != nil {
		return nil, notFoundWrap(err, "get rep settings %s", repID)
	}
	return &r, nil
}

// CreateRepSettings inserts the default row for a representative, returning
// the existing row when one is already present.
func (s *Store) CreateRepSettings(ctx context.Context, repID string, now time.Time) (*settings.RepSettings, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rep_settings (id, business_rep_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (business_rep_id) DO NOTHING`,
		uuid.NewString(), repID, now)
	if err != nil {
		return nil, fmt.Errorf("create rep settings %s: %w", repID, err)
	}
	return s.GetRepSettings(ctx, repID)
}

// UpdateRepSettings writes r if its version is current and bumps r.Version.
func (s *Store) UpdateRepSettings(ctx context.Context, r *settings.RepSettings) error {
	prefsJSON, err := json.Marshal(r.NotificationPreferences)
	if err != nil {
		return fmt.Errorf("marshal notification preferences: %w", err)
	}
	tmplJSON, err := json.Marshal(r.AutoResponseTemplates)
	if err != nil {
		return fmt.Errorf("marshal auto response templates: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE rep_settings SET
			notification_preferences = $2, dark_mode = $3, auto_response_templates = $4,
			disabled_access_usernames = $5, modified_by_user_id = $6, updated_at = $7,
			version = version + 1
		 WHERE business_rep_id = $1 AND version = $8`,
		r.BusinessRepID, prefsJSON, r.DarkMode, tmplJSON,
		pgTextArray(r.DisabledAccessUsernames), r.ModifiedByUserID, r.UpdatedAt, r.Version)
	if err != nil {
		return fmt.Errorf("update rep settings %s: %w", r.BusinessRepID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update rep settings %s: %w", r.BusinessRepID, domain.ErrConflict)
	}
	r.Version++
	return nil
}
