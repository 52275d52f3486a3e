// Package settings defines the domain types for business-level and
// representative-level settings, including Do-Not-Disturb mode.
package settings

import (
	"slices"
	"time"
)

// DndState is the Do-Not-Disturb state of a business.
type DndState string

const (
	DndInactive DndState = "inactive"
	DndActive   DndState = "active"
)

// BusinessSettings holds the settings owned by a business. Only the business's
// parent representative (or a support actor) may change them.
type BusinessSettings struct {
	ID                      string     `json:"id"`
	BusinessID              string     `json:"business_id"`
	ReviewsPrivate          bool       `json:"reviews_private"`
	ReviewsPrivateEnabledAt *time.Time `json:"reviews_private_enabled_at,omitempty"`
	PrivateReviewsReason    *string    `json:"private_reviews_reason,omitempty"`
	DndModeEnabled          bool       `json:"dnd_mode_enabled"`
	DndModeEnabledAt        *time.Time `json:"dnd_mode_enabled_at,omitempty"`
	DndModeExpiresAt        *time.Time `json:"dnd_mode_expires_at,omitempty"`
	DndModeReason           *string    `json:"dnd_mode_reason,omitempty"`
	DndExtensionCount       int        `json:"dnd_extension_count"`
	DndModeMessage          *string    `json:"dnd_mode_message,omitempty"`
	ModifiedByUserID        *string    `json:"modified_by_user_id,omitempty"`
	Version                 int        `json:"version"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// NewBusinessSettings returns the default record for a business: DnD inactive,
// reviews public.
func NewBusinessSettings(businessID string, now time.Time) BusinessSettings {
	return BusinessSettings{
		BusinessID: businessID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// DndState reports the current DnD state.
func (b *BusinessSettings) DndState() DndState {
	if b.DndModeEnabled {
		return DndActive
	}
	return DndInactive
}

// Clone returns a deep copy so callers can mutate it without aliasing the original.
func (b *BusinessSettings) Clone() *BusinessSettings {
	c := *b
	c.ReviewsPrivateEnabledAt = clonePtr(b.ReviewsPrivateEnabledAt)
	c.PrivateReviewsReason = clonePtr(b.PrivateReviewsReason)
	c.DndModeEnabledAt = clonePtr(b.DndModeEnabledAt)
	c.DndModeExpiresAt = clonePtr(b.DndModeExpiresAt)
	c.DndModeReason = clonePtr(b.DndModeReason)
	c.DndModeMessage = clonePtr(b.DndModeMessage)
	c.ModifiedByUserID = clonePtr(b.ModifiedByUserID)
	return &c
}

// NotificationPreferences selects the channels a representative is notified on.
type NotificationPreferences struct {
	Email    bool `json:"email"`
	WhatsApp bool `json:"whatsapp"`
	InApp    bool `json:"in_app"`
}

// AutoResponseTemplates holds the canned replies used per review sentiment.
type AutoResponseTemplates struct {
	Positive *string `json:"positive,omitempty"`
	Negative *string `json:"negative,omitempty"`
	Neutral  *string `json:"neutral,omitempty"`
}

// RepSettings holds the personal settings of one business representative.
type RepSettings struct {
	ID                      string                  `json:"id"`
	BusinessRepID           string                  `json:"business_rep_id"`
	NotificationPreferences NotificationPreferences `json:"notification_preferences"`
	DarkMode                bool                    `json:"dark_mode"`
	AutoResponseTemplates   AutoResponseTemplates   `json:"auto_response_templates"`
	DisabledAccessUsernames []string                `json:"disabled_access_usernames"`
	ModifiedByUserID        *string                 `json:"modified_by_user_id,omitempty"`
	Version                 int                     `json:"version"`
	CreatedAt               time.Time               `json:"created_at"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

// NewRepSettings returns the default record for a representative.
func NewRepSettings(repID string, now time.Time) RepSettings {
	return RepSettings{
		BusinessRepID:           repID,
		DisabledAccessUsernames: []string{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// Clone returns a deep copy.
func (r *RepSettings) Clone() *RepSettings {
	c := *r
	c.AutoResponseTemplates = AutoResponseTemplates{
		Positive: clonePtr(r.AutoResponseTemplates.Positive),
		Negative: clonePtr(r.AutoResponseTemplates.Negative),
		Neutral:  clonePtr(r.AutoResponseTemplates.Neutral),
	}
	c.DisabledAccessUsernames = slices.Clone(r.DisabledAccessUsernames)
	if c.DisabledAccessUsernames == nil {
		c.DisabledAccessUsernames = []string{}
	}
	c.ModifiedByUserID = clonePtr(r.ModifiedByUserID)
	return &c
}

// BusinessSettingsView is the projection returned to callers: the stored record
// plus derived DnD reporting fields.
type BusinessSettingsView struct {
	BusinessSettings
	DndState          DndState `json:"dnd_state"`
	RemainingDndHours *float64 `json:"remaining_dnd_hours,omitempty"`
}

// NewBusinessSettingsView builds the projection of b as seen at now.
func NewBusinessSettingsView(b *BusinessSettings, now time.Time) *BusinessSettingsView {
	v := &BusinessSettingsView{
		BusinessSettings: *b.Clone(),
		DndState:         b.DndState(),
	}
	if b.DndModeEnabled {
		h := RemainingHours(b, now)
		v.RemainingDndHours = &h
	}
	return v
}

// EffectiveSettings pairs a representative's settings with their business's
// settings. Business is nil when the representative has no business or the
// business has no settings row yet. It is composed on read and never stored.
type EffectiveSettings struct {
	Business *BusinessSettingsView `json:"business"`
	Rep      RepSettings           `json:"rep"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
