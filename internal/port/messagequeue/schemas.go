package messagequeue

import "time"

// BusinessUpdatedPayload is the schema for settings.business.updated messages.
type BusinessUpdatedPayload struct {
	BusinessID     string    `json:"business_id"`
	ReviewsPrivate bool      `json:"reviews_private"`
	DndModeEnabled bool      `json:"dnd_mode_enabled"`
	ModifiedBy     string    `json:"modified_by"`
	Version        int       `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DndPayload is the schema for settings.dnd.* messages. ActorID is empty for
// automatic expiry.
type DndPayload struct {
	BusinessID     string     `json:"business_id"`
	ActorID        string     `json:"actor_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ExtensionCount int        `json:"extension_count"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// RepUpdatedPayload is the schema for settings.rep.updated messages.
type RepUpdatedPayload struct {
	BusinessRepID string    `json:"business_rep_id"`
	Version       int       `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}
