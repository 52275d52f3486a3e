package settings

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/settingsd/internal/domain"
)

const (
	maxReasonLen    = 500
	maxMessageLen   = 1000
	maxTemplateLen  = 2000
	maxUsernameLen  = 64
	maxUsernameList = 100
)

// UpdateBusinessRequest is a partial update of BusinessSettings. Absent fields
// are left untouched.
type UpdateBusinessRequest struct {
	ReviewsPrivate       Optional[bool]    `json:"reviews_private,omitzero"`
	PrivateReviewsReason Optional[*string] `json:"private_reviews_reason,omitzero"`
	DndModeEnabled       Optional[bool]    `json:"dnd_mode_enabled,omitzero"`
	DndModeDurationHours Optional[int]     `json:"dnd_mode_duration_hours,omitzero"`
	DndModeReason        Optional[*string] `json:"dnd_mode_reason,omitzero"`
	DndModeMessage       Optional[*string] `json:"dnd_mode_message,omitzero"`
}

// DndTransition names the DnD state change caused by an update.
type DndTransition string

const (
	DndUnchanged DndTransition = ""
	DndEnabled   DndTransition = "enabled"
	DndDisabled  DndTransition = "disabled"
)

// Validate checks the request shape independently of the stored record.
func (r *UpdateBusinessRequest) Validate() error {
	if r.ReviewsPrivate.IsNull() {
		return invalid("reviews_private must not be null")
	}
	if r.DndModeEnabled.IsNull() {
		return invalid("dnd_mode_enabled must not be null")
	}
	if r.DndModeDurationHours.IsNull() {
		return invalid("dnd_mode_duration_hours must not be null")
	}
	enable, enableSet := r.DndModeEnabled.Value()
	if r.DndModeDurationHours.IsSet() && (!enableSet || !enable) {
		return invalid("dnd_mode_duration_hours requires dnd_mode_enabled=true")
	}
	if enableSet && enable && !r.DndModeDurationHours.IsSet() {
		return invalid("dnd_mode_duration_hours is required when enabling dnd mode")
	}
	if err := checkText("private_reviews_reason", r.PrivateReviewsReason, maxReasonLen); err != nil {
		return err
	}
	if err := checkText("dnd_mode_reason", r.DndModeReason, maxReasonLen); err != nil {
		return err
	}
	return checkText("dnd_mode_message", r.DndModeMessage, maxMessageLen)
}

// ApplyBusinessUpdate applies the present fields of req to b at now and routes
// DnD changes through engine. On error b may be partially modified, so callers
// apply to a clone.
func ApplyBusinessUpdate(b *BusinessSettings, req *UpdateBusinessRequest, engine DndEngine, now time.Time) (DndTransition, error) {
	if err := req.Validate(); err != nil {
		return DndUnchanged, err
	}

	if private, ok := req.ReviewsPrivate.Value(); ok {
		switch {
		case private && !b.ReviewsPrivate:
			at := now
			b.ReviewsPrivateEnabledAt = &at
		case !private:
			b.ReviewsPrivateEnabledAt = nil
			b.PrivateReviewsReason = nil
		}
		b.ReviewsPrivate = private
	}
	if reason, ok := req.PrivateReviewsReason.Value(); ok {
		if reason != nil && !b.ReviewsPrivate {
			return DndUnchanged, invalid("private_reviews_reason requires reviews_private=true")
		}
		b.PrivateReviewsReason = reason
	}

	transition := DndUnchanged
	if enable, ok := req.DndModeEnabled.Value(); ok {
		if enable {
			hours, _ := req.DndModeDurationHours.Value()
			if err := engine.Enable(b, hours, now); err != nil {
				return DndUnchanged, err
			}
			transition = DndEnabled
		} else {
			if b.DndModeEnabled {
				transition = DndDisabled
			}
			engine.Disable(b)
		}
	}

	if reason, ok := req.DndModeReason.Value(); ok {
		if reason != nil && !b.DndModeEnabled {
			return DndUnchanged, invalid("dnd_mode_reason requires active dnd mode")
		}
		b.DndModeReason = reason
	}
	if msg, ok := req.DndModeMessage.Value(); ok {
		if msg != nil && !b.DndModeEnabled {
			return DndUnchanged, invalid("dnd_mode_message requires active dnd mode")
		}
		b.DndModeMessage = msg
	}

	return transition, nil
}

// NotificationPreferencesUpdate is a partial update of NotificationPreferences.
type NotificationPreferencesUpdate struct {
	Email    Optional[bool] `json:"email,omitzero"`
	WhatsApp Optional[bool] `json:"whatsapp,omitzero"`
	InApp    Optional[bool] `json:"in_app,omitzero"`
}

// AutoResponseTemplatesUpdate is a partial update of AutoResponseTemplates.
// A null template clears it.
type AutoResponseTemplatesUpdate struct {
	Positive Optional[*string] `json:"positive,omitzero"`
	Negative Optional[*string] `json:"negative,omitzero"`
	Neutral  Optional[*string] `json:"neutral,omitzero"`
}

// UpdateRepRequest is a partial update of RepSettings.
type UpdateRepRequest struct {
	NotificationPreferences Optional[NotificationPreferencesUpdate] `json:"notification_preferences,omitzero"`
	DarkMode                Optional[bool]                          `json:"dark_mode,omitzero"`
	AutoResponseTemplates   Optional[AutoResponseTemplatesUpdate]   `json:"auto_response_templates,omitzero"`
	DisabledAccessUsernames Optional[[]string]                      `json:"disabled_access_usernames,omitzero"`
}

// Validate checks the request shape.
func (r *UpdateRepRequest) Validate() error {
	if r.NotificationPreferences.IsNull() {
		return invalid("notification_preferences must not be null")
	}
	if np, ok := r.NotificationPreferences.Value(); ok {
		if np.Email.IsNull() || np.WhatsApp.IsNull() || np.InApp.IsNull() {
			return invalid("notification preference flags must not be null")
		}
	}
	if r.DarkMode.IsNull() {
		return invalid("dark_mode must not be null")
	}
	if r.AutoResponseTemplates.IsNull() {
		return invalid("auto_response_templates must not be null")
	}
	if t, ok := r.AutoResponseTemplates.Value(); ok {
		for name, f := range map[string]Optional[*string]{
			"auto_response_templates.positive": t.Positive,
			"auto_response_templates.negative": t.Negative,
			"auto_response_templates.neutral":  t.Neutral,
		} {
			if err := checkText(name, f, maxTemplateLen); err != nil {
				return err
			}
		}
	}
	if r.DisabledAccessUsernames.IsNull() {
		return invalid("disabled_access_usernames must not be null (send [] to clear)")
	}
	if names, ok := r.DisabledAccessUsernames.Value(); ok {
		if len(names) > maxUsernameList {
			return invalid(fmt.Sprintf("disabled_access_usernames exceeds %d entries", maxUsernameList))
		}
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				return invalid("disabled_access_usernames must not contain empty entries")
			}
			if utf8.RuneCountInString(n) > maxUsernameLen {
				return invalid(fmt.Sprintf("username %q exceeds %d characters", n, maxUsernameLen))
			}
		}
	}
	return nil
}

// ApplyRepUpdate applies the present fields of req to r.
func ApplyRepUpdate(r *RepSettings, req *UpdateRepRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if np, ok := req.NotificationPreferences.Value(); ok {
		if v, set := np.Email.Value(); set {
			r.NotificationPreferences.Email = v
		}
		if v, set := np.WhatsApp.Value(); set {
			r.NotificationPreferences.WhatsApp = v
		}
		if v, set := np.InApp.Value(); set {
			r.NotificationPreferences.InApp = v
		}
	}
	if v, ok := req.DarkMode.Value(); ok {
		r.DarkMode = v
	}
	if t, ok := req.AutoResponseTemplates.Value(); ok {
		if v, set := t.Positive.Value(); set {
			r.AutoResponseTemplates.Positive = v
		}
		if v, set := t.Negative.Value(); set {
			r.AutoResponseTemplates.Negative = v
		}
		if v, set := t.Neutral.Value(); set {
			r.AutoResponseTemplates.Neutral = v
		}
	}
	if names, ok := req.DisabledAccessUsernames.Value(); ok {
		r.DisabledAccessUsernames = normalizeUsernames(names)
	}
	return nil
}

// normalizeUsernames trims entries and drops duplicates, keeping first occurrence order.
func normalizeUsernames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func checkText(field string, o Optional[*string], limit int) error {
	v, ok := o.Value()
	if !ok || v == nil {
		return nil
	}
	if utf8.RuneCountInString(*v) > limit {
		return invalid(fmt.Sprintf("%s exceeds %d characters", field, limit))
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, domain.ErrInvalidArgument)
}
