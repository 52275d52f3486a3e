package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	var key func() string
	switch {
	case subject == SubjectBusinessUpdated:
		p := &BusinessUpdatedPayload{}
		target, key = p, func() string { return p.BusinessID }
	case subject == SubjectRepUpdated:
		p := &RepUpdatedPayload{}
		target, key = p, func() string { return p.BusinessRepID }
	case strings.HasPrefix(subject, "settings.dnd."):
		p := &DndPayload{}
		target, key = p, func() string { return p.BusinessID }
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if key() == "" {
		return fmt.Errorf("schema validation failed for %s: missing subject key", subject)
	}
	return nil
}
