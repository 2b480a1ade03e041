package event

import (
	"encoding/json"
	"time"

	"presence-hub/domain/presence"

	"github.com/google/uuid"
)

// ActivityRecord is the durable, append-only trace of one user action.
// Records are never mutated after creation.
type ActivityRecord struct {
	ID         uuid.UUID           `json:"id"`
	UserID     string              `json:"user_id"`
	Kind       Kind                `json:"kind"`
	Payload    json.RawMessage     `json:"payload,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
	Meta       presence.ClientMeta `json:"client_meta"`
}
