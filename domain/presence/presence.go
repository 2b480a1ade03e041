package presence

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Role is a named group of connections receiving role-targeted messages.
// Membership is claimed in the auth token, not negotiated in-band.
type Role string

const RoleOperators Role = "operators"

type ClientMeta struct {
	IP    string `json:"ip"`
	Agent string `json:"agent"`
}

// Entry binds a logical user to exactly one live transport. Entries are
// process-local and best-effort: they are lost on restart by design.
type Entry struct {
	UserID      string
	TransportID string
	ConnectedAt time.Time
	Status      Status
}

// SessionRecord is the durable trace of one connected period.
// EndedAt and DurationMs are set together when the session closes;
// DurationMs is always EndedAt minus StartedAt.
type SessionRecord struct {
	UserID      string     `json:"user_id"`
	TransportID string     `json:"transport_id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationMs  *int64     `json:"duration_ms,omitempty"`
	IsActive    bool       `json:"is_active"`
	Meta        ClientMeta `json:"client_meta"`
}

// UserStats aggregates per-user counters updated as activity events arrive.
// Updates are independent of the activity log write: there is no atomicity
// guarantee between the two records.
type UserStats struct {
	UserID         string    `json:"user_id"`
	AdViews        uint64    `json:"ad_views"`
	TasksCompleted uint64    `json:"tasks_completed"`
	Spins          uint64    `json:"spins"`
	Withdrawals    uint64    `json:"withdrawals"`
	Balance        float64   `json:"balance"`
	TotalEarned    float64   `json:"total_earned"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatsDelta is a single read-modify-write increment against UserStats.
type StatsDelta struct {
	AdViews        uint64
	TasksCompleted uint64
	Spins          uint64
	Withdrawals    uint64
	BalanceDelta   float64
	EarnedDelta    float64
}

func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}
