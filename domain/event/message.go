package event

import (
	"time"

	"presence-hub/domain/presence"
)

// Outbound message types, hub to clients.
const (
	TypeUserStatusChange  = "user_status_change"
	TypeActivityLog       = "activity_log"
	TypeStatsChanged      = "stats_changed"
	TypeBalanceUpdate     = "balance_update"
	TypeSpinResult        = "spin_result"
	TypeAdminNotification = "admin_notification"
	TypeSystemMessage     = "system_message"
	TypeError             = "error"
)

// Message is the ephemeral outbound envelope fanned out to connections.
// It is never persisted.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(msgType string, data any) Message {
	return Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()}
}

type StatusChange struct {
	UserID string          `json:"user_id"`
	Status presence.Status `json:"status"`
}

type ActivityLog struct {
	UserID string  `json:"user_id"`
	Kind   Kind    `json:"type"`
	Data   Payload `json:"data,omitempty"`
}

type StatsChanged struct {
	Kind Kind `json:"type"`
}

type BalanceUpdate struct {
	Kind       Kind     `json:"type"`
	Amount     float64  `json:"amount"`
	NewBalance *float64 `json:"new_balance,omitempty"`
}

type SpinResult struct {
	Result string   `json:"result"`
	Reward *float64 `json:"reward,omitempty"`
}

type AdminNotification struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`
}

type SystemMessage struct {
	Kind     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// ErrorNotice is reported only to the originating connection when its
// inbound event is rejected.
type ErrorNotice struct {
	Reason string `json:"reason"`
}
