package hub

import (
	"context"
	"log/slog"
	"time"

	"presence-hub/contract"
	"presence-hub/domain/event"
	"presence-hub/domain/presence"
	"presence-hub/observability"
)

// Broadcaster fans ephemeral messages out to live connections. It is pure
// in-memory delivery with no guarantees regarding ordering across
// connections, durability, or retries; a slow or failed sink is counted
// and skipped, never waited on.
type Broadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	monitor  *observability.Monitor
	timeout  time.Duration
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	monitor *observability.Monitor, timeout time.Duration) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, monitor: monitor, timeout: timeout}
}

func (b *Broadcaster) BroadcastAll(ctx context.Context, m event.Message) {
	b.send(ctx, b.registry.Sinks(""), m)
}

func (b *Broadcaster) BroadcastExcept(ctx context.Context, userID string, m event.Message) {
	b.send(ctx, b.registry.Sinks(userID), m)
}

// DeliverToUser resolves the user's current entry; an offline target is a
// silent drop, counted as a delivery miss. No queueing, no offline mailbox.
func (b *Broadcaster) DeliverToUser(ctx context.Context, userID string, m event.Message) {
	_, sink, ok := b.registry.Lookup(userID)
	if !ok {
		b.monitor.IncrDeliveryMiss()
		b.log.Debug("addressed message to offline user dropped",
			"user_id", userID, "type", m.Type)
		return
	}
	b.send(ctx, []contract.EventSink{sink}, m)
}

func (b *Broadcaster) DeliverToRole(ctx context.Context, role presence.Role, m event.Message) {
	b.send(ctx, b.registry.SinksForRole(role), m)
}

// AnnounceOnline broadcasts the online transition to everyone but the user
// who just connected.
func (b *Broadcaster) AnnounceOnline(ctx context.Context, userID string) {
	b.BroadcastExcept(ctx, userID, event.NewMessage(event.TypeUserStatusChange,
		event.StatusChange{UserID: userID, Status: presence.StatusOnline}))
}

func (b *Broadcaster) AnnounceOffline(ctx context.Context, userID string) {
	b.BroadcastExcept(ctx, userID, event.NewMessage(event.TypeUserStatusChange,
		event.StatusChange{UserID: userID, Status: presence.StatusOffline}))
}

func (b *Broadcaster) send(ctx context.Context, sinks []contract.EventSink, m event.Message) {
	if len(sinks) == 0 {
		return
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	for _, sink := range sinks {
		if err := sink.Consume(ctx, m); err != nil {
			b.monitor.IncrDropped()
			b.log.Warn("sink refused message", "type", m.Type, "error", err)
			continue
		}
		b.monitor.IncrDelivered()
	}
}
