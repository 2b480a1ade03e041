package hub

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"presence-hub/domain/event"
	"presence-hub/domain/presence"
	"presence-hub/errors"
	"presence-hub/observability"

	"github.com/stretchr/testify/require"
)

type recorderSink struct {
	mu       sync.Mutex
	messages []event.Message
	fail     error
}

func (s *recorderSink) Consume(ctx context.Context, m event.Message) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *recorderSink) received() []event.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

func newTestBroadcaster(registry *Registry, monitor *observability.Monitor) *Broadcaster {
	return NewBroadcaster(slog.Default(), registry, monitor, 100*time.Millisecond)
}

func TestBroadcaster_AnnounceOnline_Skips_Self(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	monitor := observability.NewMonitor()
	broadcaster := newTestBroadcaster(registry, monitor)

	alice := &recorderSink{}
	bob := &recorderSink{}
	registry.Register(entryFor("alice"), alice, nil)
	registry.Register(entryFor("bob"), bob, nil)

	// When alice's online transition is announced
	broadcaster.AnnounceOnline(context.Background(), "alice")

	// Then bob sees it and alice does not
	req.Empty(alice.received())
	req.Len(bob.received(), 1)

	m := bob.received()[0]
	req.Equal(event.TypeUserStatusChange, m.Type)
	change := m.Data.(event.StatusChange)
	req.Equal("alice", change.UserID)
	req.Equal(presence.StatusOnline, change.Status)
}

func TestBroadcaster_DeliverToUser_Offline_Is_Silent_Drop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	monitor := observability.NewMonitor()
	broadcaster := newTestBroadcaster(registry, monitor)

	bob := &recorderSink{}
	registry.Register(entryFor("bob"), bob, nil)

	// When a message is addressed to a user who is not online
	broadcaster.DeliverToUser(context.Background(),
		"ghost", event.NewMessage(event.TypeBalanceUpdate, nil))

	// Then nobody receives it and the miss is counted
	req.Empty(bob.received())
	req.Equal(uint64(1), monitor.Snapshot().DeliveryMisses)
	req.Zero(monitor.Snapshot().Delivered)
}

func TestBroadcaster_DeliverToRole_Only_Reaches_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	monitor := observability.NewMonitor()
	broadcaster := newTestBroadcaster(registry, monitor)

	operator := &recorderSink{}
	member := &recorderSink{}
	registry.Register(entryFor("ops"), operator, []presence.Role{presence.RoleOperators})
	registry.Register(entryFor("bob"), member, nil)

	broadcaster.DeliverToRole(context.Background(), presence.RoleOperators,
		event.NewMessage(event.TypeStatsChanged, event.StatsChanged{Kind: event.KindAdViewed}))

	req.Len(operator.received(), 1)
	req.Empty(member.received())
}

func TestBroadcaster_Slow_Sink_Is_Counted_And_Skipped(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	monitor := observability.NewMonitor()
	broadcaster := newTestBroadcaster(registry, monitor)

	// Given one healthy sink and one refusing every message
	healthy := &recorderSink{}
	slow := &recorderSink{fail: errors.ErrSlowConsumer}
	registry.Register(entryFor("alice"), healthy, nil)
	registry.Register(entryFor("bob"), slow, nil)

	// When a message is broadcast to everyone
	broadcaster.BroadcastAll(context.Background(), event.NewMessage(event.TypeSystemMessage, nil))

	// Then the healthy sink got it, the refusal was counted, nothing blocked
	req.Len(healthy.received(), 1)
	stats := monitor.Snapshot()
	req.Equal(uint64(1), stats.Delivered)
	req.Equal(uint64(1), stats.Dropped)
}
