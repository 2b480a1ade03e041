package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"presence-hub/contract"
	"presence-hub/domain/event"
	"presence-hub/domain/presence"
	"presence-hub/observability"

	"github.com/google/uuid"
)

// ActivityService validates inbound events, persists them, applies the
// associated user-aggregate update, and republishes them live.
//
// The persistence path and the delivery path are structurally decoupled:
// every durable write outcome is only logged and counted, so a slow or
// failing store cannot backpressure live delivery. A dashboard may observe
// a live event that was not durably logged; that is the accepted trade.
type ActivityService struct {
	log        *slog.Logger
	activities contract.ActivityRepository
	stats      contract.StatsRepository
	index      contract.ActivityIndex
	publisher  contract.Publisher
	monitor    *observability.Monitor
}

func NewActivityService(log *slog.Logger, activities contract.ActivityRepository,
	stats contract.StatsRepository, index contract.ActivityIndex,
	publisher contract.Publisher, monitor *observability.Monitor) *ActivityService {
	return &ActivityService{
		log:        log,
		activities: activities,
		stats:      stats,
		index:      index,
		publisher:  publisher,
		monitor:    monitor,
	}
}

// Submit runs the pipeline for one inbound event. An unknown kind or an
// invalid payload is rejected before anything is persisted or delivered.
// A known event is always republished, regardless of the durability
// outcome.
func (s *ActivityService) Submit(ctx context.Context, userID string, kind event.Kind,
	raw json.RawMessage, meta presence.ClientMeta) error {
	payload, err := event.Decode(kind, raw)
	if err != nil {
		s.monitor.IncrEventRejected()
		return err
	}

	occurredAt := time.Now().UTC()
	rec := event.ActivityRecord{
		ID:         uuid.New(),
		UserID:     userID,
		Kind:       kind,
		OccurredAt: occurredAt,
		Meta:       meta,
	}
	if data, err := json.Marshal(payload); err == nil {
		rec.Payload = data
	}

	s.persist(ctx, rec, userID, payload)
	s.monitor.IncrEventAccepted()

	s.publisher.BroadcastAll(ctx, event.NewMessage(event.TypeActivityLog,
		event.ActivityLog{UserID: userID, Kind: kind, Data: payload}))
	s.republish(ctx, userID, payload)
	return nil
}

// persist writes the activity record, the aggregate counters, and the
// search index entry. The three writes are independent; there is no
// cross-record atomicity guarantee.
func (s *ActivityService) persist(ctx context.Context, rec event.ActivityRecord,
	userID string, payload event.Payload) {
	if err := s.activities.Append(ctx, rec); err != nil {
		s.monitor.IncrPersistFailure()
		s.log.Error("activity write failed, delivery continues",
			"user_id", userID, "kind", rec.Kind, "error", err)
	}

	if delta := statsDelta(payload); !delta.IsZero() {
		if _, err := s.stats.Apply(ctx, userID, delta); err != nil {
			s.monitor.IncrPersistFailure()
			s.log.Error("stats update failed, delivery continues",
				"user_id", userID, "kind", rec.Kind, "error", err)
		}
	}

	if s.index != nil {
		if err := s.index.Index(rec); err != nil {
			s.log.Warn("activity indexing failed", "user_id", userID, "error", err)
		}
	}
}

// republish emits the scoped messages defined for the event kind, on top
// of the broadcast-all activity_log already sent by Submit.
func (s *ActivityService) republish(ctx context.Context, userID string, payload event.Payload) {
	switch p := payload.(type) {
	case *event.AdViewed:
		s.statsChanged(ctx, event.KindAdViewed)
	case *event.TaskCompleted:
		s.publisher.DeliverToUser(ctx, userID, event.NewMessage(event.TypeBalanceUpdate,
			event.BalanceUpdate{Kind: event.KindTaskCompleted, Amount: p.Reward, NewBalance: p.NewBalance}))
		s.statsChanged(ctx, event.KindTaskCompleted)
	case *event.WithdrawalRequest:
		s.publisher.BroadcastAll(ctx, event.NewMessage(event.TypeAdminNotification,
			event.AdminNotification{
				Kind:    event.KindWithdrawalRequest,
				Message: fmt.Sprintf("user %s requested a withdrawal of %.2f via %s", userID, p.Amount, p.Method),
			}))
		s.statsChanged(ctx, event.KindWithdrawalRequest)
	case *event.SpinWheel:
		s.publisher.DeliverToUser(ctx, userID, event.NewMessage(event.TypeSpinResult,
			event.SpinResult{Result: p.Result, Reward: p.Reward}))
		s.statsChanged(ctx, event.KindSpinWheel)
	}
}

func (s *ActivityService) statsChanged(ctx context.Context, kind event.Kind) {
	s.publisher.DeliverToRole(ctx, presence.RoleOperators,
		event.NewMessage(event.TypeStatsChanged, event.StatsChanged{Kind: kind}))
}

func statsDelta(payload event.Payload) presence.StatsDelta {
	switch p := payload.(type) {
	case *event.AdViewed:
		return presence.StatsDelta{AdViews: 1}
	case *event.TaskCompleted:
		return presence.StatsDelta{TasksCompleted: 1, BalanceDelta: p.Reward, EarnedDelta: p.Reward}
	case *event.WithdrawalRequest:
		return presence.StatsDelta{Withdrawals: 1, BalanceDelta: -p.Amount}
	case *event.SpinWheel:
		delta := presence.StatsDelta{Spins: 1}
		if p.Reward != nil {
			delta.BalanceDelta = *p.Reward
			delta.EarnedDelta = *p.Reward
		}
		return delta
	default:
		return presence.StatsDelta{}
	}
}
