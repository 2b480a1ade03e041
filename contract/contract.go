//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"presence-hub/domain/event"
	"presence-hub/domain/presence"
)

// Worker doesn't protect itself; supervision lives in the supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding a naming method on the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's inbox. Consume must never block the
// caller beyond the delivery timeout carried by ctx.
type EventSink interface {
	Consume(ctx context.Context, m event.Message) error
}

// IRegistry is the hub's only shared mutable state: the mapping between
// logical user identity and live transport sessions, with a reverse
// transport index and role membership.
type IRegistry interface {
	Register(e presence.Entry, sink EventSink, roles []presence.Role) (presence.Entry, bool)
	Lookup(userID string) (presence.Entry, EventSink, bool)
	LookupByTransport(transportID string) (presence.Entry, bool)
	Remove(transportID string) (presence.Entry, bool)
	RolesFor(transportID string) []presence.Role
	Sinks(exceptUserID string) []EventSink
	SinksForRole(role presence.Role) []EventSink
	Snapshot() []presence.Entry
}

// Publisher is the live-delivery side of the hub. All methods are
// fire-and-forget: no acknowledgement, no retry, no queueing for
// offline targets.
type Publisher interface {
	BroadcastAll(ctx context.Context, m event.Message)
	BroadcastExcept(ctx context.Context, userID string, m event.Message)
	DeliverToUser(ctx context.Context, userID string, m event.Message)
	DeliverToRole(ctx context.Context, role presence.Role, m event.Message)
}

type SessionRepository interface {
	Create(ctx context.Context, rec presence.SessionRecord) error
	FindActiveByTransport(ctx context.Context, transportID string) (presence.SessionRecord, bool, error)
	Update(ctx context.Context, rec presence.SessionRecord) error
	ActiveByUser(ctx context.Context, userID string) ([]presence.SessionRecord, error)
	Active(ctx context.Context) ([]presence.SessionRecord, error)
}

type ActivityRepository interface {
	Append(ctx context.Context, rec event.ActivityRecord) error
	Recent(ctx context.Context, userID string, cursor *string) ([]event.ActivityRecord, *string, error)
}

type StatsRepository interface {
	Apply(ctx context.Context, userID string, delta presence.StatsDelta) (presence.UserStats, error)
	Get(ctx context.Context, userID string) (presence.UserStats, bool, error)
}

// ActivityIndex is the searchable projection of the activity log used by
// operator consoles. Indexing is best-effort like every other durability
// path: a failure is logged, never propagated to delivery.
type ActivityIndex interface {
	Index(rec event.ActivityRecord) error
	Search(ctx context.Context, query string, limit int) ([]event.ActivityRecord, error)
}
