package hub

import (
	"context"
	"testing"
	"time"

	"presence-hub/domain/event"
	"presence-hub/domain/presence"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, m event.Message) error {
	return nil
}

func entryFor(userID string) presence.Entry {
	return presence.Entry{
		UserID:      userID,
		TransportID: uuid.NewString(),
		ConnectedAt: time.Now().UTC(),
		Status:      presence.StatusOnline,
	}
}

func TestRegistry_Register_One_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	entry := entryFor("alice")
	sink := Sink{name: "alice"}

	// Given no user is connected
	req.Empty(registry.Snapshot())

	// When a user registers
	prev, displaced := registry.Register(entry, sink, nil)

	// Then nothing was displaced
	req.False(displaced)
	req.Empty(prev.UserID)

	// And the entry resolves both ways
	got, gotSink, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(entry, got)
	req.Equal(sink, gotSink)

	byTransport, ok := registry.LookupByTransport(entry.TransportID)
	req.True(ok)
	req.Equal(entry, byTransport)
}

func TestRegistry_Register_Twice_Displaces_Old_Transport(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := entryFor("alice")
	second := entryFor("alice")

	// Given alice is already online on a first transport
	registry.Register(first, Sink{name: "first"}, nil)

	// When alice registers again from a second transport
	prev, displaced := registry.Register(second, Sink{name: "second"}, nil)

	// Then the first entry is returned as displaced
	req.True(displaced)
	req.Equal(first.TransportID, prev.TransportID)

	// And only the newest transport resolves
	_, ok := registry.LookupByTransport(first.TransportID)
	req.False(ok)
	got, ok := registry.LookupByTransport(second.TransportID)
	req.True(ok)
	req.Equal(second, got)
	req.Len(registry.Snapshot(), 1)
}

func TestRegistry_Remove_Is_Keyed_By_Transport(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	old := entryFor("alice")
	fresh := entryFor("alice")

	// Given alice reconnected, displacing her old transport
	registry.Register(old, Sink{}, nil)
	registry.Register(fresh, Sink{}, nil)

	// When the stale disconnect for the old transport arrives late
	_, removed := registry.Remove(old.TransportID)

	// Then it cannot drop the newer entry
	req.False(removed)
	_, _, ok := registry.Lookup("alice")
	req.True(ok)

	// And removing the live transport works and reports the user offline
	entry, removed := registry.Remove(fresh.TransportID)
	req.True(removed)
	req.Equal(presence.StatusOffline, entry.Status)
	req.Empty(registry.Snapshot())
}

func TestRegistry_Role_Membership(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	operator := entryFor("ops")
	member := entryFor("bob")

	// Given an operator and a plain user
	registry.Register(operator, Sink{name: "ops"}, []presence.Role{presence.RoleOperators})
	registry.Register(member, Sink{name: "bob"}, nil)

	// Then only the operator is in the role set
	req.Len(registry.SinksForRole(presence.RoleOperators), 1)
	req.Equal([]presence.Role{presence.RoleOperators}, registry.RolesFor(operator.TransportID))
	req.Empty(registry.RolesFor(member.TransportID))

	// When the operator leaves
	registry.Remove(operator.TransportID)

	// Then the role set is empty again
	req.Empty(registry.SinksForRole(presence.RoleOperators))
}

func TestRegistry_Sinks_Excludes_Requested_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register(entryFor("alice"), Sink{name: "alice"}, nil)
	registry.Register(entryFor("bob"), Sink{name: "bob"}, nil)
	registry.Register(entryFor("clara"), Sink{name: "clara"}, nil)

	req.Len(registry.Sinks(""), 3)

	sinks := registry.Sinks("bob")
	req.Len(sinks, 2)
	req.NotContains(sinks, Sink{name: "bob"})
}
