package hub

import (
	"sync"

	"presence-hub/contract"
	"presence-hub/domain/presence"
)

type transportSet map[string]struct{}

type connection struct {
	entry presence.Entry
	sink  contract.EventSink
	roles []presence.Role
}

// Registry owns the mapping between logical user identity and live
// transport sessions. It keeps three indexes updated atomically under one
// lock: the forward user map, a reverse transport index so disconnects
// resolve without a scan, and role membership keyed by transport.
//
// State is process-local and non-durable; presence is best-effort.
type Registry struct {
	mu          sync.RWMutex
	byUser      map[string]*connection
	byTransport map[string]string
	roleMembers map[presence.Role]transportSet
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:      make(map[string]*connection),
		byTransport: make(map[string]string),
		roleMembers: make(map[presence.Role]transportSet),
	}
}

// Register creates the entry for e.UserID, replacing any existing one
// (last write wins). The displaced entry, if any, is returned so the caller
// can close its session; its transport is fully unindexed and can no longer
// be resolved or addressed.
func (r *Registry) Register(e presence.Entry, sink contract.EventSink, roles []presence.Role) (presence.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev presence.Entry
	var displaced bool
	if old, ok := r.byUser[e.UserID]; ok {
		prev = old.entry
		displaced = true
		r.dropTransport(old.entry.TransportID, old.roles)
	}

	r.byUser[e.UserID] = &connection{entry: e, sink: sink, roles: roles}
	r.byTransport[e.TransportID] = e.UserID
	for _, role := range roles {
		if _, ok := r.roleMembers[role]; !ok {
			r.roleMembers[role] = make(transportSet)
		}
		r.roleMembers[role][e.TransportID] = struct{}{}
	}
	return prev, displaced
}

func (r *Registry) Lookup(userID string) (presence.Entry, contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return presence.Entry{}, nil, false
	}
	return conn.entry, conn.sink, true
}

// LookupByTransport resolves a connection through the reverse index.
func (r *Registry) LookupByTransport(transportID string) (presence.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byTransport[transportID]
	if !ok {
		return presence.Entry{}, false
	}
	conn, ok := r.byUser[userID]
	if !ok || conn.entry.TransportID != transportID {
		return presence.Entry{}, false
	}
	return conn.entry, true
}

// Remove drops the entry bound to transportID and returns it. Removal is
// keyed by transport, not user: a disconnect racing an in-flight re-login
// can only ever drop its own, already-displaced transport, never the newer
// entry.
func (r *Registry) Remove(transportID string) (presence.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byTransport[transportID]
	if !ok {
		return presence.Entry{}, false
	}
	conn := r.byUser[userID]
	if conn == nil || conn.entry.TransportID != transportID {
		delete(r.byTransport, transportID)
		return presence.Entry{}, false
	}

	r.dropTransport(transportID, conn.roles)
	delete(r.byUser, userID)

	entry := conn.entry
	entry.Status = presence.StatusOffline
	return entry, true
}

func (r *Registry) RolesFor(transportID string) []presence.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byTransport[transportID]
	if !ok {
		return nil
	}
	if conn, ok := r.byUser[userID]; ok {
		return conn.roles
	}
	return nil
}

// Sinks returns every live sink, skipping exceptUserID when non-empty.
func (r *Registry) Sinks(exceptUserID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.byUser))
	for userID, conn := range r.byUser {
		if exceptUserID != "" && userID == exceptUserID {
			continue
		}
		sinks = append(sinks, conn.sink)
	}
	return sinks
}

func (r *Registry) SinksForRole(role presence.Role) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roleMembers[role]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for transportID := range members {
		userID, ok := r.byTransport[transportID]
		if !ok {
			continue
		}
		if conn, ok := r.byUser[userID]; ok {
			sinks = append(sinks, conn.sink)
		}
	}
	return sinks
}

// Snapshot lists the current entries, for the operator console's
// who's-online view.
func (r *Registry) Snapshot() []presence.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]presence.Entry, 0, len(r.byUser))
	for _, conn := range r.byUser {
		entries = append(entries, conn.entry)
	}
	return entries
}

// dropTransport removes the reverse index entry and role memberships for
// one transport. Callers hold the write lock.
func (r *Registry) dropTransport(transportID string, roles []presence.Role) {
	delete(r.byTransport, transportID)
	for _, role := range roles {
		if members, ok := r.roleMembers[role]; ok {
			delete(members, transportID)
			if len(members) == 0 {
				delete(r.roleMembers, role)
			}
		}
	}
}
