package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"presence-hub/contract"
	"presence-hub/domain/event"
	"presence-hub/domain/presence"
	apperrors "presence-hub/errors"
	"presence-hub/services"

	"github.com/samber/lo"
)

const defaultBroadcastPriority = "normal"

// Orchestrator wires transport-level connect, submit, and disconnect
// events to the registry, the session lifecycle, the activity pipeline,
// and the presence broadcaster.
type Orchestrator struct {
	log         *slog.Logger
	registry    contract.IRegistry
	broadcaster *Broadcaster
	sessions    *services.SessionService
	pipeline    *services.ActivityService
}

func NewOrchestrator(log *slog.Logger, registry contract.IRegistry, broadcaster *Broadcaster,
	sessions *services.SessionService, pipeline *services.ActivityService) *Orchestrator {
	return &Orchestrator{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		sessions:    sessions,
		pipeline:    pipeline,
	}
}

// Connect binds a verified identity to a live transport: registry entry,
// durable session, online notice. A re-login while already online
// overwrites the entry (last write wins); the displaced transport's session
// is force-closed here so no active session outlives its registry entry.
func (o *Orchestrator) Connect(ctx context.Context, userID, transportID string,
	meta presence.ClientMeta, roles []presence.Role, sink contract.EventSink) {
	entry := presence.Entry{
		UserID:      userID,
		TransportID: transportID,
		ConnectedAt: time.Now().UTC(),
		Status:      presence.StatusOnline,
	}
	prev, displaced := o.registry.Register(entry, sink, roles)
	if displaced {
		o.log.Info("re-login displaced a live connection",
			"user_id", userID, "old_transport", prev.TransportID, "new_transport", transportID)
		o.sessions.EndActiveSession(ctx, prev.TransportID)
	}

	o.sessions.StartSession(ctx, userID, transportID, meta)
	o.broadcaster.AnnounceOnline(ctx, userID)
}

// Submit routes one inbound event from a live transport. The user identity
// is resolved from the registry, never trusted from the frame itself.
// admin_broadcast is an operator command delivered without persistence;
// user_logout additionally tears the connection's presence down.
func (o *Orchestrator) Submit(ctx context.Context, transportID string, kind event.Kind,
	raw json.RawMessage, meta presence.ClientMeta) error {
	entry, ok := o.registry.LookupByTransport(transportID)
	if !ok {
		return apperrors.ErrUnknownTransport
	}

	if kind == event.KindAdminBroadcast {
		return o.adminBroadcast(ctx, transportID, raw)
	}

	if err := o.pipeline.Submit(ctx, entry.UserID, kind, raw, meta); err != nil {
		return err
	}

	if kind == event.KindUserLogout {
		o.teardown(ctx, transportID)
	}
	return nil
}

// Disconnect cleans up after a transport closes: entry removed, session
// closed, offline notice. An unknown transport is a no-op, not an error;
// the logout that preceded the close already did the work.
func (o *Orchestrator) Disconnect(ctx context.Context, transportID string) {
	if !o.teardown(ctx, transportID) {
		o.log.Debug("disconnect for unknown transport", "transport_id", transportID)
	}
}

// Snapshot exposes the live entries for the operator surface.
func (o *Orchestrator) Snapshot() []presence.Entry {
	return o.registry.Snapshot()
}

func (o *Orchestrator) teardown(ctx context.Context, transportID string) bool {
	// The caller's context is usually the dying transport's, already
	// canceled by the time cleanup runs. The session close and the offline
	// notice must still complete, so they run on a detached context.
	ctx = context.WithoutCancel(ctx)

	entry, ok := o.registry.Remove(transportID)
	if !ok {
		return false
	}
	o.sessions.EndActiveSession(ctx, transportID)
	o.broadcaster.AnnounceOffline(ctx, entry.UserID)
	return true
}

// adminBroadcast delivers a system_message to every live connection.
// Operator-triggered, never persisted, no delivery receipt.
func (o *Orchestrator) adminBroadcast(ctx context.Context, transportID string, raw json.RawMessage) error {
	roles := o.registry.RolesFor(transportID)
	if !lo.Contains(roles, presence.RoleOperators) {
		return apperrors.ErrNotOperator
	}

	payload, err := event.Decode(event.KindAdminBroadcast, raw)
	if err != nil {
		return err
	}
	cmd := payload.(*event.AdminBroadcast)
	priority := cmd.Priority
	if priority == "" {
		priority = defaultBroadcastPriority
	}

	o.broadcaster.BroadcastAll(ctx, event.NewMessage(event.TypeSystemMessage, event.SystemMessage{
		Kind:     event.TypeSystemMessage,
		Message:  cmd.Message,
		Priority: priority,
	}))
	return nil
}
