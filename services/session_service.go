package services

import (
	"context"
	"log/slog"
	"time"

	"presence-hub/contract"
	"presence-hub/domain/presence"
)

// SessionService opens and closes durable session records. Persistence
// failures are logged and swallowed: bookkeeping must never block live
// presence.
type SessionService struct {
	log      *slog.Logger
	sessions contract.SessionRepository
}

func NewSessionService(log *slog.Logger, sessions contract.SessionRepository) *SessionService {
	return &SessionService{log: log, sessions: sessions}
}

// StartSession creates an active session record for the transport.
func (s *SessionService) StartSession(ctx context.Context, userID, transportID string, meta presence.ClientMeta) {
	rec := presence.SessionRecord{
		UserID:      userID,
		TransportID: transportID,
		StartedAt:   time.Now().UTC(),
		IsActive:    true,
		Meta:        meta,
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		s.log.Error("session open failed, presence continues",
			"user_id", userID, "transport_id", transportID, "error", err)
	}
}

// EndActiveSession closes the open session for the transport. A call with
// no matching open session is a no-op.
func (s *SessionService) EndActiveSession(ctx context.Context, transportID string) {
	rec, ok, err := s.sessions.FindActiveByTransport(ctx, transportID)
	if err != nil {
		s.log.Error("active session lookup failed", "transport_id", transportID, "error", err)
		return
	}
	if !ok {
		return
	}
	s.close(ctx, rec, time.Now().UTC())
}

// EndAllSessionsForUser is the administrative sweep: it force-closes every
// open session for a user and returns how many it closed.
func (s *SessionService) EndAllSessionsForUser(ctx context.Context, userID string) int {
	recs, err := s.sessions.ActiveByUser(ctx, userID)
	if err != nil {
		s.log.Error("session sweep lookup failed", "user_id", userID, "error", err)
		return 0
	}
	now := time.Now().UTC()
	for _, rec := range recs {
		s.close(ctx, rec, now)
	}
	return len(recs)
}

// ActiveSessions lists every open session, for consistency repair and the
// operator console.
func (s *SessionService) ActiveSessions(ctx context.Context) ([]presence.SessionRecord, error) {
	return s.sessions.Active(ctx)
}

func (s *SessionService) close(ctx context.Context, rec presence.SessionRecord, endedAt time.Time) {
	duration := endedAt.Sub(rec.StartedAt).Milliseconds()
	rec.EndedAt = &endedAt
	rec.DurationMs = &duration
	rec.IsActive = false
	if err := s.sessions.Update(ctx, rec); err != nil {
		s.log.Error("session close failed",
			"user_id", rec.UserID, "transport_id", rec.TransportID, "error", err)
	}
}
