package services

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"presence-hub/domain/presence"
	"presence-hub/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSessionService_StartSession_Swallows_Store_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockSessionRepository(ctrl)
	service := NewSessionService(slog.Default(), repo)

	// Given the store is down
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("disk full")).Times(1)

	// When a session opens, the failure is logged, not propagated
	service.StartSession(context.Background(), "alice", "t-1", presence.ClientMeta{})
}

func TestSessionService_EndActiveSession_Sets_Duration(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockSessionRepository(ctrl)
	service := NewSessionService(slog.Default(), repo)

	started := time.Now().UTC().Add(-90 * time.Second)
	repo.EXPECT().FindActiveByTransport(gomock.Any(), "t-1").
		Return(presence.SessionRecord{
			UserID: "alice", TransportID: "t-1", StartedAt: started, IsActive: true,
		}, true, nil).Times(1)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, rec presence.SessionRecord) {
			req.False(rec.IsActive)
			req.NotNil(rec.EndedAt)
			req.NotNil(rec.DurationMs)
			req.Equal(rec.EndedAt.Sub(started).Milliseconds(), *rec.DurationMs)
			req.GreaterOrEqual(*rec.DurationMs, int64(90_000))
		}).Return(nil).Times(1)

	service.EndActiveSession(context.Background(), "t-1")
}

func TestSessionService_EndActiveSession_Is_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockSessionRepository(ctrl)
	service := NewSessionService(slog.Default(), repo)

	// Given no open session exists for the transport
	repo.EXPECT().FindActiveByTransport(gomock.Any(), "t-1").
		Return(presence.SessionRecord{}, false, nil).Times(2)

	// When closing twice, Update is never called
	service.EndActiveSession(context.Background(), "t-1")
	service.EndActiveSession(context.Background(), "t-1")
}

func TestSessionService_EndAllSessionsForUser(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := mocks.NewMockSessionRepository(ctrl)
	service := NewSessionService(slog.Default(), repo)

	started := time.Now().UTC().Add(-time.Hour)
	repo.EXPECT().ActiveByUser(gomock.Any(), "alice").
		Return([]presence.SessionRecord{
			{UserID: "alice", TransportID: "t-1", StartedAt: started, IsActive: true},
			{UserID: "alice", TransportID: "t-2", StartedAt: started, IsActive: true},
		}, nil).Times(1)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, rec presence.SessionRecord) {
			req.False(rec.IsActive)
		}).Return(nil).Times(2)

	closed := service.EndAllSessionsForUser(context.Background(), "alice")
	req.Equal(2, closed)
}
