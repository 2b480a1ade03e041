package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"presence-hub/domain/event"
	"presence-hub/domain/presence"
	apperrors "presence-hub/errors"
	"presence-hub/mocks"
	"presence-hub/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type pipelineFixture struct {
	service      *ActivityService
	monitor      *observability.Monitor
	activityRepo *mocks.MockActivityRepository
	statsRepo    *mocks.MockStatsRepository
	index        *mocks.MockActivityIndex
	publisher    *mocks.MockPublisher
}

func newPipelineFixture(ctrl *gomock.Controller) *pipelineFixture {
	monitor := observability.NewMonitor()
	activityRepo := mocks.NewMockActivityRepository(ctrl)
	statsRepo := mocks.NewMockStatsRepository(ctrl)
	index := mocks.NewMockActivityIndex(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	return &pipelineFixture{
		service: NewActivityService(
			slog.Default(), activityRepo, statsRepo, index, publisher, monitor),
		monitor:      monitor,
		activityRepo: activityRepo,
		statsRepo:    statsRepo,
		index:        index,
		publisher:    publisher,
	}
}

func TestActivityService_Unknown_Kind_Is_Rejected_Before_Anything(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newPipelineFixture(ctrl)

	// When an unknown kind is submitted, nothing is persisted or delivered
	err := f.service.Submit(context.Background(), "alice",
		event.Kind("hack_the_planet"), nil, presence.ClientMeta{})

	req.ErrorIs(err, apperrors.ErrInvalidEventKind)
	req.Equal(uint64(1), f.monitor.Snapshot().EventsRejected)
	req.Zero(f.monitor.Snapshot().EventsAccepted)
}

func TestActivityService_Invalid_Payload_Is_Rejected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newPipelineFixture(ctrl)

	// Given a withdrawal without the required amount
	raw := json.RawMessage(`{"method":"paypal"}`)

	err := f.service.Submit(context.Background(), "alice",
		event.KindWithdrawalRequest, raw, presence.ClientMeta{})

	req.ErrorIs(err, apperrors.ErrInvalidPayload)
	req.Equal(uint64(1), f.monitor.Snapshot().EventsRejected)
}

func TestActivityService_Broadcast_Survives_Persistence_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newPipelineFixture(ctrl)

	// Given every durable write fails
	f.activityRepo.EXPECT().Append(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("disk full")).Times(1)
	f.statsRepo.EXPECT().Apply(gomock.Any(), "alice", gomock.Any()).
		Return(presence.UserStats{}, fmt.Errorf("disk full")).Times(1)
	f.index.EXPECT().Index(gomock.Any()).Return(fmt.Errorf("disk full")).Times(1)

	// Then delivery still happens: activity_log plus the operator notice
	f.publisher.EXPECT().BroadcastAll(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, m event.Message) {
			req.Equal(event.TypeActivityLog, m.Type)
		}).Times(1)
	f.publisher.EXPECT().DeliverToRole(gomock.Any(), presence.RoleOperators, gomock.Any()).Times(1)

	raw := json.RawMessage(`{"ad_type":"banner","page":"home"}`)
	err := f.service.Submit(context.Background(), "alice",
		event.KindAdViewed, raw, presence.ClientMeta{})

	req.NoError(err)
	stats := f.monitor.Snapshot()
	req.Equal(uint64(1), stats.EventsAccepted)
	req.Equal(uint64(2), stats.PersistFailures)
}

func TestActivityService_TaskCompleted_Routes_Balance_Update(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newPipelineFixture(ctrl)

	f.activityRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	f.index.EXPECT().Index(gomock.Any()).Return(nil).Times(1)
	f.statsRepo.EXPECT().Apply(gomock.Any(), "alice", gomock.Any()).
		Do(func(_ context.Context, _ string, delta presence.StatsDelta) {
			req.Equal(uint64(1), delta.TasksCompleted)
			req.Equal(2.5, delta.BalanceDelta)
			req.Equal(2.5, delta.EarnedDelta)
		}).Return(presence.UserStats{UserID: "alice"}, nil).Times(1)

	f.publisher.EXPECT().BroadcastAll(gomock.Any(), gomock.Any()).Times(1)
	f.publisher.EXPECT().DeliverToUser(gomock.Any(), "alice", gomock.Any()).
		Do(func(_ context.Context, _ string, m event.Message) {
			req.Equal(event.TypeBalanceUpdate, m.Type)
			update := m.Data.(event.BalanceUpdate)
			req.Equal(2.5, update.Amount)
			req.NotNil(update.NewBalance)
			req.Equal(10.0, *update.NewBalance)
		}).Times(1)
	f.publisher.EXPECT().DeliverToRole(gomock.Any(), presence.RoleOperators, gomock.Any()).
		Do(func(_ context.Context, _ presence.Role, m event.Message) {
			req.Equal(event.TypeStatsChanged, m.Type)
			req.Equal(event.KindTaskCompleted, m.Data.(event.StatsChanged).Kind)
		}).Times(1)

	raw := json.RawMessage(`{"task_id":"daily-7","reward":2.5,"new_balance":10.0}`)
	err := f.service.Submit(context.Background(), "alice",
		event.KindTaskCompleted, raw, presence.ClientMeta{})
	req.NoError(err)
}

func TestActivityService_Withdrawal_Notifies_Everyone(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newPipelineFixture(ctrl)

	f.activityRepo.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	f.index.EXPECT().Index(gomock.Any()).Return(nil).Times(1)
	f.statsRepo.EXPECT().Apply(gomock.Any(), "alice", gomock.Any()).
		Do(func(_ context.Context, _ string, delta presence.StatsDelta) {
			req.Equal(uint64(1), delta.Withdrawals)
			req.Equal(-20.0, delta.BalanceDelta)
		}).Return(presence.UserStats{}, nil).Times(1)

	// Both the activity_log and the admin_notification go to everyone
	broadcasts := make([]string, 0, 2)
	f.publisher.EXPECT().BroadcastAll(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, m event.Message) {
			broadcasts = append(broadcasts, m.Type)
		}).Times(2)
	f.publisher.EXPECT().DeliverToRole(gomock.Any(), presence.RoleOperators, gomock.Any()).Times(1)

	raw := json.RawMessage(`{"amount":20,"method":"paypal"}`)
	err := f.service.Submit(context.Background(), "alice",
		event.KindWithdrawalRequest, raw, presence.ClientMeta{})
	req.NoError(err)
	req.Equal([]string{event.TypeActivityLog, event.TypeAdminNotification}, broadcasts)
}
