package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"presence-hub/domain/event"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *ActivityIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewActivityIndex(writer, slog.Default())
}

func Test_ActivityIndex_Search_By_User_And_Kind(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	ctx := context.Background()
	now := time.Now().UTC()

	aliceAd := activityAt("alice", event.KindAdViewed, now)
	aliceSpin := activityAt("alice", event.KindSpinWheel, now.Add(time.Minute))
	aliceSpin.Payload = json.RawMessage(`{"result":"jackpot","reward":50}`)
	bobAd := activityAt("bob", event.KindAdViewed, now.Add(2*time.Minute))

	req.NoError(index.Index(aliceAd))
	req.NoError(index.Index(aliceSpin))
	req.NoError(index.Index(bobAd))

	// Searching by user returns that user's events only
	recs, err := index.Search(ctx, "alice", 10)
	req.NoError(err)
	req.Len(recs, 2)
	for _, rec := range recs {
		req.Equal("alice", rec.UserID)
	}

	// Searching by kind crosses users
	recs, err = index.Search(ctx, string(event.KindAdViewed), 10)
	req.NoError(err)
	req.Len(recs, 2)
	for _, rec := range recs {
		req.Equal(event.KindAdViewed, rec.Kind)
	}
}

func Test_ActivityIndex_Search_Payload_Content(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	spin := activityAt("alice", event.KindSpinWheel, time.Now().UTC())
	spin.Payload = json.RawMessage(`{"result":"jackpot","reward":50}`)
	req.NoError(index.Index(spin))
	req.NoError(index.Index(activityAt("bob", event.KindAdViewed, time.Now().UTC())))

	recs, err := index.Search(context.Background(), "jackpot", 10)
	req.NoError(err)
	req.Len(recs, 1)
	req.Equal(spin.ID, recs[0].ID)
}

func Test_ActivityIndex_Search_Respects_Limit(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		req.NoError(index.Index(activityAt("alice", event.KindAdViewed, now.Add(time.Duration(i)*time.Second))))
	}

	recs, err := index.Search(context.Background(), "alice", 3)
	req.NoError(err)
	req.Len(recs, 3)
}
