package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"presence-hub/domain/event"

	"github.com/dgraph-io/badger/v4"
)

const activityPrefix = "act:"

// ActivityRepository persists the append-only activity log in BadgerDB.
// The key is formatted as "act:{user_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the record UUID as a collision breaker if
//     two events arrive at the same nanosecond.
type ActivityRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewActivityRepository(db *badger.DB, log *slog.Logger, limit *int) *ActivityRepository {
	return &ActivityRepository{db: db, log: log, limit: limit}
}

func (r *ActivityRepository) Append(_ context.Context, rec event.ActivityRecord) error {
	key := fmt.Sprintf("%s%s:%019d:%s",
		activityPrefix, rec.UserID, rec.OccurredAt.UnixNano(), rec.ID)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Recent retrieves a user's events newest first using a reverse prefix
// scan. Thanks to the padded timestamp in the key, records are naturally
// time-ordered; the returned cursor resumes the scan where it stopped.
func (r *ActivityRepository) Recent(_ context.Context, userID string, cursor *string) ([]event.ActivityRecord, *string, error) {
	var rows [][]byte
	var lastKey string
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := activityPrefix + userID + ":"
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limit != nil && len(rows) == *r.limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d activity records reached", *r.limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			if err := item.Value(func(value []byte) error {
				rows = append(rows, append([]byte(nil), value...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	recs := make([]event.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		var rec event.ActivityRecord
		if err := json.Unmarshal(row, &rec); err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
	}
	return recs, &lastKey, nil
}
