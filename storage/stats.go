package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"presence-hub/domain/presence"

	"github.com/dgraph-io/badger/v4"
)

const statsPrefix = "stats:"

// StatsRepository keeps per-user aggregate counters under "stats:{userID}".
// Apply is a read-modify-write inside one badger transaction; it is
// deliberately independent of the activity-log write, which may succeed or
// fail on its own.
type StatsRepository struct {
	db *badger.DB
}

func NewStatsRepository(db *badger.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func statsKey(userID string) []byte {
	return []byte(statsPrefix + userID)
}

func (r *StatsRepository) Apply(_ context.Context, userID string, delta presence.StatsDelta) (presence.UserStats, error) {
	var stats presence.UserStats
	err := r.db.Update(func(txn *badger.Txn) error {
		stats = presence.UserStats{UserID: userID}

		item, err := txn.Get(statsKey(userID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err == nil {
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &stats)
			}); err != nil {
				return err
			}
		}

		stats.AdViews += delta.AdViews
		stats.TasksCompleted += delta.TasksCompleted
		stats.Spins += delta.Spins
		stats.Withdrawals += delta.Withdrawals
		stats.Balance += delta.BalanceDelta
		stats.TotalEarned += delta.EarnedDelta
		stats.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return txn.Set(statsKey(userID), data)
	})
	if err != nil {
		return presence.UserStats{}, err
	}
	return stats, nil
}

func (r *StatsRepository) Get(_ context.Context, userID string) (presence.UserStats, bool, error) {
	var stats presence.UserStats
	var found bool
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statsKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &stats)
		})
	})
	if err != nil {
		return presence.UserStats{}, false, err
	}
	return stats, found, nil
}
