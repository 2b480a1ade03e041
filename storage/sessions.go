package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"presence-hub/domain/presence"

	"github.com/dgraph-io/badger/v4"
)

const (
	sessionPrefix     = "sess:"
	sessionUserPrefix = "sessu:"
	activePrefix      = "sessa:"
)

// SessionRepository persists session records in BadgerDB.
//
// Three key families are maintained together in one transaction:
//  1. "sess:{transportID}" holds the record itself; transport IDs are
//     unique per connection, so this key is written once and then closed.
//  2. "sessu:{userID}:{paddedNanos}:{transportID}" is the per-user history
//     index, time-ordered through 19-digit zero padding.
//  3. "sessa:{transportID}" marks the session as open, so the active scan
//     reads a small marker set instead of the whole history.
type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

func sessionKey(transportID string) []byte {
	return []byte(sessionPrefix + transportID)
}

func sessionUserKey(rec presence.SessionRecord) []byte {
	return fmt.Appendf(nil, "%s%s:%019d:%s",
		sessionUserPrefix, rec.UserID, rec.StartedAt.UnixNano(), rec.TransportID)
}

func activeKey(transportID string) []byte {
	return []byte(activePrefix + transportID)
}

func (r *SessionRepository) Create(_ context.Context, rec presence.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(sessionKey(rec.TransportID), data); err != nil {
			return err
		}
		if err := txn.Set(sessionUserKey(rec), []byte(rec.TransportID)); err != nil {
			return err
		}
		return txn.Set(activeKey(rec.TransportID), []byte(rec.TransportID))
	})
}

func (r *SessionRepository) FindActiveByTransport(_ context.Context, transportID string) (presence.SessionRecord, bool, error) {
	var rec presence.SessionRecord
	var found bool
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(transportID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &rec)
		}); err != nil {
			return err
		}
		found = rec.IsActive
		return nil
	})
	if err != nil || !found {
		return presence.SessionRecord{}, false, err
	}
	return rec, true, nil
}

// Update rewrites the record and keeps the active marker in sync with
// IsActive.
func (r *SessionRepository) Update(_ context.Context, rec presence.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(sessionKey(rec.TransportID), data); err != nil {
			return err
		}
		if rec.IsActive {
			return txn.Set(activeKey(rec.TransportID), []byte(rec.TransportID))
		}
		return txn.Delete(activeKey(rec.TransportID))
	})
}

// ActiveByUser walks the user's history index and keeps the records that
// are still open. Used by the administrative sweep.
func (r *SessionRepository) ActiveByUser(_ context.Context, userID string) ([]presence.SessionRecord, error) {
	var recs []presence.SessionRecord
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(sessionUserPrefix + userID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var transportID string
			if err := it.Item().Value(func(value []byte) error {
				transportID = string(value)
				return nil
			}); err != nil {
				return err
			}

			rec, ok, err := r.loadSession(txn, transportID)
			if err != nil {
				return err
			}
			if ok && rec.IsActive {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	return recs, err
}

// Active lists every open session via the marker set.
func (r *SessionRepository) Active(_ context.Context) ([]presence.SessionRecord, error) {
	var recs []presence.SessionRecord
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(activePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var transportID string
			if err := it.Item().Value(func(value []byte) error {
				transportID = string(value)
				return nil
			}); err != nil {
				return err
			}

			rec, ok, err := r.loadSession(txn, transportID)
			if err != nil {
				return err
			}
			if !ok {
				// Marker without a record: should not happen, skip it.
				r.log.Warn("active marker without session record", "transport_id", transportID)
				continue
			}
			if rec.IsActive {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	return recs, err
}

func (r *SessionRepository) loadSession(txn *badger.Txn, transportID string) (presence.SessionRecord, bool, error) {
	item, err := txn.Get(sessionKey(transportID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return presence.SessionRecord{}, false, nil
	}
	if err != nil {
		return presence.SessionRecord{}, false, err
	}
	var rec presence.SessionRecord
	if err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &rec)
	}); err != nil {
		return presence.SessionRecord{}, false, err
	}
	return rec, true, nil
}
