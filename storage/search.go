package storage

import (
	"context"
	"encoding/json"
	"log/slog"

	"presence-hub/domain/event"

	"github.com/blugelabs/bluge"
)

// ActivityIndex maintains a full-text projection of the activity log so
// operators can search events by user, kind, or payload content without
// scanning the key-value store.
type ActivityIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewActivityIndex(writer *bluge.Writer, log *slog.Logger) *ActivityIndex {
	return &ActivityIndex{writer: writer, log: log}
}

func (i *ActivityIndex) Index(rec event.ActivityRecord) error {
	source, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	doc := bluge.NewDocument(rec.ID.String()).
		AddField(bluge.NewKeywordField("user_id", rec.UserID)).
		AddField(bluge.NewKeywordField("kind", string(rec.Kind))).
		AddField(bluge.NewTextField("payload", string(rec.Payload))).
		AddField(bluge.NewDateTimeField("occurred_at", rec.OccurredAt)).
		AddField(bluge.NewStoredOnlyField("_source", source))

	return i.writer.Update(doc.ID(), doc)
}

// Search matches the query against user, kind, and payload content and
// returns up to limit records, best match first.
func (i *ActivityIndex) Search(ctx context.Context, query string, limit int) ([]event.ActivityRecord, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("closing index reader failed", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewTermQuery(query).SetField("user_id")).
		AddShould(bluge.NewTermQuery(query).SetField("kind")).
		AddShould(bluge.NewMatchQuery(query).SetField("payload"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var recs []event.ActivityRecord
	match, err := iter.Next()
	for err == nil && match != nil {
		var source []byte
		if err := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_source" {
				source = append([]byte(nil), value...)
			}
			return true
		}); err != nil {
			return nil, err
		}
		if len(source) > 0 {
			var rec event.ActivityRecord
			if err := json.Unmarshal(source, &rec); err != nil {
				i.log.Warn("corrupt index source skipped", "error", err)
			} else {
				recs = append(recs, rec)
			}
		}
		match, err = iter.Next()
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}
