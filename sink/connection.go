package sink

import (
	"context"

	"presence-hub/domain/event"
	"presence-hub/errors"
)

// ConnectionSink bridges the hub's fan-out to one connection's write pump.
// Consume never blocks: a full buffer means the consumer is too slow and
// the message is refused so the broadcaster can count the drop and move on.
type ConnectionSink struct {
	Events chan event.Message
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{Events: make(chan event.Message, bufferSize)}
}

func (s *ConnectionSink) Consume(ctx context.Context, m event.Message) error {
	select {
	case s.Events <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSlowConsumer
	}
}
