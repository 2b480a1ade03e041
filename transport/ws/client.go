package ws

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"log/slog"
	"time"

	"presence-hub/domain/event"
	"presence-hub/domain/presence"
	apperrors "presence-hub/errors"
	"presence-hub/hub"
	"presence-hub/sink"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

// inboundFrame is the wire shape of one client event. Only type and data
// are trusted from the frame; identity comes from the registry.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	log         *slog.Logger
	orch        *hub.Orchestrator
	conn        *websocket.Conn
	sink        *sink.ConnectionSink
	transportID string
	userID      string
	meta        presence.ClientMeta
}

// readPump decodes inbound frames and hands them to the orchestrator.
// It runs on the connection's handler goroutine and returns when the peer
// goes away; the deferred Disconnect is the cleanup path for both clean
// logouts and dropped connections.
func (c *client) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.orch.Disconnect(ctx, c.transportID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected close", "user_id", c.userID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reject(ctx, "malformed frame")
			continue
		}

		if err := c.orch.Submit(ctx, c.transportID, event.Kind(frame.Type), frame.Data, c.meta); err != nil {
			// Rejections are reported only to the originating connection.
			switch {
			case goerrors.Is(err, apperrors.ErrInvalidEventKind),
				goerrors.Is(err, apperrors.ErrInvalidPayload),
				goerrors.Is(err, apperrors.ErrNotOperator):
				c.reject(ctx, err.Error())
			default:
				c.log.Error("submit failed", "user_id", c.userID, "type", frame.Type, "error", err)
			}
		}
	}
}

// writePump drains the connection sink into the socket and keeps the
// connection alive with pings. One writer goroutine per connection; the
// socket is never written from anywhere else.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case m := <-c.sink.Events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				c.log.Debug("write failed, dropping connection",
					"user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) reject(ctx context.Context, reason string) {
	_ = c.sink.Consume(ctx, event.NewMessage(event.TypeError, event.ErrorNotice{Reason: reason}))
}
