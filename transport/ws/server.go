package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"presence-hub/auth"
	"presence-hub/domain/presence"
	"presence-hub/hub"
	"presence-hub/sink"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Server upgrades authenticated HTTP requests into hub connections.
// Each accepted socket gets a fresh transport ID, a buffered sink, and a
// pair of pump goroutines; the handler blocks until the peer disconnects.
type Server struct {
	log        *slog.Logger
	orch       *hub.Orchestrator
	secret     []byte
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, orch *hub.Orchestrator, secret []byte, bufferSize int) *Server {
	return &Server{
		log:        log,
		orch:       orch,
		secret:     secret,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards and consoles connect cross-origin; origin policy
			// is enforced by the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	transportID := uuid.NewString()
	meta := presence.ClientMeta{IP: clientIP(r), Agent: r.UserAgent()}
	connSink := sink.NewConnectionSink(s.bufferSize)
	roles := lo.Map(claims.Roles, func(role string, _ int) presence.Role {
		return presence.Role(role)
	})

	c := &client{
		log:         s.log,
		orch:        s.orch,
		conn:        conn,
		sink:        connSink,
		transportID: transportID,
		userID:      claims.UserID,
		meta:        meta,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.orch.Connect(ctx, claims.UserID, transportID, meta, roles, connSink)
	s.log.Info("connection accepted",
		"user_id", claims.UserID, "transport_id", transportID, "ip", meta.IP)

	go c.writePump(ctx)
	c.readPump(ctx, cancel)
}

// authenticate extracts the token from the Authorization header or the
// token query parameter and verifies it. The hub does no authentication of
// its own beyond this signature check.
func (s *Server) authenticate(r *http.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	return auth.ValidateToken(s.secret, token)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
