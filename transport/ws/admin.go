package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"presence-hub/auth"
	"presence-hub/contract"
	"presence-hub/domain/presence"
	"presence-hub/hub"
	"presence-hub/observability"
	"presence-hub/services"

	"github.com/samber/lo"
)

const defaultSearchLimit = 25

// AdminAPI serves the operator console's read surface: activity search,
// open sessions, live presence, and delivery counters. Every route
// requires a token carrying the operators role.
type AdminAPI struct {
	log      *slog.Logger
	secret   []byte
	orch     *hub.Orchestrator
	sessions *services.SessionService
	index    contract.ActivityIndex
	monitor  *observability.Monitor
}

func NewAdminAPI(log *slog.Logger, secret []byte, orch *hub.Orchestrator,
	sessions *services.SessionService, index contract.ActivityIndex,
	monitor *observability.Monitor) *AdminAPI {
	return &AdminAPI{
		log:      log,
		secret:   secret,
		orch:     orch,
		sessions: sessions,
		index:    index,
		monitor:  monitor,
	}
}

func (a *AdminAPI) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/activity/search", a.requireOperator(a.handleSearch))
	mux.HandleFunc("GET /admin/sessions", a.requireOperator(a.handleSessions))
	mux.HandleFunc("GET /admin/online", a.requireOperator(a.handleOnline))
	mux.HandleFunc("GET /admin/stats", a.requireOperator(a.handleStats))
}

func (a *AdminAPI) requireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if header := r.Header.Get("Authorization"); header != "" {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		claims, err := auth.ValidateToken(a.secret, token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !lo.Contains(claims.Roles, string(presence.RoleOperators)) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (a *AdminAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	recs, err := a.index.Search(r.Context(), query, limit)
	if err != nil {
		a.log.Error("activity search failed", "query", query, "error", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, recs)
}

func (a *AdminAPI) handleSessions(w http.ResponseWriter, r *http.Request) {
	recs, err := a.sessions.ActiveSessions(r.Context())
	if err != nil {
		a.log.Error("active session listing failed", "error", err)
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, recs)
}

func (a *AdminAPI) handleOnline(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, a.orch.Snapshot())
}

func (a *AdminAPI) handleStats(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, a.monitor.Snapshot())
}

func (a *AdminAPI) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("response encoding failed", "error", err)
	}
}
