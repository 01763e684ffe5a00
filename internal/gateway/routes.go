package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/domain"
)

const apiTimeout = 10 * time.Second

func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("GET /api/appointments", s.requireToken(http.HandlerFunc(s.handleAppointments)))
	if s.ws != nil {
		mux.Handle("GET "+s.wsPath, s.ws)
	}
	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version      string                 `json:"version"`
	Uptime       string                 `json:"uptime"`
	Channels     []domain.ChannelStatus `json:"channels"`
	Sessions     int                    `json:"sessions"`
	Appointments int                    `json:"appointments"`
}

// AppointmentsResponse is the body of GET /api/appointments.
type AppointmentsResponse struct {
	Count        int                  `json:"count"`
	Appointments []domain.Appointment `json:"appointments"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:  s.version,
		Uptime:   s.uptime().String(),
		Channels: []domain.ChannelStatus{},
	}
	if s.channels != nil {
		resp.Channels = s.channels.Status()
	}
	if s.sessions != nil {
		resp.Sessions = s.sessions()
	}
	if s.store != nil {
		n, err := s.store.Count(r.Context())
		if err != nil {
			s.log.Warn().Err(err).Msg("counting appointments")
		}
		resp.Appointments = n
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireToken guards next with the bearer token. Without a configured
// token the API is served on loopback binds only.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			if s.cfg.Bind == "lan" {
				writeError(w, http.StatusForbidden, "gateway token not configured")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.allow(r.RemoteAddr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after failed auth attempts")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		if !safeEqual(bearerToken(r), s.token) {
			s.limiter.recordFailure(r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="agendabot"`)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleAppointments lists appointments. Query parameters: owner (full id,
// "irc:ana"), client (name substring), from and to (YYYY-MM-DD in the server
// zone or RFC 3339; to is inclusive for dates).
func (s *Server) handleAppointments(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not available")
		return
	}
	q := r.URL.Query()

	var f domain.Filter
	var ok bool
	if v := q.Get("from"); v != "" {
		if f.From, ok = s.parseBound(v, false); !ok {
			writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, ok = s.parseBound(v, true); !ok {
			writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}
	if v := strings.TrimSpace(q.Get("client")); v != "" {
		f.Field, f.Value = domain.FieldClientName, v
	}

	ctx, cancel := context.WithTimeout(r.Context(), apiTimeout)
	defer cancel()
	list, err := s.store.Query(ctx, q.Get("owner"), f)
	if err != nil {
		s.log.Error().Err(err).Msg("listing appointments")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if list == nil {
		list = []domain.Appointment{}
	}
	writeJSON(w, http.StatusOK, AppointmentsResponse{Count: len(list), Appointments: list})
}

// parseBound reads a date or instant. Dates used as an upper bound move to
// the following midnight so the whole day is included.
func (s *Server) parseBound(v string, upper bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
	if err != nil {
		return time.Time{}, false
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}
