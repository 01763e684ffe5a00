// Package gateway serves the HTTP side of agendabot: health and status
// probes, a read-only appointments API and the WebSocket chat endpoint.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/agendabot/internal/channel"
	"github.com/soyeahso/agendabot/internal/config"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/version"
)

// Appointments is the store surface the API reads.
type Appointments interface {
	Query(ctx context.Context, ownerID string, f domain.Filter) ([]domain.Appointment, error)
	Count(ctx context.Context) (int, error)
}

// Server is the agendabot HTTP server.
type Server struct {
	cfg     config.GatewayConfig
	token   string
	log     *logging.Logger
	version string
	limiter *authRateLimiter

	store    Appointments
	channels *channel.Registry
	sessions func() int
	loc      *time.Location

	wsPath    string
	ws        http.Handler
	wsOrigins []string

	mu         sync.RWMutex
	startedAt  time.Time
	httpServer *http.Server
	addr       string
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithStore enables /api/appointments and the appointment count in status.
func WithStore(st Appointments) ServerOption {
	return func(s *Server) { s.store = st }
}

// WithChannels adds channel status to /api/status.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) { s.channels = ch }
}

// WithSessions reports the active session count in /api/status.
func WithSessions(count func() int) ServerOption {
	return func(s *Server) { s.sessions = count }
}

// WithLocation sets the zone used to read date-only API parameters.
func WithLocation(loc *time.Location) ServerOption {
	return func(s *Server) { s.loc = loc }
}

// WithWebSocket mounts the chat endpoint at path.
func WithWebSocket(path string, h http.Handler, allowedOrigins []string) ServerOption {
	return func(s *Server) {
		if path == "" {
			path = "/ws"
		}
		s.wsPath, s.ws, s.wsOrigins = path, h, allowedOrigins
	}
}

// New creates a gateway server.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:     cfg,
		token:   resolveToken(cfg.Token),
		log:     log.Sub("gateway"),
		version: version.Version,
		limiter: newAuthRateLimiter(),
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.wsOrigins)
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.token == "" && s.cfg.Bind == "lan" {
		s.log.Warn().Msg("no gateway token configured; the appointments API is disabled on lan bind")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("websocket", s.ws != nil).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt).Round(time.Second)
}
