package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agendabot/internal/channel"
	"github.com/soyeahso/agendabot/internal/channel/ws"
	"github.com/soyeahso/agendabot/internal/config"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/store"
)

var lima = time.FixedZone("PET", -5*60*60)

func seededStore(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	for _, a := range []domain.Appointment{
		{OwnerID: "irc:ana", ClientName: "Juan Pérez", Project: "Norte", Modality: "virtual", OccursAt: time.Date(2025, 6, 10, 15, 0, 0, 0, lima)},
		{OwnerID: "irc:ana", ClientName: "Rosa", Project: "Sur", Modality: "presencial", OccursAt: time.Date(2025, 6, 12, 9, 0, 0, 0, lima)},
		{OwnerID: "ws:luis", ClientName: "Juana", Project: "Este", Modality: "virtual", OccursAt: time.Date(2025, 6, 10, 11, 0, 0, 0, lima)},
	} {
		_, err := st.Create(context.Background(), a)
		require.NoError(t, err)
	}
	return st
}

func newTestServer(t *testing.T, cfg config.GatewayConfig, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithStore(seededStore(t)), WithLocation(lima)}, opts...)
	return New(cfg, logging.New(nil, "silent"), opts...)
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, config.GatewayConfig{})
	rr := get(t, s.Handler(), "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
}

func TestNotFoundEndpoint(t *testing.T) {
	s := newTestServer(t, config.GatewayConfig{})
	rr := get(t, s.Handler(), "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rr.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	reg := channel.NewRegistry(logging.Nop())
	reg.Register(ws.New(nil, logging.Nop()))
	s := newTestServer(t, config.GatewayConfig{}, WithChannels(reg), WithSessions(func() int { return 4 }))

	rr := get(t, s.Handler(), "/api/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Appointments)
	assert.Equal(t, 4, resp.Sessions)
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "ws", resp.Channels[0].ChannelID)
}

func TestAppointmentsEndpoint(t *testing.T) {
	s := newTestServer(t, config.GatewayConfig{Token: "t0k"})
	h := s.Handler()

	tests := []struct {
		query   string
		clients []string
	}{
		{"", []string{"Juana", "Juan Pérez", "Rosa"}},
		{"?owner=irc:ana", []string{"Juan Pérez", "Rosa"}},
		{"?from=2025-06-10&to=2025-06-10", []string{"Juana", "Juan Pérez"}},
		{"?from=2025-06-11", []string{"Rosa"}},
		{"?to=2025-06-10T12:00:00-05:00", []string{"Juana"}},
		{"?client=juan", []string{"Juana", "Juan Pérez"}},
		{"?client=perez&owner=ws:luis", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := get(t, h, "/api/appointments"+tt.query, "t0k")
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var resp AppointmentsResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			var names []string
			for _, a := range resp.Appointments {
				names = append(names, a.ClientName)
			}
			assert.Equal(t, tt.clients, names)
			assert.Equal(t, len(tt.clients), resp.Count)
		})
	}
}

func TestAppointmentsEndpoint_BadParams(t *testing.T) {
	s := newTestServer(t, config.GatewayConfig{Token: "t0k"})
	for _, q := range []string{"?from=ayer", "?to=10/06/2025", "?from=2025-06-12&to=2025-06-10"} {
		rr := get(t, s.Handler(), "/api/appointments"+q, "t0k")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestAppointmentsEndpoint_Auth(t *testing.T) {
	s := newTestServer(t, config.GatewayConfig{Token: "t0k"})
	h := s.Handler()

	rr := get(t, h, "/api/appointments", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	for i := 0; i < authRateMaxFails-1; i++ {
		get(t, h, "/api/appointments", "wrong")
	}
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/appointments", "t0k").Code)
}

func TestAppointmentsEndpoint_NoToken(t *testing.T) {
	t.Setenv("AGENDABOT_GATEWAY_TOKEN", "")

	loopback := newTestServer(t, config.GatewayConfig{Bind: "loopback"})
	assert.Equal(t, http.StatusOK, get(t, loopback.Handler(), "/api/appointments", "").Code)

	lan := newTestServer(t, config.GatewayConfig{Bind: "lan"})
	assert.Equal(t, http.StatusForbidden, get(t, lan.Handler(), "/api/appointments", "").Code)
}

func TestAppointmentsEndpoint_NoStore(t *testing.T) {
	s := New(config.GatewayConfig{}, logging.Nop())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/api/appointments", "").Code)
}

func TestWebSocketMount(t *testing.T) {
	ch := ws.New(nil, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Start(ctx)
	require.Eventually(t, func() bool { return ch.Status().Running }, time.Second, 5*time.Millisecond)

	got := make(chan domain.InboundMessage, 1)
	ch.OnMessage(func(m domain.InboundMessage) { got <- m })

	s := newTestServer(t, config.GatewayConfig{}, WithWebSocket("/ws", ch, nil))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=ana"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ws.Frame{Text: "citas hoy"}))
	select {
	case m := <-got:
		assert.Equal(t, "ana", m.From)
		assert.Equal(t, "citas hoy", m.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("message not routed through the gateway")
	}
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", resolveBindAddr(config.GatewayConfig{Port: 8080, Bind: "loopback"}))
	assert.Equal(t, "0.0.0.0:8080", resolveBindAddr(config.GatewayConfig{Port: 8080, Bind: "lan"}))
	assert.Equal(t, "127.0.0.1:8080", resolveBindAddr(config.GatewayConfig{Port: 8080}))
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServerStart(t *testing.T) {
	port := freePort(t)
	s := newTestServer(t, config.GatewayConfig{Port: port, Bind: "loopback"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
