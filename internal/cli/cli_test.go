package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agendabot/internal/agent"
	"github.com/soyeahso/agendabot/internal/config"
	"github.com/soyeahso/agendabot/internal/datetime"
	"github.com/soyeahso/agendabot/internal/dialogue"
	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/session"
	"github.com/soyeahso/agendabot/internal/store"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"007", 7},
		{"30s", "30s"},
		{"1.5", 1.5},
		{"America/Lima", "America/Lima"},
		{"-10m", "-10m"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

type echoHandler struct {
	calls []string
	fail  string
}

func (h *echoHandler) Handle(_ context.Context, userID, text string) (*dialogue.Result, error) {
	h.calls = append(h.calls, userID+"|"+text)
	if text == h.fail {
		return nil, errors.New("boom")
	}
	return &dialogue.Result{Reply: "eco: " + text, State: session.Idle}, nil
}

func TestRunREPL(t *testing.T) {
	h := &echoHandler{fail: "falla"}
	in := strings.NewReader("hola\n\n  citas de hoy  \nfalla\n/salir\nignorado\n")
	var out bytes.Buffer

	err := runREPL(context.Background(), in, &out, h, "cli:local")
	require.NoError(t, err)

	assert.Equal(t, []string{"cli:local|hola", "cli:local|citas de hoy", "cli:local|falla"}, h.calls)
	assert.Contains(t, out.String(), "eco: hola")
	assert.Contains(t, out.String(), "eco: citas de hoy")
	assert.Contains(t, out.String(), "error: boom")
	assert.NotContains(t, out.String(), "ignorado")
}

func TestRunREPL_EOF(t *testing.T) {
	h := &echoHandler{}
	var out bytes.Buffer
	require.NoError(t, runREPL(context.Background(), strings.NewReader("hola"), &out, h, "u"))
	assert.Equal(t, []string{"u|hola"}, h.calls)
}

func TestPrintDispatcher(t *testing.T) {
	var out bytes.Buffer
	d := &printDispatcher{user: "cli:local", out: &out}

	require.NoError(t, d.Notify(context.Background(), "cli:local", "Cita con Ana en 10 minutos"))
	assert.Contains(t, out.String(), "[recordatorio] Cita con Ana en 10 minutos")

	assert.Error(t, d.Notify(context.Background(), "irc:bob", "x"))
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Timezone = "UTC"
	cfg.Store.Driver = "memory"
	return cfg
}

func TestNewApp_MemoryStore(t *testing.T) {
	a, err := newApp(testConfig(), "", logging.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.Memory{}, a.store)
	assert.Equal(t, time.UTC, a.loc)

	res, err := a.manager.Handle(context.Background(), "cli:local", "ayuda")
	require.NoError(t, err)
	assert.Equal(t, agent.HelpText, res.Reply)
	assert.Equal(t, 1, a.sessions.Len())
}

func TestNewApp_BadHook(t *testing.T) {
	cfg := testConfig()
	cfg.Hooks.Commands = []config.HookEntry{{Name: "x", Event: "no_such_event", Command: "true"}}
	_, err := newApp(cfg, "", logging.Nop())
	assert.Error(t, err)
}

func TestSchedulerConfig(t *testing.T) {
	cfg := config.Defaults().Reminders
	rc, err := schedulerConfig(cfg, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, rc.PollInterval)
	assert.Equal(t, time.Minute, rc.Tolerance)
	assert.Equal(t, 10*time.Minute, rc.MaxLateness)
	require.Len(t, rc.Offsets, 2)
	assert.Equal(t, "advance", rc.Offsets[0].Label)
	assert.Equal(t, -10*time.Minute, rc.Offsets[0].Delta)
	assert.Equal(t, time.Duration(0), rc.Offsets[1].Delta)

	cfg.Offsets = []config.OffsetEntry{{Label: "bad", Offset: "soon"}}
	_, err = schedulerConfig(cfg, time.UTC)
	assert.Error(t, err)
}

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	for _, a := range []domain.Appointment{
		{OwnerID: "irc:ana", ClientName: "José Pérez", Project: "Norte", Modality: "presencial",
			OccursAt: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)},
		{OwnerID: "irc:ana", ClientName: "Lucía", Project: "Sur", Modality: "virtual",
			OccursAt: time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)},
		{OwnerID: "ws:bob", ClientName: "Marta", Project: "Este", Modality: "virtual",
			OccursAt: time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)},
	} {
		_, err := st.Create(context.Background(), a)
		require.NoError(t, err)
	}
	return st
}

func TestListAppointments(t *testing.T) {
	st := seedStore(t)
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	norm := datetime.New(time.UTC, func() time.Time { return now })

	var out bytes.Buffer
	require.NoError(t, listAppointments(context.Background(), &out, st, norm, listOptions{from: "hoy", to: "hoy"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "WHEN")
	assert.Contains(t, lines[1], "Marta")
	assert.Contains(t, lines[2], "José Pérez")

	out.Reset()
	require.NoError(t, listAppointments(context.Background(), &out, st, norm, listOptions{owner: "irc:ana", client: "jose", asJSON: true}))
	var got []domain.Appointment
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "José Pérez", got[0].ClientName)

	out.Reset()
	require.NoError(t, listAppointments(context.Background(), &out, st, norm, listOptions{owner: "nadie"}))
	assert.Equal(t, "No appointments.\n", out.String())

	assert.Error(t, listAppointments(context.Background(), &out, st, norm, listOptions{from: "algún día"}))
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out, testConfig())
	s := out.String()
	assert.Contains(t, s, "Store:     memory")
	assert.Contains(t, s, "LLM:       none")
	assert.Contains(t, s, "advance=-10m")
	assert.Contains(t, s, "IRC:       (not configured)")
}

func TestPrintValue(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printValue(&out, "America/Lima"))
	assert.Equal(t, "America/Lima\n", out.String())

	out.Reset()
	require.NoError(t, printValue(&out, map[string]any{"label": "due", "offset": "0s"}))
	assert.Equal(t, "label: due\noffset: 0s\n", out.String())
}

func TestSaveChecked(t *testing.T) {
	paths = config.Paths{Config: t.TempDir() + "/config.yaml"}
	var out bytes.Buffer

	bad := map[string]any{"reminders": map[string]any{"pollInterval": "-5s"}}
	err := saveChecked(&out, bad, false)
	require.Error(t, err)
	assert.Contains(t, out.String(), "reminders.pollInterval")
	raw, err := config.LoadRaw(paths.Config)
	require.NoError(t, err)
	assert.Empty(t, raw, "nothing written")

	require.NoError(t, saveChecked(&out, bad, true))
	good := map[string]any{"timezone": "UTC"}
	require.NoError(t, saveChecked(&out, good, false))
	cfg, err := config.Load(paths.Config)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
}
