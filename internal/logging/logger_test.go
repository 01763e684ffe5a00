package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	emit := func(l *Logger) {
		l.Debug().Msg("d")
		l.Info().Msg("i")
		l.Warn().Msg("w")
		l.Error().Msg("e")
	}
	tests := []struct {
		level string
		lines int
	}{
		{"debug", 4},
		{"info", 3},
		{"", 3},
		{"warn", 2},
		{"error", 1},
		{"silent", 0},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			emit(New(&buf, tt.level))
			assert.Equal(t, tt.lines, bytes.Count(buf.Bytes(), []byte("\n")))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	assert.Equal(t, zerolog.FatalLevel, parseLevel("fatal"))
	assert.Equal(t, zerolog.Disabled, parseLevel("silent"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("INFO"), "names are lower case")
}

func TestSubsystemAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("reminder").With("user", "irc:ana")

	log.Info().Str("offset", "advance").Msg("reminder sent")
	out := buf.String()
	assert.Contains(t, out, `"subsystem":"reminder"`)
	assert.Contains(t, out, `"user":"irc:ana"`)
	assert.Contains(t, out, `"offset":"advance"`)

	buf.Reset()
	zl := log.Zerolog()
	zl.Warn().Msg("direct")
	assert.Contains(t, buf.String(), `"subsystem":"reminder"`)
}

func TestDefaultsAndNop(t *testing.T) {
	require.NotNil(t, New(nil, "info"))

	log := Nop()
	log.Error().Msg("dropped")
	log.Sub("x").Info().Msg("dropped")
}

func TestOpen_NoFile(t *testing.T) {
	log, closeFn, err := Open(Options{Level: "info", Style: "json"})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.NoError(t, closeFn())
}

func TestOpen_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agendabot.log")
	log, closeFn, err := Open(Options{Level: "debug", File: path})
	require.NoError(t, err)

	log.Sub("scheduler").Info().Str("offset", "due").Msg("reminder sent")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reminder sent")
	assert.Contains(t, string(data), `"subsystem":"scheduler"`)
}
