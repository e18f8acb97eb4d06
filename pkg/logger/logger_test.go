package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestInitWithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "gateway.log")
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, Init(LogConfig{Level: "debug", Format: "json", File: logPath}))
	Info().Str("conn", "abc").Msg("frame handled")
	require.NoError(t, Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "frame handled")
	assert.Contains(t, string(content), `"conn":"abc"`)
}

func TestInitWithInvalidFile(t *testing.T) {
	t.Cleanup(func() { _ = Close() })

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := Init(LogConfig{Level: "info", File: filepath.Join(blocker, "sub", "x.log")})
	assert.Error(t, err)
}

func TestComponentAndLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		_ = Close()
	})

	SetOutput(&buf)
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	log := Component("delivery")
	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "delivery", entry["component"])
	assert.Equal(t, "kept", entry["message"])
}
