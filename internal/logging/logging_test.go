package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, true},
		{" warning ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"chatty", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := parseLevel(tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")

	opts := Options{Level: zerolog.DebugLevel}
	applyEnvOverrides(&opts)
	assert.Equal(t, zerolog.ErrorLevel, opts.Level)
	assert.True(t, opts.NoColor)
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: zerolog.WarnLevel, NoColor: true})
	logger.Info().Msg("hidden")
	logger.Warn().Str("id", "ssh").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "id=ssh")
}

func TestConfigureToFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "logs", "sharkemon.log")
	_, closer, err := Configure(Options{Level: zerolog.InfoLevel, File: path})
	require.NoError(t, err)

	log.Info().Msg("capture started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "capture started")
	assert.NotContains(t, string(data), "\x1b[", "file output is uncolored")
}
