package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/photovault/internal/config"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := newLogger(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("id", "abc").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "abc")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photovault.log")
	var buf bytes.Buffer

	log, closer, err := newLogger(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1}, &buf)
	require.NoError(t, err)
	log.Debug().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"message":"to file"`))
}

func TestInvalidLevel(t *testing.T) {
	_, _, err := newLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, _, err = newLogger(config.LogConfig{}, &bytes.Buffer{})
	assert.Error(t, err)
}
