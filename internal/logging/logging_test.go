package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersByLevel(t *testing.T) {
	var out bytes.Buffer
	log, sync, err := New(Options{Level: "warn", Console: &out})
	require.NoError(t, err)

	log.Infow("capture started", "session", "s1")
	log.Warnw("capture device unavailable", "device", "pulseaudio")
	sync()

	assert.NotContains(t, out.String(), "capture started")
	assert.Contains(t, out.String(), "capture device unavailable")
	assert.Contains(t, out.String(), "pulseaudio")
}

func TestNewWritesJSONFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "coach.log")
	log, sync, err := New(Options{Level: "info", File: p, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Infow("artifact ready", "bytes", 44)
	sync()

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "artifact ready", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, 44.0, entry["bytes"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
