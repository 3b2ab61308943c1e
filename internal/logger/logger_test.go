package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("Error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("WARN", "text", "stdout"))
	SetOutput(&buf)
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("DEBUG", "json", "stdout"))
	SetOutput(&buf)
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	Debug("rename %s", "a.img")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rename a.img", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigureFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.log")
	require.NoError(t, Configure("INFO", "text", path))
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	Error("storage fatal")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "storage fatal")
}

func TestConfigureRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, Configure("INFO", "xml", "stdout"))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("INFO", "json", "stdout"))
	SetOutput(&buf)
	t.Cleanup(func() { _ = Configure("INFO", "text", "stdout") })

	With(map[string]any{"deleted": 3}).Info("collection done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "collection done", entry["msg"])
	assert.EqualValues(t, 3, entry["deleted"])
}
