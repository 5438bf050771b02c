package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, 60, c.SnapshotLimit)
	assert.Equal(t, 30*time.Second, c.RefreshInterval)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	b, err := json.Marshal(map[string]any{
		"database_dsn":     "postgres://json",
		"snapshot_limit":   10,
		"refresh_interval": "5s",
		"log_format":       "text",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	t.Setenv("MOODLOG_SNAPSHOT_LIMIT", "20")
	withArgs(t, "-config", path, "-a", ":6000", "-foreign", "x")

	got := LoadConfig()
	want := &Config{
		EndpointAddrGRPC: ":6000",
		DatabaseDSN:      "postgres://json",
		SnapshotLimit:    20,
		RefreshInterval:  5 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJson_BadFilePanics(t *testing.T) {
	withArgs(t, "-c", filepath.Join(t.TempDir(), "missing.json"))
	assert.Panics(t, func() { parseJson(&Config{}) })
}

func TestParseFlags_RefreshSeconds(t *testing.T) {
	withArgs(t, "-r", "12", "-n", "7")

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, 12*time.Second, c.RefreshInterval)
	assert.Equal(t, 7, c.SnapshotLimit)
}

func TestParseFlags_BadValuePanics(t *testing.T) {
	withArgs(t, "-n", "many")
	assert.Panics(t, func() { parseFlags(&Config{}) })
}

func TestValidate(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpc address")
	assert.Contains(t, err.Error(), "snapshot limit")
}
