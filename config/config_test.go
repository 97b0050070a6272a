package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LoadConfig is once-gated for the whole process, so only the first
// test exercises it; the rest drive reloadConfig directly.
func TestLoadConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := LoadConfig(path)

	assert.Equal(t, "38866", cfg.Port)
	assert.Equal(t, 20, cfg.Gridsize)
	assert.Equal(t, 150, cfg.TickMs)
	assert.Equal(t, "info", cfg.LogLevel)

	data, err := os.ReadFile(path)
	require.NoError(t, err, "missing config must be created with defaults")

	var onDisk AppConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *cfg, onDisk)
}

func writeConfig(t *testing.T, path string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestReloadAppliesChanges(t *testing.T) {
	LoadConfig(filepath.Join(t.TempDir(), "config.json"))

	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"port":"9999","loglevel":"debug","tickms":80}`)

	require.NoError(t, reloadConfig(path))

	cfg := Get()
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 80, cfg.TickMs)
	assert.Equal(t, 20, cfg.Gridsize, "absent fields fall back to defaults")
}

func TestReloadKeepsOldConfigOnBadJSON(t *testing.T) {
	LoadConfig(filepath.Join(t.TempDir(), "config.json"))

	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"port":"7777"}`)
	require.NoError(t, reloadConfig(path))

	writeConfig(t, path, `{"port": not json`)
	assert.Error(t, reloadConfig(path))
	assert.Equal(t, "7777", Get().Port, "broken file must not clobber the running config")
}

func TestGetConfigValue(t *testing.T) {
	LoadConfig(filepath.Join(t.TempDir(), "config.json"))

	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"port":"5555","blocksize":16,"sessionttl":60,"dbpath":"./x.db"}`)
	require.NoError(t, reloadConfig(path))

	assert.Equal(t, "5555", GetConfigValue("port"))
	assert.Equal(t, 16, GetConfigValue("blocksize"))
	assert.Equal(t, 60, GetConfigValue("sessionttl"))
	assert.Equal(t, "./x.db", GetConfigValue("dbpath"))
	assert.Equal(t, "", GetConfigValue("no-such-key"))
}

func TestWatchConfigHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	LoadConfig(path)
	writeConfig(t, path, `{"port":"1111"}`)
	require.NoError(t, reloadConfig(path))

	reloaded := make(chan *AppConfig, 16)
	go WatchConfig(path, func(c *AppConfig) { reloaded <- c })

	// The watcher registers asynchronously; keep rewriting until an
	// event lands or we give up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		writeConfig(t, path, `{"port":"2222"}`)
		select {
		case cfg := <-reloaded:
			assert.Equal(t, "2222", cfg.Port)
			assert.Equal(t, "2222", Get().Port)
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
	t.Fatalf("No reload callback within 5s")
}
