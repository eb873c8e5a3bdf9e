package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wspr-tx-config/internal/wspr"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.Equal(t, time.Second, cfg.QueryTimeout)
	assert.Equal(t, 3, cfg.QueryAttempts)
	assert.Empty(t, cfg.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: /dev/ttyUSB0
queryTimeout: 2s
trace:
  file: /tmp/wspr.log
profiles:
  balloon:
    callsign: sm0abc
    power: 10
    bands: [20m]
    powerMode: altitude
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "/tmp/wspr.log", cfg.Trace.File)
	assert.Equal(t, 5, cfg.Trace.MaxSizeMB, "unset fields keep their defaults")

	p, err := cfg.Profile("balloon")
	require.NoError(t, err)
	assert.Equal(t, wspr.PowerAltitude, p.PowerMode)
	assert.Equal(t, 10, *p.ReportedPower)
}

func TestLoadRejectsBadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  bad:\n    locator: ZZ99\n"), 0644))
	_, err := Load(path)
	assert.ErrorIs(t, err, wspr.ErrInvalidValue)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baudRate: [1, 2"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WSPRCFG_PORT", "COM7")
	t.Setenv("WSPRCFG_BAUD", "19200")
	t.Setenv("WSPRCFG_DEBUG", "true")
	t.Setenv("WSPRCFG_TRACE_FILE", "trace.log")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "COM7", cfg.Port)
	assert.Equal(t, 19200, cfg.BaudRate)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "trace.log", cfg.Trace.File)
}

func TestEnvOverridesIgnoreJunk(t *testing.T) {
	t.Setenv("WSPRCFG_BAUD", "fast")
	t.Setenv("WSPRCFG_DEBUG", "maybe")

	cfg := Default()
	cfg.applyEnvOverrides()
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.False(t, cfg.Debug)
}

func TestProfilesSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	pause := 240
	require.NoError(t, cfg.SetProfile("home", wspr.Settings{Callsign: "k1abc", Locator: "fn42", Pause: &pause}))
	require.NoError(t, cfg.SetProfile("away", wspr.Settings{Bands: []string{"40m"}}))
	assert.Error(t, cfg.SetProfile("", wspr.Settings{}))
	assert.ErrorIs(t, cfg.SetProfile("bad", wspr.Settings{Callsign: "!!"}), wspr.ErrInvalidValue)
	require.NoError(t, cfg.Save())

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"away", "home"}, back.ProfileNames())
	home, err := back.Profile("home")
	require.NoError(t, err)
	assert.Equal(t, "K1ABC", home.Callsign)
	assert.Equal(t, "FN42", home.Locator)
	assert.Equal(t, 240, *home.Pause)

	require.NoError(t, back.DeleteProfile("home"))
	assert.Error(t, back.DeleteProfile("home"))
	_, err = back.Profile("home")
	assert.Error(t, err)
}

func TestSaveKeepsOverridesOutOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("WSPRCFG_PORT", "simulator")
	t.Setenv("WSPRCFG_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "simulator", cfg.Port)
	cfg.Debug = true
	cfg.BaudRate = 19200
	require.NoError(t, cfg.SetProfile("home", wspr.Settings{Callsign: "K1ABC"}))
	require.NoError(t, cfg.Save())

	t.Setenv("WSPRCFG_PORT", "")
	t.Setenv("WSPRCFG_DEBUG", "")
	back, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, back.Port)
	assert.False(t, back.Debug)
	assert.Equal(t, 9600, back.BaudRate)
	assert.Equal(t, []string{"home"}, back.ProfileNames())

	back.SetPort("COM4")
	assert.Equal(t, "COM4", back.Port)
	require.NoError(t, back.Save())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "COM4", again.Port)
}

func TestSaveWithoutLoadWritesValues(t *testing.T) {
	cfg := Default()
	cfg.path = filepath.Join(t.TempDir(), "config.yaml")
	cfg.SetPort("COM2")
	require.NoError(t, cfg.Save())

	back, err := Load(cfg.path)
	require.NoError(t, err)
	assert.Equal(t, "COM2", back.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.BaudRate = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.QueryAttempts = 0
	assert.Error(t, cfg.Validate())
}
