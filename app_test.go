package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wspr-tx-config/internal/config"
	"wspr-tx-config/internal/device"
)

// withFlags points the global flags at a fresh config file holding port
// and restores them when the test ends.
func withFlags(t *testing.T, port string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: "+port+"\n"), 0644))

	oldPort, oldDebug, oldConfig, oldSim := flagPort, flagDebug, flagConfig, flagSimulate
	t.Cleanup(func() {
		flagPort, flagDebug, flagConfig, flagSimulate = oldPort, oldDebug, oldConfig, oldSim
	})
	flagPort, flagDebug, flagConfig, flagSimulate = "", false, path, false
	return path
}

func TestStartupPort(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		simulate bool
		want     string
		wantOpen bool
	}{
		{name: "remembered port waits for the user"},
		{name: "port flag", port: "COM9", want: "COM9", wantOpen: true},
		{name: "simulator", simulate: true, want: simulatedPort, wantOpen: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFlags(t, "COM3")
			flagPort, flagSimulate = tt.port, tt.simulate

			e, err := newEnv()
			require.NoError(t, err)
			defer e.close()

			got, ok := e.startupPort()
			assert.Equal(t, tt.wantOpen, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartupPortOpensSimulator(t *testing.T) {
	path := withFlags(t, "COM3")
	flagSimulate = true
	flagDebug = true

	e, err := newEnv()
	require.NoError(t, err)
	defer e.close()

	name, ok := e.startupPort()
	require.True(t, ok)

	mgr := device.NewManager(e.opener(), e.openOptions(), e.controllerOptions(), e.log, e.trace)
	_, err = mgr.Connect(name)
	require.NoError(t, err)
	assert.True(t, mgr.IsConnected())
	mgr.Disconnect()

	// Saving a profile during a simulated run keeps the real port.
	require.NoError(t, e.cfg.Save())
	back, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "COM3", back.Port)
	assert.False(t, back.Debug)
}

func TestStartupPortMissingDevice(t *testing.T) {
	withFlags(t, "")
	flagPort = filepath.Join(t.TempDir(), "no-such-tty")

	e, err := newEnv()
	require.NoError(t, err)
	defer e.close()

	name, ok := e.startupPort()
	require.True(t, ok)

	mgr := device.NewManager(e.opener(), e.openOptions(), e.controllerOptions(), e.log, e.trace)
	_, err = mgr.Connect(name)
	assert.Error(t, err)
	assert.False(t, mgr.IsConnected())
}
