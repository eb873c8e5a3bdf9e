package device_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/simulator"
	"wspr-tx-config/internal/wspr"
)

func TestManagerConnectRefreshes(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := zaptest.NewLogger(t)
	sim := simulator.New(quiet(), log)
	defer sim.Close()

	m := device.NewManager(sim.Opener(), device.OpenOptions{}, device.Options{QueryTimeout: 200 * time.Millisecond}, log, device.NewTrace())

	refreshed := make(chan struct{}, 8)
	m.OnConnect(func(c *device.Controller) {
		c.OnUpdate(func(code wspr.Code, _ wspr.Status) {
			if code == wspr.CodeLowPassFilter {
				refreshed <- struct{}{}
			}
		})
	})

	ctl, err := m.Connect("sim")
	require.NoError(t, err)
	assert.True(t, m.IsConnected())

	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("no initial refresh")
	}
	assert.Equal(t, "N0CALL", ctl.Snapshot().Callsign)
	assert.Positive(t, m.Trace().Len())

	got, err := m.Controller()
	require.NoError(t, err)
	assert.Same(t, ctl, got)

	m.Disconnect()
	assert.False(t, m.IsConnected())
	_, err = m.Controller()
	assert.ErrorIs(t, err, device.ErrNotConnected)
	m.Disconnect()
}

func TestManagerReportsLostConnection(t *testing.T) {
	log := zaptest.NewLogger(t)
	sim := simulator.New(quiet(), log)

	m := device.NewManager(sim.Opener(), device.OpenOptions{}, device.DefaultOptions(), log, nil)
	lost := make(chan error, 1)
	m.OnDisconnect(func(err error) { lost <- err })

	_, err := m.Connect("sim")
	require.NoError(t, err)
	sim.Close()

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, device.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.False(t, m.IsConnected())
}

func TestManagerOpenFailure(t *testing.T) {
	boom := errors.New("boom")
	m := device.NewManager(func(string, device.OpenOptions) (device.Port, error) {
		return nil, boom
	}, device.OpenOptions{}, device.DefaultOptions(), zaptest.NewLogger(t), nil)

	_, err := m.Connect("COM9")
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.IsConnected())
}

func TestManagerReconnect(t *testing.T) {
	log := zaptest.NewLogger(t)
	sim := simulator.New(quiet(), log)
	defer sim.Close()

	m := device.NewManager(sim.Opener(), device.OpenOptions{}, device.DefaultOptions(), log, nil)
	first, err := m.Connect("sim")
	require.NoError(t, err)
	second, err := m.Connect("sim")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	select {
	case <-first.Session().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first session still running")
	}
	m.Disconnect()
}
