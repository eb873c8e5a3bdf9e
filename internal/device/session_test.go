package device_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

func recv(t *testing.T, s *device.Session) device.Line {
	t.Helper()
	select {
	case l, ok := <-s.Lines():
		require.True(t, ok, "session ended: %v", s.Err())
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a line")
	}
	return device.Line{}
}

func TestSessionSplitsLines(t *testing.T) {
	defer goleak.VerifyNone(t)

	host, dev := net.Pipe()
	trace := device.NewTrace()
	s := device.NewSession("pipe", host, zaptest.NewLogger(t), trace)

	go func() {
		io.WriteString(dev, "{CCM} W\r\n{DCS} SM0")
		io.WriteString(dev, "ABC\r{MIN}hello\n\n")
	}()

	assert.Equal(t, "{CCM} W", recv(t, s).Text)
	assert.Equal(t, "{DCS} SM0ABC", recv(t, s).Text)
	assert.Equal(t, "{MIN}hello", recv(t, s).Text)
	assert.EqualValues(t, len("{CCM} W\r\n{DCS} SM0ABC\r{MIN}hello\n\n"), s.RxChars())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	dev.Close()

	_, ok := <-s.Lines()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
	assert.Equal(t, 3, trace.Len())
}

func TestSessionSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	host, dev := net.Pipe()
	trace := device.NewTrace()
	s := device.NewSession("pipe", host, zaptest.NewLogger(t), trace)
	defer dev.Close()

	got := make(chan string, 2)
	go func() {
		buf := make([]byte, 64)
		for i := 0; i < 2; i++ {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			got <- string(buf[:n])
		}
	}()

	require.NoError(t, s.Send(wspr.Get(wspr.CodeCurrentMode)))
	assert.Equal(t, "[CCM] G\r\n", <-got)
	require.NoError(t, s.SendRaw("hello", false))
	assert.Equal(t, "hello", <-got)

	entries := trace.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, device.Sent, entries[0].Dir)
	assert.Equal(t, "[CCM] G", entries[0].Text)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(wspr.Get(wspr.CodeCurrentMode)), device.ErrClosed)
}

func TestSessionReportsDeviceGone(t *testing.T) {
	defer goleak.VerifyNone(t)

	host, dev := net.Pipe()
	s := device.NewSession("pipe", host, zaptest.NewLogger(t), nil)
	dev.Close()

	select {
	case _, ok := <-s.Lines():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.ErrorIs(t, s.Err(), device.ErrClosed)
	s.Close()
}
