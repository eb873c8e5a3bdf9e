package wspr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSatellite(t *testing.T) {
	s, err := ParseSatellite("12 180 45 30")
	require.NoError(t, err)
	assert.Equal(t, Satellite{ID: 12, Azimuth: 180, Elevation: 45, SNR: 30}, s)

	_, err = ParseSatellite("12 180 45")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = ParseSatellite("12 180 -- 30")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseSatellite("12 180 45 --")
	assert.ErrorIs(t, err, ErrNoSignal)
	assert.NotErrorIs(t, err, ErrInvalidValue)
}

func TestSignalQuality(t *testing.T) {
	sats := func(snrs ...int) []Satellite {
		out := make([]Satellite, len(snrs))
		for i, v := range snrs {
			out[i].SNR = v
		}
		return out
	}
	assert.Equal(t, 0, SignalQuality(nil))
	assert.Equal(t, 0, SignalQuality(sats(15, 15, 15, 15)))
	assert.Equal(t, 100, SignalQuality(sats(51, 51, 51, 51)))
	assert.Equal(t, 50, SignalQuality(sats(33, 33, 33, 33)))
	// Only the best four count.
	assert.Equal(t, 100, SignalQuality(sats(1, 60, 2, 55, 52, 51)))
	// Missing satellites drag the mean down.
	assert.Equal(t, 0, SignalQuality(sats(40)))
}

func TestClassifySNR(t *testing.T) {
	assert.Equal(t, SNRHidden, ClassifySNR(2))
	assert.Equal(t, SNRWeak, ClassifySNR(3))
	assert.Equal(t, SNRFair, ClassifySNR(17))
	assert.Equal(t, SNRGood, ClassifySNR(25))
	assert.Equal(t, SNRStrong, ClassifySNR(33))
}

func TestSkyPoint(t *testing.T) {
	x, y := SkyPoint(Satellite{Azimuth: 0, Elevation: 90}, 110)
	assert.InDelta(t, 110, x, 1e-9)
	assert.InDelta(t, 110, y, 1e-9)

	// North on the horizon is at the top of the plot.
	x, y = SkyPoint(Satellite{Azimuth: 0, Elevation: 0}, 110)
	assert.InDelta(t, 110, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)

	// East on the horizon is at the right.
	x, y = SkyPoint(Satellite{Azimuth: 90, Elevation: 0}, 110)
	assert.InDelta(t, 220, x, 1e-9)
	assert.InDelta(t, 110, y, 1e-9)
}

func TestMirrorClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMirrorClock(func() time.Time { return now })

	got, stale := c.Time()
	assert.Equal(t, "--:--:--", got)
	assert.True(t, stale)

	require.NoError(t, c.Set("23:59:58"))
	got, stale = c.Time()
	assert.Equal(t, "23:59:58", got)
	assert.False(t, stale)

	now = now.Add(3500 * time.Millisecond)
	got, stale = c.Time()
	assert.Equal(t, "00:00:01", got)
	assert.False(t, stale)

	now = now.Add(10 * time.Second)
	_, stale = c.Time()
	assert.True(t, stale)

	assert.ErrorIs(t, c.Set("25:00:00"), ErrInvalidValue)
	assert.ErrorIs(t, c.Set("noon"), ErrInvalidValue)
}
