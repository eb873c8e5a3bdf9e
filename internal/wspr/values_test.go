package wspr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCallsign(t *testing.T) {
	c, err := NormalizeCallsign(" sm0abc ")
	require.NoError(t, err)
	assert.Equal(t, "SM0ABC", c)

	_, err = NormalizeCallsign("SM0ABCD")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = NormalizeCallsign("")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = NormalizeCallsign("SM-0")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestNormalizeLocator(t *testing.T) {
	l, err := NormalizeLocator("jo65")
	require.NoError(t, err)
	assert.Equal(t, "JO65", l)

	for _, bad := range []string{"JO6", "JS65", "JO65AA", "6J5O"} {
		_, err := NormalizeLocator(bad)
		assert.ErrorIs(t, err, ErrInvalidValue, bad)
	}
}

func TestBands(t *testing.T) {
	assert.Len(t, Bands, NumBands)
	i, err := BandIndex("20M")
	require.NoError(t, err)
	assert.Equal(t, 6, i)
	assert.Equal(t, "23cm", BandName(15))
	assert.Equal(t, "", BandName(16))

	_, err = BandIndex("11m")
	assert.ErrorIs(t, err, ErrInvalidValue)

	n, err := ParseBandIndex("07")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = ParseBandIndex("16")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestPower(t *testing.T) {
	assert.NoError(t, ValidPower(23))
	assert.ErrorIs(t, ValidPower(24), ErrInvalidValue)
	assert.InDelta(t, 0.2, PowerWatts(23), 1e-9)
	assert.InDelta(t, 5.0, PowerWatts(37), 1e-9)
	assert.InDelta(t, 0.001, PowerWatts(0), 1e-9)
}

func TestPause(t *testing.T) {
	assert.NoError(t, ValidPause(0))
	assert.NoError(t, ValidPause(99999))
	assert.ErrorIs(t, ValidPause(100000), ErrInvalidValue)
	assert.ErrorIs(t, ValidPause(-1), ErrInvalidValue)
}

func TestModes(t *testing.T) {
	m, err := ParseMode("W")
	require.NoError(t, err)
	assert.Equal(t, ModeBeacon, m)
	_, err = ParseMode("X")
	assert.ErrorIs(t, err, ErrInvalidValue)

	var got Mode
	require.NoError(t, got.UnmarshalText([]byte("generator")))
	assert.Equal(t, ModeGenerator, got)

	var l LocationSource
	require.NoError(t, l.UnmarshalText([]byte("GPS")))
	assert.Equal(t, LocationGPS, l)

	var p PowerMode
	assert.Error(t, p.UnmarshalText([]byte("loud")))
}

func TestValidName(t *testing.T) {
	assert.NoError(t, ValidName("Balloon 7"))
	assert.Error(t, ValidName("bad\nname"))
}

func TestProductName(t *testing.T) {
	assert.Equal(t, "WSPR TX Desktop", ProductName("01012"))
	assert.Equal(t, "unknown device", ProductName("09999"))
}
