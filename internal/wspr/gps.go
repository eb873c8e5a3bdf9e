package wspr

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Satellite is one GSI report.
type Satellite struct {
	ID        int
	Azimuth   int
	Elevation int
	SNR       int
}

// ErrNoSignal marks a satellite that is tracked but not received.
var ErrNoSignal = errors.New("satellite not received")

// ParseSatellite decodes "id az el snr". Satellites that are tracked but
// not received report a non numeric SNR and return ErrNoSignal.
func ParseSatellite(data string) (Satellite, error) {
	f := strings.Fields(data)
	if len(f) < 4 {
		return Satellite{}, fmt.Errorf("%w: satellite %q", ErrInvalidValue, data)
	}
	var v [4]int
	for i := range v {
		if !isDigits(f[i]) {
			if i == 3 {
				return Satellite{}, fmt.Errorf("%w: %q", ErrNoSignal, data)
			}
			return Satellite{}, fmt.Errorf("%w: satellite %q", ErrInvalidValue, data)
		}
		v[i], _ = strconv.Atoi(f[i])
	}
	return Satellite{ID: v[0], Azimuth: v[1], Elevation: v[2], SNR: v[3]}, nil
}

// SNRClass buckets a satellite for the sky plot.
type SNRClass int

const (
	SNRHidden SNRClass = iota
	SNRWeak
	SNRFair
	SNRGood
	SNRStrong
)

func ClassifySNR(snr int) SNRClass {
	switch {
	case snr < 3:
		return SNRHidden
	case snr < 17:
		return SNRWeak
	case snr < 25:
		return SNRFair
	case snr < 33:
		return SNRGood
	}
	return SNRStrong
}

// SignalQuality is 0 when the mean SNR of the four best satellites is 15 dB
// or lower and 100 when it is 51 dB or more.
func SignalQuality(sats []Satellite) int {
	snrs := make([]int, 0, len(sats))
	for _, s := range sats {
		snrs = append(snrs, s.SNR)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(snrs)))
	if len(snrs) > 4 {
		snrs = snrs[:4]
	}
	sum := 0
	for _, v := range snrs {
		sum += v
	}
	// Missing satellites count as zero.
	q := (sum/4 - 15) * 100 / 36
	if q > 100 {
		return 100
	}
	if q < 0 {
		return 0
	}
	return q
}

// SkyPoint maps azimuth and elevation onto a circular plot of the given
// radius centred on (radius, radius). North is up, zenith in the middle.
func SkyPoint(s Satellite, radius float64) (x, y float64) {
	rho := radius * float64(90-s.Elevation) / 90
	theta := float64(s.Azimuth-90) * math.Pi / 180
	return radius + rho*math.Cos(theta), radius + rho*math.Sin(theta)
}
