package wspr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Mode is the operating mode reported by CCM and OSM.
type Mode byte

const (
	ModeIdle      Mode = 'N'
	ModeBeacon    Mode = 'W'
	ModeGenerator Mode = 'S'
)

func ParseMode(s string) (Mode, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty mode", ErrInvalidValue)
	}
	switch m := Mode(s[0]); m {
	case ModeIdle, ModeBeacon, ModeGenerator:
		return m, nil
	}
	return 0, fmt.Errorf("%w: mode %q", ErrInvalidValue, s)
}

// Letter is the protocol representation.
func (m Mode) Letter() string { return string(rune(m)) }

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeBeacon:
		return "wspr"
	case ModeGenerator:
		return "generator"
	}
	return "unknown"
}

// ModeFromName accepts the names printed by String as well as the raw
// protocol letters.
func ModeFromName(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "idle", "n", "none":
		return ModeIdle, nil
	case "wspr", "w", "beacon":
		return ModeBeacon, nil
	case "generator", "s", "siggen":
		return ModeGenerator, nil
	}
	return 0, fmt.Errorf("%w: mode %q", ErrInvalidValue, name)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ModeFromName(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// LocationSource selects where the reported locator comes from.
type LocationSource byte

const (
	LocationGPS    LocationSource = 'G'
	LocationManual LocationSource = 'M'
)

func ParseLocationSource(s string) (LocationSource, error) {
	if s != "" {
		switch l := LocationSource(s[0]); l {
		case LocationGPS, LocationManual:
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: location source %q", ErrInvalidValue, s)
}

func (l LocationSource) Letter() string { return string(rune(l)) }

func (l LocationSource) String() string {
	switch l {
	case LocationGPS:
		return "gps"
	case LocationManual:
		return "manual"
	}
	return "unknown"
}

func (l LocationSource) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *LocationSource) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "gps", "g":
		*l = LocationGPS
	case "manual", "m":
		*l = LocationManual
	default:
		return fmt.Errorf("%w: location source %q", ErrInvalidValue, b)
	}
	return nil
}

// PowerMode selects what the power field of a WSPR message carries.
type PowerMode byte

const (
	PowerNormal   PowerMode = 'N'
	PowerAltitude PowerMode = 'A'
)

func ParsePowerMode(s string) (PowerMode, error) {
	if s != "" {
		switch p := PowerMode(s[0]); p {
		case PowerNormal, PowerAltitude:
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: power mode %q", ErrInvalidValue, s)
}

func (p PowerMode) Letter() string { return string(rune(p)) }

func (p PowerMode) String() string {
	switch p {
	case PowerNormal:
		return "normal"
	case PowerAltitude:
		return "altitude"
	}
	return "unknown"
}

func (p PowerMode) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PowerMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "normal", "n":
		*p = PowerNormal
	case "altitude", "a":
		*p = PowerAltitude
	default:
		return fmt.Errorf("%w: power mode %q", ErrInvalidValue, b)
	}
	return nil
}

// Bands in device index order.
var Bands = []string{
	"2190m", "630m", "160m", "80m", "40m", "30m", "20m", "17m",
	"15m", "12m", "10m", "6m", "4m", "2m", "70cm", "23cm",
}

// NumBands is the size of the device band table.
const NumBands = 16

// BandIndex returns the table index of a band name such as "20m".
func BandIndex(name string) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, b := range Bands {
		if b == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: band %q", ErrInvalidValue, name)
}

// BandName returns the name for idx, or "" when out of range.
func BandName(idx int) string {
	if idx < 0 || idx >= len(Bands) {
		return ""
	}
	return Bands[idx]
}

// ParseBandIndex decodes a two digit band index.
func ParseBandIndex(s string) (int, error) {
	if len(s) != 2 || !isDigits(s) {
		return -1, fmt.Errorf("%w: band index %q", ErrInvalidValue, s)
	}
	n, _ := strconv.Atoi(s)
	if n >= NumBands {
		return -1, fmt.Errorf("%w: band index %d out of range", ErrInvalidValue, n)
	}
	return n, nil
}

// PowerLevels are the dBm values a WSPR message can encode.
var PowerLevels = []int{0, 3, 7, 10, 13, 17, 20, 23, 27, 30, 33, 37, 40, 43, 47, 50, 53, 57, 60}

// MaxPower is the largest encodable power in dBm.
const MaxPower = 60

func ValidPower(dbm int) error {
	for _, p := range PowerLevels {
		if p == dbm {
			return nil
		}
	}
	return fmt.Errorf("%w: power %d dBm is not a WSPR level", ErrInvalidValue, dbm)
}

// PowerWatts converts a dBm level to watts for display.
func PowerWatts(dbm int) float64 {
	w := 0.001
	for i := 0; i < dbm/10; i++ {
		w *= 10
	}
	switch dbm % 10 {
	case 3:
		w *= 2
	case 7:
		w *= 5
	}
	return w
}

// MaxPause is the largest TX pause the device stores.
const MaxPause = 99999

func ValidPause(seconds int) error {
	if seconds < 0 || seconds > MaxPause {
		return fmt.Errorf("%w: pause %d outside 0..%d", ErrInvalidValue, seconds, MaxPause)
	}
	return nil
}

// MaxCallsignLen is the longest callsign the device encodes.
const MaxCallsignLen = 6

var callsignRe = regexp.MustCompile(`^[A-Z0-9/]{1,6}$`)

// NormalizeCallsign upper-cases and validates a callsign.
func NormalizeCallsign(call string) (string, error) {
	call = strings.ToUpper(strings.TrimSpace(call))
	if !callsignRe.MatchString(call) {
		return "", fmt.Errorf("%w: callsign %q", ErrInvalidValue, call)
	}
	return call, nil
}

var locatorRe = regexp.MustCompile(`^[A-R]{2}[0-9]{2}$`)

// NormalizeLocator upper-cases and validates a four character Maidenhead
// locator.
func NormalizeLocator(loc string) (string, error) {
	loc = strings.ToUpper(strings.TrimSpace(loc))
	if !locatorRe.MatchString(loc) {
		return "", fmt.Errorf("%w: locator %q", ErrInvalidValue, loc)
	}
	return loc, nil
}

// MaxNameLen bounds the free text device name.
const MaxNameLen = 40

func ValidName(name string) error {
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name longer than %d", ErrInvalidValue, MaxNameLen)
	}
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			return fmt.Errorf("%w: name contains %q", ErrInvalidValue, r)
		}
	}
	return nil
}

// Products maps FPN product numbers to model names.
var Products = map[string]string{
	"01011": "WSPR TX LP1",
	"01012": "WSPR TX Desktop",
	"01017": "WSPR TX Mini",
}

// ProductName returns the model name for an FPN value.
func ProductName(pn string) string {
	if name, ok := Products[pn]; ok {
		return name
	}
	return "unknown device"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
