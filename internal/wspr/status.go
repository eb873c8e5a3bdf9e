package wspr

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TxDuration is the length of one WSPR transmission.
const TxDuration = 161 * time.Second

// Status is the host side mirror of everything the device reports.
type Status struct {
	// Settings the user can change.
	Mode               Mode
	StartMode          Mode
	Pause              int
	Bands              [NumBands]bool
	LocationSource     LocationSource
	PowerMode          PowerMode
	Callsign           string
	Locator            string
	ReportedPower      int
	Name               string
	GeneratorFrequency Frequency

	// Factory data.
	Product          string
	HardwareVersion  string
	HardwareRevision string
	FirmwareVersion  string
	FirmwareRevision string
	ReferenceFreq    string
	LowPassFilters   [NumBands]bool

	// GPS.
	GPSLocator string
	GPSTime    string
	GPSLocked  bool
	Satellites []Satellite

	// Transmitter.
	TxFrequency Frequency
	TxOn        bool
	NextBand    int
	TxBand      int
	TxSeconds   int
	PauseLeft   int
	Messages    []string
	pendingSats []Satellite
}

// NewStatus returns a status with no active band and the generator at its
// default frequency.
func NewStatus() Status {
	return Status{
		NextBand:           -1,
		TxBand:             -1,
		GeneratorFrequency: DefaultGeneratorFrequency,
	}
}

// MaxMessages bounds the MIN message log.
const MaxMessages = 200

// Apply folds a reply into the status. An ErrInvalidValue result for a
// settable code means the host should query the value again.
func (s *Status) Apply(r Reply) error {
	d := r.Data
	switch r.Code {
	case CodeCurrentMode:
		m, err := ParseMode(d)
		if err != nil {
			return err
		}
		s.Mode = m
		if m != ModeBeacon {
			s.TxBand, s.NextBand = -1, -1
		}
	case CodeStartMode:
		m, err := ParseMode(d)
		if err != nil {
			return err
		}
		s.StartMode = m
	case CodeTxPause:
		if !isDigits(d) {
			return fmt.Errorf("%w: pause %q", ErrInvalidValue, d)
		}
		s.Pause, _ = strconv.Atoi(d)
	case CodeBand:
		idx, on, err := parseBandFlag(d)
		if err != nil {
			return err
		}
		s.Bands[idx] = on
	case CodeLocationSource:
		l, err := ParseLocationSource(d)
		if err != nil {
			return err
		}
		s.LocationSource = l
	case CodePowerMode:
		p, err := ParsePowerMode(d)
		if err != nil {
			return err
		}
		s.PowerMode = p
	case CodeCallsign:
		s.Callsign = d
	case CodeLocator:
		s.Locator = d
	case CodeReportedPower:
		if !isDigits(d) {
			return fmt.Errorf("%w: power %q", ErrInvalidValue, d)
		}
		p, _ := strconv.Atoi(d)
		s.ReportedPower = min(p, MaxPower)
	case CodeName:
		s.Name = d
	case CodeGeneratorFrequency:
		f, err := ParseGeneratorFrequency(d)
		if err != nil {
			return err
		}
		s.GeneratorFrequency = f
	case CodeProduct:
		s.Product = d
	case CodeHardwareVersion:
		s.HardwareVersion = d
	case CodeHardwareRevision:
		s.HardwareRevision = d
	case CodeFirmwareVersion:
		s.FirmwareVersion = d
	case CodeFirmwareRevision:
		s.FirmwareRevision = d
	case CodeReferenceFreq:
		s.ReferenceFreq = d
	case CodeLowPassFilter:
		if len(d) < 3 {
			return fmt.Errorf("%w: low pass filter %q", ErrInvalidValue, d)
		}
		n, err := strconv.Atoi(d[2:])
		if err != nil || n < 0 || n >= NumBands {
			return fmt.Errorf("%w: low pass filter %q", ErrInvalidValue, d)
		}
		s.LowPassFilters[n] = true
	case CodeGPSLocator:
		s.GPSLocator = d
	case CodeGPSTime:
		s.GPSTime = d
		// A time report closes a batch of satellite reports.
		if len(s.pendingSats) > 0 {
			s.Satellites = s.pendingSats
			s.pendingSats = nil
		}
	case CodeGPSLock:
		switch {
		case d != "" && d[0] == 'T':
			s.GPSLocked = true
		case d != "" && d[0] == 'F':
			s.GPSLocked = false
		default:
			return fmt.Errorf("%w: gps lock %q", ErrInvalidValue, d)
		}
	case CodeGPSSatellite:
		sat, err := ParseSatellite(d)
		if errors.Is(err, ErrNoSignal) {
			return nil
		}
		if err != nil {
			return err
		}
		s.pendingSats = append(s.pendingSats, sat)
	case CodeTxFrequency:
		f, err := ParseFrequency(d)
		if err != nil {
			return err
		}
		s.TxFrequency = f
	case CodeTxOn:
		switch {
		case d != "" && d[0] == 'T':
			s.TxOn = true
		case d != "" && d[0] == 'F':
			s.TxOn = false
		default:
			return fmt.Errorf("%w: tx on %q", ErrInvalidValue, d)
		}
	case CodePauseProgress:
		if !isDigits(d) {
			return fmt.Errorf("%w: pause progress %q", ErrInvalidValue, d)
		}
		s.PauseLeft, _ = strconv.Atoi(d)
		s.TxBand, s.TxSeconds = -1, 0
	case CodeNextBand:
		if !isDigits(d) {
			return fmt.Errorf("%w: next band %q", ErrInvalidValue, d)
		}
		n, _ := strconv.Atoi(d)
		s.NextBand = n
	case CodeTxBand:
		if len(d) < 2 || !isDigits(d[:2]) {
			return fmt.Errorf("%w: tx band %q", ErrInvalidValue, d)
		}
		s.TxBand, _ = strconv.Atoi(d[:2])
		s.PauseLeft = 0
		if len(d) >= 6 && isDigits(d[3:6]) {
			s.TxSeconds, _ = strconv.Atoi(d[3:6])
		} else {
			return fmt.Errorf("%w: tx progress %q", ErrInvalidValue, d)
		}
	case CodeCycleComplete:
		s.TxBand, s.TxSeconds, s.PauseLeft = -1, 0, 0
	case CodeMessage:
		s.Messages = append(s.Messages, d)
		if len(s.Messages) > MaxMessages {
			s.Messages = s.Messages[len(s.Messages)-MaxMessages:]
		}
	case CodeLowPassInfo, CodeSupplyVoltage, CodeSaveSettings:
		// Not displayed.
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCode, r.Code)
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Status) Clone() Status {
	c := *s
	c.Satellites = append([]Satellite(nil), s.Satellites...)
	c.Messages = append([]string(nil), s.Messages...)
	c.pendingSats = append([]Satellite(nil), s.pendingSats...)
	return c
}

// TxPercent is the progress of the current transmission.
func (s *Status) TxPercent() int {
	if s.TxBand < 0 {
		return 0
	}
	return min(100, s.TxSeconds*100/int(TxDuration/time.Second))
}

// PausePercent is the elapsed share of the pause between transmissions.
func (s *Status) PausePercent() int {
	if s.Pause < 1 {
		return 100
	}
	p := 100 * (s.Pause - s.PauseLeft) / s.Pause
	return max(0, min(100, p))
}

// EnabledBands lists the names of all enabled bands.
func (s *Status) EnabledBands() []string {
	var out []string
	for i, on := range s.Bands {
		if on {
			out = append(out, Bands[i])
		}
	}
	return out
}

func parseBandFlag(d string) (int, bool, error) {
	if len(d) < 4 {
		return 0, false, fmt.Errorf("%w: band %q", ErrInvalidValue, d)
	}
	idx, err := ParseBandIndex(d[:2])
	if err != nil {
		return 0, false, err
	}
	switch d[3] {
	case 'E':
		return idx, true, nil
	case 'D':
		return idx, false, nil
	}
	return 0, false, fmt.Errorf("%w: band flag %q", ErrInvalidValue, d)
}
