package wspr

import (
	"errors"
	"fmt"
	"sort"
)

// Settings is the user configurable part of a device. It is what gets
// saved as a profile and applied in one go.
type Settings struct {
	Callsign           string         `yaml:"callsign,omitempty"`
	Locator            string         `yaml:"locator,omitempty"`
	ReportedPower      *int           `yaml:"power,omitempty"`
	LocationSource     LocationSource `yaml:"locationSource,omitempty"`
	PowerMode          PowerMode      `yaml:"powerMode,omitempty"`
	StartMode          Mode           `yaml:"startMode,omitempty"`
	Pause              *int           `yaml:"pause,omitempty"`
	Bands              []string       `yaml:"bands,omitempty"`
	Name               string         `yaml:"name,omitempty"`
	GeneratorFrequency Frequency      `yaml:"generatorFrequency,omitempty"`
}

// SettingsOf extracts the configurable fields of a status.
func SettingsOf(s Status) Settings {
	power, pause := s.ReportedPower, s.Pause
	bands := s.EnabledBands()
	if bands == nil {
		bands = []string{}
	}
	return Settings{
		Callsign:           s.Callsign,
		Locator:            s.Locator,
		ReportedPower:      &power,
		LocationSource:     s.LocationSource,
		PowerMode:          s.PowerMode,
		StartMode:          s.StartMode,
		Pause:              &pause,
		Bands:              bands,
		Name:               s.Name,
		GeneratorFrequency: s.GeneratorFrequency,
	}
}

// Normalize validates every set field and returns a copy with canonical
// spelling. All problems are reported together.
func (s Settings) Normalize() (Settings, error) {
	var errs []error
	if s.Callsign != "" {
		c, err := NormalizeCallsign(s.Callsign)
		errs = append(errs, err)
		s.Callsign = c
	}
	if s.Locator != "" {
		l, err := NormalizeLocator(s.Locator)
		errs = append(errs, err)
		s.Locator = l
	}
	if s.ReportedPower != nil {
		errs = append(errs, ValidPower(*s.ReportedPower))
	}
	if s.Pause != nil {
		errs = append(errs, ValidPause(*s.Pause))
	}
	if s.Bands != nil {
		idx := make([]int, 0, len(s.Bands))
		for _, b := range s.Bands {
			i, err := BandIndex(b)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			idx = append(idx, i)
		}
		sort.Ints(idx)
		bands := make([]string, 0, len(idx))
		for i, v := range idx {
			if i > 0 && idx[i-1] == v {
				continue
			}
			bands = append(bands, Bands[v])
		}
		s.Bands = bands
	}
	if s.Name != "" {
		errs = append(errs, ValidName(s.Name))
	}
	if s.GeneratorFrequency >= FrequencyLimit {
		errs = append(errs, fmt.Errorf("%w: generator frequency %d", ErrInvalidValue, s.GeneratorFrequency))
	}
	if err := errors.Join(errs...); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Requests returns the set requests that bring a device to s. Fields left
// empty are not touched. A callsign change puts the device in idle mode
// first, as it must not transmit while the callsign changes.
func (s Settings) Requests() []Request {
	var reqs []Request
	if s.Callsign != "" {
		reqs = append(reqs, Set(CodeCurrentMode, ModeIdle.Letter()), Set(CodeCallsign, s.Callsign))
	}
	if s.Locator != "" {
		reqs = append(reqs, Set(CodeLocator, s.Locator))
	}
	if s.LocationSource != 0 {
		reqs = append(reqs, Set(CodeLocationSource, s.LocationSource.Letter()))
	}
	if s.PowerMode != 0 {
		reqs = append(reqs, Set(CodePowerMode, s.PowerMode.Letter()))
	}
	if s.ReportedPower != nil {
		reqs = append(reqs, Set(CodeReportedPower, fmt.Sprintf("%02d", *s.ReportedPower)))
	}
	if s.Pause != nil {
		reqs = append(reqs, Set(CodeTxPause, fmt.Sprintf("%05d", *s.Pause)))
	}
	if s.StartMode != 0 {
		reqs = append(reqs, Set(CodeStartMode, s.StartMode.Letter()))
	}
	if s.Bands != nil {
		enabled := make(map[string]bool, len(s.Bands))
		for _, b := range s.Bands {
			enabled[b] = true
		}
		for i, b := range Bands {
			reqs = append(reqs, BandRequest(i, enabled[b]))
		}
	}
	if s.Name != "" {
		reqs = append(reqs, Set(CodeName, s.Name))
	}
	if s.GeneratorFrequency != 0 {
		reqs = append(reqs, Set(CodeGeneratorFrequency, s.GeneratorFrequency.Field()))
	}
	return reqs
}

// BandRequest builds the OBD request enabling or disabling one band.
func BandRequest(idx int, on bool) Request {
	flag := 'D'
	if on {
		flag = 'E'
	}
	return Set(CodeBand, fmt.Sprintf("%02d %c", idx, flag))
}

// Mismatches compares the fields set in want with a device status and
// describes every difference.
func Mismatches(want Settings, st Status) []string {
	var out []string
	diff := func(field string, want, got any) {
		out = append(out, fmt.Sprintf("%s: want %v, device has %v", field, want, got))
	}
	if want.Callsign != "" && want.Callsign != st.Callsign {
		diff("callsign", want.Callsign, st.Callsign)
	}
	if want.Locator != "" && want.Locator != st.Locator {
		diff("locator", want.Locator, st.Locator)
	}
	if want.ReportedPower != nil && *want.ReportedPower != st.ReportedPower {
		diff("power", *want.ReportedPower, st.ReportedPower)
	}
	if want.Pause != nil && *want.Pause != st.Pause {
		diff("pause", *want.Pause, st.Pause)
	}
	if want.LocationSource != 0 && want.LocationSource != st.LocationSource {
		diff("location source", want.LocationSource, st.LocationSource)
	}
	if want.PowerMode != 0 && want.PowerMode != st.PowerMode {
		diff("power mode", want.PowerMode, st.PowerMode)
	}
	if want.StartMode != 0 && want.StartMode != st.StartMode {
		diff("start mode", want.StartMode, st.StartMode)
	}
	if want.Bands != nil {
		got := st.EnabledBands()
		if fmt.Sprint(want.Bands) != fmt.Sprint(got) {
			diff("bands", want.Bands, got)
		}
	}
	if want.Name != "" && want.Name != st.Name {
		diff("name", want.Name, st.Name)
	}
	if want.GeneratorFrequency != 0 && want.GeneratorFrequency != st.GeneratorFrequency {
		diff("generator frequency", want.GeneratorFrequency, st.GeneratorFrequency)
	}
	return out
}
