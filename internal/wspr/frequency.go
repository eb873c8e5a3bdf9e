package wspr

import (
	"fmt"
	"strconv"
	"strings"
)

// Frequency is expressed in centihertz, the unit of DGF and TFQ.
type Frequency uint64

const (
	Hz  Frequency = 100
	KHz           = 1000 * Hz
	MHz           = 1000 * KHz

	// FrequencyLimit is one past the largest value that fits the twelve
	// digit field used by the generator.
	FrequencyLimit Frequency = 100_000_000_000
)

// DefaultGeneratorFrequency is used until the device reports its own.
const DefaultGeneratorFrequency = 1 * MHz

// ParseFrequency decodes a digit-only centihertz value.
func ParseFrequency(s string) (Frequency, error) {
	if !isDigits(s) {
		return 0, fmt.Errorf("%w: frequency %q", ErrInvalidValue, s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q", ErrInvalidValue, s)
	}
	return Frequency(v), nil
}

// ParseGeneratorFrequency decodes a DGF value, which is always twelve digits.
func ParseGeneratorFrequency(s string) (Frequency, error) {
	if len(s) != 12 {
		return 0, fmt.Errorf("%w: generator frequency %q", ErrInvalidValue, s)
	}
	return ParseFrequency(s)
}

// ParseHz reads a human entered frequency such as "14097100" or
// "7040.1k" or "10.1402M".
func ParseHz(s string) (Frequency, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult, s = 1e6, s[:len(s)-1]
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1e3, s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: frequency %q", ErrInvalidValue, s)
	}
	f := Frequency(v*mult*100 + 0.5)
	if f >= FrequencyLimit {
		return 0, fmt.Errorf("%w: frequency %q too high", ErrInvalidValue, s)
	}
	return f, nil
}

// Field renders the twelve digit DGF representation.
func (f Frequency) Field() string {
	return fmt.Sprintf("%012d", uint64(f))
}

// Hz returns the frequency in hertz.
func (f Frequency) Hz() float64 {
	return float64(f) / 100
}

// String groups the value in thousands, "14 097 100.00" Hz.
func (f Frequency) String() string {
	digits := strconv.FormatUint(uint64(f/Hz), 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s.%02d", b.String(), uint64(f%Hz))
}

// Step moves f by delta centihertz. Going above the twelve digit field wraps
// around. The result is never zero: anything below one clamps to one.
func (f Frequency) Step(delta int64) Frequency {
	v := int64(f) + delta
	if v >= int64(FrequencyLimit) {
		v -= int64(FrequencyLimit)
	}
	if v < 1 {
		v = 1
	}
	return Frequency(v)
}

// Digit returns decimal digit pos of the twelve digit field, 0 being the
// most significant.
func (f Frequency) Digit(pos int) int {
	s := f.Field()
	if pos < 0 || pos >= len(s) {
		return 0
	}
	return int(s[pos] - '0')
}

// StepSizes are the digit weights the generator tab exposes, from 100 MHz
// down to 0.01 Hz.
var StepSizes = []Frequency{
	100 * MHz, 10 * MHz, 1 * MHz, 100 * KHz, 10 * KHz, 1 * KHz,
	100 * Hz, 10 * Hz, 1 * Hz, 10, 1,
}
