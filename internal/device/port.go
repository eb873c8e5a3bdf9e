// Package device talks to a WSPR transmitter: it opens the serial port,
// reads replies, sends requests and keeps the device status up to date.
package device

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	ErrNoPorts      = errors.New("no serial ports found")
	ErrPortBusy     = errors.New("serial port in use")
	ErrPortNotFound = errors.New("serial port not found")
)

// Port is the byte stream to the device. A go.bug.st/serial port satisfies
// it, so does one end of a net.Pipe.
type Port interface {
	io.ReadWriteCloser
}

// DefaultBaudRate is the only speed the ZachTek firmware uses.
const DefaultBaudRate = 9600

// ch34xVendorID is the USB vendor of the WCH CH340/CH341 bridge fitted to
// ZachTek boards.
const ch34xVendorID = "1A86"

// OpenOptions controls how the serial port is opened.
type OpenOptions struct {
	BaudRate int
	// ResetOnOpen leaves RTS and DTR asserted, which resets the board's
	// microcontroller when the port opens.
	ResetOnOpen bool
	ReadTimeout time.Duration
}

// Opener opens a named port. Tests and the emulator substitute their own.
type Opener func(name string, opts OpenOptions) (Port, error)

// OpenSerial opens a real serial port at 8N1 without flow control.
func OpenSerial(name string, opts OpenOptions) (Port, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if !opts.ResetOnOpen {
		mode.InitialStatusBits = &serial.ModemOutputBits{RTS: false, DTR: false}
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, classifyOpenError(name, err)
	}
	if err := p.SetReadTimeout(opts.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	return p, nil
}

func classifyOpenError(name string, err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		switch perr.Code() {
		case serial.PortBusy:
			return fmt.Errorf("%w: %s: %v", ErrPortBusy, name, err)
		case serial.PortNotFound:
			return fmt.Errorf("%w: %s: %v", ErrPortNotFound, name, err)
		}
	}
	return fmt.Errorf("failed to open %s: %w", name, err)
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// CH34x reports whether the port is a WCH USB bridge, the chip used on the
// ZachTek transmitters.
func (p PortInfo) CH34x() bool {
	return p.USB && strings.EqualFold(p.VID, ch34xVendorID)
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	s := fmt.Sprintf("%s (USB %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	return s + ")"
}

// ListPorts returns the serial ports on this machine, likely transmitters
// first. When nothing is found the error carries a driver hint.
func ListPorts() ([]PortInfo, error) {
	var out []PortInfo
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			out = append(out, PortInfo{
				Name:    d.Name,
				USB:     d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			})
		}
	} else {
		names, lerr := serial.GetPortsList()
		if lerr != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", lerr)
		}
		for _, n := range names {
			out = append(out, PortInfo{Name: n})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w%s", ErrNoPorts, DriverHint())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CH34x() && !out[j].CH34x()
	})
	return out, nil
}

// PortNames returns just the names from ListPorts, or nil.
func PortNames() []string {
	ports, err := ListPorts()
	if err != nil {
		return nil
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}

// DriverHint explains the usual reason for a missing port on this OS.
func DriverHint() string {
	switch runtime.GOOS {
	case "windows":
		return "; is the CH34x USB-serial driver installed?"
	case "darwin":
		return "; on older macOS the CH34x driver must be installed and /dev/cu.* used"
	default:
		return "; check the USB cable and that your user may open tty devices (dialout group)"
	}
}
