// Package simulator emulates a ZachTek WSPR transmitter on the host side
// of a pipe. It answers the same requests as the firmware and can run an
// accelerated beacon cycle with GPS reports.
package simulator

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/wspr"
)

// Options configure the emulated device.
type Options struct {
	Product         string
	FirmwareVersion string
	// LowPass lists the band indexes with a fitted low pass filter.
	LowPass []int
	// Announce sends a MIN banner when a host connects, as the firmware
	// does after a reset.
	Announce bool
	// Tick drives the beacon and GPS reports. Zero disables them.
	Tick time.Duration
	// SecondsPerTick is how much device time passes per tick.
	SecondsPerTick int
	// Silent makes the device ignore every request.
	Silent bool
}

// DefaultOptions emulate a WSPR TX Desktop with a 20 m and 40 m filter.
func DefaultOptions() Options {
	return Options{
		Product:         "01012",
		FirmwareVersion: "001",
		LowPass:         []int{4, 6},
		Announce:        true,
		SecondsPerTick:  40,
	}
}

type settings struct {
	mode      wspr.Mode
	startMode wspr.Mode
	pause     int
	bands     [wspr.NumBands]bool
	locSrc    wspr.LocationSource
	powerMode wspr.PowerMode
	call      string
	locator   string
	power     int
	name      string
	genFreq   wspr.Frequency
}

// Device is the emulated transmitter.
type Device struct {
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	cur      settings
	saved    settings
	conn     net.Conn
	received []string

	// beacon cycle
	txBand    int
	txSeconds int
	pauseLeft int
	nextIdx   int
	gpsSecs   int

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(opts Options, log *zap.Logger) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SecondsPerTick <= 0 {
		opts.SecondsPerTick = 40
	}
	s := settings{
		mode:      wspr.ModeIdle,
		startMode: wspr.ModeIdle,
		pause:     120,
		locSrc:    wspr.LocationGPS,
		powerMode: wspr.PowerNormal,
		call:      "N0CALL",
		locator:   "JO65",
		power:     23,
		name:      "Simulated",
		genFreq:   wspr.DefaultGeneratorFrequency,
	}
	s.bands[6] = true
	return &Device{
		opts:   opts,
		log:    log.Named("simulator"),
		cur:    s,
		saved:  s,
		txBand: -1,
		stop:   make(chan struct{}),
	}
}

// Opener lets the device stand in for a serial port.
func (d *Device) Opener() device.Opener {
	return func(name string, _ device.OpenOptions) (device.Port, error) {
		return d.Connect(), nil
	}
}

// Connect returns the host end of a new pipe. An earlier connection is
// dropped, like unplugging the cable.
func (d *Device) Connect() net.Conn {
	host, dev := net.Pipe()

	d.mu.Lock()
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn = dev
	// A new connection is a reset: unsaved settings are lost.
	d.cur = d.saved
	d.cur.mode = d.saved.startMode
	d.txBand, d.txSeconds, d.pauseLeft = -1, 0, 0
	d.mu.Unlock()

	d.wg.Add(1)
	go d.serve(dev)
	if d.opts.Tick > 0 {
		d.wg.Add(1)
		go d.tick(dev)
	}
	return host
}

// Close drops the connection and stops all goroutines.
func (d *Device) Close() {
	d.mu.Lock()
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Received returns every request line the device has seen.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

// Saved returns what is stored in the emulated EEPROM.
func (d *Device) Saved() wspr.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved.export()
}

// Current returns the live settings.
func (d *Device) Current() wspr.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur.export()
}

// Mode returns the current operating mode.
func (d *Device) Mode() wspr.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur.mode
}

func (s settings) export() wspr.Settings {
	st := wspr.NewStatus()
	st.Callsign, st.Locator, st.ReportedPower = s.call, s.locator, s.power
	st.LocationSource, st.PowerMode, st.StartMode = s.locSrc, s.powerMode, s.startMode
	st.Pause, st.Bands, st.Name, st.GeneratorFrequency = s.pause, s.bands, s.name, s.genFreq
	return wspr.SettingsOf(st)
}

func (d *Device) serve(conn net.Conn) {
	defer d.wg.Done()
	if d.opts.Announce {
		d.send(conn, reply(wspr.CodeMessage, "ZachTek WSPR TX simulator ready"))
	}
	sc := bufio.NewScanner(conn)
	sc.Split(scanCRLF)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		d.mu.Lock()
		d.received = append(d.received, line)
		d.mu.Unlock()
		if d.opts.Silent {
			continue
		}
		for _, out := range d.handle(line) {
			if !d.send(conn, out) {
				return
			}
		}
	}
}

func (d *Device) send(conn net.Conn, line string) bool {
	if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
		d.log.Debug("write failed", zap.Error(err))
		return false
	}
	return true
}

func reply(code wspr.Code, data string) string {
	return wspr.Reply{Code: code, Data: data}.String()
}

// handle executes one request and returns the reply lines.
func (d *Device) handle(line string) []string {
	if len(line) < 7 || line[0] != '[' || line[4] != ']' {
		return nil
	}
	code := wspr.Code(line[1:4])
	op := line[6]
	value := ""
	if len(line) > 8 {
		value = line[8:]
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch op {
	case 'G':
		return d.get(code)
	case 'S':
		if err := d.set(code, value); err != nil {
			d.log.Debug("rejected", zap.String("line", line), zap.Error(err))
			return nil
		}
		if code == wspr.CodeSaveSettings {
			return []string{reply(wspr.CodeMessage, "Settings saved")}
		}
		if code == wspr.CodeBand {
			return []string{reply(code, value)}
		}
		return d.get(code)
	}
	return nil
}

func (d *Device) get(code wspr.Code) []string {
	s := &d.cur
	switch code {
	case wspr.CodeCurrentMode:
		return []string{reply(code, s.mode.Letter())}
	case wspr.CodeStartMode:
		return []string{reply(code, s.startMode.Letter())}
	case wspr.CodeTxPause:
		return []string{reply(code, fmt.Sprintf("%05d", s.pause))}
	case wspr.CodeBand:
		out := make([]string, 0, wspr.NumBands)
		for i, on := range s.bands {
			out = append(out, wspr.Reply{Code: code, Data: bandFlag(i, on)}.String())
		}
		return out
	case wspr.CodeLocationSource:
		return []string{reply(code, s.locSrc.Letter())}
	case wspr.CodePowerMode:
		return []string{reply(code, s.powerMode.Letter())}
	case wspr.CodeCallsign:
		return []string{reply(code, s.call)}
	case wspr.CodeLocator:
		return []string{reply(code, s.locator)}
	case wspr.CodeReportedPower:
		return []string{reply(code, fmt.Sprintf("%02d", s.power))}
	case wspr.CodeName:
		return []string{reply(code, s.name)}
	case wspr.CodeGeneratorFrequency:
		return []string{reply(code, s.genFreq.Field())}
	case wspr.CodeProduct:
		return []string{reply(code, d.opts.Product)}
	case wspr.CodeHardwareVersion:
		return []string{reply(code, "002")}
	case wspr.CodeHardwareRevision:
		return []string{reply(code, "001")}
	case wspr.CodeFirmwareVersion:
		return []string{reply(code, d.opts.FirmwareVersion)}
	case wspr.CodeFirmwareRevision:
		return []string{reply(code, "008")}
	case wspr.CodeReferenceFreq:
		return []string{reply(code, "026000000")}
	case wspr.CodeLowPassFilter:
		out := make([]string, 0, len(d.opts.LowPass))
		for _, b := range d.opts.LowPass {
			out = append(out, reply(code, fmt.Sprintf("LP%02d", b)))
		}
		return out
	case wspr.CodeTxOn:
		return []string{reply(code, boolFlag(d.txBand >= 0))}
	}
	return nil
}

func (d *Device) set(code wspr.Code, v string) error {
	s := &d.cur
	switch code {
	case wspr.CodeCurrentMode:
		m, err := wspr.ParseMode(v)
		if err != nil {
			return err
		}
		s.mode = m
		d.txBand, d.txSeconds, d.pauseLeft = -1, 0, 0
	case wspr.CodeStartMode:
		m, err := wspr.ParseMode(v)
		if err != nil {
			return err
		}
		s.startMode = m
	case wspr.CodeTxPause:
		n, err := strconv.Atoi(v)
		if err != nil || len(v) != 5 {
			return fmt.Errorf("%w: pause %q", wspr.ErrInvalidValue, v)
		}
		s.pause = n
	case wspr.CodeBand:
		if len(v) != 4 {
			return fmt.Errorf("%w: band %q", wspr.ErrInvalidValue, v)
		}
		idx, err := wspr.ParseBandIndex(v[:2])
		if err != nil {
			return err
		}
		switch v[3] {
		case 'E':
			s.bands[idx] = true
		case 'D':
			s.bands[idx] = false
		default:
			return fmt.Errorf("%w: band %q", wspr.ErrInvalidValue, v)
		}
	case wspr.CodeLocationSource:
		l, err := wspr.ParseLocationSource(v)
		if err != nil {
			return err
		}
		s.locSrc = l
	case wspr.CodePowerMode:
		p, err := wspr.ParsePowerMode(v)
		if err != nil {
			return err
		}
		s.powerMode = p
	case wspr.CodeCallsign:
		if len(v) > wspr.MaxCallsignLen {
			v = v[:wspr.MaxCallsignLen]
		}
		s.call = v
	case wspr.CodeLocator:
		s.locator = v
	case wspr.CodeReportedPower:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: power %q", wspr.ErrInvalidValue, v)
		}
		s.power = n
	case wspr.CodeName:
		s.name = v
	case wspr.CodeGeneratorFrequency:
		f, err := wspr.ParseGeneratorFrequency(v)
		if err != nil {
			return err
		}
		s.genFreq = f
	case wspr.CodeSaveSettings:
		d.saved = d.cur
	default:
		return fmt.Errorf("%w: %s is read only", wspr.ErrInvalidValue, code)
	}
	return nil
}

func bandFlag(idx int, on bool) string {
	if on {
		return fmt.Sprintf("%02d E", idx)
	}
	return fmt.Sprintf("%02d D", idx)
}

func boolFlag(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// scanCRLF splits on CR, LF or CRLF.
func scanCRLF(data []byte, atEOF bool) (int, []byte, error) {
	for i, c := range data {
		if c == '\r' || c == '\n' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
