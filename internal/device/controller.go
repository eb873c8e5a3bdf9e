package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wspr-tx-config/internal/wspr"
)

// ErrNoResponse is returned when a query is not answered in time.
var ErrNoResponse = errors.New("device not responding")

// Options tune the request/response behaviour.
type Options struct {
	QueryTimeout  time.Duration
	QueryAttempts int
	// MaxRequery bounds how often an unparsable value is asked for again
	// before the controller gives up on it.
	MaxRequery int
}

// DefaultOptions match the pace of the device firmware at 9600 baud.
func DefaultOptions() Options {
	return Options{
		QueryTimeout:  time.Second,
		QueryAttempts: 3,
		MaxRequery:    3,
	}
}

// UpdateFunc is told about every reply that changed the status.
type UpdateFunc func(code wspr.Code, st wspr.Status)

// Controller applies device replies to a Status and turns user operations
// into requests.
type Controller struct {
	sess  *Session
	log   *zap.Logger
	opts  Options
	clock *wspr.MirrorClock

	mu         sync.Mutex
	status     wspr.Status
	waiters    map[wspr.Code][]chan wspr.Reply
	requery    map[wspr.Code]int
	listeners  []UpdateFunc
	responsive bool
	savePend   bool

	refreshMu sync.Mutex
	refreshWG sync.WaitGroup
}

func NewController(sess *Session, log *zap.Logger, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = def.QueryTimeout
	}
	if opts.QueryAttempts <= 0 {
		opts.QueryAttempts = def.QueryAttempts
	}
	if opts.MaxRequery <= 0 {
		opts.MaxRequery = def.MaxRequery
	}
	return &Controller{
		sess:    sess,
		log:     log,
		opts:    opts,
		clock:   wspr.NewMirrorClock(nil),
		status:  wspr.NewStatus(),
		waiters: make(map[wspr.Code][]chan wspr.Reply),
		requery: make(map[wspr.Code]int),
	}
}

// Session returns the underlying session.
func (c *Controller) Session() *Session { return c.sess }

// Clock is synced from GPS time reports.
func (c *Controller) Clock() *wspr.MirrorClock { return c.clock }

// OnUpdate registers fn for status changes. fn runs on the Run goroutine.
func (c *Controller) OnUpdate(fn UpdateFunc) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Snapshot returns a copy of the current status.
func (c *Controller) Snapshot() wspr.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Clone()
}

// Settings returns the configurable part of the current status.
func (c *Controller) Settings() wspr.Settings {
	return wspr.SettingsOf(c.Snapshot())
}

// Responsive reports whether the device has sent anything we understood.
func (c *Controller) Responsive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responsive
}

// SavePending is true between Save and the device acknowledging it.
func (c *Controller) SavePending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savePend
}

// Run consumes replies until ctx ends or the session fails. It waits for
// any background refresh it started before returning.
func (c *Controller) Run(ctx context.Context) error {
	defer c.refreshWG.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-c.sess.Lines():
			if !ok {
				if err := c.sess.Err(); err != nil {
					return err
				}
				return ErrClosed
			}
			c.handleLine(ctx, line.Text)
		}
	}
}

func (c *Controller) handleLine(ctx context.Context, text string) {
	if !wspr.IsReplyLine(text) {
		c.log.Debug("ignoring noise", zap.String("line", text))
		return
	}
	r, err := wspr.ParseReply(text)
	if err != nil {
		if errors.Is(err, wspr.ErrUnknownCode) {
			c.log.Warn("unknown reply, firmware may be newer than this program", zap.String("line", text))
		} else {
			c.log.Warn("malformed reply", zap.String("line", text), zap.Error(err))
		}
		return
	}

	c.mu.Lock()
	c.responsive = true
	err = c.status.Apply(r)
	var requery bool
	if err != nil {
		if r.Code.Requery() {
			c.requery[r.Code]++
			requery = c.requery[r.Code] <= c.opts.MaxRequery
		}
	} else {
		delete(c.requery, r.Code)
	}
	if err == nil && r.Code == wspr.CodeMessage {
		c.savePend = false
	}
	var waiters []chan wspr.Reply
	if err == nil {
		waiters = c.waiters[r.Code]
		delete(c.waiters, r.Code)
	}
	snap := c.status.Clone()
	listeners := append([]UpdateFunc(nil), c.listeners...)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("bad value from device", zap.String("code", string(r.Code)), zap.String("data", r.Data), zap.Error(err))
		if requery {
			if serr := c.sess.Send(wspr.Get(r.Code)); serr != nil {
				c.log.Warn("requery failed", zap.Error(serr))
			}
		}
		return
	}

	if r.Code == wspr.CodeGPSTime {
		if cerr := c.clock.Set(r.Data); cerr != nil {
			c.log.Debug("bad gps time", zap.String("data", r.Data))
		}
	}
	for _, w := range waiters {
		w <- r
	}
	for _, fn := range listeners {
		fn(r.Code, snap)
	}

	// The device announces itself with MIN after reset and after a save;
	// either way the host view may be stale.
	if r.Code == wspr.CodeMessage {
		c.refreshInBackground(ctx)
	}
}

func (c *Controller) refreshInBackground(ctx context.Context) {
	if !c.refreshMu.TryLock() {
		return
	}
	c.refreshWG.Add(1)
	go func() {
		defer c.refreshWG.Done()
		defer c.refreshMu.Unlock()
		if err := c.refresh(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("status refresh incomplete", zap.Error(err))
		}
	}()
}

// Query asks the device for code and waits for the answer, retrying on
// timeout. It must not be called from an UpdateFunc.
func (c *Controller) Query(ctx context.Context, code wspr.Code) (wspr.Reply, error) {
	for attempt := 1; attempt <= c.opts.QueryAttempts; attempt++ {
		ch := c.wait(code)
		if err := c.sess.Send(wspr.Get(code)); err != nil {
			c.unwait(code, ch)
			return wspr.Reply{}, err
		}
		timer := time.NewTimer(c.opts.QueryTimeout)
		select {
		case r := <-ch:
			timer.Stop()
			return r, nil
		case <-ctx.Done():
			timer.Stop()
			c.unwait(code, ch)
			return wspr.Reply{}, ctx.Err()
		case <-c.sess.Done():
			timer.Stop()
			c.unwait(code, ch)
			return wspr.Reply{}, ErrClosed
		case <-timer.C:
			c.unwait(code, ch)
			c.log.Debug("query timed out", zap.String("code", string(code)), zap.Int("attempt", attempt))
		}
	}
	return wspr.Reply{}, fmt.Errorf("%w: no answer to %s after %d attempts", ErrNoResponse, code, c.opts.QueryAttempts)
}

func (c *Controller) wait(code wspr.Code) chan wspr.Reply {
	ch := make(chan wspr.Reply, 1)
	c.mu.Lock()
	c.waiters[code] = append(c.waiters[code], ch)
	c.mu.Unlock()
	return ch
}

func (c *Controller) unwait(code wspr.Code, ch chan wspr.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws := c.waiters[code]
	for i, w := range ws {
		if w == ch {
			c.waiters[code] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(c.waiters[code]) == 0 {
		delete(c.waiters, code)
	}
}

// Refresh reads every setting and factory value from the device. Refreshes
// are serialized. If the device does not answer the first query the refresh
// is abandoned.
func (c *Controller) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refresh(ctx)
}

func (c *Controller) refresh(ctx context.Context) error {
	var errs []error
	for i, code := range wspr.StatusQueries {
		if _, err := c.Query(ctx, code); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) || i == 0 {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) send(reqs ...wspr.Request) error {
	for _, r := range reqs {
		if err := c.sess.Send(r); err != nil {
			return err
		}
	}
	return nil
}

// Start begins the WSPR beacon.
func (c *Controller) Start() error {
	return c.send(wspr.Set(wspr.CodeCurrentMode, wspr.ModeBeacon.Letter()))
}

// Stop puts the device in idle mode.
func (c *Controller) Stop() error {
	return c.send(wspr.Set(wspr.CodeCurrentMode, wspr.ModeIdle.Letter()))
}

// StartGenerator outputs a constant carrier at the generator frequency.
func (c *Controller) StartGenerator() error {
	return c.send(wspr.Set(wspr.CodeCurrentMode, wspr.ModeGenerator.Letter()))
}

// SetMode dispatches to Start, Stop or StartGenerator.
func (c *Controller) SetMode(m wspr.Mode) error {
	switch m {
	case wspr.ModeBeacon:
		return c.Start()
	case wspr.ModeGenerator:
		return c.StartGenerator()
	case wspr.ModeIdle:
		return c.Stop()
	}
	return fmt.Errorf("%w: mode %q", wspr.ErrInvalidValue, m)
}

// SetBand enables or disables one band.
func (c *Controller) SetBand(idx int, on bool) error {
	if idx < 0 || idx >= wspr.NumBands {
		return fmt.Errorf("%w: band index %d", wspr.ErrInvalidValue, idx)
	}
	return c.send(wspr.BandRequest(idx, on))
}

// SetBands writes the whole band table.
func (c *Controller) SetBands(enabled [wspr.NumBands]bool) error {
	for i, on := range enabled {
		if err := c.send(wspr.BandRequest(i, on)); err != nil {
			return err
		}
	}
	return nil
}

// SetCallsign stops the beacon and stores a new callsign.
func (c *Controller) SetCallsign(call string) error {
	call, err := wspr.NormalizeCallsign(call)
	if err != nil {
		return err
	}
	return c.send(
		wspr.Set(wspr.CodeCurrentMode, wspr.ModeIdle.Letter()),
		wspr.Set(wspr.CodeCallsign, call),
	)
}

func (c *Controller) SetLocator(loc string) error {
	loc, err := wspr.NormalizeLocator(loc)
	if err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodeLocator, loc))
}

func (c *Controller) SetPause(seconds int) error {
	if err := wspr.ValidPause(seconds); err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodeTxPause, fmt.Sprintf("%05d", seconds)))
}

func (c *Controller) SetLocationSource(l wspr.LocationSource) error {
	if _, err := wspr.ParseLocationSource(l.Letter()); err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodeLocationSource, l.Letter()))
}

func (c *Controller) SetPowerMode(p wspr.PowerMode) error {
	if _, err := wspr.ParsePowerMode(p.Letter()); err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodePowerMode, p.Letter()))
}

// SetStartMode selects what the device does after power on.
func (c *Controller) SetStartMode(m wspr.Mode) error {
	if _, err := wspr.ParseMode(m.Letter()); err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodeStartMode, m.Letter()))
}

func (c *Controller) SetReportedPower(dbm int) error {
	if err := wspr.ValidPower(dbm); err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodeReportedPower, fmt.Sprintf("%02d", dbm)))
}

func (c *Controller) SetName(name string) error {
	if err := wspr.ValidName(name); err != nil {
		return err
	}
	return c.send(wspr.Set(wspr.CodeName, name))
}

// SetGeneratorFrequency stores f locally and on the device.
func (c *Controller) SetGeneratorFrequency(f wspr.Frequency) error {
	if f == 0 || f >= wspr.FrequencyLimit {
		return fmt.Errorf("%w: generator frequency %d", wspr.ErrInvalidValue, f)
	}
	c.mu.Lock()
	c.status.GeneratorFrequency = f
	c.mu.Unlock()
	return c.send(wspr.Set(wspr.CodeGeneratorFrequency, f.Field()))
}

// StepFrequency moves the generator frequency by delta centihertz and
// returns the new value.
func (c *Controller) StepFrequency(delta int64) (wspr.Frequency, error) {
	c.mu.Lock()
	f := c.status.GeneratorFrequency.Step(delta)
	c.status.GeneratorFrequency = f
	c.mu.Unlock()
	return f, c.send(wspr.Set(wspr.CodeGeneratorFrequency, f.Field()))
}

// Save writes the current settings to the device EEPROM. The device
// acknowledges with a MIN message.
func (c *Controller) Save() error {
	c.mu.Lock()
	c.savePend = true
	c.mu.Unlock()
	return c.send(wspr.Set(wspr.CodeSaveSettings, ""))
}

// SendRaw writes free text, for the debug pane.
func (c *Controller) SendRaw(text string, crlf bool) error {
	return c.sess.SendRaw(text, crlf)
}

// ApplySettings validates s and writes every field it sets. With save the
// settings are stored in EEPROM afterwards.
func (c *Controller) ApplySettings(s wspr.Settings, save bool) error {
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	if err := c.send(s.Requests()...); err != nil {
		return err
	}
	if save {
		return c.Save()
	}
	return nil
}
