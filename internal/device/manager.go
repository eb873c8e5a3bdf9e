package device

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager opens and closes device connections for a long running front
// end. Each connection gets its own Session and Controller.
type Manager struct {
	mu       sync.Mutex
	open     Opener
	openOpts OpenOptions
	ctlOpts  Options
	log      *zap.Logger
	trace    *Trace

	ctl     *Controller
	cancel  context.CancelFunc
	runDone chan struct{}

	onConnect    func(*Controller)
	onDisconnect func(error)
}

func NewManager(open Opener, openOpts OpenOptions, ctlOpts Options, log *zap.Logger, trace *Trace) *Manager {
	if open == nil {
		open = OpenSerial
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		open:     open,
		openOpts: openOpts,
		ctlOpts:  ctlOpts,
		log:      log,
		trace:    trace,
	}
}

// Trace is shared by all connections.
func (m *Manager) Trace() *Trace { return m.trace }

// OnConnect is called with each new controller before it starts running,
// so update listeners can be attached without missing replies.
func (m *Manager) OnConnect(fn func(*Controller)) {
	m.mu.Lock()
	m.onConnect = fn
	m.mu.Unlock()
}

// OnDisconnect is called when a connection ends without Disconnect being
// called, with the reason.
func (m *Manager) OnDisconnect(fn func(error)) {
	m.mu.Lock()
	m.onDisconnect = fn
	m.mu.Unlock()
}

// Connect closes any open connection, opens name and starts reading. The
// device status is refreshed in the background.
func (m *Manager) Connect(name string) (*Controller, error) {
	m.Disconnect()

	port, err := m.open(name, m.openOpts)
	if err != nil {
		return nil, err
	}
	sess := NewSession(name, port, m.log, m.trace)
	ctl := NewController(sess, m.log, m.ctlOpts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.ctl, m.cancel, m.runDone = ctl, cancel, done
	onConnect := m.onConnect
	m.mu.Unlock()

	if onConnect != nil {
		onConnect(ctl)
	}
	m.log.Info("connected", zap.String("port", name))

	go m.run(ctx, ctl, done)
	return ctl, nil
}

func (m *Manager) run(ctx context.Context, ctl *Controller, done chan struct{}) {
	defer close(done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctl.Run(gctx)
	})
	g.Go(func() error {
		if err := ctl.Refresh(gctx); err != nil && gctx.Err() == nil {
			m.log.Warn("initial refresh incomplete", zap.Error(err))
		}
		return nil
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return
	}

	// The session died underneath us.
	m.mu.Lock()
	current := m.ctl == ctl
	if current {
		m.ctl, m.cancel, m.runDone = nil, nil, nil
	}
	fn := m.onDisconnect
	m.mu.Unlock()

	ctl.Session().Close()
	if current {
		m.log.Warn("connection lost", zap.Error(err))
		if fn != nil {
			fn(err)
		}
	}
}

// Disconnect closes the current connection, if any, and waits for its
// goroutines to finish.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	ctl, cancel, done := m.ctl, m.cancel, m.runDone
	m.ctl, m.cancel, m.runDone = nil, nil, nil
	m.mu.Unlock()

	if ctl == nil {
		return
	}
	cancel()
	ctl.Session().Close()
	<-done
	m.log.Info("disconnected", zap.String("port", ctl.Session().Name()))
}

// IsConnected returns true if a port is currently open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctl != nil
}

// Controller returns the current controller or ErrNotConnected.
func (m *Manager) Controller() (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctl == nil {
		return nil, ErrNotConnected
	}
	return m.ctl, nil
}
