package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wspr-tx-config/internal/config"
	"wspr-tx-config/internal/device"
	"wspr-tx-config/internal/logging"
	"wspr-tx-config/internal/simulator"
)

const simulatedPort = "simulator"

// env bundles what every command needs.
type env struct {
	cfg   *config.Config
	log   *zap.Logger
	trace *device.Trace
	sim   *simulator.Device

	// openAtStart is set when the port was named on the command line.
	openAtStart bool
}

func newEnv() (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagDebug {
		cfg.Debug = true
	}
	log, err := logging.New(logging.Options{
		Debug:      cfg.Debug,
		TraceFile:  cfg.Trace.File,
		MaxSizeMB:  cfg.Trace.MaxSizeMB,
		MaxBackups: cfg.Trace.MaxBackups,
		MaxAgeDays: cfg.Trace.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, trace: device.NewTrace(), openAtStart: flagPort != ""}
	if flagSimulate {
		opts := simulator.DefaultOptions()
		opts.Tick = time.Second
		e.sim = simulator.New(opts, log)
		e.cfg.Port = simulatedPort
		e.openAtStart = true
	}
	return e, nil
}

// startupPort is the port the GUI opens before the user picks one.
func (e *env) startupPort() (string, bool) {
	if !e.openAtStart || e.cfg.Port == "" {
		return "", false
	}
	return e.cfg.Port, true
}

func (e *env) close() {
	if e.sim != nil {
		e.sim.Close()
	}
	_ = e.log.Sync()
}

func (e *env) opener() device.Opener {
	if e.sim != nil {
		return e.sim.Opener()
	}
	return device.OpenSerial
}

func (e *env) openOptions() device.OpenOptions {
	return device.OpenOptions{BaudRate: e.cfg.BaudRate, ResetOnOpen: e.cfg.ResetOnOpen}
}

func (e *env) controllerOptions() device.Options {
	return device.Options{QueryTimeout: e.cfg.QueryTimeout, QueryAttempts: e.cfg.QueryAttempts}
}

func (e *env) portNames() []string {
	if e.sim != nil {
		return []string{simulatedPort}
	}
	return device.PortNames()
}

// resolvePort picks the configured port, or the only CH34x port present.
func (e *env) resolvePort() (string, error) {
	if e.cfg.Port != "" {
		return e.cfg.Port, nil
	}
	ports, err := device.ListPorts()
	if err != nil {
		return "", err
	}
	var ch []string
	for _, p := range ports {
		if p.CH34x() {
			ch = append(ch, p.Name)
		}
	}
	if len(ch) == 1 {
		e.log.Info("using detected transmitter port", zap.String("port", ch[0]))
		return ch[0], nil
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return "", fmt.Errorf("no port given, use --port (found: %s)", strings.Join(names, ", "))
}

// conn is a command line connection: a running controller with a
// refreshed status.
type conn struct {
	ctl    *device.Controller
	cancel context.CancelFunc
	done   chan error
}

func (e *env) connect(ctx context.Context) (*conn, error) {
	name, err := e.resolvePort()
	if err != nil {
		return nil, err
	}
	port, err := e.opener()(name, e.openOptions())
	if err != nil {
		return nil, err
	}
	sess := device.NewSession(name, port, e.log, e.trace)
	ctl := device.NewController(sess, e.log, e.controllerOptions())

	runCtx, cancel := context.WithCancel(ctx)
	c := &conn{ctl: ctl, cancel: cancel, done: make(chan error, 1)}
	go func() { c.done <- ctl.Run(runCtx) }()

	if err := ctl.Refresh(ctx); err != nil {
		if !ctl.Responsive() {
			c.close()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		e.log.Warn("some values could not be read", zap.Error(err))
	}
	return c, nil
}

func (c *conn) close() {
	c.cancel()
	<-c.done
	c.ctl.Session().Close()
}
