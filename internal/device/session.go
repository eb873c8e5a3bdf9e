package device

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"wspr-tx-config/internal/wspr"
)

var (
	ErrClosed       = errors.New("session closed")
	ErrNotConnected = errors.New("not connected")
)

// Line is one line received from the device.
type Line struct {
	Time time.Time
	Text string
}

// Session owns an open port. A single goroutine reads the port and
// delivers complete lines; writes are serialized.
type Session struct {
	name  string
	port  Port
	log   *zap.Logger
	trace *Trace

	wmu     sync.Mutex
	lines   chan Line
	stopCh  chan struct{}
	doneCh  chan struct{} // closed when the reader goroutine has exited
	err     error
	rxChars atomic.Int64
	once    sync.Once
}

// NewSession starts reading from port. trace may be nil.
func NewSession(name string, port Port, log *zap.Logger, trace *Trace) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		name:   name,
		port:   port,
		log:    log.With(zap.String("port", name)),
		trace:  trace,
		lines:  make(chan Line, 256),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.read()
	return s
}

// Name is the port name the session was opened on.
func (s *Session) Name() string { return s.name }

// Lines delivers received lines. It is closed when the session ends; Err
// then tells why.
func (s *Session) Lines() <-chan Line { return s.lines }

// Err returns the read error that ended the session, or nil after Close.
// Only valid once Lines is closed.
func (s *Session) Err() error { return s.err }

// RxChars counts the characters received so far.
func (s *Session) RxChars() int64 { return s.rxChars.Load() }

// Send writes a request terminated by CRLF.
func (s *Session) Send(req wspr.Request) error {
	return s.write(req.String(), req.Encode())
}

// SendRaw writes text as typed, optionally followed by CRLF.
func (s *Session) SendRaw(text string, crlf bool) error {
	b := []byte(text)
	if crlf {
		b = append(b, '\r', '\n')
	}
	return s.write(text, b)
}

func (s *Session) write(text string, b []byte) error {
	select {
	case <-s.stopCh:
		return ErrClosed
	default:
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.trace.Add(Sent, text)
	s.log.Debug("tx", zap.String("line", text))
	if _, err := s.port.Write(b); err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.name, err)
	}
	return nil
}

// Close stops the reader and closes the port. It waits for the reader to
// exit and is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopCh)
		err = s.port.Close()
		<-s.doneCh
	})
	return err
}

// Done is closed when the reader goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

func (s *Session) read() {
	defer close(s.lines)
	defer close(s.doneCh)

	buf := make([]byte, 1024)
	var partial []byte

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			s.rxChars.Add(int64(n))
			partial = append(partial, buf[:n]...)
			// The device ends lines with CR, LF or both.
			for {
				idx := indexEOL(partial)
				if idx < 0 {
					break
				}
				text := string(partial[:idx])
				partial = partial[idx+1:]
				if text == "" {
					continue
				}
				s.trace.Add(Received, text)
				s.log.Debug("rx", zap.String("line", text))
				select {
				case s.lines <- Line{Time: time.Now(), Text: text}:
				case <-s.stopCh:
					return
				}
			}
		}

		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("%w: device went away", ErrClosed)
			}
			s.err = fmt.Errorf("serial read on %s: %w", s.name, err)
			s.log.Warn("read failed", zap.Error(err))
			return
		}
	}
}

func indexEOL(b []byte) int {
	for i, c := range b {
		if c == '\r' || c == '\n' {
			return i
		}
	}
	return -1
}
