package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/allbin/serial-bridge/internal/capture"
)

// State of a bridge session.
type State int32

const (
	StateConfiguring State = iota
	StateRunning
	StateClosedDisconnected
	StateClosedCancelled
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateClosedDisconnected:
		return "closed-disconnected"
	case StateClosedCancelled:
		return "closed-cancelled"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosedDisconnected || s == StateClosedCancelled || s == StateFaulted
}

// idleBackstop bounds the idle wait when the device fd is polled too.
const idleBackstop = 250 * time.Millisecond

type sessionConfig struct {
	bufferSize   int
	pollInterval time.Duration
	writeRetry   bool
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID            string
	DeviceID      string
	Remote        string
	State         State
	Started       time.Time
	BytesToNet    uint64
	BytesToDevice uint64
	ShortWrites   uint64
	Err           error
}

// Session bridges one TCP connection and one device. After spawn the
// connection and device are owned by the worker goroutine.
type Session struct {
	ID       uuid.UUID
	DeviceID string
	Started  time.Time

	dev    Device
	conn   net.Conn
	cfg    sessionConfig
	logger *zap.Logger
	tap    *capture.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state         atomic.Int32
	bytesToNet    atomic.Uint64
	bytesToDevice atomic.Uint64
	shortWrites   atomic.Uint64
	err           error // written before done is closed
}

func newSession(deviceID string, dev Device, conn net.Conn, cfg sessionConfig, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       uuid.New(),
		DeviceID: deviceID,
		Started:  time.Now(),
		dev:      dev,
		conn:     conn,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.logger = logger.With(
		zap.String("device", deviceID),
		zap.String("session", s.ID.String()),
		zap.String("remote", conn.RemoteAddr().String()),
	)
	s.state.Store(int32(StateRunning))
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Cancel asks the worker to stop. It does not wait.
func (s *Session) Cancel() {
	s.cancel()
}

// Done is closed once the worker has released the connection and device.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error of a faulted session.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:            s.ID.String(),
		DeviceID:      s.DeviceID,
		Remote:        s.conn.RemoteAddr().String(),
		State:         s.State(),
		Started:       s.Started,
		BytesToNet:    s.bytesToNet.Load(),
		BytesToDevice: s.bytesToDevice.Load(),
		ShortWrites:   s.shortWrites.Load(),
		Err:           s.Err(),
	}
}

// run pumps bytes until the peer disconnects, the session is cancelled or
// a transfer fails. Panics are turned into a faulted state.
func (s *Session) run() (state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			state, err = StateFaulted, fmt.Errorf("%w: panic: %v", ErrTransferFault, r)
		}
		s.err = err
		s.state.Store(int32(state))
		s.teardown()
		close(s.done)
	}()
	return s.loop()
}

func (s *Session) teardown() {
	s.cancel()
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close connection", zap.Error(err))
	}
	if err := s.dev.Close(); err != nil {
		s.logger.Warn("close device", zap.Error(err))
	}
	if s.tap != nil {
		if err := s.tap.Close(); err != nil {
			s.logger.Warn("close capture", zap.Error(err))
		}
	}
}

func (s *Session) loop() (State, error) {
	probe, err := newConnProbe(s.conn)
	if err != nil {
		return StateFaulted, fmt.Errorf("%w: %w", ErrTransferFault, err)
	}
	wk, err := newWaker(s.ctx)
	if err != nil {
		return StateFaulted, fmt.Errorf("%w: %w", ErrTransferFault, err)
	}
	defer wk.Close()

	// a blocked socket read or write returns once the session is cancelled
	stopUnblock := context.AfterFunc(s.ctx, func() {
		_ = s.conn.SetDeadline(time.Now())
	})
	defer stopUnblock()

	devFd := -1
	if p, ok := s.dev.(pollable); ok {
		devFd = p.Fd()
	}
	idle := s.cfg.pollInterval
	if devFd >= 0 {
		idle = idleBackstop
	}

	buf := make([]byte, s.cfg.bufferSize)
	for {
		alive, pending := probe.peek()
		if !alive && !s.cancelled() {
			s.logger.Info("peer disconnected")
			return StateClosedDisconnected, nil
		}

		if s.cancelled() {
			s.logger.Info("session cancelled")
			return StateClosedCancelled, nil
		}

		moved, err := s.deviceToNet(buf)
		if err != nil {
			if s.cancelled() {
				s.logger.Info("session cancelled")
				return StateClosedCancelled, nil
			}
			return StateFaulted, err
		}

		if pending {
			n, err := s.conn.Read(buf)
			if n > 0 {
				if state, err := s.netToDevice(buf[:n]); err != nil || state != StateRunning {
					return state, err
				}
				moved = true
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("peer disconnected")
				return StateClosedDisconnected, nil
			}
			if err != nil {
				if s.cancelled() {
					s.logger.Info("session cancelled")
					return StateClosedCancelled, nil
				}
				return StateFaulted, fmt.Errorf("%w: network read: %w", ErrTransferFault, err)
			}
		}

		if !moved {
			if err := waitIdle(probe.fd, wk.r, devFd, idle); err != nil {
				return StateFaulted, fmt.Errorf("%w: poll: %w", ErrTransferFault, err)
			}
		}
	}
}

func (s *Session) cancelled() bool {
	return s.ctx.Err() != nil
}

// deviceToNet forwards whatever the device has queued.
func (s *Session) deviceToNet(buf []byte) (bool, error) {
	waiting, err := s.dev.InputWaiting()
	if err != nil {
		return false, fmt.Errorf("%w: query input queue: %w", ErrTransferFault, err)
	}
	if waiting <= 0 {
		return false, nil
	}
	if waiting > len(buf) {
		waiting = len(buf)
	}

	n, err := s.dev.Read(buf[:waiting])
	if err != nil {
		return false, fmt.Errorf("%w: device read: %w", ErrTransferFault, err)
	}
	if n == 0 {
		return false, nil
	}
	if _, err := s.conn.Write(buf[:n]); err != nil {
		return false, fmt.Errorf("%w: network write: %w", ErrTransferFault, err)
	}
	s.bytesToNet.Add(uint64(n))
	s.record(capture.DeviceToNet, buf[:n], n)
	s.logger.Debug("device -> network", zap.Int("bytes", n))
	return true, nil
}

// netToDevice issues a single device write for chunk. A short write is
// accepted unless write retry is enabled, then the remainder is written
// until done or the session is cancelled.
func (s *Session) netToDevice(chunk []byte) (State, error) {
	written, err := s.dev.Write(chunk)
	if err != nil {
		return StateFaulted, fmt.Errorf("%w: device write: %w", ErrTransferFault, err)
	}

	for s.cfg.writeRetry && written < len(chunk) {
		if s.ctx.Err() != nil {
			s.bytesToDevice.Add(uint64(written))
			s.record(capture.NetToDevice, chunk, written)
			return StateClosedCancelled, nil
		}
		n, err := s.dev.Write(chunk[written:])
		if err != nil {
			return StateFaulted, fmt.Errorf("%w: device write: %w", ErrTransferFault, err)
		}
		written += n
	}

	if written < len(chunk) {
		s.shortWrites.Add(1)
		s.logger.Warn("short device write", zap.Int("bytes", len(chunk)), zap.Int("written", written))
	}
	s.bytesToDevice.Add(uint64(written))
	s.record(capture.NetToDevice, chunk, written)
	s.logger.Debug("network -> device", zap.Int("bytes", written))
	return StateRunning, nil
}

func (s *Session) record(dir capture.Direction, data []byte, accepted int) {
	if s.tap == nil {
		return
	}
	if err := s.tap.Record(dir, data, accepted); err != nil {
		s.logger.Warn("capture disabled", zap.Error(err))
		_ = s.tap.Close()
		s.tap = nil
	}
}
