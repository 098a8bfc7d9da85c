package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/allbin/serial-bridge/internal/capture"
)

// DuplicatePolicy decides what an open does when the identifier already
// has a running session.
type DuplicatePolicy string

const (
	// DuplicateReplace overwrites the registry entry; the previous session
	// keeps running, detached from the registry.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateReject refuses the open with the failure line.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateTakeover cancels the running session, waits for it, then opens.
	DuplicateTakeover DuplicatePolicy = "takeover"
)

// defaultTakeoverTimeout bounds the wait for a session being taken over
// when Options.TakeoverTimeout is unset.
const defaultTakeoverTimeout = 10 * time.Second

// socketBufferSize is applied to both directions of accepted connections.
const socketBufferSize = 65536

// Options configures a Server.
type Options struct {
	// Address is the host:port of the management listener.
	Address string

	DuplicateOpen       DuplicatePolicy
	PruneClosed         bool
	EmptyLineShutdown   bool
	AllowRemoteShutdown bool

	CommandTimeout   time.Duration
	PollInterval     time.Duration
	// TakeoverTimeout is how long a takeover waits for the previous session
	// to release the device before the open is refused.
	TakeoverTimeout  time.Duration
	BufferSize       int
	DeviceWriteRetry bool

	Profile Profile

	// CaptureDir enables per-session capture files when non-empty.
	CaptureDir string
}

// DefaultOptions returns the options matching the default configuration.
func DefaultOptions() Options {
	return Options{
		Address:             ":12345",
		DuplicateOpen:       DuplicateReplace,
		EmptyLineShutdown:   true,
		AllowRemoteShutdown: true,
		CommandTimeout:      30 * time.Second,
		PollInterval:        5 * time.Millisecond,
		TakeoverTimeout:     defaultTakeoverTimeout,
		BufferSize:          1 << 20,
		Profile:             DefaultProfile(),
	}
}

type request struct {
	conn net.Conn
	cmd  command
}

type sessionExit struct {
	session *Session
	state   State
	err     error
}

type snapshotRequest struct {
	reply chan []SessionInfo
}

// Server is the management listener and bridge control plane. A single
// control goroutine (Run) owns the registry and the task table; other
// goroutines talk to it through channels.
type Server struct {
	opts   Options
	driver Driver
	logger *zap.Logger

	mu         sync.Mutex
	listener   net.Listener
	onShutdown []func()
	inflight   map[net.Conn]struct{}
	closed     bool

	requests  chan request
	exits     chan sessionExit
	snapshots chan snapshotRequest

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	quit         chan struct{}

	// owned by the control goroutine
	registry *registry
	tasks    map[uuid.UUID]*Session
}

// NewServer creates a server using driver for all device access.
func NewServer(driver Driver, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:       opts,
		driver:     driver,
		logger:     logger.Named("bridge"),
		inflight:   make(map[net.Conn]struct{}),
		requests:   make(chan request),
		exits:      make(chan sessionExit),
		snapshots:  make(chan snapshotRequest),
		shutdownCh: make(chan struct{}),
		quit:       make(chan struct{}),
		registry:   newRegistry(),
		tasks:      make(map[uuid.UUID]*Session),
	}
}

// Listen binds the management listener. Run calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Address, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// RegisterOnShutdown registers f to run at the end of shutdown, after the
// listener is closed.
func (s *Server) RegisterOnShutdown(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = append(s.onShutdown, f)
}

// Shutdown asks Run to stop. It returns immediately; use Done to wait.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Done is closed when Run has finished shutting down.
func (s *Server) Done() <-chan struct{} {
	return s.quit
}

// Sessions returns a snapshot of every registry entry, sorted by device.
func (s *Server) Sessions(ctx context.Context) ([]SessionInfo, error) {
	req := snapshotRequest{reply: make(chan []SessionInfo, 1)}
	select {
	case s.snapshots <- req:
	case <-s.quit:
		return nil, ErrServerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case infos := <-req.reply:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run serves management connections until ctx is cancelled, Shutdown is
// called, or a client triggers shutdown. It always shuts down cleanly and
// returns nil unless the listener could not be bound.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-s.quit:
		return ErrServerClosed
	default:
	}
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("listening", zap.String("address", s.Addr().String()))

	acceptDone := make(chan error, 1)
	go s.acceptLoop(acceptDone)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested", zap.String("reason", "context cancelled"))
			return s.shutdown()
		case <-s.shutdownCh:
			s.logger.Info("shutdown requested")
			return s.shutdown()
		case err := <-acceptDone:
			s.logger.Error("accept failed", zap.Error(err))
			return s.shutdown()
		case req := <-s.requests:
			if stop := s.dispatch(req); stop {
				return s.shutdown()
			}
		case ex := <-s.exits:
			s.handleExit(ex)
		case req := <-s.snapshots:
			req.reply <- s.snapshot()
		}
	}
}

func (s *Server) acceptLoop(done chan<- error) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
			case <-s.quit:
			default:
				if !errors.Is(err, net.ErrClosed) {
					done <- err
				}
			}
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			if err := tc.SetReadBuffer(socketBufferSize); err != nil {
				s.logger.Debug("set socket read buffer", zap.Error(err))
			}
			if err := tc.SetWriteBuffer(socketBufferSize); err != nil {
				s.logger.Debug("set socket write buffer", zap.Error(err))
			}
		}
		s.logger.Debug("connection accepted", zap.String("remote", conn.RemoteAddr().String()))

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.inflight[conn] = struct{}{}
		s.mu.Unlock()
		go s.readRequest(conn)
	}
}

// readRequest reads the command line and hands it to the control goroutine.
func (s *Server) readRequest(conn net.Conn) {
	line, err := readCommand(conn, s.opts.CommandTimeout)

	s.mu.Lock()
	_, tracked := s.inflight[conn]
	delete(s.inflight, conn)
	s.mu.Unlock()
	if !tracked {
		// closed by shutdown
		return
	}

	remote := conn.RemoteAddr().String()
	if err != nil {
		s.logger.Warn("command read failed", zap.String("remote", remote), zap.Error(err))
		_ = conn.Close()
		return
	}

	select {
	case s.requests <- request{conn: conn, cmd: parseCommand(line)}:
	case <-s.quit:
		_ = conn.Close()
	}
}

// dispatch handles one command on the control goroutine and reports
// whether the service must shut down.
func (s *Server) dispatch(req request) bool {
	conn, cmd := req.conn, req.cmd
	log := s.logger.With(zap.String("remote", conn.RemoteAddr().String()), zap.Stringer("command", cmd.kind))
	log.Info("received", zap.String("line", cmd.line))

	switch cmd.kind {
	case cmdDiscovery:
		s.discover(conn, log)
	case cmdOpen:
		s.open(req, log)
	case cmdList:
		ids := s.registry.running()
		if err := writeList(conn, ids); err != nil {
			log.Warn("write list", zap.Error(err))
		}
		_ = conn.Close()
		log.Info("listed open ports", zap.Strings("devices", ids))
	case cmdShutdown:
		_ = conn.Close()
		if s.opts.AllowRemoteShutdown {
			log.Info("remote shutdown")
			return true
		}
		log.Warn("remote shutdown disabled")
	case cmdEmpty:
		_ = conn.Close()
		if s.opts.EmptyLineShutdown {
			log.Info("empty command, shutting down")
			return true
		}
		log.Info("empty command ignored")
	default:
		_ = conn.Close()
		log.Warn("unknown command ignored")
	}
	return false
}

func (s *Server) discover(conn net.Conn, log *zap.Logger) {
	defer conn.Close()

	devices, err := s.driver.Enumerate()
	if err != nil {
		log.Error("enumerate devices", zap.Error(err))
		devices = nil
	}

	names := make([]string, len(devices))
	for i, d := range devices {
		name, err := s.driver.PortName(d.SerialNumber)
		switch {
		case err != nil:
			names[i] = PortUnopenable
			log.Debug("probe failed", zap.String("device", d.SerialNumber), zap.Error(err))
		case name == "":
			names[i] = PortUnknown
		default:
			names[i] = name
		}
	}

	if err := writeDiscovery(conn, devices, names); err != nil {
		log.Warn("write discovery", zap.Error(err))
		return
	}
	log.Info("discovery sent", zap.Int("devices", len(devices)))
}

func (s *Server) open(req request, log *zap.Logger) {
	conn, id := req.conn, req.cmd.arg
	log = log.With(zap.String("device", id))

	if cur, ok := s.registry.get(id); ok && cur.State() == StateRunning {
		switch s.opts.DuplicateOpen {
		case DuplicateReject:
			s.refuse(conn, log, fmt.Errorf("%w: %s", ErrDuplicateSession, id))
			return
		case DuplicateTakeover:
			log.Info("taking over running session", zap.String("session", cur.ID.String()))
			cur.Cancel()
			go s.awaitTakeover(req, cur, log)
			return
		}
	}

	dev, err := openDevice(s.driver, id, s.opts.Profile)
	if err != nil {
		s.refuse(conn, log, err)
		return
	}

	if _, err := io.WriteString(conn, openedLine(id)); err != nil {
		log.Warn("write open response", zap.Error(err))
		_ = dev.Close()
		_ = conn.Close()
		return
	}

	sess := newSession(id, dev, conn, sessionConfig{
		bufferSize:   s.opts.BufferSize,
		pollInterval: s.opts.PollInterval,
		writeRetry:   s.opts.DeviceWriteRetry,
	}, s.logger)
	if s.opts.CaptureDir != "" {
		tap, err := capture.Create(s.opts.CaptureDir, id, sess.ID.String(), sess.Started)
		if err != nil {
			log.Warn("capture unavailable", zap.Error(err))
		} else {
			sess.tap = tap
			log.Info("capturing", zap.String("file", tap.Path()))
		}
	}

	if prev := s.registry.put(sess); prev != nil && prev.State() == StateRunning {
		log.Warn("replaced running session, previous session continues detached",
			zap.String("previous", prev.ID.String()))
	}
	s.tasks[sess.ID] = sess
	go s.runWorker(sess)

	log.Info("opened", zap.String("session", sess.ID.String()))
}

// awaitTakeover waits off the control goroutine for prev to finish, then
// hands req back to be opened. The open is refused if prev does not stop
// within the takeover timeout.
func (s *Server) awaitTakeover(req request, prev *Session, log *zap.Logger) {
	timeout := s.opts.TakeoverTimeout
	if timeout <= 0 {
		timeout = defaultTakeoverTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-prev.Done():
	case <-timer.C:
		s.refuse(req.conn, log, fmt.Errorf("%w: session %s did not stop within %s",
			ErrTakeoverTimeout, prev.ID, timeout))
		return
	case <-s.quit:
		_ = req.conn.Close()
		return
	}

	select {
	case s.requests <- req:
	case <-s.quit:
		_ = req.conn.Close()
	}
}

func (s *Server) refuse(conn net.Conn, log *zap.Logger, err error) {
	log.Error("open failed", zap.Error(err))
	if _, werr := io.WriteString(conn, OpenFailedLine+"\n"); werr != nil {
		log.Debug("write failure response", zap.Error(werr))
	}
	_ = conn.Close()
}

func (s *Server) runWorker(sess *Session) {
	state, err := sess.run()
	select {
	case s.exits <- sessionExit{session: sess, state: state, err: err}:
	case <-s.quit:
	}
}

func (s *Server) handleExit(ex sessionExit) {
	delete(s.tasks, ex.session.ID)

	log := s.logger.With(
		zap.String("device", ex.session.DeviceID),
		zap.String("session", ex.session.ID.String()),
		zap.Stringer("state", ex.state),
	)
	if ex.state == StateFaulted {
		log.Error("session faulted", zap.Error(ex.err))
	} else {
		log.Info("session ended")
	}

	if s.opts.PruneClosed && s.registry.remove(ex.session) {
		log.Debug("registry entry pruned")
	}
}

func (s *Server) snapshot() []SessionInfo {
	ids := s.registry.ids()
	infos := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		sess, _ := s.registry.get(id)
		infos = append(infos, sess.Info())
	}
	return infos
}

// shutdown cancels every session in identifier order, waiting for each
// before the next, then the detached ones, then releases the listener.
func (s *Server) shutdown() error {
	s.Shutdown()

	for _, id := range s.registry.ids() {
		sess, _ := s.registry.get(id)
		s.stopSession(sess)
	}

	var orphans []*Session
	for _, sess := range s.tasks {
		if !s.registry.contains(sess.ID) {
			orphans = append(orphans, sess)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Started.Before(orphans[j].Started) })
	for _, sess := range orphans {
		s.stopSession(sess)
	}

	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("close listener", zap.Error(err))
		}
	}
	s.closed = true
	for conn := range s.inflight {
		_ = conn.Close()
		delete(s.inflight, conn)
	}
	hooks := s.onShutdown
	s.onShutdown = nil
	s.mu.Unlock()

	close(s.quit)

	for _, f := range hooks {
		f()
	}
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) stopSession(sess *Session) {
	if sess.State() == StateRunning {
		s.logger.Info("cancelling session",
			zap.String("device", sess.DeviceID),
			zap.String("session", sess.ID.String()))
	}
	sess.Cancel()
	<-sess.Done()
	delete(s.tasks, sess.ID)
}
