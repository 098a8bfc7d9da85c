package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// connProbe inspects a TCP socket without consuming data.
type connProbe struct {
	raw syscall.RawConn
	fd  int
	buf [1]byte
}

func newConnProbe(conn net.Conn) (*connProbe, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("connection %T exposes no file descriptor", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}
	p := &connProbe{raw: raw, fd: -1}
	if err := raw.Control(func(fd uintptr) { p.fd = int(fd) }); err != nil {
		return nil, err
	}
	return p, nil
}

// peek reports whether the peer is still connected and whether application
// data is waiting. It never blocks.
func (p *connProbe) peek() (alive, pending bool) {
	var (
		n    int
		perr error
	)
	err := p.raw.Read(func(fd uintptr) bool {
		n, _, perr = unix.Recvfrom(int(fd), p.buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return false, false
	}
	switch {
	case perr == nil && n > 0:
		return true, true
	case perr == nil:
		// readable with zero bytes: orderly shutdown by the peer
		return false, false
	case errors.Is(perr, unix.EAGAIN), errors.Is(perr, unix.EINTR):
		return true, false
	default:
		return false, false
	}
}

// waker is a self-pipe that becomes readable once its context is done.
type waker struct {
	mu     sync.Mutex
	r, w   int
	closed bool
	stop   func() bool
}

func newWaker(ctx context.Context) (*waker, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}
	wk := &waker{r: fds[0], w: fds[1]}
	wk.stop = context.AfterFunc(ctx, wk.wake)
	return wk, nil
}

func (wk *waker) wake() {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	if !wk.closed {
		_, _ = unix.Write(wk.w, []byte{1})
	}
}

func (wk *waker) Close() error {
	wk.stop()
	wk.mu.Lock()
	defer wk.mu.Unlock()
	if wk.closed {
		return nil
	}
	wk.closed = true
	return errors.Join(unix.Close(wk.r), unix.Close(wk.w))
}

// waitIdle blocks until the socket, the waker or the device fd (when >= 0)
// becomes readable, or timeout elapses.
func waitIdle(sockFd, wakeFd, devFd int, timeout time.Duration) error {
	fds := []unix.PollFd{
		{Fd: int32(sockFd), Events: unix.POLLIN},
		{Fd: int32(wakeFd), Events: unix.POLLIN},
	}
	if devFd >= 0 {
		fds = append(fds, unix.PollFd{Fd: int32(devFd), Events: unix.POLLIN})
	}
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	_, err := unix.Poll(fds, ms)
	if errors.Is(err, unix.EINTR) {
		return nil
	}
	return err
}
