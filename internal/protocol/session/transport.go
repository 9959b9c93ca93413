package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/wlctl/internal/protocol/wire"
	"golang.org/x/sys/unix"
)

const (
	readChunk = 4096
	// maxFDsPerRead matches the largest descriptor batch a server sends
	// alongside one read.
	maxFDsPerRead = 28
	pollSlice     = 100 * time.Millisecond
)

var errWouldBlock = errors.New("session: would block")

// transport is a non-blocking unix stream socket.
type transport struct {
	fd     int
	closed bool
	oob    []byte
}

func dialUnix(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("connect %s: %w", path, err)
	}
	return fd, nil
}

func newTransport(fd int) (*transport, error) {
	if fd < 0 {
		return nil, ErrBadSocketFD
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return &transport{
		fd:  fd,
		oob: make([]byte, unix.CmsgSpace(maxFDsPerRead*4)),
	}, nil
}

// send writes b with fds attached as one SCM_RIGHTS set. It returns the
// number of bytes the kernel took; fds travel with the first byte.
func (t *transport) send(b []byte, fds []int) (int, error) {
	if t.closed {
		return 0, ErrClosed
	}
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	for {
		n, err := unix.SendmsgN(t.fd, b, oob, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, errWouldBlock
		default:
			return 0, fmt.Errorf("sendmsg: %w", err)
		}
	}
}

// recv appends available bytes to buf and returns received descriptors.
// An orderly shutdown by the peer returns io.EOF.
func (t *transport) recv(buf []byte) ([]byte, []int, error) {
	if t.closed {
		return buf, nil, ErrClosed
	}
	var chunk [readChunk]byte
	for {
		n, oobn, flags, _, err := unix.Recvmsg(t.fd, chunk[:], t.oob, unix.MSG_DONTWAIT|unix.MSG_CMSG_CLOEXEC)
		switch {
		case err == nil:
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return buf, nil, errWouldBlock
		default:
			return buf, nil, fmt.Errorf("recvmsg: %w", err)
		}
		fds, perr := parseRights(t.oob[:oobn])
		if flags&unix.MSG_CTRUNC != 0 {
			closeFDs(fds)
			return buf, nil, fmt.Errorf("recvmsg: %w", ErrFDsTruncated)
		}
		if n == 0 && len(fds) == 0 {
			return buf, nil, io.EOF
		}
		return append(buf, chunk[:n]...), fds, perr
	}
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		if msgs[i].Header.Level != unix.SOL_SOCKET || msgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			return fds, fmt.Errorf("parse rights: %w", err)
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

func closeFDs(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}

// checkFDs rejects descriptors that are not open in this process, before a
// request carrying them is queued.
func checkFDs(fds []int) error {
	for _, fd := range fds {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return fmt.Errorf("%w: %d: %w", wire.ErrBadFD, fd, err)
		}
	}
	return nil
}

// wait blocks until the socket is ready for events or ctx ends. poll(2) runs
// in short slices so cancellation is observed without a wakeup fd.
func (t *transport) wait(ctx context.Context, events int16) (int16, error) {
	if t.closed {
		return 0, ErrClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		timeout := pollSlice
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < timeout {
				timeout = max(left, time.Millisecond)
			}
		}
		fds := []unix.PollFd{{Fd: int32(t.fd), Events: events}}
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll: %w", err)
		}
		if n > 0 {
			return fds[0].Revents, nil
		}
	}
}

func (t *transport) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return unix.Close(t.fd)
}
