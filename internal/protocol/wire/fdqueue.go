package wire

import "golang.org/x/sys/unix"

// FDQueue holds received descriptors in arrival order. Messages claim them
// strictly first in, first out.
type FDQueue struct {
	fds []int
}

func (q *FDQueue) Push(fds ...int) {
	q.fds = append(q.fds, fds...)
}

func (q *FDQueue) Pop() (int, bool) {
	if q == nil || len(q.fds) == 0 {
		return -1, false
	}
	fd := q.fds[0]
	q.fds = q.fds[1:]
	if len(q.fds) == 0 {
		q.fds = nil
	}
	return fd, true
}

func (q *FDQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.fds)
}

// CloseAll closes and drops every queued descriptor.
func (q *FDQueue) CloseAll() {
	if q == nil {
		return
	}
	closeFDs(q.fds)
	q.fds = nil
}

func closeFDs(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
