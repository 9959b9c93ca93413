// Package fakedisplay scripts the server end of a display connection over
// a socketpair for tests.
package fakedisplay

import (
	"testing"
	"time"

	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/wire"
	"golang.org/x/sys/unix"
)

const readTimeout = 2 * time.Second

// Request is one decoded client request.
type Request struct {
	ObjectID  uint32
	Interface string
	Message   *schema.Message
	Args      []wire.Value
}

func (r Request) Name() string {
	return r.Message.Name
}

// Arg returns the value of the named argument.
func (r Request) Arg(name string) wire.Value {
	for i, a := range r.Message.Args {
		if a.Name == name {
			return r.Args[i]
		}
	}
	return wire.Value{}
}

// Server is the scripted peer. It tracks which interface each client
// object id belongs to so it can decode requests.
type Server struct {
	t       testing.TB
	fd      int
	catalog *schema.Catalog
	objects map[uint32]string
	in      []byte
	fds     wire.FDQueue
}

// New returns a server and the client end of a connected socketpair. Both
// ends are closed on test cleanup unless the client end was handed off.
func New(t testing.TB, catalog *schema.Catalog) (*Server, int) {
	t.Helper()
	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	s := &Server{
		t:       t,
		fd:      pair[0],
		catalog: catalog,
		objects: map[uint32]string{1: "wl_display"},
	}
	t.Cleanup(func() {
		s.fds.CloseAll()
		_ = unix.Close(s.fd)
	})
	return s, pair[1]
}

// Track records that id names an object of iface.
func (s *Server) Track(id uint32, iface string) {
	s.objects[id] = iface
}

// Forget drops id, as after the server sends delete_id.
func (s *Server) Forget(id uint32) {
	delete(s.objects, id)
}

// Send encodes and writes one event. New ids in the event are tracked.
func (s *Server) Send(objectID uint32, event string, args ...wire.Value) {
	s.t.Helper()
	ifaceName, ok := s.objects[objectID]
	if !ok {
		s.t.Fatalf("fakedisplay: send on untracked object %d", objectID)
	}
	iface, ok := s.catalog.Interface(ifaceName)
	if !ok {
		s.t.Fatalf("fakedisplay: unknown interface %s", ifaceName)
	}
	msg, ok := iface.EventByName(event)
	if !ok {
		s.t.Fatalf("fakedisplay: %s has no event %s", ifaceName, event)
	}
	m, err := wire.EncodeMessage(objectID, msg.Opcode, msg.Args, args)
	if err != nil {
		s.t.Fatalf("fakedisplay: encode %s.%s: %v", ifaceName, event, err)
	}
	s.track(msg, args)
	s.SendRaw(m.Bytes(), m.FDs...)
}

// SendRaw writes b with fds attached, bypassing the catalog.
func (s *Server) SendRaw(b []byte, fds ...int) {
	s.t.Helper()
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	if err := unix.Sendmsg(s.fd, b, oob, nil, unix.MSG_NOSIGNAL); err != nil {
		s.t.Fatalf("fakedisplay: sendmsg: %v", err)
	}
}

// DeleteID sends wl_display.delete_id for id and stops tracking it.
func (s *Server) DeleteID(id uint32) {
	s.t.Helper()
	s.Send(1, "delete_id", wire.Uint(id))
	s.Forget(id)
}

// Next reads and decodes the next request, failing the test after a
// timeout.
func (s *Server) Next() Request {
	s.t.Helper()
	deadline := time.Now().Add(readTimeout)
	for {
		if h, ok, err := wire.Frame(s.in); err != nil {
			s.t.Fatalf("fakedisplay: frame: %v", err)
		} else if ok {
			return s.decode(h)
		}
		left := time.Until(deadline)
		if left <= 0 {
			s.t.Fatalf("fakedisplay: timed out waiting for request")
		}
		pfd := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, int(left/time.Millisecond)+1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			s.t.Fatalf("fakedisplay: poll: %v", err)
		}
		if n == 0 {
			continue
		}
		buf := make([]byte, 4096)
		oob := make([]byte, unix.CmsgSpace(28*4))
		nr, oobn, _, _, err := unix.Recvmsg(s.fd, buf, oob, unix.MSG_CMSG_CLOEXEC)
		if err != nil {
			s.t.Fatalf("fakedisplay: recvmsg: %v", err)
		}
		if nr == 0 {
			s.t.Fatalf("fakedisplay: client closed")
		}
		s.in = append(s.in, buf[:nr]...)
		if oobn > 0 {
			msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
			if err != nil {
				s.t.Fatalf("fakedisplay: control message: %v", err)
			}
			for i := range msgs {
				fds, err := unix.ParseUnixRights(&msgs[i])
				if err != nil {
					s.t.Fatalf("fakedisplay: rights: %v", err)
				}
				s.fds.Push(fds...)
			}
		}
	}
}

func (s *Server) decode(h wire.Header) Request {
	s.t.Helper()
	body := s.in[wire.HeaderLen:h.Size]
	ifaceName, ok := s.objects[h.ObjectID]
	if !ok {
		s.t.Fatalf("fakedisplay: request on untracked object %d", h.ObjectID)
	}
	msg, ok := s.catalog.Request(ifaceName, h.Opcode)
	if !ok {
		s.t.Fatalf("fakedisplay: %s has no request %d", ifaceName, h.Opcode)
	}
	args, err := wire.DecodeArgs(body, msg.Args, &s.fds)
	if err != nil {
		s.t.Fatalf("fakedisplay: decode %s.%s: %v", ifaceName, msg.Name, err)
	}
	n := copy(s.in, s.in[h.Size:])
	s.in = s.in[:n]
	s.track(msg, args)
	return Request{ObjectID: h.ObjectID, Interface: ifaceName, Message: msg, Args: args}
}

func (s *Server) track(msg *schema.Message, args []wire.Value) {
	for i, a := range msg.Args {
		switch a.Type.Kind {
		case schema.ArgNewID:
			s.objects[args[i].Object] = a.Type.Interface
		case schema.ArgUnspecifiedNewID:
			s.objects[args[i].Object] = args[i].Interface
		}
	}
}

// Close shuts the server end so the client sees EOF.
func (s *Server) Close() {
	_ = unix.Shutdown(s.fd, unix.SHUT_RDWR)
}
