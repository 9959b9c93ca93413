package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/wlctl/internal/protocol/registry"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/wire"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const displayInterface = "wl_display"

type outMessage struct {
	data []byte
	fds  []int
	off  int
}

// Conn is one client connection. The first fatal error is kept and
// returned by every later call.
type Conn struct {
	log     *zerolog.Logger
	metrics Metrics
	catalog *schema.Catalog
	tr      *transport
	reg     *registry.Registry
	display *registry.Object

	out []outMessage
	in  []byte
	fds wire.FDQueue

	dispatchers map[*Dispatcher]struct{}

	err error
}

// Connect opens the inherited socket from cfg or dials its endpoint.
func Connect(cfg Config, catalog *schema.Catalog) (*Conn, error) {
	if cfg.SocketFD >= 0 {
		return NewConn(cfg.SocketFD, catalog, cfg)
	}
	path, err := cfg.SocketPath()
	if err != nil {
		return nil, err
	}
	fd, err := dialUnix(path)
	if err != nil {
		return nil, &SetupError{Op: "dial", Err: err}
	}
	c, err := NewConn(fd, catalog, cfg)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// NewConn wraps an already connected unix stream socket and binds the
// display at id 1. The Conn owns fd from here on.
func NewConn(fd int, catalog *schema.Catalog, cfg Config) (*Conn, error) {
	if catalog == nil {
		return nil, &SetupError{Op: "catalog", Err: ErrMissingDisplay}
	}
	displayIface, ok := catalog.Interface(displayInterface)
	if !ok {
		return nil, &SetupError{Op: "catalog", Err: ErrMissingDisplay}
	}
	tr, err := newTransport(fd)
	if err != nil {
		return nil, &SetupError{Op: "transport", Err: err}
	}
	reg := registry.New()
	display, err := reg.BindDisplay(displayIface)
	if err != nil {
		return nil, &SetupError{Op: "bind display", Err: err}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	c := &Conn{
		log:     cfg.logger(),
		metrics: metrics,
		catalog: catalog,
		tr:      tr,
		reg:     reg,
		display: display,
	}
	c.log.Debug().Msgf("session.Connect fd=%d interfaces=%d", fd, catalog.Len())
	return c, nil
}

func (c *Conn) Display() *registry.Object {
	return c.display
}

func (c *Conn) Catalog() *schema.Catalog {
	return c.catalog
}

// Fd is the socket descriptor, for readiness polling by an outer loop.
func (c *Conn) Fd() int {
	return c.tr.fd
}

// Err returns the sticky fatal error, if any.
func (c *Conn) Err() error {
	return c.err
}

// Object returns the live object for id.
func (c *Conn) Object(id uint32) (*registry.Object, error) {
	return c.reg.Lookup(id)
}

// Pending counts outbound messages not yet fully written.
func (c *Conn) Pending() int {
	return len(c.out)
}

// Close releases the socket and any received descriptors nobody claimed.
func (c *Conn) Close() error {
	c.fds.CloseAll()
	if c.err == nil {
		c.err = ErrClosed
	}
	return c.tr.close()
}

func (c *Conn) fail(err error) error {
	if c.err == nil {
		c.err = err
		c.log.Debug().Msgf("session.fail err=%v", err)
	}
	return c.err
}

func (c *Conn) protocolFail(h wire.Header, kind string, err error) error {
	c.metrics.ProtocolError(kind)
	return c.fail(&ProtocolError{ObjectID: h.ObjectID, Opcode: h.Opcode, Err: err})
}

func (c *Conn) transportFail(err error) error {
	if IsExpectedCloseError(err) {
		return c.fail(fmt.Errorf("%w: %w", ErrClosed, err))
	}
	return c.fail(err)
}

// RequestByName is Request with the opcode looked up by request name.
func (c *Conn) RequestByName(obj *registry.Object, name string, args ...wire.Value) (*registry.Object, error) {
	if obj == nil || obj.Interface == nil {
		return nil, fmt.Errorf("%w: nil object", registry.ErrUnknownObject)
	}
	msg, ok := obj.Interface.RequestByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", registry.ErrUnknownOpcode, obj.Name(), name)
	}
	return c.Request(obj, msg.Opcode, args...)
}

// Request encodes one request on obj, queues it and flushes. A zero new_id
// argument is allocated here and the new object returned. Sending a
// destructor moves obj to PendingDestroy. Validation failures are returned
// without poisoning the connection; transport failures are fatal.
func (c *Conn) Request(obj *registry.Object, opcode uint16, args ...wire.Value) (*registry.Object, error) {
	if c.err != nil {
		return nil, c.err
	}
	if obj == nil || obj.Interface == nil {
		return nil, fmt.Errorf("%w: nil object", registry.ErrUnknownObject)
	}
	msg, err := c.reg.CheckRequest(obj, opcode)
	if err != nil {
		return nil, err
	}
	if len(args) != len(msg.Args) {
		return nil, fmt.Errorf("%w: %s.%s wants %d args, got %d", wire.ErrSignatureMismatch, obj.Name(), msg.Name, len(msg.Args), len(args))
	}
	args = append([]wire.Value(nil), args...)
	created, err := c.allocateNewIDs(obj, msg, args)
	if err != nil {
		return nil, err
	}
	m, err := wire.EncodeMessage(obj.ID, opcode, msg.Args, args)
	if err == nil {
		err = checkFDs(m.FDs)
	}
	if err != nil {
		c.releaseAll(created)
		return nil, err
	}
	if msg.IsDestructor() {
		if err := c.reg.Destroy(obj.ID); err != nil {
			return nil, err
		}
	}
	c.out = append(c.out, outMessage{data: m.Bytes(), fds: m.FDs})
	c.metrics.MessageSent(obj.Name(), msg.Name, int(m.Header.Size), len(m.FDs))
	c.log.Debug().Msgf("session.Request object=%s message=%s size=%d fds=%d", obj, msg.Name, m.Header.Size, len(m.FDs))

	var first *registry.Object
	if len(created) > 0 {
		first = created[0]
	}
	return first, c.Flush()
}

func (c *Conn) allocateNewIDs(parent *registry.Object, msg *schema.Message, args []wire.Value) ([]*registry.Object, error) {
	var created []*registry.Object
	release := func(err error) ([]*registry.Object, error) {
		c.releaseAll(created)
		return nil, err
	}
	for i, arg := range msg.Args {
		var (
			iface   *schema.Interface
			version uint32
		)
		switch arg.Type.Kind {
		case schema.ArgNewID:
			known, ok := c.catalog.Interface(arg.Type.Interface)
			if !ok {
				return release(fmt.Errorf("%w: %s", ErrUnknownInterface, arg.Type.Interface))
			}
			iface, version = known, min(parent.Version, known.Version)
		case schema.ArgUnspecifiedNewID:
			named, ok := c.catalog.Interface(args[i].Interface)
			if !ok {
				return release(fmt.Errorf("%w: %q", ErrUnknownInterface, args[i].Interface))
			}
			iface, version = named, args[i].Version
		default:
			continue
		}
		if args[i].Kind != arg.Type.Kind {
			return release(fmt.Errorf("%w: arg %s is %s, got %s", wire.ErrSignatureMismatch, arg.Name, arg.Type.Kind, args[i].Kind))
		}
		if args[i].Object != 0 {
			return release(fmt.Errorf("%w: new_id %s is allocated by the connection, pass 0", wire.ErrSignatureMismatch, arg.Name))
		}
		obj, err := c.reg.Allocate(iface, version)
		if err != nil {
			return release(err)
		}
		created = append(created, obj)
		args[i].Object = obj.ID
		if arg.Type.Kind == schema.ArgUnspecifiedNewID {
			args[i].Interface = iface.WireName
		}
	}
	return created, nil
}

func (c *Conn) releaseAll(created []*registry.Object) {
	for _, o := range created {
		_ = c.reg.Release(o.ID)
	}
}

// Attach registers d so handlers of objects freed by delete_id, or
// replaced by a server rebind, are dropped from it. DispatchPending and
// Roundtrip attach their dispatcher themselves.
func (c *Conn) Attach(d *Dispatcher) {
	if d == nil {
		return
	}
	if c.dispatchers == nil {
		c.dispatchers = make(map[*Dispatcher]struct{})
	}
	c.dispatchers[d] = struct{}{}
}

// Detach stops delete_id bookkeeping for d.
func (c *Conn) Detach(d *Dispatcher) {
	delete(c.dispatchers, d)
}

func (c *Conn) forgetHandlers(obj *registry.Object) {
	for d := range c.dispatchers {
		d.Forget(obj)
	}
}

// Flush writes queued requests in order. Each message's descriptors go out
// with its first byte; a short write resumes later without them. A full
// socket buffer leaves the rest queued and is not an error.
func (c *Conn) Flush() error {
	if c.err != nil {
		return c.err
	}
	for len(c.out) > 0 {
		head := &c.out[0]
		var fds []int
		if head.off == 0 {
			fds = head.fds
		}
		n, err := c.tr.send(head.data[head.off:], fds)
		if errors.Is(err, errWouldBlock) {
			return nil
		}
		if err != nil {
			return c.transportFail(err)
		}
		if n == 0 {
			return nil
		}
		head.off += n
		if head.off < len(head.data) {
			continue
		}
		c.out[0] = outMessage{}
		c.out = c.out[1:]
	}
	c.out = nil
	return nil
}

// Poll returns the next fully received event without blocking. ok is false
// when no complete message is buffered and the socket has nothing more.
func (c *Conn) Poll() (Event, bool, error) {
	if c.err != nil {
		return Event{}, false, c.err
	}
	for {
		ev, ok, err := c.next()
		if err != nil || ok {
			return ev, ok, err
		}
		in, fds, err := c.tr.recv(c.in)
		c.in = in
		c.fds.Push(fds...)
		if errors.Is(err, errWouldBlock) {
			return Event{}, false, nil
		}
		if err != nil {
			return Event{}, false, c.transportFail(err)
		}
	}
}

// Wait blocks until an event is ready, the connection fails, or ctx ends.
// Cancellation is not fatal to the connection.
func (c *Conn) Wait(ctx context.Context) (Event, error) {
	for {
		ev, ok, err := c.Poll()
		if err != nil {
			return Event{}, err
		}
		if ok {
			return ev, nil
		}
		if err := c.Flush(); err != nil {
			return Event{}, err
		}
		events := int16(unix.POLLIN)
		if len(c.out) > 0 {
			events |= unix.POLLOUT
		}
		revents, err := c.tr.wait(ctx, events)
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, err
			}
			return Event{}, c.transportFail(err)
		}
		if revents&unix.POLLNVAL != 0 {
			return Event{}, c.fail(ErrClosed)
		}
	}
}

// next decodes one buffered message. Display bookkeeping events are
// consumed here and never surfaced.
func (c *Conn) next() (Event, bool, error) {
	for {
		h, ok, err := wire.Frame(c.in)
		if err != nil {
			return Event{}, false, c.protocolFail(h, "framing", err)
		}
		if !ok {
			return Event{}, false, nil
		}
		ev, surfaced, err := c.decode(h, c.in[wire.HeaderLen:h.Size])
		n := copy(c.in, c.in[h.Size:])
		c.in = c.in[:n]
		if err != nil {
			return Event{}, false, err
		}
		if surfaced {
			return ev, true, nil
		}
	}
}

func (c *Conn) decode(h wire.Header, body []byte) (Event, bool, error) {
	obj, err := c.reg.Lookup(h.ObjectID)
	if err != nil {
		return Event{}, false, c.protocolFail(h, "unknown_object", err)
	}
	msg, err := c.reg.CheckEvent(obj, h.Opcode)
	if err != nil {
		var verr *registry.VersionError
		if errors.As(err, &verr) {
			return Event{}, false, c.protocolFail(h, "version", err)
		}
		return Event{}, false, c.protocolFail(h, "opcode", err)
	}
	args, err := wire.DecodeArgs(body, msg.Args, &c.fds)
	if err != nil {
		return Event{}, false, c.protocolFail(h, "decode", err)
	}
	c.metrics.MessageReceived(obj.Name(), msg.Name, int(h.Size), msg.FDCount())
	ev := Event{Object: obj, Message: msg, Args: args}
	c.log.Debug().Msgf("session.Event %s", ev)

	if obj == c.display {
		switch msg.Name {
		case "error":
			return Event{}, false, c.displayError(ev)
		case "delete_id":
			return Event{}, false, c.deleteID(h, ev)
		}
	}
	if err := c.bindNewIDs(h, ev); err != nil {
		return Event{}, false, err
	}
	if msg.IsDestructor() && obj.State == registry.Active {
		_ = c.reg.Destroy(obj.ID)
	}
	return ev, true, nil
}

func (c *Conn) displayError(ev Event) error {
	target, _ := ev.Arg("object_id")
	code, _ := ev.Arg("code")
	text, _ := ev.Arg("message")
	derr := &DisplayError{ObjectID: target.Object, Code: code.Uint, Message: text.Str}
	if obj, err := c.reg.Lookup(target.Object); err == nil {
		derr.Interface = obj.Name()
	}
	c.metrics.ProtocolError("display_error")
	c.log.Warn().Msgf("session.DisplayError object=%d code=%d message=%q", derr.ObjectID, derr.Code, derr.Message)
	return c.fail(derr)
}

// deleteID frees an id the server is done with. A delete_id for an object
// still Active means the server destroyed it implicitly; the id is freed
// all the same.
func (c *Conn) deleteID(h wire.Header, ev Event) error {
	v, _ := ev.Arg("id")
	obj, err := c.reg.Lookup(v.Uint)
	if err != nil {
		return c.protocolFail(h, "delete_id", err)
	}
	if obj.State == registry.Active {
		c.log.Warn().Msgf("session.DeleteID object=%s still active", obj)
		if err := c.reg.Destroy(obj.ID); err != nil {
			return c.protocolFail(h, "delete_id", err)
		}
	}
	if err := c.reg.DeleteID(obj.ID); err != nil {
		return c.protocolFail(h, "delete_id", err)
	}
	c.forgetHandlers(obj)
	return nil
}

// bindNewIDs binds server-allocated objects carried by an event. A typed
// new_id inherits the sender's version.
func (c *Conn) bindNewIDs(h wire.Header, ev Event) error {
	for i, arg := range ev.Message.Args {
		var (
			iface   *schema.Interface
			version uint32
			ok      bool
		)
		v := ev.Args[i]
		switch arg.Type.Kind {
		case schema.ArgNewID:
			iface, ok = c.catalog.Interface(arg.Type.Interface)
			if ok {
				version = min(ev.Object.Version, iface.Version)
			}
		case schema.ArgUnspecifiedNewID:
			iface, ok = c.catalog.Interface(v.Interface)
			version = v.Version
		default:
			continue
		}
		if !ok {
			return c.protocolFail(h, "unknown_interface", fmt.Errorf("%w: new_id %s", ErrUnknownInterface, arg.Name))
		}
		if prev, err := c.reg.Lookup(v.Object); err == nil && prev.State == registry.PendingDestroy {
			c.forgetHandlers(prev)
		}
		if _, err := c.reg.BindServer(v.Object, iface, version); err != nil {
			return c.protocolFail(h, "bind", err)
		}
	}
	return nil
}
