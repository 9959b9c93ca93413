package session

import (
	"context"

	"github.com/danmuck/wlctl/internal/protocol/registry"
	"github.com/danmuck/wlctl/internal/protocol/wire"
)

// Handler consumes one event. A returned error stops the current dispatch
// loop and is handed back to its caller.
type Handler func(Event) error

// Dispatcher routes events to handlers registered per object, then per
// interface, then to Fallback. Unrouted events are dropped.
type Dispatcher struct {
	byObject    map[*registry.Object]Handler
	byInterface map[string]Handler
	Fallback    Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		byObject:    make(map[*registry.Object]Handler),
		byInterface: make(map[string]Handler),
	}
}

// HandleObject routes events for obj. Handlers are keyed by handle, so a
// reused id does not inherit the handler of the object it replaced.
func (d *Dispatcher) HandleObject(obj *registry.Object, h Handler) {
	d.byObject[obj] = h
}

// HandleInterface routes events for every object of the named interface.
func (d *Dispatcher) HandleInterface(name string, h Handler) {
	d.byInterface[name] = h
}

// Forget drops the handler for obj. A Conn the dispatcher is attached to
// calls it when obj's id is deleted.
func (d *Dispatcher) Forget(obj *registry.Object) {
	delete(d.byObject, obj)
}

func (d *Dispatcher) Dispatch(ev Event) error {
	h := d.route(ev)
	if h == nil {
		return nil
	}
	return h(ev)
}

// Handlers counts per-object routes still registered.
func (d *Dispatcher) Handlers() int {
	return len(d.byObject)
}

func (d *Dispatcher) route(ev Event) Handler {
	if h, ok := d.byObject[ev.Object]; ok {
		return h
	}
	if h, ok := d.byInterface[ev.Interface()]; ok {
		return h
	}
	return d.Fallback
}

// DispatchPending dispatches every event that is ready without blocking
// and returns how many were handled.
func (c *Conn) DispatchPending(d *Dispatcher) (int, error) {
	c.Attach(d)
	n := 0
	for {
		ev, ok, err := c.Poll()
		if err != nil || !ok {
			return n, err
		}
		n++
		if d == nil {
			continue
		}
		if err := d.Dispatch(ev); err != nil {
			return n, err
		}
	}
}

// Roundtrip sends wl_display.sync and dispatches events until the server
// answers it, so every request sent before it has been processed. With a
// nil dispatcher intermediate events are discarded.
func (c *Conn) Roundtrip(ctx context.Context, d *Dispatcher) error {
	c.Attach(d)
	cb, err := c.RequestByName(c.display, "sync", wire.NewID(0))
	if err != nil {
		return err
	}
	for {
		ev, err := c.Wait(ctx)
		if err != nil {
			return err
		}
		if d != nil {
			if err := d.Dispatch(ev); err != nil {
				return err
			}
		}
		if ev.Object == cb {
			if d != nil {
				d.Forget(cb)
			}
			return nil
		}
	}
}
