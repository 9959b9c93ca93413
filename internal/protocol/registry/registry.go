package registry

import (
	"fmt"

	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

const (
	DisplayID = 1
	ClientMin = 1
	ClientMax = 0xFEFFFFFF
	ServerMin = 0xFF000000
	ServerMax = 0xFFFFFFFF
)

// Registry maps ids to objects for one connection.
type Registry struct {
	objects map[uint32]*Object
	next    uint32
	free    []uint32
	live    int
}

// New returns an empty registry. Id 1 stays reserved for BindDisplay.
func New() *Registry {
	return &Registry{
		objects: make(map[uint32]*Object),
		next:    DisplayID + 1,
	}
}

// BindDisplay binds the display singleton at id 1.
func (r *Registry) BindDisplay(iface *schema.Interface) (*Object, error) {
	if err := checkVersion(iface, 1); err != nil {
		return nil, err
	}
	if obj, ok := r.objects[DisplayID]; ok && obj.State != Freed {
		return nil, fmt.Errorf("%w: %d", ErrIDInUse, DisplayID)
	}
	return r.bind(DisplayID, iface, 1), nil
}

// Allocate issues a client id for a new_id argument, reusing the most
// recently freed id first.
func (r *Registry) Allocate(iface *schema.Interface, version uint32) (*Object, error) {
	if err := checkVersion(iface, version); err != nil {
		return nil, err
	}
	var id uint32
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if r.next > ClientMax {
			return nil, ErrIDExhausted
		}
		id = r.next
		r.next++
	}
	return r.bind(id, iface, version), nil
}

// BindServer binds a server-allocated id delivered by an event.
func (r *Registry) BindServer(id uint32, iface *schema.Interface, version uint32) (*Object, error) {
	if id < ServerMin {
		return nil, fmt.Errorf("%w: %d is not a server id", ErrIDRange, id)
	}
	if err := checkVersion(iface, version); err != nil {
		return nil, err
	}
	if obj, ok := r.objects[id]; ok && obj.State == Active {
		return nil, fmt.Errorf("%w: %d", ErrIDInUse, id)
	}
	return r.bind(id, iface, version), nil
}

func (r *Registry) bind(id uint32, iface *schema.Interface, version uint32) *Object {
	if prev, ok := r.objects[id]; ok && prev.State == PendingDestroy {
		prev.State = Freed
		r.live--
	}
	obj := &Object{ID: id, Interface: iface, Version: version, State: Active}
	r.objects[id] = obj
	r.live++
	log.Debug().Msgf("registry.bind id=%d interface=%s version=%d", id, iface.WireName, version)
	return obj
}

func checkVersion(iface *schema.Interface, version uint32) error {
	if iface == nil {
		return fmt.Errorf("%w: nil interface", ErrInvalidVersion)
	}
	if version < 1 || version > iface.Version {
		return fmt.Errorf("%w: %s version %d (max %d)", ErrInvalidVersion, iface.WireName, version, iface.Version)
	}
	return nil
}

// Lookup returns the live object for id. Active and PendingDestroy objects
// are live; inbound events for a PendingDestroy object are still delivered.
func (r *Registry) Lookup(id uint32) (*Object, error) {
	obj, ok := r.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownObject, id)
	}
	if obj.State == Freed {
		return nil, fmt.Errorf("%w: %d", ErrFreedObject, id)
	}
	return obj, nil
}

// Destroy moves an Active object to PendingDestroy. The id stays reserved
// until DeleteID.
func (r *Registry) Destroy(id uint32) error {
	obj, ok := r.objects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, id)
	}
	if obj.State != Active {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, obj, obj.State)
	}
	obj.State = PendingDestroy
	log.Debug().Msgf("registry.Destroy id=%d interface=%s", id, obj.Name())
	return nil
}

// DeleteID completes the destroy handshake. Client ids return to the reuse
// pool.
func (r *Registry) DeleteID(id uint32) error {
	obj, ok := r.objects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, id)
	}
	if obj.State != PendingDestroy {
		return fmt.Errorf("%w: %s is %s", ErrUnexpectedDelete, obj, obj.State)
	}
	obj.State = Freed
	r.live--
	if id <= ClientMax && id != DisplayID {
		r.free = append(r.free, id)
	}
	log.Debug().Msgf("registry.DeleteID id=%d interface=%s", id, obj.Name())
	return nil
}

// Release frees an Active client id that never reached the wire, such as
// a new_id whose request failed to encode.
func (r *Registry) Release(id uint32) error {
	obj, ok := r.objects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, id)
	}
	if obj.State != Active || id > ClientMax || id == DisplayID {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, obj, obj.State)
	}
	obj.State = Freed
	r.live--
	r.free = append(r.free, id)
	return nil
}

// CheckRequest returns the request definition for opcode if obj may send
// it.
func (r *Registry) CheckRequest(obj *Object, opcode uint16) (*schema.Message, error) {
	if obj.State != Active {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotActive, obj, obj.State)
	}
	msg, ok := obj.Interface.Request(opcode)
	if !ok {
		return nil, fmt.Errorf("%w: request %d on %s", ErrUnknownOpcode, opcode, obj)
	}
	if err := gate(obj, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CheckEvent returns the event definition for opcode if obj may receive
// it.
func (r *Registry) CheckEvent(obj *Object, opcode uint16) (*schema.Message, error) {
	if obj.State != Active && obj.State != PendingDestroy {
		return nil, fmt.Errorf("%w: %s is %s", ErrFreedObject, obj, obj.State)
	}
	msg, ok := obj.Interface.Event(opcode)
	if !ok {
		return nil, fmt.Errorf("%w: event %d on %s", ErrUnknownOpcode, opcode, obj)
	}
	if err := gate(obj, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func gate(obj *Object, msg *schema.Message) error {
	if msg.Since > obj.Version {
		return &VersionError{
			Interface: obj.Name(),
			Message:   msg.Name,
			Since:     msg.Since,
			Version:   obj.Version,
		}
	}
	return nil
}

// Live counts Active and PendingDestroy objects.
func (r *Registry) Live() int {
	return r.live
}

// Each visits live objects in no particular order until fn returns false.
func (r *Registry) Each(fn func(*Object) bool) {
	for _, obj := range r.objects {
		if obj.State == Freed {
			continue
		}
		if !fn(obj) {
			return
		}
	}
}
