package registry

import (
	"fmt"

	"github.com/danmuck/wlctl/internal/protocol/schema"
)

// State is the lifecycle position of an object id.
type State uint8

const (
	Unbound State = iota
	Active
	PendingDestroy
	Freed
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Active:
		return "active"
	case PendingDestroy:
		return "pending_destroy"
	case Freed:
		return "freed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Object is the client-side handle for one protocol object. Identity is
// the id alone.
type Object struct {
	ID        uint32
	Interface *schema.Interface
	Version   uint32
	State     State
}

// Same reports whether both handles name the same protocol object.
func (o *Object) Same(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.ID == other.ID
}

// Name returns the interface wire name, or "" for an unbound handle.
func (o *Object) Name() string {
	if o == nil || o.Interface == nil {
		return ""
	}
	return o.Interface.WireName
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%d", o.Name(), o.ID)
}

// ServerSide reports whether the id came from the server's range.
func (o *Object) ServerSide() bool {
	return o.ID >= ServerMin
}
