package session

import (
	"strings"

	"github.com/danmuck/wlctl/internal/protocol/registry"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/wire"
)

// Event is one decoded inbound message. Descriptors in Args belong to the
// receiver once the event is returned.
type Event struct {
	Object  *registry.Object
	Message *schema.Message
	Args    []wire.Value
}

// Interface returns the wire name of the target object's interface.
func (e Event) Interface() string {
	return e.Object.Name()
}

func (e Event) Name() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Name
}

// Arg returns the argument declared under name.
func (e Event) Arg(name string) (wire.Value, bool) {
	if e.Message == nil {
		return wire.Value{}, false
	}
	for i, arg := range e.Message.Args {
		if arg.Name == name && i < len(e.Args) {
			return e.Args[i], true
		}
	}
	return wire.Value{}, false
}

func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Object.String())
	b.WriteByte('.')
	b.WriteString(e.Name())
	b.WriteByte('(')
	for i, v := range e.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}
