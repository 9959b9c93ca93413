package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is the merged, resolved set of interfaces from one or more
// documents. It is never mutated after Compile returns, so a single Catalog
// may back any number of connections concurrently.
type Catalog struct {
	protocols []*Protocol
	byWire    map[string]*Interface
	byName    map[string]*Interface
	sorted    []*Interface
}

func newCatalog() *Catalog {
	return &Catalog{
		byWire: make(map[string]*Interface),
		byName: make(map[string]*Interface),
	}
}

func (c *Catalog) add(iface *Interface) error {
	if _, dup := c.byWire[iface.WireName]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateInterface, iface.WireName)
	}
	if _, dup := c.byName[iface.Name]; dup {
		return fmt.Errorf("%w: %s (normalized from %s)", ErrDuplicateInterface, iface.Name, iface.WireName)
	}
	c.byWire[iface.WireName] = iface
	c.byName[iface.Name] = iface
	c.sorted = append(c.sorted, iface)
	return nil
}

// Interface looks up by wire name first, then by normalized name.
func (c *Catalog) Interface(name string) (*Interface, bool) {
	if iface, ok := c.byWire[name]; ok {
		return iface, true
	}
	iface, ok := c.byName[name]
	return iface, ok
}

// Interfaces returns every interface ordered by wire name.
func (c *Catalog) Interfaces() []*Interface {
	out := make([]*Interface, len(c.sorted))
	copy(out, c.sorted)
	return out
}

func (c *Catalog) Protocols() []*Protocol {
	out := make([]*Protocol, len(c.protocols))
	copy(out, c.protocols)
	return out
}

func (c *Catalog) Len() int {
	return len(c.sorted)
}

// Enum resolves a qualified enum reference.
func (c *Catalog) Enum(ref EnumRef) (*Enum, bool) {
	iface, ok := c.Interface(ref.Interface)
	if !ok {
		return nil, false
	}
	return iface.Enum(ref.Name)
}

// Request returns request opcode of the named interface.
func (c *Catalog) Request(iface string, opcode uint16) (*Message, bool) {
	i, ok := c.Interface(iface)
	if !ok {
		return nil, false
	}
	return i.Request(opcode)
}

// Event returns event opcode of the named interface.
func (c *Catalog) Event(iface string, opcode uint16) (*Message, bool) {
	i, ok := c.Interface(iface)
	if !ok {
		return nil, false
	}
	return i.Event(opcode)
}

func (c *Catalog) seal(protocols []*Protocol) {
	c.protocols = protocols
	sort.Slice(c.sorted, func(i, j int) bool {
		return c.sorted[i].WireName < c.sorted[j].WireName
	})
}

// resolve is the second pass: every interface is already in the catalog, so
// references may point forward or into another document.
func (c *Catalog) resolve(p *Protocol) error {
	for _, iface := range p.Interfaces {
		for _, list := range [][]*Message{iface.Requests, iface.Events} {
			for _, m := range list {
				for i := range m.Args {
					typ, err := c.resolveArg(iface, m.Args[i].Type)
					if err != nil {
						return fmt.Errorf("interface %s: %s %s: arg %s: %w",
							iface.WireName, m.Direction, m.Name, m.Args[i].Name, err)
					}
					m.Args[i].Type = typ
				}
			}
		}
	}
	return nil
}

func (c *Catalog) resolveArg(scope *Interface, typ ArgType) (ArgType, error) {
	switch typ.Kind {
	case ArgObject, ArgNewID:
		if typ.Interface == "" {
			return typ, nil
		}
		target, ok := c.Interface(typ.Interface)
		if !ok {
			return ArgType{}, fmt.Errorf("%w: interface %q", ErrUnresolvedReference, typ.Interface)
		}
		typ.Interface = target.WireName
	case ArgEnum:
		owner := scope
		name := typ.Enum.Name
		if ifaceName, enumName, qualified := strings.Cut(name, "."); qualified {
			target, ok := c.Interface(ifaceName)
			if !ok {
				return ArgType{}, fmt.Errorf("%w: enum %q", ErrUnresolvedReference, name)
			}
			owner, name = target, enumName
		}
		if _, ok := owner.Enum(name); !ok {
			return ArgType{}, fmt.Errorf("%w: enum %q", ErrUnresolvedReference, typ.Enum.Name)
		}
		typ.Enum = EnumRef{Interface: owner.WireName, Name: name}
	}
	return typ, nil
}
