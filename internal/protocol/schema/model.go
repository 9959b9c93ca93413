package schema

// Protocol is one compiled description document.
type Protocol struct {
	Name        string
	Path        string
	Copyright   string
	Description *Description
	Interfaces  []*Interface
}

// Description is the summary attribute plus trimmed body text.
type Description struct {
	Summary string
	Content string
}

// Interface is read-only once its Catalog is built.
//
// Name is the normalized name (core "wl_" prefix stripped); WireName is the
// name as declared, which is what travels on the wire and what argument
// references use.
type Interface struct {
	Name        string
	WireName    string
	TypeName    string
	Version     uint32
	Description *Description
	Requests    []*Message
	Events      []*Message
	Enums       []*Enum
}

// MessageKind separates destructor messages from ordinary ones.
type MessageKind uint8

const (
	KindDefault MessageKind = iota
	KindDestructor
)

func (k MessageKind) String() string {
	if k == KindDestructor {
		return "destructor"
	}
	return "default"
}

// Direction tells whether a Message is a request or an event.
type Direction uint8

const (
	DirRequest Direction = iota
	DirEvent
)

func (d Direction) String() string {
	if d == DirEvent {
		return "event"
	}
	return "request"
}

// Message is a request or an event. Opcode is the position within the
// interface's own request or event list.
type Message struct {
	Name            string
	TypeName        string
	Direction       Direction
	Kind            MessageKind
	Since           uint32
	DeprecatedSince uint32
	Opcode          uint16
	Description     *Description
	Args            []Arg
}

func (m *Message) IsDestructor() bool {
	return m.Kind == KindDestructor
}

// FDCount is the number of descriptors one instance of m carries out of band.
func (m *Message) FDCount() int {
	n := 0
	for _, arg := range m.Args {
		if arg.Type.Kind == ArgFD {
			n++
		}
	}
	return n
}

type Enum struct {
	Name        string
	TypeName    string
	Since       uint32
	Bitfield    bool
	Description *Description
	Entries     []Entry
}

// Entry values need not be unique inside an Enum.
type Entry struct {
	Name            string
	TypeName        string
	Value           uint32
	Summary         string
	Since           uint32
	DeprecatedSince uint32
	Description     *Description
}

type Arg struct {
	Name        string
	Type        ArgType
	Summary     string
	Nullable    bool
	Description *Description
}

// Request returns the request with the given opcode.
func (i *Interface) Request(opcode uint16) (*Message, bool) {
	if int(opcode) >= len(i.Requests) {
		return nil, false
	}
	return i.Requests[opcode], true
}

// Event returns the event with the given opcode.
func (i *Interface) Event(opcode uint16) (*Message, bool) {
	if int(opcode) >= len(i.Events) {
		return nil, false
	}
	return i.Events[opcode], true
}

func (i *Interface) RequestByName(name string) (*Message, bool) {
	return messageByName(i.Requests, name)
}

func (i *Interface) EventByName(name string) (*Message, bool) {
	return messageByName(i.Events, name)
}

func (i *Interface) Enum(name string) (*Enum, bool) {
	for _, e := range i.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

func messageByName(msgs []*Message, name string) (*Message, bool) {
	for _, m := range msgs {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}
