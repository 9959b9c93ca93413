package wire

import (
	"fmt"
	"strconv"

	"github.com/danmuck/wlctl/internal/protocol/fixed"
	"github.com/danmuck/wlctl/internal/protocol/schema"
)

// Value is one decoded or to-be-encoded argument. Kind selects which of the
// remaining fields is meaningful:
//
//	ArgInt                    Int
//	ArgUint, ArgEnum          Uint (signed enums carry the raw word)
//	ArgFixed                  Fixed
//	ArgString                 Str, Null
//	ArgObject                 Object (0 when Null)
//	ArgNewID                  Object
//	ArgUnspecifiedNewID       Interface, Version, Object
//	ArgArray                  Bytes
//	ArgFD                     FD
type Value struct {
	Kind      schema.ArgKind
	Int       int32
	Uint      uint32
	Fixed     fixed.Fixed
	Str       string
	Null      bool
	Bytes     []byte
	Object    uint32
	Interface string
	Version   uint32
	FD        int
}

func Int(v int32) Value {
	return Value{Kind: schema.ArgInt, Int: v}
}

func Uint(v uint32) Value {
	return Value{Kind: schema.ArgUint, Uint: v}
}

func Enum(v uint32) Value {
	return Value{Kind: schema.ArgEnum, Uint: v}
}

func Fixed(v fixed.Fixed) Value {
	return Value{Kind: schema.ArgFixed, Fixed: v}
}

func String(s string) Value {
	return Value{Kind: schema.ArgString, Str: s}
}

func NullString() Value {
	return Value{Kind: schema.ArgString, Null: true}
}

func Object(id uint32) Value {
	return Value{Kind: schema.ArgObject, Object: id, Null: id == 0}
}

func NullObject() Value {
	return Value{Kind: schema.ArgObject, Null: true}
}

// NewID carries a new object id. A zero id asks the connection to
// allocate one.
func NewID(id uint32) Value {
	return Value{Kind: schema.ArgNewID, Object: id}
}

// UntypedNewID is a new_id whose interface is chosen at runtime, as in a
// registry bind.
func UntypedNewID(iface string, version, id uint32) Value {
	return Value{Kind: schema.ArgUnspecifiedNewID, Interface: iface, Version: version, Object: id}
}

func Array(b []byte) Value {
	return Value{Kind: schema.ArgArray, Bytes: b}
}

// FD queues a descriptor for out-of-band transfer. The caller keeps
// ownership: the kernel duplicates it on send.
func FD(fd int) Value {
	return Value{Kind: schema.ArgFD, FD: fd}
}

// Word returns the single 32-bit wire word for word-sized kinds.
func (v Value) Word() uint32 {
	switch v.Kind {
	case schema.ArgInt:
		return uint32(v.Int)
	case schema.ArgUint, schema.ArgEnum:
		return v.Uint
	case schema.ArgFixed:
		return uint32(v.Fixed.Raw())
	case schema.ArgObject, schema.ArgNewID:
		return v.Object
	default:
		return 0
	}
}

func (v Value) String() string {
	switch v.Kind {
	case schema.ArgInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case schema.ArgUint, schema.ArgEnum:
		return strconv.FormatUint(uint64(v.Uint), 10)
	case schema.ArgFixed:
		return v.Fixed.String()
	case schema.ArgString:
		if v.Null {
			return "nil"
		}
		return strconv.Quote(v.Str)
	case schema.ArgObject:
		if v.Null || v.Object == 0 {
			return "nil"
		}
		return "object " + strconv.FormatUint(uint64(v.Object), 10)
	case schema.ArgNewID:
		return "new id " + strconv.FormatUint(uint64(v.Object), 10)
	case schema.ArgUnspecifiedNewID:
		return fmt.Sprintf("new id %s@%d v%d", v.Interface, v.Object, v.Version)
	case schema.ArgArray:
		return fmt.Sprintf("array[%d]", len(v.Bytes))
	case schema.ArgFD:
		return "fd " + strconv.Itoa(v.FD)
	default:
		return "invalid"
	}
}
