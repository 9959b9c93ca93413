package schema

import "fmt"

// ArgKind is the closed set of argument wire types.
type ArgKind uint8

const (
	ArgInt ArgKind = iota + 1
	ArgUint
	ArgEnum
	ArgFixed
	ArgString
	ArgObject
	ArgNewID
	ArgUnspecifiedNewID
	ArgArray
	ArgFD
)

func (k ArgKind) String() string {
	switch k {
	case ArgInt:
		return "int"
	case ArgUint:
		return "uint"
	case ArgEnum:
		return "enum"
	case ArgFixed:
		return "fixed"
	case ArgString:
		return "string"
	case ArgObject:
		return "object"
	case ArgNewID:
		return "new_id"
	case ArgUnspecifiedNewID:
		return "new_id(unspecified)"
	case ArgArray:
		return "array"
	case ArgFD:
		return "fd"
	default:
		return fmt.Sprintf("argkind(%d)", uint8(k))
	}
}

// EnumRef names an enum by owning interface (wire name) and enum name.
type EnumRef struct {
	Interface string
	Name      string
}

func (r EnumRef) String() string {
	return r.Interface + "." + r.Name
}

// ArgType is an ArgKind plus its symbolic reference. Interface is set for
// ArgObject (empty means any object) and ArgNewID; Enum is set for ArgEnum,
// whose Signed flag records whether the declared base type was int.
type ArgType struct {
	Kind      ArgKind
	Interface string
	Enum      EnumRef
	Signed    bool
}

func (t ArgType) String() string {
	switch t.Kind {
	case ArgObject, ArgNewID:
		if t.Interface != "" {
			return t.Kind.String() + "<" + t.Interface + ">"
		}
	case ArgEnum:
		return "enum<" + t.Enum.String() + ">"
	}
	return t.Kind.String()
}

// classifyArg maps the (type, interface, enum) attribute triple onto an
// ArgType. The enum reference is kept raw here and qualified during
// resolution, once every interface name is known.
func classifyArg(typ, iface, enum string) (ArgType, error) {
	switch typ {
	case "int", "uint":
		if enum != "" {
			return ArgType{Kind: ArgEnum, Enum: EnumRef{Name: enum}, Signed: typ == "int"}, nil
		}
		if typ == "int" {
			return ArgType{Kind: ArgInt}, nil
		}
		return ArgType{Kind: ArgUint}, nil
	case "fixed":
		return ArgType{Kind: ArgFixed}, nil
	case "string":
		return ArgType{Kind: ArgString}, nil
	case "object":
		return ArgType{Kind: ArgObject, Interface: iface}, nil
	case "new_id":
		if iface == "" {
			return ArgType{Kind: ArgUnspecifiedNewID}, nil
		}
		return ArgType{Kind: ArgNewID, Interface: iface}, nil
	case "array":
		return ArgType{Kind: ArgArray}, nil
	case "fd":
		return ArgType{Kind: ArgFD}, nil
	default:
		return ArgType{}, fmt.Errorf("%w: %q", ErrUnknownArgType, typ)
	}
}
