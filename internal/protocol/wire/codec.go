package wire

import (
	"fmt"
	"strings"

	"github.com/danmuck/wlctl/internal/protocol/fixed"
	"github.com/danmuck/wlctl/internal/protocol/schema"
)

func pad4(n int) int {
	return (n + 3) &^ 3
}

// AppendArgs encodes args against sig onto dst. Descriptors are returned in
// argument order and never appear in the body.
func AppendArgs(dst []byte, sig []schema.Arg, args []Value) ([]byte, []int, error) {
	if len(sig) != len(args) {
		return dst, nil, fmt.Errorf("%w: want %d args, got %d", ErrSignatureMismatch, len(sig), len(args))
	}
	var fds []int
	for i, arg := range sig {
		v := args[i]
		if !compatible(arg.Type.Kind, v.Kind) {
			return dst, nil, fmt.Errorf("%w: arg %s is %s, got %s", ErrSignatureMismatch, arg.Name, arg.Type.Kind, v.Kind)
		}
		switch arg.Type.Kind {
		case schema.ArgInt, schema.ArgUint, schema.ArgEnum, schema.ArgFixed:
			dst = order.AppendUint32(dst, v.Word())
		case schema.ArgObject:
			if v.Null || v.Object == 0 {
				if !arg.Nullable {
					return dst, nil, fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name)
				}
				dst = order.AppendUint32(dst, 0)
				continue
			}
			dst = order.AppendUint32(dst, v.Object)
		case schema.ArgNewID:
			if v.Object == 0 {
				return dst, nil, fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name)
			}
			dst = order.AppendUint32(dst, v.Object)
		case schema.ArgUnspecifiedNewID:
			if v.Interface == "" || v.Object == 0 {
				return dst, nil, fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name)
			}
			if err := checkCString(arg.Name, v.Interface); err != nil {
				return dst, nil, err
			}
			dst = appendString(dst, v.Interface)
			dst = order.AppendUint32(dst, v.Version)
			dst = order.AppendUint32(dst, v.Object)
		case schema.ArgString:
			if v.Null {
				if !arg.Nullable {
					return dst, nil, fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name)
				}
				dst = order.AppendUint32(dst, 0)
				continue
			}
			if err := checkCString(arg.Name, v.Str); err != nil {
				return dst, nil, err
			}
			dst = appendString(dst, v.Str)
		case schema.ArgArray:
			dst = order.AppendUint32(dst, uint32(len(v.Bytes)))
			dst = appendPadded(dst, v.Bytes)
		case schema.ArgFD:
			if v.FD < 0 {
				return dst, nil, fmt.Errorf("%w: %s is %d", ErrBadFD, arg.Name, v.FD)
			}
			fds = append(fds, v.FD)
		default:
			return dst, nil, fmt.Errorf("%w: arg %s has kind %s", ErrSignatureMismatch, arg.Name, arg.Type.Kind)
		}
	}
	return dst, fds, nil
}

func compatible(want, got schema.ArgKind) bool {
	if want == got {
		return true
	}
	switch want {
	case schema.ArgEnum:
		return got == schema.ArgInt || got == schema.ArgUint
	case schema.ArgUint:
		return got == schema.ArgEnum
	}
	return false
}

// checkCString rejects s if the peer's terminated view would cut it short.
func checkCString(name, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %w: %s", ErrSignatureMismatch, ErrEmbeddedNUL, name)
	}
	return nil
}

func appendString(dst []byte, s string) []byte {
	dst = order.AppendUint32(dst, uint32(len(s)+1))
	start := len(dst)
	dst = append(dst, s...)
	dst = append(dst, 0)
	for len(dst)-start < pad4(len(s)+1) {
		dst = append(dst, 0)
	}
	return dst
}

func appendPadded(dst, b []byte) []byte {
	start := len(dst)
	dst = append(dst, b...)
	for len(dst)-start < pad4(len(b)) {
		dst = append(dst, 0)
	}
	return dst
}

// CheckSize rejects a body length that cannot belong to sig. Signatures
// made only of fixed-width arguments must match exactly; otherwise bodyLen
// must at least cover every length word.
func CheckSize(sig []schema.Arg, bodyLen int) error {
	minLen, variable := 0, false
	for _, arg := range sig {
		switch arg.Type.Kind {
		case schema.ArgFD:
		case schema.ArgString:
			variable = true
			if arg.Nullable {
				minLen += 4
			} else {
				minLen += 8
			}
		case schema.ArgArray:
			variable = true
			minLen += 4
		case schema.ArgUnspecifiedNewID:
			variable = true
			minLen += 16
		default:
			minLen += 4
		}
	}
	if bodyLen < minLen || (!variable && bodyLen != minLen) || bodyLen%4 != 0 {
		return fmt.Errorf("%w: body %d bytes, signature needs %d", ErrSizeMismatch, bodyLen, minLen)
	}
	return nil
}

// DecodeArgs decodes body against sig, taking one descriptor from fds per
// fd argument. Every body byte must be consumed. Descriptors taken by a
// failed decode are closed.
func DecodeArgs(body []byte, sig []schema.Arg, fds *FDQueue) ([]Value, error) {
	if err := CheckSize(sig, len(body)); err != nil {
		return nil, err
	}
	d := decoder{buf: body}
	out := make([]Value, 0, len(sig))
	var taken []int
	fail := func(err error) ([]Value, error) {
		closeFDs(taken)
		return nil, err
	}
	for _, arg := range sig {
		switch arg.Type.Kind {
		case schema.ArgInt:
			w, err := d.word()
			if err != nil {
				return fail(err)
			}
			out = append(out, Int(int32(w)))
		case schema.ArgUint:
			w, err := d.word()
			if err != nil {
				return fail(err)
			}
			out = append(out, Uint(w))
		case schema.ArgEnum:
			w, err := d.word()
			if err != nil {
				return fail(err)
			}
			out = append(out, Enum(w))
		case schema.ArgFixed:
			w, err := d.word()
			if err != nil {
				return fail(err)
			}
			out = append(out, Fixed(fixed.FromRaw(int32(w))))
		case schema.ArgObject:
			w, err := d.word()
			if err != nil {
				return fail(err)
			}
			if w == 0 && !arg.Nullable {
				return fail(fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name))
			}
			out = append(out, Object(w))
		case schema.ArgNewID:
			w, err := d.word()
			if err != nil {
				return fail(err)
			}
			if w == 0 {
				return fail(fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name))
			}
			out = append(out, NewID(w))
		case schema.ArgUnspecifiedNewID:
			iface, null, err := d.str()
			if err != nil {
				return fail(err)
			}
			version, err := d.word()
			if err != nil {
				return fail(err)
			}
			id, err := d.word()
			if err != nil {
				return fail(err)
			}
			if null || id == 0 {
				return fail(fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name))
			}
			out = append(out, UntypedNewID(iface, version, id))
		case schema.ArgString:
			s, null, err := d.str()
			if err != nil {
				return fail(err)
			}
			if null {
				if !arg.Nullable {
					return fail(fmt.Errorf("%w: %s", ErrNullNotAllowed, arg.Name))
				}
				out = append(out, NullString())
				continue
			}
			out = append(out, String(s))
		case schema.ArgArray:
			b, err := d.array()
			if err != nil {
				return fail(err)
			}
			out = append(out, Array(b))
		case schema.ArgFD:
			fd, ok := fds.Pop()
			if !ok {
				return fail(fmt.Errorf("%w: %s", ErrMissingFD, arg.Name))
			}
			taken = append(taken, fd)
			out = append(out, FD(fd))
		default:
			return fail(fmt.Errorf("%w: arg %s has kind %s", ErrSignatureMismatch, arg.Name, arg.Type.Kind))
		}
	}
	if d.off != len(d.buf) {
		return fail(fmt.Errorf("%w: %d trailing bytes", ErrSizeMismatch, len(d.buf)-d.off))
	}
	return out, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) word() (uint32, error) {
	if len(d.buf)-d.off < 4 {
		return 0, ErrTruncated
	}
	w := order.Uint32(d.buf[d.off:])
	d.off += 4
	return w, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	padded := pad4(n)
	if n < 0 || padded > len(d.buf)-d.off {
		return nil, ErrTruncated
	}
	b := d.buf[d.off : d.off+n]
	d.off += padded
	return b, nil
}

func (d *decoder) str() (string, bool, error) {
	n, err := d.word()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", true, nil
	}
	if uint64(n) > uint64(len(d.buf)) {
		return "", false, ErrTruncated
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", false, err
	}
	if b[len(b)-1] != 0 {
		return "", false, ErrUnterminatedString
	}
	return string(b[:len(b)-1]), false, nil
}

func (d *decoder) array() ([]byte, error) {
	n, err := d.word()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(d.buf)) {
		return nil, ErrTruncated
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}
