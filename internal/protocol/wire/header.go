package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderLen = 8
	// MaxMessageSize is the largest 4-byte aligned size the 16-bit size
	// field can carry.
	MaxMessageSize = 0xFFFF &^ 3
)

// The protocol is host-endian: both peers share one machine.
var order = binary.NativeEndian

// Header is the fixed wire header. Size counts the header itself.
type Header struct {
	ObjectID uint32
	Opcode   uint16
	Size     uint16
}

// BodyLen is the argument payload length implied by Size.
func (h Header) BodyLen() int {
	return int(h.Size) - HeaderLen
}

func AppendHeader(dst []byte, h Header) []byte {
	dst = order.AppendUint32(dst, h.ObjectID)
	return order.AppendUint32(dst, uint32(h.Size)<<16|uint32(h.Opcode))
}

func EncodeHeader(h Header) []byte {
	return AppendHeader(make([]byte, 0, HeaderLen), h)
}

// DecodeHeader reads the first HeaderLen bytes of b and validates the size
// word before anything else is trusted.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	word := order.Uint32(b[4:8])
	h := Header{
		ObjectID: order.Uint32(b[0:4]),
		Opcode:   uint16(word),
		Size:     uint16(word >> 16),
	}
	if h.Size < HeaderLen || h.Size%4 != 0 {
		return Header{}, fmt.Errorf("%w: %d (object %d opcode %d)", ErrInvalidSize, h.Size, h.ObjectID, h.Opcode)
	}
	return h, nil
}
