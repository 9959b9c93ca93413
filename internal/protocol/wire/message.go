package wire

import (
	"fmt"

	"github.com/danmuck/wlctl/internal/protocol/schema"
)

// Message is one framed message. Body excludes the header; FDs travel
// out of band alongside it.
type Message struct {
	Header Header
	Body   []byte
	FDs    []int
}

// EncodeMessage frames args for objectID/opcode against sig.
func EncodeMessage(objectID uint32, opcode uint16, sig []schema.Arg, args []Value) (Message, error) {
	buf := make([]byte, HeaderLen, HeaderLen+4*len(args))
	buf, fds, err := AppendArgs(buf, sig, args)
	if err != nil {
		return Message{}, err
	}
	if len(buf) > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %d bytes (object %d opcode %d)", ErrMessageTooLarge, len(buf), objectID, opcode)
	}
	h := Header{ObjectID: objectID, Opcode: opcode, Size: uint16(len(buf))}
	AppendHeader(buf[:0], h)
	return Message{Header: h, Body: buf[HeaderLen:], FDs: fds}, nil
}

// Bytes returns header and body as one contiguous buffer.
func (m Message) Bytes() []byte {
	out := make([]byte, 0, HeaderLen+len(m.Body))
	out = AppendHeader(out, m.Header)
	return append(out, m.Body...)
}

// Frame inspects the head of buf. ok is false until the whole message
// named by the header is buffered.
func Frame(buf []byte) (h Header, ok bool, err error) {
	if len(buf) < HeaderLen {
		return Header{}, false, nil
	}
	h, err = DecodeHeader(buf)
	if err != nil {
		return Header{}, false, err
	}
	return h, len(buf) >= int(h.Size), nil
}
