package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/wlctl/internal/protocol/fixed"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func arg(name string, kind schema.ArgKind) schema.Arg {
	return schema.Arg{Name: name, Type: schema.ArgType{Kind: kind}}
}

func nullable(a schema.Arg) schema.Arg {
	a.Nullable = true
	return a
}

func TestHeaderRoundTrip(t *testing.T) {
	testlog.Start(t)

	h := Header{ObjectID: 0xFF000001, Opcode: 7, Size: 24}
	b := EncodeHeader(h)
	require.Len(t, b, HeaderLen)

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.Equal(t, 16, got.BodyLen())
}

func TestDecodeHeaderRejectsBadSize(t *testing.T) {
	testlog.Start(t)

	_, err := DecodeHeader([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortHeader)

	for _, size := range []uint16{0, 4, 7, 10, 13} {
		b := EncodeHeader(Header{ObjectID: 1, Size: size})
		_, err := DecodeHeader(b)
		require.ErrorIsf(t, err, ErrInvalidSize, "size %d", size)
	}
}

func TestRoundTripEveryKind(t *testing.T) {
	testlog.Start(t)

	sig := []schema.Arg{
		arg("i", schema.ArgInt),
		arg("u", schema.ArgUint),
		arg("e", schema.ArgEnum),
		arg("f", schema.ArgFixed),
		arg("s", schema.ArgString),
		nullable(arg("ns", schema.ArgString)),
		arg("o", schema.ArgObject),
		nullable(arg("no", schema.ArgObject)),
		arg("n", schema.ArgNewID),
		arg("un", schema.ArgUnspecifiedNewID),
		arg("a", schema.ArgArray),
		arg("fd", schema.ArgFD),
		arg("fd2", schema.ArgFD),
	}
	args := []Value{
		Int(-42),
		Uint(0xDEADBEEF),
		Enum(3),
		Fixed(fixed.FromFloat64(-12.5)),
		String("hello"),
		NullString(),
		Object(5),
		NullObject(),
		NewID(6),
		UntypedNewID("wl_compositor", 4, 7),
		Array([]byte{1, 2, 3, 4, 5}),
		FD(11),
		FD(12),
	}

	body, fds, err := AppendArgs(nil, sig, args)
	require.NoError(t, err)
	require.Equal(t, []int{11, 12}, fds)
	require.Zero(t, len(body)%4)

	q := &FDQueue{}
	q.Push(fds...)
	got, err := DecodeArgs(body, sig, q)
	require.NoError(t, err)
	require.Equal(t, args, got)
	require.Zero(t, q.Len())
}

func TestStringAndArrayPadding(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		n       int
		strBody int
		arrBody int
	}{
		{n: 0, strBody: 8, arrBody: 4},
		{n: 1, strBody: 8, arrBody: 8},
		{n: 2, strBody: 8, arrBody: 8},
		{n: 3, strBody: 8, arrBody: 8},
		{n: 4, strBody: 12, arrBody: 8},
		{n: 5, strBody: 12, arrBody: 12},
		{n: 7, strBody: 12, arrBody: 12},
	}
	strSig := []schema.Arg{arg("s", schema.ArgString)}
	arrSig := []schema.Arg{arg("a", schema.ArgArray)}
	for _, tc := range cases {
		s := strings.Repeat("x", tc.n)
		body, _, err := AppendArgs(nil, strSig, []Value{String(s)})
		require.NoError(t, err)
		require.Lenf(t, body, tc.strBody, "string len %d", tc.n)
		require.Zero(t, body[len(body)-1], "string padding must be zero")
		got, err := DecodeArgs(body, strSig, nil)
		require.NoError(t, err)
		require.Equal(t, s, got[0].Str)

		raw := bytes.Repeat([]byte{0xAB}, tc.n)
		body, _, err = AppendArgs(nil, arrSig, []Value{Array(raw)})
		require.NoError(t, err)
		require.Lenf(t, body, tc.arrBody, "array len %d", tc.n)
		got, err = DecodeArgs(body, arrSig, nil)
		require.NoError(t, err)
		require.Equal(t, raw, got[0].Bytes)
	}
}

func TestEnumAcceptsSignedAndUnsigned(t *testing.T) {
	testlog.Start(t)

	sig := []schema.Arg{arg("e", schema.ArgEnum), arg("u", schema.ArgUint)}
	body, _, err := AppendArgs(nil, sig, []Value{Int(-1), Enum(2)})
	require.NoError(t, err)

	got, err := DecodeArgs(body, sig, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0xFFFFFFFF), got[0].Uint)
	require.Equal(t, uint32(2), got[1].Uint)
}

func TestCheckSizeRejectsInconsistentLength(t *testing.T) {
	testlog.Start(t)

	words := []schema.Arg{arg("a", schema.ArgInt), arg("b", schema.ArgObject), arg("fd", schema.ArgFD)}
	require.NoError(t, CheckSize(words, 8))
	require.ErrorIs(t, CheckSize(words, 4), ErrSizeMismatch)
	require.ErrorIs(t, CheckSize(words, 12), ErrSizeMismatch)

	withString := []schema.Arg{arg("a", schema.ArgUint), arg("s", schema.ArgString)}
	require.NoError(t, CheckSize(withString, 12))
	require.NoError(t, CheckSize(withString, 40))
	require.ErrorIs(t, CheckSize(withString, 8), ErrSizeMismatch)

	bind := []schema.Arg{arg("name", schema.ArgUint), arg("id", schema.ArgUnspecifiedNewID)}
	require.ErrorIs(t, CheckSize(bind, 16), ErrSizeMismatch)
	require.NoError(t, CheckSize(bind, 20))
}

func TestDecodeRejectsBeforeReadingArgs(t *testing.T) {
	testlog.Start(t)

	// An fd-bearing signature whose body is too long must fail on size
	// without consuming any queued descriptor.
	sig := []schema.Arg{arg("fd", schema.ArgFD), arg("a", schema.ArgInt)}
	q := &FDQueue{}
	q.Push(9)
	_, err := DecodeArgs(make([]byte, 8), sig, q)
	require.ErrorIs(t, err, ErrSizeMismatch)
	require.Equal(t, 1, q.Len())
}

func TestDecodeErrors(t *testing.T) {
	testlog.Start(t)

	strSig := []schema.Arg{arg("s", schema.ArgString)}
	word := func(ws ...uint32) []byte {
		var b []byte
		for _, w := range ws {
			b = order.AppendUint32(b, w)
		}
		return b
	}

	tests := []struct {
		name string
		sig  []schema.Arg
		body []byte
		want error
	}{
		{name: "string past end", sig: strSig, body: word(100, 0), want: ErrTruncated},
		{name: "string unterminated", sig: strSig, body: append(word(4), 'a', 'b', 'c', 'd'), want: ErrUnterminatedString},
		{name: "null string", sig: strSig, body: word(0, 0), want: ErrNullNotAllowed},
		{name: "null object", sig: []schema.Arg{arg("o", schema.ArgObject)}, body: word(0), want: ErrNullNotAllowed},
		{name: "zero new id", sig: []schema.Arg{arg("n", schema.ArgNewID)}, body: word(0), want: ErrNullNotAllowed},
		{name: "array past end", sig: []schema.Arg{arg("a", schema.ArgArray)}, body: word(9, 0), want: ErrTruncated},
		{name: "trailing bytes", sig: []schema.Arg{arg("a", schema.ArgArray)}, body: word(0, 0), want: ErrSizeMismatch},
		{name: "missing fd", sig: []schema.Arg{arg("fd", schema.ArgFD)}, body: nil, want: ErrMissingFD},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeArgs(tc.body, tc.sig, &FDQueue{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAppendArgsErrors(t *testing.T) {
	testlog.Start(t)

	_, _, err := AppendArgs(nil, []schema.Arg{arg("s", schema.ArgString)}, []Value{Int(1)})
	require.ErrorIs(t, err, ErrSignatureMismatch)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("s", schema.ArgString)}, nil)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("s", schema.ArgString)}, []Value{NullString()})
	require.ErrorIs(t, err, ErrNullNotAllowed)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("o", schema.ArgObject)}, []Value{Object(0)})
	require.ErrorIs(t, err, ErrNullNotAllowed)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("n", schema.ArgNewID)}, []Value{NewID(0)})
	require.ErrorIs(t, err, ErrNullNotAllowed)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("fd", schema.ArgFD)}, []Value{FD(-1)})
	require.ErrorIs(t, err, ErrBadFD)

	_, fds, err := AppendArgs(nil, []schema.Arg{arg("fd", schema.ArgFD)}, []Value{FD(0)})
	require.NoError(t, err)
	require.Equal(t, []int{0}, fds)
}

func TestAppendArgsRejectsEmbeddedNUL(t *testing.T) {
	testlog.Start(t)

	_, _, err := AppendArgs(nil, []schema.Arg{arg("s", schema.ArgString)}, []Value{String("wl_\x00seat")})
	require.ErrorIs(t, err, ErrSignatureMismatch)
	require.ErrorIs(t, err, ErrEmbeddedNUL)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("id", schema.ArgUnspecifiedNewID)}, []Value{UntypedNewID("wl_\x00seat", 1, 3)})
	require.ErrorIs(t, err, ErrEmbeddedNUL)

	_, _, err = AppendArgs(nil, []schema.Arg{arg("s", schema.ArgString)}, []Value{String("")})
	require.NoError(t, err)
}

func TestEncodeMessageFrames(t *testing.T) {
	testlog.Start(t)

	sig := []schema.Arg{arg("serial", schema.ArgUint), arg("msg", schema.ArgString)}
	m, err := EncodeMessage(3, 1, sig, []Value{Uint(9), String("ok")})
	require.NoError(t, err)
	require.Equal(t, uint16(HeaderLen+4+8), m.Header.Size)

	raw := m.Bytes()
	h, ok, err := Frame(raw[:10])
	require.NoError(t, err)
	require.False(t, ok)

	h, ok, err = Frame(append(raw, 0xFF))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m.Header, h)

	vals, err := DecodeArgs(raw[HeaderLen:h.Size], sig, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", vals[1].Str)

	_, ok, err = Frame(raw[:4])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEncodeMessageTooLarge(t *testing.T) {
	testlog.Start(t)

	sig := []schema.Arg{arg("a", schema.ArgArray)}
	_, err := EncodeMessage(1, 0, sig, []Value{Array(make([]byte, MaxMessageSize))})
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestFDQueueOrder(t *testing.T) {
	q := &FDQueue{}
	q.Push(3, 4)
	q.Push(5)
	for _, want := range []int{3, 4, 5} {
		fd, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, fd)
	}
	_, ok := q.Pop()
	require.False(t, ok)

	var nilQueue *FDQueue
	require.Zero(t, nilQueue.Len())
}
