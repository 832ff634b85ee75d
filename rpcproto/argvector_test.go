package rpcproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathArgRoundTrip(t *testing.T) {
	a := PathArg("/a/b/c")
	assert.Equal(t, "/a/b/c", a.Path())
	assert.True(t, a.Spec.Array())
	assert.Equal(t, uint16(len("/a/b/c")+1), a.Spec.Length())
}

func TestInt32ArgRoundTrip(t *testing.T) {
	a := Int32Arg(true, false, -42)
	assert.Equal(t, int32(-42), a.Int32())
	a.SetInt32(7)
	assert.Equal(t, int32(7), a.Int32())
}

func TestInt64ArgRoundTrip(t *testing.T) {
	a := Int64Arg(true, false, 1<<40)
	assert.Equal(t, int64(1<<40), a.Int64())
}

func TestStatusArg(t *testing.T) {
	v := &ArgVector{Args: []Arg{PathArg("/x"), StatusArg()}}
	assert.Equal(t, int32(0), v.Status())
	v.SetStatus(-2)
	assert.Equal(t, int32(-2), v.Status())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf, "hello")
	v := &ArgVector{Args: []Arg{
		PathArg("/a"),
		BytesArg(false, true, buf),
		Int64Arg(true, false, 3000),
		StatusArg(),
	}}
	v.SetStatus(5)

	decoded, err := Decode(v.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Args, 4)
	assert.Equal(t, "/a", decoded.Args[0].Path())
	assert.Equal(t, buf, decoded.Args[1].Data)
	assert.Equal(t, int64(3000), decoded.Args[2].Int64())
	assert.Equal(t, int32(5), decoded.Status())
}

func TestDecodeIntoOnlyTouchesOutputArgs(t *testing.T) {
	inBuf := []byte("request-buffer--")
	v := &ArgVector{Args: []Arg{
		BytesArg(true, false, append([]byte(nil), inBuf...)),
		BytesArg(false, true, make([]byte, 4)),
		StatusArg(),
	}}

	// Simulate a server reply: the input buffer comes back mutated (as it
	// would be re-encoded), but only the output argument should be merged.
	reply := &ArgVector{Args: []Arg{
		{Spec: v.Args[0].Spec, Data: []byte("mutated-by-server")},
		{Spec: v.Args[1].Spec, Data: []byte("dat!")},
		{Spec: v.Args[2].Spec, Data: v.Args[2].Data},
	}}
	reply.SetStatus(3000)

	require.NoError(t, v.DecodeInto(reply.Encode()))

	assert.Equal(t, inBuf, v.Args[0].Data, "input-only argument must be left untouched")
	assert.Equal(t, []byte("dat!"), v.Args[1].Data)
	assert.Equal(t, int32(3000), v.Status())
}

func TestDecodeTruncatedEnvelope(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeIntoMismatchedArity(t *testing.T) {
	v := &ArgVector{Args: []Arg{PathArg("/a")}}
	other := &ArgVector{Args: []Arg{PathArg("/a"), StatusArg()}}
	assert.Error(t, v.DecodeInto(other.Encode()))
}
