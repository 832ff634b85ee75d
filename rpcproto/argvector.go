package rpcproto

import (
	"encoding/binary"
	"fmt"
)

// Arg is one positional parameter of a remote procedure call: its packed
// descriptor plus its current raw value. Scalars are stored in
// little-endian byte order; char arrays are stored verbatim (the path
// argument and buffer arguments are both char arrays per spec.md §4.3).
type Arg struct {
	Spec ArgSpec
	Data []byte
}

// ArgVector is the ordered parameter list for one remote procedure call: one
// logical path, zero or more additional parameters, and a trailing output
// int status, per spec.md §4.3's call convention.
type ArgVector struct {
	Args []Arg
}

func elemSize(t ElemType) int {
	switch t {
	case ElemChar:
		return 1
	case ElemShort:
		return 2
	case ElemInt:
		return 4
	case ElemLong, ElemDouble:
		return 8
	default:
		panic(fmt.Sprintf("rpcproto: unknown element type %v", t))
	}
}

// PathArg builds the leading char-array path argument: input-only, prefixed
// by its length including the NUL terminator (spec.md §4.3).
func PathArg(path string) Arg {
	data := make([]byte, len(path)+1)
	copy(data, path)
	return Arg{
		Spec: NewArgSpec(true, false, true, ElemChar, uint16(len(data))),
		Data: data,
	}
}

// Path decodes a PathArg's value back to a string, stripping the trailing
// NUL.
func (a Arg) Path() string {
	if n := len(a.Data); n > 0 && a.Data[n-1] == 0 {
		return string(a.Data[:n-1])
	}
	return string(a.Data)
}

// Int32Arg builds a scalar int argument with the given direction.
func Int32Arg(input, output bool, v int32) Arg {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(v))
	return Arg{Spec: NewArgSpec(input, output, false, ElemInt, 0), Data: data}
}

// Int32 reads a scalar int argument's current value.
func (a Arg) Int32() int32 {
	return int32(binary.LittleEndian.Uint32(a.Data))
}

// SetInt32 overwrites a scalar int argument's value in place.
func (a *Arg) SetInt32(v int32) {
	binary.LittleEndian.PutUint32(a.Data, uint32(v))
}

// Int64Arg builds a scalar long argument with the given direction.
func Int64Arg(input, output bool, v int64) Arg {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(v))
	return Arg{Spec: NewArgSpec(input, output, false, ElemLong, 0), Data: data}
}

// Int64 reads a scalar long argument's current value.
func (a Arg) Int64() int64 {
	return int64(binary.LittleEndian.Uint64(a.Data))
}

// SetInt64 overwrites a scalar long argument's value in place.
func (a *Arg) SetInt64(v int64) {
	binary.LittleEndian.PutUint64(a.Data, uint64(v))
}

// BytesArg builds a char-array argument of the given direction and
// capacity. For output/in-out arrays the caller supplies the buffer's full
// capacity; the handler overwrites Data's contents without reallocating.
func BytesArg(input, output bool, buf []byte) Arg {
	return Arg{Spec: NewArgSpec(input, output, true, ElemChar, uint16(len(buf))), Data: buf}
}

// StatusArg builds the trailing output-int status slot every procedure
// carries, per spec.md §4.3.
func StatusArg() Arg {
	return Int32Arg(false, true, 0)
}

// Status returns the trailing status argument's value, assuming the
// ArgVector was built with StatusArg as its last element.
func (v *ArgVector) Status() int32 {
	return v.Args[len(v.Args)-1].Int32()
}

// SetStatus overwrites the trailing status argument's value.
func (v *ArgVector) SetStatus(code int32) {
	v.Args[len(v.Args)-1].SetInt32(code)
}

// Encode serializes the vector to a flat byte slice for transport: a count,
// then per argument a descriptor, a data length, and the data itself. This
// is the wire envelope passed opaquely through the RPC transport (§6.1);
// note Encode round-trips every argument regardless of direction, since an
// RPC transport has no shared memory to mutate output arguments in place.
func (v *ArgVector) Encode() []byte {
	size := 4
	for _, a := range v.Args {
		size += 4 + 4 + len(a.Data)
	}
	out := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(out[off:], uint32(len(v.Args)))
	off += 4
	for _, a := range v.Args {
		binary.LittleEndian.PutUint32(out[off:], uint32(a.Spec))
		off += 4
		binary.LittleEndian.PutUint32(out[off:], uint32(len(a.Data)))
		off += 4
		copy(out[off:], a.Data)
		off += len(a.Data)
	}
	return out
}

// Decode parses the wire envelope Encode produced into a new ArgVector.
func Decode(buf []byte) (*ArgVector, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("rpcproto: truncated envelope")
	}
	count := binary.LittleEndian.Uint32(buf)
	off := 4
	args := make([]Arg, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+8 > len(buf) {
			return nil, fmt.Errorf("rpcproto: truncated argument header")
		}
		spec := ArgSpec(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		n := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		if off+int(n) > len(buf) {
			return nil, fmt.Errorf("rpcproto: truncated argument data")
		}
		data := make([]byte, n)
		copy(data, buf[off:off+int(n)])
		off += int(n)
		args = append(args, Arg{Spec: spec, Data: data})
	}
	return &ArgVector{Args: args}, nil
}

// DecodeInto parses buf and overwrites the Data of v's output arguments in
// place, leaving input-only arguments untouched (preserving slice identity
// where the caller retained a
// pointer into v.Args[i].Data), used by the client to merge a server reply
// back into the ArgVector it sent.
func (v *ArgVector) DecodeInto(buf []byte) error {
	decoded, err := Decode(buf)
	if err != nil {
		return err
	}
	if len(decoded.Args) != len(v.Args) {
		return fmt.Errorf("rpcproto: reply has %d arguments, want %d", len(decoded.Args), len(v.Args))
	}
	for i := range v.Args {
		if !v.Args[i].Spec.Output() {
			continue
		}
		if len(v.Args[i].Data) != len(decoded.Args[i].Data) {
			v.Args[i].Data = decoded.Args[i].Data
			continue
		}
		copy(v.Args[i].Data, decoded.Args[i].Data)
	}
	return nil
}
