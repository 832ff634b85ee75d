// Package rpcproto implements the RPC argument codec: the typed,
// length-prefixed in/out parameter marshalling shared by every remote
// procedure in the system. It is a direct translation of the original
// implementation's argTypeFrmtr bit layout (see argTypeFormatter.h) into a
// Go type built by NewArgSpec and read back through its accessor methods,
// plus the ArgVector wire envelope built
// on top of it.
package rpcproto

import "fmt"

// ElemType tags the element type of one RPC argument.
type ElemType uint8

// Element type tags, occupying bits 24..16 of the packed ArgSpec.
const (
	ElemChar ElemType = iota
	ElemShort
	ElemInt
	ElemLong
	ElemDouble
)

func (t ElemType) String() string {
	switch t {
	case ElemChar:
		return "char"
	case ElemShort:
		return "short"
	case ElemInt:
		return "int"
	case ElemLong:
		return "long"
	case ElemDouble:
		return "double"
	default:
		return fmt.Sprintf("ElemType(%d)", uint8(t))
	}
}

// Bit positions within the packed 32-bit descriptor, matching
// argTypeFormatter.h's ARG_INPUT / ARG_OUTPUT / ARG_ARRAY constants.
const (
	bitInput  = 31
	bitOutput = 30
	bitArray  = 25

	shiftElemType = 16
	elemTypeMask  = 0x1FF // bits 24..16 inclusive (9 bits)
	lengthMask    = 0xFFFF
)

// ArgSpec is the 32-bit descriptor for one RPC parameter: direction
// (input/output/in-out), arrayness plus length, and element type.
type ArgSpec uint32

// NewArgSpec packs a descriptor, mirroring argTypeFrmtr(input, output,
// array, elemType, length). It panics if the direction has neither input
// nor output set, or if array is true with a zero length — the same
// invariant the original enforced with assert().
func NewArgSpec(input, output, array bool, elemType ElemType, length uint16) ArgSpec {
	if !input && !output {
		panic("rpcproto: ArgSpec must set input, output, or both")
	}
	if array && length == 0 {
		panic("rpcproto: array ArgSpec requires length > 0")
	}
	var code uint32
	if input {
		code |= 1 << bitInput
	}
	if output {
		code |= 1 << bitOutput
	}
	if array {
		code |= 1 << bitArray
		code |= uint32(length)
	}
	code |= uint32(elemType) << shiftElemType
	return ArgSpec(code)
}

// Input reports whether this argument is consumed by the remote procedure.
func (a ArgSpec) Input() bool { return a&(1<<bitInput) != 0 }

// Output reports whether this argument is produced by the remote procedure.
func (a ArgSpec) Output() bool { return a&(1<<bitOutput) != 0 }

// Array reports whether this argument is an array (as opposed to a scalar).
func (a ArgSpec) Array() bool { return a&(1<<bitArray) != 0 }

// ElemType returns the tagged element type.
func (a ArgSpec) ElemType() ElemType {
	return ElemType((uint32(a) >> shiftElemType) & elemTypeMask)
}

// Length returns the array length encoded in bits 15..0; zero for scalars.
func (a ArgSpec) Length() uint16 {
	if !a.Array() {
		return 0
	}
	return uint16(uint32(a) & lengthMask)
}

// Valid reports whether the descriptor satisfies the spec's invariants:
// at least one of input/output set, and array implies length > 0.
func (a ArgSpec) Valid() bool {
	if !a.Input() && !a.Output() {
		return false
	}
	if a.Array() && a.Length() == 0 {
		return false
	}
	return true
}

// Terminator is the zero-value sentinel that terminates an argument-spec
// vector in the original C arrays. ArgVector never needs to emit it on the
// wire (the slice's own length plays that role) but tests use it to check
// round-trip fidelity against the original bit layout.
const Terminator ArgSpec = 0

func (a ArgSpec) String() string {
	if a == Terminator {
		return "Terminator"
	}
	dir := ""
	if a.Input() {
		dir += "in"
	}
	if a.Output() {
		dir += "out"
	}
	if a.Array() {
		return fmt.Sprintf("ArgSpec{%s %s[%d]}", dir, a.ElemType(), a.Length())
	}
	return fmt.Sprintf("ArgSpec{%s %s}", dir, a.ElemType())
}
