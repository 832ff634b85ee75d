package rpcproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgSpecPackUnpack(t *testing.T) {
	for _, test := range []struct {
		name                     string
		input, output, array     bool
		elemType                 ElemType
		length                   uint16
	}{
		{"input char array", true, false, true, ElemChar, 128},
		{"output char array", false, true, true, ElemChar, 4096},
		{"in-out char array", true, true, true, ElemChar, 1},
		{"scalar int in", true, false, false, ElemInt, 0},
		{"scalar long out", false, true, false, ElemLong, 0},
		{"scalar double in", true, false, false, ElemDouble, 0},
	} {
		t.Run(test.name, func(t *testing.T) {
			spec := NewArgSpec(test.input, test.output, test.array, test.elemType, test.length)
			assert.Equal(t, test.input, spec.Input())
			assert.Equal(t, test.output, spec.Output())
			assert.Equal(t, test.array, spec.Array())
			assert.Equal(t, test.elemType, spec.ElemType())
			if test.array {
				assert.Equal(t, test.length, spec.Length())
			} else {
				assert.Equal(t, uint16(0), spec.Length())
			}
			assert.True(t, spec.Valid())
		})
	}
}

func TestArgSpecPanicsOnNoDirection(t *testing.T) {
	assert.Panics(t, func() {
		NewArgSpec(false, false, false, ElemInt, 0)
	})
}

func TestArgSpecPanicsOnZeroLengthArray(t *testing.T) {
	assert.Panics(t, func() {
		NewArgSpec(true, false, true, ElemChar, 0)
	})
}

func TestArgSpecTerminatorIsZero(t *testing.T) {
	require.Equal(t, ArgSpec(0), Terminator)
	assert.False(t, Terminator.Input())
	assert.False(t, Terminator.Output())
}

func TestArgSpecBitLayout(t *testing.T) {
	// path: input, array, char, length 5 -- matches argTypeFrmtr(yes, no, yes, ARG_CHAR, 5)
	spec := NewArgSpec(true, false, true, ElemChar, 5)
	assert.Equal(t, uint32(1)<<bitInput|uint32(1)<<bitArray|5, uint32(spec))

	// retcode: output, scalar, int -- matches argTypeFrmtr(no, yes, no, ARG_INT)
	status := NewArgSpec(false, true, false, ElemInt, 0)
	assert.Equal(t, uint32(1)<<bitOutput|uint32(ElemInt)<<shiftElemType, uint32(status))
}
