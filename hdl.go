package hdl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// Errors returned by the IR core. Wrapped errors carry context; use
// errors.Cause to discriminate.
var (
	ErrWidthMismatch         = errors.New("width mismatch")
	ErrIndexOutOfBounds      = errors.New("index out of bounds")
	ErrInvalidDigit          = errors.New("invalid digit")
	ErrSliceWidthNotConstant = errors.New("slice width must be constant")
	ErrSliceOutOfBounds      = errors.New("slice out of bounds")
	ErrUnknownInSimulation   = errors.New("cannot evaluate unknown value")
	ErrMemoryOutOfBounds     = errors.New("memory address out of bounds")
	ErrOpNotAGate            = errors.New("op is not a gate")
	ErrUnsplitLeaf           = errors.New("leaf value has no bit-level definition")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
