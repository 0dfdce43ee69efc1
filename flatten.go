package hdl

import (
	"github.com/pkg/errors"
)

// Flattening lowers every value it visits to an ordered list of
// width-1 replacement values, least significant bit first, built from
// And, Or, Xor and Not only. Leaves other than constants and unknowns
// (inputs, registers, memory reads) must be predefined with Define;
// Split builds the canonical bit-level view of such a leaf.
type Flattening struct {
	module *Module
	values map[Value][]Value
}

// NewFlattening returns an empty flattening over module.
func NewFlattening(module *Module) *Flattening {
	return &Flattening{
		module: module,
		values: make(map[Value][]Value),
	}
}

// Define records the bit-level lowering of a leaf value.
func (f *Flattening) Define(value Value, bits []Value) {
	f.values[value] = bits
}

// Bits returns the lowering of a previously flattened value.
func (f *Flattening) Bits(value Value) ([]Value, error) {
	bits, ok := f.values[value]
	if !ok {
		return nil, errors.Wrapf(ErrUnsplitLeaf, "%s was never flattened", value)
	}
	return bits, nil
}

// Split builds the one-bit slices of value, least significant first.
func (f *Flattening) Split(value Value) []Value {
	bits := make([]Value, value.Width())
	for i := range bits {
		bits[i] = f.op(OpSlice,
			value,
			f.module.Constant(FromUint64(uint64(i))),
			f.module.Constant(FromUint64(1)),
		)
	}
	return bits
}

// Join concatenates one-bit values, least significant first, back
// into a single value.
func (f *Flattening) Join(bits []Value) Value {
	value := bits[0]
	for _, bit := range bits[1:] {
		value = f.op(OpConcat, bit, value)
	}
	return value
}

// Flatten lowers value and its operands. The lowering of every
// visited node is available through Bits afterwards.
func (f *Flattening) Flatten(value Value) error {
	if _, ok := f.values[value]; ok {
		return nil
	}

	var bits []Value
	switch value := value.(type) {
	case *Constant:
		bits = make([]Value, value.Width())
		for i := range bits {
			bits[i] = f.module.Bool(value.Value.At(i))
		}

	case *Unknown:
		bits = make([]Value, value.Width())
		for i := range bits {
			bits[i] = f.module.Unknown(1)
		}

	case *Op:
		for _, arg := range value.Args {
			if err := f.Flatten(arg); err != nil {
				return err
			}
		}
		arg := func(index int) []Value { return f.values[value.Args[index]] }

		switch value.Kind {
		case OpAnd, OpOr, OpXor:
			bits = make([]Value, value.Width())
			for i := range bits {
				bits[i] = f.op(value.Kind, arg(0)[i], arg(1)[i])
			}
		case OpNot:
			bits = make([]Value, value.Width())
			for i := range bits {
				bits[i] = f.op(OpNot, arg(0)[i])
			}
		case OpAdd:
			bits = f.addSub(arg(0), arg(1), false)
		case OpSub:
			bits = f.addSub(arg(0), arg(1), true)
		case OpMul:
			bits = f.mul(arg(0), arg(1))
		case OpEq:
			notEq := Value(f.module.Bool(false))
			for i := range arg(0) {
				notEq = f.op(OpOr, notEq, f.op(OpXor, arg(0)[i], arg(1)[i]))
			}
			bits = []Value{f.op(OpNot, notEq)}
		case OpLtU:
			bits = []Value{f.ltU(arg(0), arg(1))}
		case OpLtS:
			bits = []Value{f.ltS(arg(0), arg(1))}
		case OpLeU:
			bits = []Value{f.op(OpNot, f.ltU(arg(1), arg(0)))}
		case OpLeS:
			bits = []Value{f.op(OpNot, f.ltS(arg(1), arg(0)))}
		case OpConcat:
			bits = append(bits, arg(1)...)
			bits = append(bits, arg(0)...)
		case OpSlice:
			shifted := f.shr(arg(0), arg(1), false)
			for len(shifted) < value.Width() {
				shifted = append(shifted, f.module.Bool(false))
			}
			bits = shifted[:value.Width()]
		case OpShl:
			bits = f.shl(arg(0), arg(1))
		case OpShrU:
			bits = f.shr(arg(0), arg(1), false)
		case OpShrS:
			bits = f.shr(arg(0), arg(1), true)
		case OpSelect:
			bits = f.selectBits(arg(0)[0], arg(1), arg(2))
		default:
			panic("unreachable")
		}

	default:
		return errors.Wrapf(ErrUnsplitLeaf, "%s", value)
	}

	f.values[value] = bits
	return nil
}

// op builds a gate; the arguments are single bits by construction.
func (f *Flattening) op(kind OpKind, args ...Value) Value {
	value, err := f.module.Op(kind, args...)
	assert(err == nil, "flatten: %v", err)
	return value
}

// selectBit is the gate-level mux (cond & a) | (~cond & b).
func (f *Flattening) selectBit(cond, a, b Value) Value {
	return f.op(OpOr,
		f.op(OpAnd, cond, a),
		f.op(OpAnd, f.op(OpNot, cond), b),
	)
}

func (f *Flattening) selectBits(cond Value, a, b []Value) []Value {
	bits := make([]Value, len(a))
	for i := range bits {
		bits[i] = f.selectBit(cond, a[i], b[i])
	}
	return bits
}

// addSub is a ripple-carry adder; subtraction feeds the complemented
// subtrahend and a carry-in of one.
func (f *Flattening) addSub(a, b []Value, isSub bool) []Value {
	sum := make([]Value, len(a))
	carry := Value(f.module.Bool(isSub))
	for i := range a {
		bBit := b[i]
		if isSub {
			bBit = f.op(OpNot, bBit)
		}
		sum[i] = f.op(OpXor, f.op(OpXor, a[i], bBit), carry)
		carry = f.op(OpOr,
			f.op(OpOr,
				f.op(OpAnd, carry, a[i]),
				f.op(OpAnd, carry, bBit),
			),
			f.op(OpAnd, a[i], bBit),
		)
	}
	return sum
}

// shr is a logarithmic shifter. Bit i of the amount conditionally
// moves the partial result down by 2^i, padding with the sign bit or
// zero.
func (f *Flattening) shr(a, b []Value, isSigned bool) []Value {
	result := append([]Value(nil), a...)
	for i := range b {
		shifted := make([]Value, len(result))
		for j := range result {
			var in Value
			if i < 30 && j+(1<<uint(i)) < len(result) {
				in = result[j+(1<<uint(i))]
			} else if isSigned {
				in = a[len(a)-1]
			} else {
				in = f.module.Bool(false)
			}
			shifted[j] = f.selectBit(b[i], in, result[j])
		}
		result = shifted
	}
	return result
}

// shl is the logarithmic left shifter.
func (f *Flattening) shl(a, b []Value) []Value {
	result := append([]Value(nil), a...)
	for i := range b {
		shifted := make([]Value, len(result))
		for j := len(result) - 1; j >= 0; j-- {
			var in Value
			if i < 30 && j >= 1<<uint(i) {
				in = result[j-(1<<uint(i))]
			} else {
				in = f.module.Bool(false)
			}
			shifted[j] = f.selectBit(b[i], in, result[j])
		}
		result = shifted
	}
	return result
}

// mul is a shift-and-add multiplier producing len(a)+len(b) bits.
func (f *Flattening) mul(a, b []Value) []Value {
	result := make([]Value, len(a)+len(b))
	for i := range result {
		result[i] = f.module.Bool(false)
	}
	for shift := range b {
		shifted := make([]Value, 0, len(result))
		for i := 0; i < shift; i++ {
			shifted = append(shifted, f.module.Bool(false))
		}
		shifted = append(shifted, a...)
		for len(shifted) < len(result) {
			shifted = append(shifted, f.module.Bool(false))
		}
		result = f.selectBits(b[shift], f.addSub(result, shifted, false), result)
	}
	return result
}

// ltU scans from the most significant bit: the first position where
// the operands differ decides the comparison.
func (f *Flattening) ltU(a, b []Value) Value {
	result := Value(f.module.Bool(false))
	inactive := Value(f.module.Bool(false))
	for i := len(a) - 1; i >= 0; i-- {
		result = f.op(OpOr,
			result,
			f.op(OpAnd,
				f.op(OpNot, inactive),
				f.op(OpAnd, f.op(OpNot, a[i]), b[i]),
			),
		)
		inactive = f.op(OpOr, inactive, f.op(OpXor, a[i], b[i]))
	}
	return result
}

// ltS compares the sign bits first and falls back to the unsigned
// comparison when they agree.
func (f *Flattening) ltS(a, b []Value) Value {
	return f.selectBit(
		f.op(OpXor, a[len(a)-1], b[len(b)-1]),
		f.op(OpAnd, a[len(a)-1], f.op(OpNot, b[len(b)-1])),
		f.ltU(a, b),
	)
}
