package hdl

import (
	"strconv"
	"strings"
)

// Ternary is a three-valued boolean.
type Ternary int8

// Ternary values.
const (
	TernaryFalse Ternary = iota
	TernaryTrue
	TernaryUnknown
)

// TernaryFromBool lifts a bool into the ternary domain.
func TernaryFromBool(value bool) Ternary {
	if value {
		return TernaryTrue
	}
	return TernaryFalse
}

// String returns the string representation of the ternary value.
func (t Ternary) String() string {
	switch t {
	case TernaryFalse:
		return "false"
	case TernaryTrue:
		return "true"
	default:
		return "unknown"
	}
}

// PartialBitString is a bit vector where each bit is zero, one or
// unknown. A bit i is known iff known[i] is set; its value is then
// value[i]. Unknown bits always hold zero in value, so equal partial
// strings are structurally equal.
type PartialBitString struct {
	known BitString
	value BitString
}

// NewPartialBitString returns a fully unknown partial bit string.
func NewPartialBitString(width int) PartialBitString {
	return PartialBitString{known: NewBitString(width), value: NewBitString(width)}
}

// NewPartial returns a partial bit string from a known mask and a
// value. Widths must match; value bits outside the mask are dropped.
func NewPartial(known, value BitString) PartialBitString {
	assert(known.Width() == value.Width(), "partial: width mismatch: %d != %d", known.Width(), value.Width())
	return PartialBitString{known: known, value: value.And(known)}
}

// PartialFromBitString lifts a fully known bit string.
func PartialFromBitString(value BitString) PartialBitString {
	return PartialBitString{known: NewBitString(value.Width()).Not(), value: value}
}

// Width returns the number of bits.
func (p PartialBitString) Width() int { return p.known.Width() }

// Known returns the known-bit mask.
func (p PartialBitString) Known() BitString { return p.known }

// At returns the ternary value of the bit at index.
func (p PartialBitString) At(index int) Ternary {
	if !p.known.At(index) {
		return TernaryUnknown
	}
	return TernaryFromBool(p.value.At(index))
}

// IsFullyKnown returns true if no bit is unknown.
func (p PartialBitString) IsFullyKnown() bool {
	return p.known.IsAllOnes()
}

// Value returns the concrete bit string if every bit is known.
func (p PartialBitString) Value() (BitString, bool) {
	if !p.IsFullyKnown() {
		return BitString{}, false
	}
	return p.value, true
}

// Equal returns true if p and other agree on known masks and on the
// value of every known bit.
func (p PartialBitString) Equal(other PartialBitString) bool {
	return p.known.Equal(other.known) && p.value.Equal(other.value)
}

// And returns the Kleene conjunction: a bit is known if both operand
// bits are known or either is a known zero.
func (p PartialBitString) And(other PartialBitString) PartialBitString {
	known := p.known.And(other.known).
		Or(p.known.And(p.value.Not())).
		Or(other.known.And(other.value.Not()))
	return NewPartial(known, p.value.And(other.value))
}

// Or returns the Kleene disjunction: a bit is known if both operand
// bits are known or either is a known one.
func (p PartialBitString) Or(other PartialBitString) PartialBitString {
	known := p.known.And(other.known).
		Or(p.known.And(p.value)).
		Or(other.known.And(other.value))
	return NewPartial(known, p.value.Or(other.value))
}

// Xor returns the Kleene exclusive or: a bit is known only if both
// operand bits are known.
func (p PartialBitString) Xor(other PartialBitString) PartialBitString {
	return NewPartial(p.known.And(other.known), p.value.Xor(other.value))
}

// Not returns the complement; known bits stay known.
func (p PartialBitString) Not() PartialBitString {
	return NewPartial(p.known, p.value.Not())
}

// Concat returns the concatenation of p (high) and other (low),
// preserving per-bit knowledge.
func (p PartialBitString) Concat(other PartialBitString) PartialBitString {
	return NewPartial(p.known.Concat(other.known), p.value.Concat(other.value))
}

// SliceWidth returns bits [offset, offset+width), preserving per-bit
// knowledge.
func (p PartialBitString) SliceWidth(offset, width int) (PartialBitString, error) {
	known, err := p.known.SliceWidth(offset, width)
	if err != nil {
		return PartialBitString{}, err
	}
	value, err := p.value.SliceWidth(offset, width)
	if err != nil {
		return PartialBitString{}, err
	}
	return NewPartial(known, value), nil
}

// binary lifts an exact BitString operation: the result is exact when
// both operands are fully known and fully unknown otherwise.
func (p PartialBitString) binary(other PartialBitString, width int, exact func(a, b BitString) BitString) PartialBitString {
	a, okA := p.Value()
	b, okB := other.Value()
	if !okA || !okB {
		return NewPartialBitString(width)
	}
	return PartialFromBitString(exact(a, b))
}

// Add returns the sum; unknown bits in either operand poison the
// entire result.
func (p PartialBitString) Add(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width(), BitString.Add)
}

// Sub returns the difference; unknown bits poison the result.
func (p PartialBitString) Sub(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width(), BitString.Sub)
}

// Mul returns the truncating product; unknown bits poison the result.
func (p PartialBitString) Mul(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width(), BitString.Mul)
}

// MulU returns the widening product; unknown bits poison the result.
func (p PartialBitString) MulU(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width()+other.Width(), BitString.MulU)
}

// Shl returns the left shift by the amount encoded in other.
func (p PartialBitString) Shl(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width(), func(a, b BitString) BitString {
		return a.Shl(shiftAmount(a.Width(), b))
	})
}

// ShrU returns the logical right shift by the amount encoded in other.
func (p PartialBitString) ShrU(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width(), func(a, b BitString) BitString {
		return a.ShrU(shiftAmount(a.Width(), b))
	})
}

// ShrS returns the arithmetic right shift by the amount encoded in
// other.
func (p PartialBitString) ShrS(other PartialBitString) PartialBitString {
	return p.binary(other, p.Width(), func(a, b BitString) BitString {
		return a.ShrS(shiftAmount(a.Width(), b))
	})
}

// compare lifts an exact comparison into the ternary domain.
func (p PartialBitString) compare(other PartialBitString, exact func(a, b BitString) bool) Ternary {
	a, okA := p.Value()
	b, okB := other.Value()
	if !okA || !okB {
		return TernaryUnknown
	}
	return TernaryFromBool(exact(a, b))
}

// Eq compares for equality.
func (p PartialBitString) Eq(other PartialBitString) Ternary {
	return p.compare(other, BitString.Equal)
}

// LtU is the unsigned less-than comparison.
func (p PartialBitString) LtU(other PartialBitString) Ternary {
	return p.compare(other, BitString.LtU)
}

// LeU is the unsigned less-or-equal comparison.
func (p PartialBitString) LeU(other PartialBitString) Ternary {
	return p.compare(other, BitString.LeU)
}

// LtS is the signed less-than comparison.
func (p PartialBitString) LtS(other PartialBitString) Ternary {
	return p.compare(other, BitString.LtS)
}

// LeS is the signed less-or-equal comparison.
func (p PartialBitString) LeS(other PartialBitString) Ternary {
	return p.compare(other, BitString.LeS)
}

// Merge returns the bit-wise agreement of p and other: a bit is known
// only where both are known and hold the same value.
func (p PartialBitString) Merge(other PartialBitString) PartialBitString {
	known := p.known.And(other.known).And(p.value.Xor(other.value).Not())
	return NewPartial(known, p.value)
}

// Select treats the width-1 receiver as a condition: a known condition
// picks a branch, an unknown condition merges both.
func (p PartialBitString) Select(then, els PartialBitString) PartialBitString {
	switch p.At(0) {
	case TernaryTrue:
		return then
	case TernaryFalse:
		return els
	default:
		return then.Merge(els)
	}
}

// String renders the partial bit string as a sized literal with 'x'
// for unknown bits, e.g. "4'b1x01".
func (p PartialBitString) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(p.Width()))
	sb.WriteString("'b")
	for i := p.Width() - 1; i >= 0; i-- {
		switch p.At(i) {
		case TernaryTrue:
			sb.WriteByte('1')
		case TernaryFalse:
			sb.WriteByte('0')
		default:
			sb.WriteByte('x')
		}
	}
	return sb.String()
}

// shiftAmount decodes a shift amount as an unsigned integer, clamping
// to the operand width so oversized amounts behave like a full shift.
func shiftAmount(width int, amount BitString) int {
	for i := wordWidth; i < amount.Width(); i++ {
		if amount.At(i) {
			return width
		}
	}
	if v := amount.Uint64(); v < uint64(width) {
		return int(v)
	}
	return width
}
