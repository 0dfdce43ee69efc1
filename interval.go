package hdl

// Interval is a closed, possibly wrapping range [min, max] over the
// ring of width-n unsigned integers. If max is unsigned-less than min
// the interval wraps through zero and contains
// {x : x >= min} ∪ {x : x <= max}.
type Interval struct {
	min BitString
	max BitString
}

// NewInterval returns the interval [min, max]. Widths must match.
func NewInterval(min, max BitString) Interval {
	assert(min.Width() == max.Width(), "interval: width mismatch: %d != %d", min.Width(), max.Width())
	return Interval{min: min, max: max}
}

// IntervalFromBitString returns the point interval [value, value].
func IntervalFromBitString(value BitString) Interval {
	return Interval{min: value, max: value}
}

// FullInterval returns [0, 2^width-1].
func FullInterval(width int) Interval {
	return Interval{min: NewBitString(width), max: NewBitString(width).Not()}
}

// Width returns the bit width of the interval's domain.
func (i Interval) Width() int { return i.min.Width() }

// Min returns the interval's starting point.
func (i Interval) Min() BitString { return i.min }

// Max returns the interval's ending point.
func (i Interval) Max() BitString { return i.max }

// IsFull reports whether the interval covers the entire ring.
func (i Interval) IsFull() bool {
	return i.Length().IsAllOnes()
}

// IsPoint reports whether the interval holds a single value.
func (i Interval) IsPoint() bool {
	return i.min.Equal(i.max)
}

// Wraps reports whether the interval passes through zero.
func (i Interval) Wraps() bool {
	return i.max.LtU(i.min)
}

// Length returns max - min, the distance walked from min to max going
// upward around the ring.
func (i Interval) Length() BitString {
	return i.max.Sub(i.min)
}

// Equal returns true if the intervals have the same endpoints.
func (i Interval) Equal(other Interval) bool {
	return i.min.Equal(other.min) && i.max.Equal(other.max)
}

// Contains reports whether value lies inside the interval.
func (i Interval) Contains(value BitString) bool {
	return value.Sub(i.min).LeU(i.Length())
}

// ContainsInterval reports whether every value of other lies inside i.
func (i Interval) ContainsInterval(other Interval) bool {
	lo := other.min.Sub(i.min)
	hi := other.max.Sub(i.min)
	return lo.LeU(i.Length()) && hi.LeU(i.Length()) && lo.LeU(hi)
}

// Merge returns the smallest wrap-aware interval containing both i and
// other, choosing the shorter of the two hulls anchored at either
// interval's min.
func (i Interval) Merge(other Interval) Interval {
	if i.ContainsInterval(other) {
		return i
	}
	if other.ContainsInterval(i) {
		return other
	}
	a := Interval{min: i.min, max: other.max}
	b := Interval{min: other.min, max: i.max}
	okA := a.ContainsInterval(i) && a.ContainsInterval(other)
	okB := b.ContainsInterval(i) && b.ContainsInterval(other)
	switch {
	case okA && okB:
		if a.Length().LeU(b.Length()) {
			return a
		}
		return b
	case okA:
		return a
	case okB:
		return b
	default:
		return FullInterval(i.Width())
	}
}

// Not returns the interval of complements, [~max, ~min].
func (i Interval) Not() Interval {
	return Interval{min: i.max.Not(), max: i.min.Not()}
}

// Add returns the interval of sums. The lengths are added in a wider
// domain; if the combined length spills past the ring size the result
// is the full interval.
func (i Interval) Add(other Interval) Interval {
	width := i.Width()
	assert(width == other.Width(), "interval add: width mismatch: %d != %d", width, other.Width())
	ext := width + 4
	total := i.Length().ZeroExtend(ext).Add(other.Length().ZeroExtend(ext))
	if !total.LtU(One(ext).Shl(width)) {
		return FullInterval(width)
	}
	min := i.min.Add(other.min)
	return Interval{min: min, max: min.Add(total.Truncate(width))}
}

// Sub returns the interval of differences, computed as a + ~b + 1.
func (i Interval) Sub(other Interval) Interval {
	return i.Add(other.Not()).Add(IntervalFromBitString(One(i.Width())))
}

// Select treats the width-1 receiver as a condition interval: if it
// can only be one the result is a, if it can only be zero the result
// is b, otherwise the merge of both.
func (i Interval) Select(a, b Interval) Interval {
	one := One(1)
	zero := NewBitString(1)
	canBeTrue := i.Contains(one)
	canBeFalse := i.Contains(zero)
	switch {
	case canBeTrue && !canBeFalse:
		return a
	case canBeFalse && !canBeTrue:
		return b
	default:
		return a.Merge(b)
	}
}

// unsignedBounds returns the smallest and largest unsigned element. A
// wrapping interval reaches both 0 and the all-ones value.
func (i Interval) unsignedBounds() (lo, hi BitString) {
	if i.Wraps() {
		return NewBitString(i.Width()), NewBitString(i.Width()).Not()
	}
	return i.min, i.max
}

// rotateHalf shifts the interval by 2^(n-1), mapping signed order onto
// unsigned order.
func (i Interval) rotateHalf() Interval {
	half := One(i.Width()).Shl(i.Width() - 1)
	return Interval{min: i.min.Add(half), max: i.max.Add(half)}
}

// Eq compares two intervals for possible equality.
func (i Interval) Eq(other Interval) Ternary {
	if i.IsPoint() && other.IsPoint() {
		return TernaryFromBool(i.min.Equal(other.min))
	}
	if !i.intersects(other) {
		return TernaryFalse
	}
	return TernaryUnknown
}

func (i Interval) intersects(other Interval) bool {
	return i.Contains(other.min) || other.Contains(i.min)
}

// LtU is the unsigned less-than comparison of the two value sets.
func (i Interval) LtU(other Interval) Ternary {
	aLo, aHi := i.unsignedBounds()
	bLo, bHi := other.unsignedBounds()
	if aHi.LtU(bLo) {
		return TernaryTrue
	}
	if !aLo.LtU(bHi) {
		return TernaryFalse
	}
	return TernaryUnknown
}

// LeU is the unsigned less-or-equal comparison of the two value sets.
func (i Interval) LeU(other Interval) Ternary {
	aLo, aHi := i.unsignedBounds()
	bLo, bHi := other.unsignedBounds()
	if aHi.LeU(bLo) {
		return TernaryTrue
	}
	if !aLo.LeU(bHi) {
		return TernaryFalse
	}
	return TernaryUnknown
}

// LtS is the signed less-than comparison of the two value sets.
func (i Interval) LtS(other Interval) Ternary {
	return i.rotateHalf().LtU(other.rotateHalf())
}

// LeS is the signed less-or-equal comparison of the two value sets.
func (i Interval) LeS(other Interval) Ternary {
	return i.rotateHalf().LeU(other.rotateHalf())
}

// AsPartialBitString returns the partial bit string whose known bits
// are exactly the positions where every value in the interval agrees.
// Wrapping intervals degrade to fully unknown.
func (i Interval) AsPartialBitString() PartialBitString {
	width := i.Width()
	if i.IsPoint() {
		return PartialFromBitString(i.min)
	}
	if i.Wraps() {
		return NewPartialBitString(width)
	}
	diff := i.min.Xor(i.max)
	high := diff.RfindBit(true)
	known := Upper(width, high+1)
	return NewPartial(known, i.min.And(known))
}

// AsInterval returns the tightest non-wrapping interval containing all
// completions of the partial bit string.
func (p PartialBitString) AsInterval() Interval {
	return NewInterval(p.value, p.value.Or(p.known.Not()))
}

// lifted computes a bitwise or shift operation by a round trip through
// the partial bit string domain. Precision is lost but soundness is
// kept: the result contains every attainable value.
func (i Interval) lifted(other Interval, op func(a, b PartialBitString) PartialBitString) Interval {
	return op(i.AsPartialBitString(), other.AsPartialBitString()).AsInterval()
}

// And returns an interval containing all pairwise conjunctions.
func (i Interval) And(other Interval) Interval {
	return i.lifted(other, PartialBitString.And)
}

// Or returns an interval containing all pairwise disjunctions.
func (i Interval) Or(other Interval) Interval {
	return i.lifted(other, PartialBitString.Or)
}

// Xor returns an interval containing all pairwise exclusive ors.
func (i Interval) Xor(other Interval) Interval {
	return i.lifted(other, PartialBitString.Xor)
}

// Mul returns an interval containing all pairwise truncated products.
func (i Interval) Mul(other Interval) Interval {
	return i.lifted(other, PartialBitString.Mul)
}

// Shl returns an interval containing all pairwise left shifts.
func (i Interval) Shl(other Interval) Interval {
	return i.lifted(other, PartialBitString.Shl)
}

// ShrU returns an interval containing all pairwise logical right
// shifts.
func (i Interval) ShrU(other Interval) Interval {
	return i.lifted(other, PartialBitString.ShrU)
}

// ShrS returns an interval containing all pairwise arithmetic right
// shifts.
func (i Interval) ShrS(other Interval) Interval {
	return i.lifted(other, PartialBitString.ShrS)
}

// String renders the interval as "[min, max]".
func (i Interval) String() string {
	return "[" + i.min.String() + ", " + i.max.String() + "]"
}
