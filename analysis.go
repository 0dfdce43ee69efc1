package hdl

import (
	"sort"
)

// AffineValue is a linear combination c0 + Σ ci·vi of graph values
// with bit-string coefficients, all of one width. Two affine values
// with equal factors differ by a constant, which makes equality of
// address expressions and loop counters decidable without a solver.
type AffineValue struct {
	Factors  map[Value]BitString
	Constant BitString
}

// NewAffineValue returns the constant affine value.
func NewAffineValue(constant BitString) AffineValue {
	return AffineValue{Factors: map[Value]BitString{}, Constant: constant}
}

// AffineTerm returns the affine value factor·value.
func AffineTerm(value Value, factor BitString) AffineValue {
	a := NewAffineValue(NewBitString(value.Width()))
	if !factor.IsZero() {
		a.Factors[value] = factor
	}
	return a
}

// Width returns the width of the affine domain.
func (a AffineValue) Width() int { return a.Constant.Width() }

// IsConstant returns true if no symbolic term remains.
func (a AffineValue) IsConstant() bool { return len(a.Factors) == 0 }

// clone returns a deep copy of a.
func (a AffineValue) clone() AffineValue {
	result := AffineValue{Factors: make(map[Value]BitString, len(a.Factors)), Constant: a.Constant}
	for value, factor := range a.Factors {
		result.Factors[value] = factor
	}
	return result
}

// combine merges other's terms into a copy of a using op, dropping
// terms whose coefficient cancels to zero.
func (a AffineValue) combine(other AffineValue, op func(x, y BitString) BitString) AffineValue {
	result := a.clone()
	result.Constant = op(result.Constant, other.Constant)
	for value, factor := range other.Factors {
		existing, ok := result.Factors[value]
		if !ok {
			existing = NewBitString(a.Width())
		}
		combined := op(existing, factor)
		if combined.IsZero() {
			delete(result.Factors, value)
		} else {
			result.Factors[value] = combined
		}
	}
	return result
}

// Add returns the affine sum.
func (a AffineValue) Add(other AffineValue) AffineValue {
	assert(a.Width() == other.Width(), "affine add: width mismatch: %d != %d", a.Width(), other.Width())
	return a.combine(other, BitString.Add)
}

// Sub returns the affine difference.
func (a AffineValue) Sub(other AffineValue) AffineValue {
	assert(a.Width() == other.Width(), "affine sub: width mismatch: %d != %d", a.Width(), other.Width())
	return a.combine(other, BitString.Sub)
}

// MulConst returns the affine value scaled by a constant.
func (a AffineValue) MulConst(factor BitString) AffineValue {
	assert(a.Width() == factor.Width(), "affine mul: width mismatch: %d != %d", a.Width(), factor.Width())
	if factor.IsZero() {
		return NewAffineValue(NewBitString(a.Width()))
	}
	result := NewAffineValue(a.Constant.Mul(factor))
	for value, coefficient := range a.Factors {
		scaled := coefficient.Mul(factor)
		if !scaled.IsZero() {
			result.Factors[value] = scaled
		}
	}
	return result
}

// Equal returns true if the affine forms are identical.
func (a AffineValue) Equal(other AffineValue) bool {
	if !a.Constant.Equal(other.Constant) || len(a.Factors) != len(other.Factors) {
		return false
	}
	for value, factor := range a.Factors {
		otherFactor, ok := other.Factors[value]
		if !ok || !factor.Equal(otherFactor) {
			return false
		}
	}
	return true
}

// StaticEqual decides equality of the two represented values when the
// symbolic terms coincide; otherwise the answer is unknown.
func (a AffineValue) StaticEqual(other AffineValue) Ternary {
	same := len(a.Factors) == len(other.Factors)
	if same {
		for value, factor := range a.Factors {
			otherFactor, ok := other.Factors[value]
			if !ok || !factor.Equal(otherFactor) {
				same = false
				break
			}
		}
	}
	if !same {
		return TernaryUnknown
	}
	return TernaryFromBool(a.Constant.Equal(other.Constant))
}

// Build reconstructs a value computing the affine form in module.
// Terms are emitted in node creation order so the rebuilt graph is
// deterministic.
func (a AffineValue) Build(m *Module) (Value, error) {
	terms := make([]Value, 0, len(a.Factors))
	for value := range a.Factors {
		terms = append(terms, value)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].seq() < terms[j].seq() })

	result := Value(m.Constant(a.Constant))
	for _, value := range terms {
		term := value
		factor := a.Factors[value]
		if !factor.Equal(One(a.Width())) {
			product, err := m.Op(OpMul, term, m.Constant(factor))
			if err != nil {
				return nil, err
			}
			term, err = m.Op(OpSlice,
				product,
				m.Constant(FromUint64(0)),
				m.Constant(FromUint64(uint64(a.Width()))),
			)
			if err != nil {
				return nil, err
			}
		}
		var err error
		result, err = m.Op(OpAdd, result, term)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// BuildAffine computes the affine form of value, memoizing shared
// subgraphs in the given cache. Operators outside the affine fragment
// become opaque unit terms.
func BuildAffine(value Value, cache map[Value]AffineValue) AffineValue {
	if affine, ok := cache[value]; ok {
		return affine
	}

	affine := AffineTerm(value, One(value.Width()))
	switch value := value.(type) {
	case *Constant:
		affine = NewAffineValue(value.Value)
	case *Op:
		switch value.Kind {
		case OpAdd:
			affine = BuildAffine(value.Args[0], cache).Add(BuildAffine(value.Args[1], cache))
		case OpSub:
			affine = BuildAffine(value.Args[0], cache).Sub(BuildAffine(value.Args[1], cache))
		case OpShl:
			if amount, ok := value.Args[1].(*Constant); ok {
				factor := One(value.Args[0].Width()).Shl(shiftAmount(value.Args[0].Width(), amount.Value))
				affine = BuildAffine(value.Args[0], cache).MulConst(factor)
			}
		}
	}

	cache[value] = affine
	return affine
}
