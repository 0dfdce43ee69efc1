package hdl

import (
	"github.com/pkg/errors"
)

// CnfBuilder encodes a flattened value graph into a Cnf. Every node
// it visits must be one bit wide and built from gate operators; run a
// Flattening first to lower multi-bit arithmetic. Each node maps to a
// single literal.
type CnfBuilder struct {
	cnf    *Cnf
	values map[Value]Literal
}

// NewCnfBuilder returns an empty builder.
func NewCnfBuilder() *CnfBuilder {
	return &CnfBuilder{
		cnf:    NewCnf(),
		values: make(map[Value]Literal),
	}
}

// Cnf returns the formula built so far.
func (b *CnfBuilder) Cnf() *Cnf { return b.cnf }

// Free introduces a fresh unconstrained variable for a leaf value
// (an input, a register treated as free state, or a split bit).
func (b *CnfBuilder) Free(value Value) Literal {
	lit := b.cnf.Var()
	b.values[value] = lit
	return lit
}

// Literal returns the literal of a previously built value.
func (b *CnfBuilder) Literal(value Value) (Literal, error) {
	lit, ok := b.values[value]
	if !ok {
		return 0, errors.Wrapf(ErrUnsplitLeaf, "%s was never built", value)
	}
	return lit, nil
}

// Build encodes value and its operands, returning value's literal.
func (b *CnfBuilder) Build(value Value) (Literal, error) {
	if lit, ok := b.values[value]; ok {
		return lit, nil
	}
	if value.Width() != 1 {
		return 0, errors.Wrapf(ErrOpNotAGate, "%s has width %d; flatten first", value, value.Width())
	}

	var lit Literal
	switch value := value.(type) {
	case *Constant:
		lit = b.cnf.FConst(value.Value.Bool())

	case *Unknown:
		lit = b.cnf.Var()

	case *Op:
		args := make([]Literal, len(value.Args))
		for i, arg := range value.Args {
			built, err := b.Build(arg)
			if err != nil {
				return 0, err
			}
			args[i] = built
		}

		switch value.Kind {
		case OpAnd:
			lit = b.cnf.FAnd(args[0], args[1])
		case OpOr:
			lit = b.cnf.FOr(args[0], args[1])
		case OpXor:
			lit = b.cnf.FXor(args[0], args[1])
		case OpNot:
			lit = args[0].Not()
		case OpEq:
			lit = b.cnf.FEq(args[0], args[1])
		case OpSelect:
			lit = b.cnf.FSelect(args[0], args[1], args[2])
		default:
			return 0, errors.Wrapf(ErrOpNotAGate, "%s", value.Kind)
		}

	default:
		return 0, errors.Wrapf(ErrUnsplitLeaf, "%s", value)
	}

	b.values[value] = lit
	return lit, nil
}

// Require constrains a vector of one-bit values, least significant
// first, to equal a concrete bit pattern.
func (b *CnfBuilder) Require(bits []Value, want BitString) error {
	if len(bits) != want.Width() {
		return errors.Wrapf(ErrWidthMismatch, "%d bits constrained with width %d", len(bits), want.Width())
	}
	for i, bit := range bits {
		lit, err := b.Build(bit)
		if err != nil {
			return err
		}
		if want.At(i) {
			b.cnf.AddClause(lit)
		} else {
			b.cnf.AddClause(lit.Not())
		}
	}
	return nil
}
