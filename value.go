package hdl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Value is a node in the IR graph. All values are created through a
// Module, which owns them for its lifetime; pointer equality between
// two pure values implies structural equality.
type Value interface {
	// Width returns the bit width of the value.
	Width() int
	// String returns a short description of the value.
	String() string

	seq() int
	value()
}

func (*Constant) value()   {}
func (*Input) value()      {}
func (*Unknown) value()    {}
func (*Op) value()         {}
func (*Reg) value()        {}
func (*MemoryRead) value() {}

// OpKind identifies an operator.
type OpKind int

// Operators.
const (
	OpAnd OpKind = iota
	OpOr
	OpXor
	OpNot
	OpAdd
	OpSub
	OpMul
	OpEq
	OpLtU
	OpLtS
	OpLeU
	OpLeS
	OpConcat
	OpSlice
	OpShl
	OpShrU
	OpShrS
	OpSelect
)

var opKinds = [...]string{
	OpAnd:    "and",
	OpOr:     "or",
	OpXor:    "xor",
	OpNot:    "not",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpEq:     "eq",
	OpLtU:    "lt_u",
	OpLtS:    "lt_s",
	OpLeU:    "le_u",
	OpLeS:    "le_s",
	OpConcat: "concat",
	OpSlice:  "slice",
	OpShl:    "shl",
	OpShrU:   "shr_u",
	OpShrS:   "shr_s",
	OpSelect: "select",
}

// String returns the string representation of the operator.
func (k OpKind) String() string {
	if k >= 0 && int(k) < len(opKinds) {
		return opKinds[k]
	}
	return fmt.Sprintf("OpKind<%d>", int(k))
}

// IsCommutative returns true if the operator's first two arguments may
// be swapped without changing its value.
func (k OpKind) IsCommutative() bool {
	switch k {
	case OpAnd, OpOr, OpXor, OpAdd, OpEq:
		return true
	default:
		return false
	}
}

// Arity returns the number of arguments the operator takes.
func (k OpKind) Arity() int {
	switch k {
	case OpNot:
		return 1
	case OpSlice, OpSelect:
		return 3
	default:
		return 2
	}
}

// IsGate returns true if the operator is a single-bit logic gate when
// applied to width-1 arguments: the subset the CNF builder accepts.
func (k OpKind) IsGate() bool {
	switch k {
	case OpAnd, OpOr, OpXor, OpNot, OpEq, OpSelect:
		return true
	default:
		return false
	}
}

// inferWidth type checks the operator application and returns the
// result width.
func inferWidth(kind OpKind, args []Value) (int, error) {
	if len(args) != kind.Arity() {
		return 0, errors.Wrapf(ErrWidthMismatch, "%s expects %d args, got %d", kind, kind.Arity(), len(args))
	}

	equalWidth := func(a, b int) error {
		if args[a].Width() != args[b].Width() {
			return errors.Wrapf(ErrWidthMismatch, "%s: arg %d has width %d, arg %d has width %d",
				kind, a, args[a].Width(), b, args[b].Width())
		}
		return nil
	}

	switch kind {
	case OpNot:
		return args[0].Width(), nil
	case OpAnd, OpOr, OpXor, OpAdd, OpSub:
		if err := equalWidth(0, 1); err != nil {
			return 0, err
		}
		return args[0].Width(), nil
	case OpMul:
		return args[0].Width() + args[1].Width(), nil
	case OpEq, OpLtU, OpLtS, OpLeU, OpLeS:
		if err := equalWidth(0, 1); err != nil {
			return 0, err
		}
		return 1, nil
	case OpConcat:
		return args[0].Width() + args[1].Width(), nil
	case OpSlice:
		width, ok := args[2].(*Constant)
		if !ok {
			return 0, errors.Wrapf(ErrSliceWidthNotConstant, "got %s", args[2])
		}
		return int(width.Value.Uint64()), nil
	case OpShl, OpShrU, OpShrS:
		return args[0].Width(), nil
	case OpSelect:
		if args[0].Width() != 1 {
			return 0, errors.Wrapf(ErrWidthMismatch, "select condition has width %d", args[0].Width())
		}
		if err := equalWidth(1, 2); err != nil {
			return 0, err
		}
		return args[1].Width(), nil
	default:
		panic("unreachable")
	}
}

// Constant is a literal value. Constants are hash-consed by their bit
// string.
type Constant struct {
	num   int
	Value BitString
}

// Width returns the bit width of the constant.
func (c *Constant) Width() int { return c.Value.Width() }

func (c *Constant) seq() int { return c.num }

// String returns the string representation of the constant.
func (c *Constant) String() string { return c.Value.String() }

// Input is a named external signal.
type Input struct {
	num   int
	Name  string
	width int
}

// Width returns the bit width of the input.
func (in *Input) Width() int { return in.width }

func (in *Input) seq() int { return in.num }

// String returns the string representation of the input.
func (in *Input) String() string { return fmt.Sprintf("(input %q %d)", in.Name, in.width) }

// Unknown is a symbolic don't-care value. Unknowns cannot be
// simulated; they exist for analyses and lowering passes.
type Unknown struct {
	num   int
	width int
}

// Width returns the bit width of the unknown.
func (u *Unknown) Width() int { return u.width }

func (u *Unknown) seq() int { return u.num }

// String returns the string representation of the unknown.
func (u *Unknown) String() string { return fmt.Sprintf("(unknown %d)", u.width) }

// Op is an operator application. Ops are hash-consed by kind and
// argument identity.
type Op struct {
	num   int
	Kind  OpKind
	Args  []Value
	width int
}

// Width returns the bit width of the operator's result.
func (op *Op) Width() int { return op.width }

func (op *Op) seq() int { return op.num }

// String returns the string representation of the operator.
func (op *Op) String() string {
	s := "(" + op.Kind.String()
	for _, arg := range op.Args {
		s += " " + arg.String()
	}
	return s + ")"
}

// Reg is an edge-triggered register. It samples Next on every rising
// edge of Clock and holds Initial before the first edge. A new
// register's Next points at the register itself; callers overwrite it
// once the feedback logic exists.
type Reg struct {
	num     int
	Name    string
	Initial BitString
	Clock   Value
	Next    Value
}

// Width returns the bit width of the register.
func (r *Reg) Width() int { return r.Initial.Width() }

func (r *Reg) seq() int { return r.num }

// String returns the string representation of the register.
func (r *Reg) String() string { return fmt.Sprintf("(reg %q %s)", r.Name, r.Initial) }

// Output is a named sink rooting a value in the module.
type Output struct {
	Name  string
	Value Value
}
