package hdl

import (
	"github.com/benbjohnson/immutable"
)

// Module is the owning arena of an IR graph. Every node is created
// through the module; pure nodes (constants and operators) are
// hash-consed so structural equality is pointer equality. A module
// and any component borrowing it must stay on one goroutine.
type Module struct {
	name string
	seqs int

	constants map[uint64][]*Constant
	ops       map[opKey]*Op

	inputs   []*Input
	outputs  []Output
	regs     []*Reg
	memories []*Memory
	unknowns []*Unknown
}

// opKey identifies an operator application by kind and argument node
// sequence numbers.
type opKey struct {
	kind       OpKind
	a0, a1, a2 int
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{
		name:      name,
		constants: make(map[uint64][]*Constant),
		ops:       make(map[opKey]*Op),
	}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Inputs returns the module inputs in creation order.
func (m *Module) Inputs() []*Input { return m.inputs }

// Outputs returns the module outputs in creation order.
func (m *Module) Outputs() []Output { return m.outputs }

// Regs returns the module registers in creation order.
func (m *Module) Regs() []*Reg { return m.regs }

// Memories returns the module memories in creation order.
func (m *Module) Memories() []*Memory { return m.memories }

// nextSeq hands out node sequence numbers. They order commutative
// arguments deterministically and are never reused, even across GC.
func (m *Module) nextSeq() int {
	m.seqs++
	return m.seqs
}

// Constant returns the hash-consed constant node for the bit string.
func (m *Module) Constant(value BitString) *Constant {
	hash := value.Hash()
	for _, c := range m.constants[hash] {
		if c.Value.Equal(value) {
			return c
		}
	}
	c := &Constant{num: m.nextSeq(), Value: value}
	m.constants[hash] = append(m.constants[hash], c)
	return c
}

// Zero returns the all-zero constant of the given width.
func (m *Module) Zero(width int) *Constant {
	return m.Constant(NewBitString(width))
}

// Ones returns the all-ones constant of the given width.
func (m *Module) Ones(width int) *Constant {
	return m.Constant(NewBitString(width).Not())
}

// Bool returns the width-1 constant for value.
func (m *Module) Bool(value bool) *Constant {
	return m.Constant(FromBool(value))
}

// Input appends a named input of the given width.
func (m *Module) Input(name string, width int) *Input {
	input := &Input{num: m.nextSeq(), Name: name, width: width}
	m.inputs = append(m.inputs, input)
	return input
}

// Output appends a named output rooting value.
func (m *Module) Output(name string, value Value) {
	m.outputs = append(m.outputs, Output{Name: name, Value: value})
}

// Unknown appends an anonymous don't-care value of the given width.
func (m *Module) Unknown(width int) *Unknown {
	unknown := &Unknown{num: m.nextSeq(), width: width}
	m.unknowns = append(m.unknowns, unknown)
	return unknown
}

// Reg appends a register with the given power-on value and clock. The
// register's Next initially points at the register itself, meaning
// "hold"; overwrite it to close the feedback loop.
func (m *Module) Reg(initial BitString, clock Value) *Reg {
	reg := &Reg{num: m.nextSeq(), Initial: initial, Clock: clock}
	reg.Next = reg
	m.regs = append(m.regs, reg)
	return reg
}

// Memory appends a memory of size words of the given width.
func (m *Module) Memory(width int, size uint64) *Memory {
	memory := &Memory{
		num:     m.nextSeq(),
		module:  m,
		width:   width,
		size:    size,
		initial: immutable.NewSortedMap(&uint64Comparer{}),
		reads:   make(map[Value]*MemoryRead),
	}
	m.memories = append(m.memories, memory)
	return memory
}

// Op returns a value computing kind over args. The arguments are type
// checked and canonicalized; if every argument is a constant the
// result is a folded constant, and a table of local rewrites may
// return an existing node instead of a new operator.
func (m *Module) Op(kind OpKind, args ...Value) (Value, error) {
	args = append([]Value(nil), args...)

	// Normalize commutative arguments: a lone constant goes left,
	// otherwise the older node goes left. Hash-consing then becomes
	// insensitive to argument order.
	if kind.IsCommutative() {
		_, constant0 := args[0].(*Constant)
		_, constant1 := args[1].(*Constant)
		if constant0 == constant1 {
			if args[1].seq() < args[0].seq() {
				args[0], args[1] = args[1], args[0]
			}
		} else if constant1 {
			args[0], args[1] = args[1], args[0]
		}
	}

	width, err := inferWidth(kind, args)
	if err != nil {
		return nil, err
	}

	if folded, ok := m.foldConstants(kind, args, width); ok {
		return folded, nil
	}
	if rewritten, ok := m.rewrite(kind, args, width); ok {
		return rewritten, nil
	}

	key := opKey{kind: kind, a0: args[0].seq(), a1: -1, a2: -1}
	if len(args) > 1 {
		key.a1 = args[1].seq()
	}
	if len(args) > 2 {
		key.a2 = args[2].seq()
	}
	if op, ok := m.ops[key]; ok {
		return op, nil
	}
	op := &Op{num: m.nextSeq(), Kind: kind, Args: args, width: width}
	m.ops[key] = op
	return op, nil
}

// foldConstants evaluates the operator if every argument is constant.
func (m *Module) foldConstants(kind OpKind, args []Value, width int) (Value, bool) {
	values := make([]BitString, len(args))
	for i, arg := range args {
		constant, ok := arg.(*Constant)
		if !ok {
			return nil, false
		}
		values[i] = constant.Value
	}
	return m.Constant(evalOp(kind, values, width)), true
}

// evalOp computes an operator over concrete argument values. The
// arguments must already be type checked; width is the inferred
// result width.
func evalOp(kind OpKind, args []BitString, width int) BitString {
	switch kind {
	case OpAnd:
		return args[0].And(args[1])
	case OpOr:
		return args[0].Or(args[1])
	case OpXor:
		return args[0].Xor(args[1])
	case OpNot:
		return args[0].Not()
	case OpAdd:
		return args[0].Add(args[1])
	case OpSub:
		return args[0].Sub(args[1])
	case OpMul:
		return args[0].MulU(args[1])
	case OpEq:
		return FromBool(args[0].Equal(args[1]))
	case OpLtU:
		return FromBool(args[0].LtU(args[1]))
	case OpLtS:
		return FromBool(args[0].LtS(args[1]))
	case OpLeU:
		return FromBool(args[0].LeU(args[1]))
	case OpLeS:
		return FromBool(args[0].LeS(args[1]))
	case OpConcat:
		return args[0].Concat(args[1])
	case OpSlice:
		return args[0].ShrU(shiftAmount(args[0].Width(), args[1])).ResizeU(width)
	case OpShl:
		return args[0].Shl(shiftAmount(args[0].Width(), args[1]))
	case OpShrU:
		return args[0].ShrU(shiftAmount(args[0].Width(), args[1]))
	case OpShrS:
		return args[0].ShrS(shiftAmount(args[0].Width(), args[1]))
	case OpSelect:
		return args[0].Select(args[1], args[2])
	default:
		panic("unreachable")
	}
}

// rewrite applies the local peephole table. Canonicalization
// guarantees that a lone constant operand of a commutative operator
// sits on the left.
func (m *Module) rewrite(kind OpKind, args []Value, width int) (Value, bool) {
	constant := func(i int) (*Constant, bool) {
		c, ok := args[i].(*Constant)
		return c, ok
	}

	switch kind {
	case OpAnd:
		if args[0] == args[1] {
			return args[0], true
		}
		if c, ok := constant(0); ok {
			if c.Value.IsZero() {
				return c, true
			}
			if c.Value.IsAllOnes() {
				return args[1], true
			}
		}

	case OpOr:
		if args[0] == args[1] {
			return args[0], true
		}
		if c, ok := constant(0); ok {
			if c.Value.IsZero() {
				return args[1], true
			}
			if c.Value.IsAllOnes() {
				return c, true
			}
		}

	case OpXor:
		if args[0] == args[1] {
			return m.Zero(width), true
		}
		if c, ok := constant(0); ok {
			if c.Value.IsZero() {
				return args[1], true
			}
			if c.Value.IsAllOnes() {
				return m.mustOp(OpNot, args[1]), true
			}
		}

	case OpNot:
		if op, ok := args[0].(*Op); ok && op.Kind == OpNot {
			return op.Args[0], true
		}

	case OpAdd:
		if c, ok := constant(0); ok && c.Value.IsZero() {
			return args[1], true
		}

	case OpSub:
		if args[0] == args[1] {
			return m.Zero(width), true
		}
		if c, ok := constant(1); ok && c.Value.IsZero() {
			return args[0], true
		}

	case OpEq:
		if args[0] == args[1] {
			return m.Bool(true), true
		}
		if c, ok := constant(0); ok && args[1].Width() == 1 {
			if c.Value.IsZero() {
				return m.mustOp(OpNot, args[1]), true
			}
			return args[1], true
		}

	case OpLtU:
		if args[0] == args[1] {
			return m.Bool(false), true
		}
		if c, ok := constant(1); ok && c.Value.IsZero() {
			return m.Bool(false), true
		}

	case OpLtS:
		if args[0] == args[1] {
			return m.Bool(false), true
		}

	case OpLeU:
		if args[0] == args[1] {
			return m.Bool(true), true
		}
		if c, ok := constant(0); ok && c.Value.IsZero() {
			return m.Bool(true), true
		}

	case OpLeS:
		if args[0] == args[1] {
			return m.Bool(true), true
		}

	case OpShl, OpShrU, OpShrS:
		if c, ok := constant(1); ok && c.Value.IsZero() {
			return args[0], true
		}
		if c, ok := constant(0); ok {
			if c.Value.IsZero() {
				return c, true
			}
			if kind == OpShrS && c.Value.IsAllOnes() {
				return c, true
			}
		}

	case OpSelect:
		if args[1] == args[2] {
			return args[1], true
		}
		if c, ok := constant(0); ok {
			if c.Value.At(0) {
				return args[1], true
			}
			return args[2], true
		}

	case OpConcat:
		hi, okHi := args[0].(*Op)
		lo, okLo := args[1].(*Op)
		if okHi && okLo && hi.Kind == OpSlice && lo.Kind == OpSlice && hi.Args[0] == lo.Args[0] {
			hiOff, okHiOff := hi.Args[1].(*Constant)
			loOff, okLoOff := lo.Args[1].(*Constant)
			if okHiOff && okLoOff &&
				loOff.Value.Uint64()+uint64(lo.Width()) == hiOff.Value.Uint64() {
				return m.mustOp(OpSlice,
					lo.Args[0],
					loOff,
					m.Constant(FromUint64(uint64(lo.Width()+hi.Width()))),
				), true
			}
		}

	case OpSlice:
		offset, offsetConstant := constant(1)
		if offsetConstant && offset.Value.IsZero() && width == args[0].Width() {
			return args[0], true
		}
		if inner, ok := args[0].(*Op); ok && offsetConstant {
			off := offset.Value.Uint64()
			switch inner.Kind {
			case OpConcat:
				loWidth := uint64(inner.Args[1].Width())
				if off+uint64(width) <= loWidth {
					return m.mustOp(OpSlice, inner.Args[1], offset, args[2]), true
				}
				if off >= loWidth {
					return m.mustOp(OpSlice,
						inner.Args[0],
						m.Constant(FromUint64(off-loWidth)),
						args[2],
					), true
				}
			case OpSlice:
				if innerOffset, ok := inner.Args[1].(*Constant); ok {
					return m.mustOp(OpSlice,
						inner.Args[0],
						m.Constant(FromUint64(innerOffset.Value.Uint64()+off)),
						args[2],
					), true
				}
			}
		}
	}

	return nil, false
}

// mustOp builds an operator whose arguments are known to type check.
func (m *Module) mustOp(kind OpKind, args ...Value) Value {
	value, err := m.Op(kind, args...)
	assert(err == nil, "rewrite produced invalid op: %v", err)
	return value
}

// Usages returns, for every value reachable from the module's roots,
// the number of references to it. Printers use the counts to decide
// which expressions deserve a named wire.
func (m *Module) Usages() map[Value]int {
	counts := make(map[Value]int)
	var visit func(value Value)
	visit = func(value Value) {
		counts[value]++
		if counts[value] > 1 {
			return
		}
		switch value := value.(type) {
		case *Op:
			for _, arg := range value.Args {
				visit(arg)
			}
		case *MemoryRead:
			visit(value.Address)
		}
	}

	for _, reg := range m.regs {
		visit(reg.Clock)
		visit(reg.Next)
	}
	for _, memory := range m.memories {
		for _, write := range memory.writes {
			visit(write.Clock)
			visit(write.Address)
			visit(write.Enable)
			visit(write.Value)
		}
	}
	for _, output := range m.outputs {
		visit(output.Value)
	}
	return counts
}

// GC removes the registers, memories, unknowns and memory read ports
// unreachable from the module outputs, and the hash-cons entries of
// dead constants and operators. Inputs are kept.
func (m *Module) GC() {
	reached := make(map[Value]bool)
	reachedMemories := make(map[*Memory]bool)

	var visit func(value Value)
	var visitMemory func(memory *Memory)
	visitMemory = func(memory *Memory) {
		if reachedMemories[memory] {
			return
		}
		reachedMemories[memory] = true
		for _, write := range memory.writes {
			visit(write.Clock)
			visit(write.Address)
			visit(write.Enable)
			visit(write.Value)
		}
	}
	visit = func(value Value) {
		if reached[value] {
			return
		}
		reached[value] = true
		switch value := value.(type) {
		case *Op:
			for _, arg := range value.Args {
				visit(arg)
			}
		case *Reg:
			visit(value.Clock)
			visit(value.Next)
		case *MemoryRead:
			visit(value.Address)
			visitMemory(value.Memory)
		}
	}

	for _, output := range m.outputs {
		visit(output.Value)
	}

	regs := m.regs[:0]
	for _, reg := range m.regs {
		if reached[reg] {
			regs = append(regs, reg)
		}
	}
	m.regs = regs

	unknowns := m.unknowns[:0]
	for _, unknown := range m.unknowns {
		if reached[unknown] {
			unknowns = append(unknowns, unknown)
		}
	}
	m.unknowns = unknowns

	memories := m.memories[:0]
	for _, memory := range m.memories {
		if !reachedMemories[memory] {
			continue
		}
		for address, read := range memory.reads {
			if !reached[read] {
				delete(memory.reads, address)
			}
		}
		memories = append(memories, memory)
	}
	m.memories = memories

	for key, op := range m.ops {
		if !reached[op] {
			delete(m.ops, key)
		}
	}
	for hash, bucket := range m.constants {
		live := bucket[:0]
		for _, c := range bucket {
			if reached[c] {
				live = append(live, c)
			}
		}
		if len(live) == 0 {
			delete(m.constants, hash)
		} else {
			m.constants[hash] = live
		}
	}
}
