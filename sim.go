package hdl

import (
	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
)

// Simulation executes a module cycle by cycle. It owns the mutable
// register and memory state; the module itself is never modified.
//
// Each Update call settles to a fixed point: registers and memories
// compute their next state from a snapshot of the pre-edge values, the
// state is committed, and the step reruns until nothing changes. A
// clock that rises only because of the committed state is sampled in
// the rerun; a clock already sampled high does not trigger again, so
// of two chained registers on one clock the second trails the first
// by one cycle.
type Simulation struct {
	module           *Module
	moduloAddressing bool

	inputs     []BitString
	regs       map[*Reg]BitString
	memories   map[*Memory]*immutable.SortedMap
	prevClocks map[Value]bool
	outputs    []BitString
}

// SimulationOption configures a Simulation.
type SimulationOption func(*Simulation)

// WithModuloAddressing makes out-of-range memory addresses wrap
// modulo the memory size instead of failing the update. This matches
// the historical behavior; the default is to return
// ErrMemoryOutOfBounds.
func WithModuloAddressing() SimulationOption {
	return func(s *Simulation) { s.moduloAddressing = true }
}

// NewSimulation returns a simulation of module with all inputs zero,
// registers at their power-on values and memories at their initial
// contents.
func NewSimulation(module *Module, opts ...SimulationOption) *Simulation {
	s := &Simulation{
		module:     module,
		regs:       make(map[*Reg]BitString),
		memories:   make(map[*Memory]*immutable.SortedMap),
		prevClocks: make(map[Value]bool),
		inputs:     make([]BitString, len(module.Inputs())),
		outputs:    make([]BitString, len(module.Outputs())),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i, input := range module.Inputs() {
		s.inputs[i] = NewBitString(input.Width())
	}
	for _, reg := range module.Regs() {
		s.regs[reg] = reg.Initial
		s.prevClocks[reg.Clock] = false
	}
	for _, memory := range module.Memories() {
		s.memories[memory] = memory.initial
		for _, write := range memory.writes {
			s.prevClocks[write.Clock] = false
		}
	}
	return s
}

// Outputs returns the output values of the most recent Update, in
// module output order.
func (s *Simulation) Outputs() []BitString { return s.outputs }

// RegValue returns the current state of a register.
func (s *Simulation) RegValue(reg *Reg) BitString { return s.regs[reg] }

// Reset restores every register and memory to its initial contents.
// Previous clock samples are kept: the next Update still detects
// edges against the clocks seen before the reset.
func (s *Simulation) Reset() {
	for _, reg := range s.module.Regs() {
		s.regs[reg] = reg.Initial
	}
	for _, memory := range s.module.Memories() {
		s.memories[memory] = memory.initial
	}
}

// Update applies one input vector, matched positionally against the
// module inputs, and settles the module to a fixed point. It returns
// the output values.
func (s *Simulation) Update(inputs []BitString) ([]BitString, error) {
	moduleInputs := s.module.Inputs()
	if len(inputs) != len(moduleInputs) {
		return nil, errors.Wrapf(ErrWidthMismatch, "got %d inputs, module has %d", len(inputs), len(moduleInputs))
	}
	for i, input := range moduleInputs {
		if inputs[i].Width() != input.Width() {
			return nil, errors.Wrapf(ErrWidthMismatch, "input %q has width %d, got %d",
				input.Name, input.Width(), inputs[i].Width())
		}
	}
	copy(s.inputs, inputs)
	return s.step()
}

// UpdateNamed is Update with the inputs given by name.
func (s *Simulation) UpdateNamed(inputs map[string]BitString) ([]BitString, error) {
	vector := make([]BitString, len(s.module.Inputs()))
	for i, input := range s.module.Inputs() {
		value, ok := inputs[input.Name]
		if !ok {
			return nil, errors.Wrapf(ErrWidthMismatch, "missing input %q", input.Name)
		}
		vector[i] = value
	}
	return s.Update(vector)
}

func (s *Simulation) step() ([]BitString, error) {
	for {
		values, err := s.evalOutputs()
		if err != nil {
			return nil, err
		}

		changed := false

		// Next-state computation reads the pre-edge values map; every
		// register and write port sees the same snapshot.
		nextRegs := make(map[*Reg]BitString)
		for _, reg := range s.module.Regs() {
			clock, err := s.eval(reg.Clock, values)
			if err != nil {
				return nil, err
			}
			if clock.Bool() && !s.prevClocks[reg.Clock] {
				next, err := s.eval(reg.Next, values)
				if err != nil {
					return nil, err
				}
				nextRegs[reg] = next
			}
		}

		type memoryUpdate struct {
			memory  *Memory
			address uint64
			value   BitString
		}
		var memoryUpdates []memoryUpdate
		for _, memory := range s.module.Memories() {
			for _, write := range memory.writes {
				clock, err := s.eval(write.Clock, values)
				if err != nil {
					return nil, err
				}
				if !clock.Bool() || s.prevClocks[write.Clock] {
					continue
				}
				enable, err := s.eval(write.Enable, values)
				if err != nil {
					return nil, err
				}
				if !enable.Bool() {
					continue
				}
				addressBits, err := s.eval(write.Address, values)
				if err != nil {
					return nil, err
				}
				address, err := s.memoryAddress(memory, addressBits)
				if err != nil {
					return nil, err
				}
				value, err := s.eval(write.Value, values)
				if err != nil {
					return nil, err
				}
				memoryUpdates = append(memoryUpdates, memoryUpdate{memory, address, value})
			}
		}

		for clock := range s.prevClocks {
			value, err := s.eval(clock, values)
			if err != nil {
				return nil, err
			}
			s.prevClocks[clock] = value.Bool()
		}

		for reg, next := range nextRegs {
			if !s.regs[reg].Equal(next) {
				s.regs[reg] = next
				changed = true
			}
		}
		for _, update := range memoryUpdates {
			if !s.memoryWord(update.memory, update.address).Equal(update.value) {
				s.memories[update.memory] = s.memories[update.memory].Set(update.address, update.value)
				changed = true
			}
		}

		if !changed {
			return s.outputs, nil
		}
	}
}

// evalOutputs seeds a fresh values map with the current inputs and
// register state and evaluates every output into s.outputs.
func (s *Simulation) evalOutputs() (map[Value]BitString, error) {
	values := make(map[Value]BitString)
	for i, input := range s.module.Inputs() {
		values[input] = s.inputs[i]
	}
	for reg, value := range s.regs {
		values[reg] = value
	}
	for i, output := range s.module.Outputs() {
		value, err := s.eval(output.Value, values)
		if err != nil {
			return nil, err
		}
		s.outputs[i] = value
	}
	return values, nil
}

// eval computes a value under the given environment, memoizing every
// node. Select evaluates only the taken branch so a guarded
// ill-formed expression cannot fail a run that never takes it.
func (s *Simulation) eval(value Value, values map[Value]BitString) (BitString, error) {
	if result, ok := values[value]; ok {
		return result, nil
	}

	var result BitString
	switch value := value.(type) {
	case *Constant:
		result = value.Value
	case *Input:
		// Inputs are seeded; an unseeded input belongs to another module.
		return BitString{}, errors.Wrapf(ErrWidthMismatch, "input %q is not part of the simulated module", value.Name)
	case *Reg:
		return BitString{}, errors.Wrapf(ErrWidthMismatch, "register %q is not part of the simulated module", value.Name)
	case *Unknown:
		return BitString{}, errors.Wrapf(ErrUnknownInSimulation, "width %d", value.Width())
	case *Op:
		if value.Kind == OpSelect {
			cond, err := s.eval(value.Args[0], values)
			if err != nil {
				return BitString{}, err
			}
			branch := value.Args[2]
			if cond.Bool() {
				branch = value.Args[1]
			}
			taken, err := s.eval(branch, values)
			if err != nil {
				return BitString{}, err
			}
			result = taken
		} else {
			args := make([]BitString, len(value.Args))
			for i, arg := range value.Args {
				evaluated, err := s.eval(arg, values)
				if err != nil {
					return BitString{}, err
				}
				args[i] = evaluated
			}
			result = evalOp(value.Kind, args, value.Width())
		}
	case *MemoryRead:
		addressBits, err := s.eval(value.Address, values)
		if err != nil {
			return BitString{}, err
		}
		address, err := s.memoryAddress(value.Memory, addressBits)
		if err != nil {
			return BitString{}, err
		}
		result = s.memoryWord(value.Memory, address)
	default:
		panic("unreachable")
	}

	values[value] = result
	return result, nil
}

// memoryAddress decodes a concrete address, failing or wrapping on
// out-of-range access depending on configuration.
func (s *Simulation) memoryAddress(memory *Memory, address BitString) (uint64, error) {
	decoded := address.Uint64()
	high := false
	for i := wordWidth; i < address.Width(); i++ {
		if address.At(i) {
			high = true
			break
		}
	}
	if high || decoded >= memory.size {
		if !s.moduloAddressing {
			return 0, errors.Wrapf(ErrMemoryOutOfBounds, "address %s, memory size %d", address, memory.size)
		}
		decoded %= memory.size
	}
	return decoded, nil
}

// memoryWord returns the current contents of one memory word.
func (s *Simulation) memoryWord(memory *Memory, address uint64) BitString {
	if value, ok := s.memories[memory].Get(address); ok {
		return value.(BitString)
	}
	return NewBitString(memory.width)
}
