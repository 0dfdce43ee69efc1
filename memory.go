package hdl

import (
	"fmt"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
)

// Memory is a synchronous RAM of size words, each width bits wide.
// Reads are combinational value nodes; writes commit on the rising
// edge of their clock.
type Memory struct {
	num    int
	module *Module

	Name  string
	width int
	size  uint64

	initial *immutable.SortedMap
	writes  []*MemoryWrite
	reads   map[Value]*MemoryRead
}

// Width returns the width of one memory word.
func (m *Memory) Width() int { return m.width }

// Size returns the number of addressable words.
func (m *Memory) Size() uint64 { return m.size }

// Writes returns the memory's write ports in append order.
func (m *Memory) Writes() []*MemoryWrite { return m.writes }

// Reads returns the memory's read ports, one per distinct address.
func (m *Memory) Reads() []*MemoryRead {
	reads := make([]*MemoryRead, 0, len(m.reads))
	for _, read := range m.reads {
		reads = append(reads, read)
	}
	return reads
}

// SetInitial assigns the power-on contents of one word.
func (m *Memory) SetInitial(address uint64, value BitString) error {
	if address >= m.size {
		return errors.Wrapf(ErrMemoryOutOfBounds, "initial address %d >= size %d", address, m.size)
	}
	if value.Width() != m.width {
		return errors.Wrapf(ErrWidthMismatch, "initial value has width %d, memory width %d", value.Width(), m.width)
	}
	m.initial = m.initial.Set(address, value)
	return nil
}

// Initial returns the power-on contents as an immutable map from
// address to BitString. Unlisted addresses hold zero.
func (m *Memory) Initial() *immutable.SortedMap { return m.initial }

// Read returns the read port for the given address value. Ports are
// memoized: reading the same address value twice returns the same
// node.
func (m *Memory) Read(address Value) *MemoryRead {
	if read, ok := m.reads[address]; ok {
		return read
	}
	read := &MemoryRead{num: m.module.nextSeq(), Memory: m, Address: address}
	m.reads[address] = read
	return read
}

// Write appends a write port. The clock and enable must be single
// bits and the value must match the memory width. A write whose
// enable is the constant zero can never commit and is dropped.
func (m *Memory) Write(clock, address, enable, value Value) error {
	if clock.Width() != 1 {
		return errors.Wrapf(ErrWidthMismatch, "write clock has width %d", clock.Width())
	}
	if enable.Width() != 1 {
		return errors.Wrapf(ErrWidthMismatch, "write enable has width %d", enable.Width())
	}
	if value.Width() != m.width {
		return errors.Wrapf(ErrWidthMismatch, "write value has width %d, memory width %d", value.Width(), m.width)
	}
	if constant, ok := enable.(*Constant); ok && constant.Value.IsZero() {
		return nil
	}
	m.writes = append(m.writes, &MemoryWrite{Clock: clock, Address: address, Enable: enable, Value: value})
	return nil
}

// String returns a short description of the memory.
func (m *Memory) String() string {
	return fmt.Sprintf("(memory %q %d %d)", m.Name, m.width, m.size)
}

// MemoryWrite is one write port of a memory.
type MemoryWrite struct {
	Clock   Value
	Address Value
	Enable  Value
	Value   Value
}

// MemoryRead is a combinational read port, usable as a value.
type MemoryRead struct {
	num     int
	Memory  *Memory
	Address Value
}

// Width returns the width of the word read.
func (r *MemoryRead) Width() int { return r.Memory.width }

func (r *MemoryRead) seq() int { return r.num }

// String returns the string representation of the read port.
func (r *MemoryRead) String() string {
	return fmt.Sprintf("(read %q %s)", r.Memory.Name, r.Address)
}

// uint64Comparer compares two 64-bit unsigned integers. Implements
// immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater
// than b, and returns 0 if a is equal to b. Panic if a or b is not a
// uint64.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
