package hdl_test

import (
	"testing"

	"github.com/benbjohnson/hdl"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// counterModule builds a width-bit counter incrementing on every
// rising clock edge.
func counterModule(tb testing.TB, width int) (*hdl.Module, *hdl.Reg) {
	tb.Helper()
	m := hdl.NewModule("counter")
	clock := m.Input("clock", 1)
	counter := m.Reg(hdl.NewBitString(width), clock)
	counter.Next = op(tb, m, hdl.OpAdd, counter, m.Constant(hdl.One(width)))
	m.Output("counter", counter)
	return m, counter
}

func TestSimulation_Counter(t *testing.T) {
	m, _ := counterModule(t, 4)
	sim := hdl.NewSimulation(m)

	for half := 0; half < 100; half++ {
		clock := hdl.FromBool(half%2 == 1)
		outputs, err := sim.Update([]hdl.BitString{clock})
		if err != nil {
			t.Fatal(err)
		}

		edges := (half + 1) / 2
		if want := uint64(edges % 16); !outputs[0].IsUint(want) {
			t.Fatalf("after %d half-cycles: %s, want %d", half+1, spew.Sdump(outputs), want)
		}
	}
}

func TestSimulation_SynchronousRAM(t *testing.T) {
	m := hdl.NewModule("ram")
	clock := m.Input("clock", 1)
	addr := m.Input("addr", 5)
	wval := m.Input("wval", 64)
	wen := m.Input("wen", 1)

	mem := m.Memory(64, 32)
	if err := mem.Write(clock, addr, wen, wval); err != nil {
		t.Fatal(err)
	}
	m.Output("read", mem.Read(addr))

	sim := hdl.NewSimulation(m)
	cycle := func(addr, wval uint64, wen bool) hdl.BitString {
		t.Helper()
		inputs := map[string]hdl.BitString{
			"addr": hdl.FromUint64(addr).Truncate(5),
			"wval": hdl.FromUint64(wval),
			"wen":  hdl.FromBool(wen),
		}
		inputs["clock"] = hdl.FromBool(false)
		if _, err := sim.UpdateNamed(inputs); err != nil {
			t.Fatal(err)
		}
		inputs["clock"] = hdl.FromBool(true)
		outputs, err := sim.UpdateNamed(inputs)
		if err != nil {
			t.Fatal(err)
		}
		return outputs[0]
	}

	cycle(0, 123, true)
	if got := cycle(0, 0, false); !got.IsUint(123) {
		t.Fatalf("read after write: %s", got)
	}
	if got := cycle(1, 0, false); !got.IsZero() {
		t.Fatalf("read of untouched word: %s", got)
	}
	cycle(1, 456, true)
	if got := cycle(0, 0, false); !got.IsUint(123) {
		t.Fatalf("first word clobbered: %s", got)
	}
	if got := cycle(1, 0, false); !got.IsUint(456) {
		t.Fatalf("read after second write: %s", got)
	}
}

func TestSimulation_FixedPoint(t *testing.T) {
	// Two registers on one clock: b samples a's pre-edge value, so
	// b trails a by one cycle even though the register update of a
	// reruns the combinational step.
	m := hdl.NewModule("chain")
	clock := m.Input("clock", 1)
	a := m.Reg(hdl.NewBitString(4), clock)
	a.Next = op(t, m, hdl.OpAdd, a, m.Constant(hdl.One(4)))
	b := m.Reg(hdl.NewBitString(4), clock)
	b.Next = a
	m.Output("a", a)
	m.Output("b", b)

	sim := hdl.NewSimulation(m)
	for cycle := 1; cycle <= 5; cycle++ {
		if _, err := sim.Update([]hdl.BitString{hdl.FromBool(false)}); err != nil {
			t.Fatal(err)
		}
		outputs, err := sim.Update([]hdl.BitString{hdl.FromBool(true)})
		if err != nil {
			t.Fatal(err)
		}
		if !outputs[0].IsUint(uint64(cycle)) {
			t.Fatalf("cycle %d: a = %s", cycle, outputs[0])
		}
		if !outputs[1].IsUint(uint64(cycle - 1)) {
			t.Fatalf("cycle %d: b = %s", cycle, outputs[1])
		}
	}
}

func TestSimulation_Reset(t *testing.T) {
	m, counter := counterModule(t, 4)
	sim := hdl.NewSimulation(m)

	for half := 0; half < 10; half++ {
		if _, err := sim.Update([]hdl.BitString{hdl.FromBool(half%2 == 1)}); err != nil {
			t.Fatal(err)
		}
	}
	if sim.RegValue(counter).IsZero() {
		t.Fatal("counter should have advanced")
	}

	sim.Reset()
	if !sim.RegValue(counter).IsZero() {
		t.Fatal("reset must restore the initial value")
	}
}

func TestSimulation_SelectShortCircuit(t *testing.T) {
	// The untaken branch contains an unknown; lazy evaluation of
	// select must keep the simulation alive.
	m := hdl.NewModule("guard")
	cond := m.Input("cond", 1)
	a := m.Input("a", 8)
	sel := op(t, m, hdl.OpSelect, cond, a, m.Unknown(8))
	m.Output("out", sel)

	sim := hdl.NewSimulation(m)
	outputs, err := sim.Update([]hdl.BitString{hdl.FromBool(true), hdl.FromUint8(42)})
	if err != nil {
		t.Fatal(err)
	}
	if !outputs[0].IsUint(42) {
		t.Fatalf("unexpected output: %s", outputs[0])
	}

	if _, err := sim.Update([]hdl.BitString{hdl.FromBool(false), hdl.FromUint8(42)}); errors.Cause(err) != hdl.ErrUnknownInSimulation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSimulation_MemoryBounds(t *testing.T) {
	build := func(tb testing.TB) *hdl.Module {
		m := hdl.NewModule("bounds")
		addr := m.Input("addr", 8)
		mem := m.Memory(8, 16)
		if err := mem.SetInitial(2, hdl.FromUint8(99)); err != nil {
			tb.Fatal(err)
		}
		m.Output("read", mem.Read(addr))
		return m
	}

	t.Run("ErrorByDefault", func(t *testing.T) {
		sim := hdl.NewSimulation(build(t))
		if _, err := sim.Update([]hdl.BitString{hdl.FromUint8(18)}); errors.Cause(err) != hdl.ErrMemoryOutOfBounds {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ModuloOptIn", func(t *testing.T) {
		sim := hdl.NewSimulation(build(t), hdl.WithModuloAddressing())
		outputs, err := sim.Update([]hdl.BitString{hdl.FromUint8(18)})
		if err != nil {
			t.Fatal(err)
		}
		if !outputs[0].IsUint(99) {
			t.Fatalf("address 18 should wrap to 2: %s", outputs[0])
		}
	})
}

func TestSimulation_InputValidation(t *testing.T) {
	m, _ := counterModule(t, 4)
	sim := hdl.NewSimulation(m)

	if _, err := sim.Update(nil); errors.Cause(err) != hdl.ErrWidthMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sim.Update([]hdl.BitString{hdl.FromUint8(0)}); errors.Cause(err) != hdl.ErrWidthMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sim.UpdateNamed(map[string]hdl.BitString{}); errors.Cause(err) != hdl.ErrWidthMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSimulation_MemoryInitial(t *testing.T) {
	m := hdl.NewModule("rom")
	addr := m.Input("addr", 2)
	mem := m.Memory(8, 4)
	for i, v := range []uint64{10, 20, 30, 40} {
		if err := mem.SetInitial(uint64(i), hdl.FromUint64(v).Truncate(8)); err != nil {
			t.Fatal(err)
		}
	}
	m.Output("read", mem.Read(addr))

	sim := hdl.NewSimulation(m)
	for i, want := range []uint64{10, 20, 30, 40} {
		outputs, err := sim.Update([]hdl.BitString{hdl.FromUint64(uint64(i)).Truncate(2)})
		if err != nil {
			t.Fatal(err)
		}
		if !outputs[0].IsUint(want) {
			t.Fatalf("word %d: %s", i, outputs[0])
		}
	}
}
