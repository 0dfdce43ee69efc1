package hdl_test

import (
	"testing"

	"github.com/benbjohnson/hdl"
	"github.com/davecgh/go-spew/spew"
)

// testFlattenOp cross-checks the bit-level lowering of one operator
// against the direct evaluation of the original node, over every
// input assignment of the given argument widths.
func testFlattenOp(t *testing.T, kind hdl.OpKind, argWidthCases [][]int) {
	t.Run(kind.String(), func(t *testing.T) {
		for _, argWidths := range argWidthCases {
			m := hdl.NewModule("top")
			flattening := hdl.NewFlattening(m)

			args := make([]hdl.Value, len(argWidths))
			states := 1
			for i, width := range argWidths {
				arg := m.Input("", width)
				args[i] = arg
				flattening.Define(arg, flattening.Split(arg))
				states *= 1 << uint(width)
			}

			value := op(t, m, kind, args...)
			if err := flattening.Flatten(value); err != nil {
				t.Fatal(err)
			}
			bits, err := flattening.Bits(value)
			if err != nil {
				t.Fatal(err)
			} else if len(bits) != value.Width() {
				t.Fatalf("lowered to %d bits, want %d", len(bits), value.Width())
			}

			m.Output("expected", value)
			m.Output("result", flattening.Join(bits))

			sim := hdl.NewSimulation(m)
			for state := 0; state < states; state++ {
				inputs := make([]hdl.BitString, len(argWidths))
				cur := state
				for i, width := range argWidths {
					inputs[i] = hdl.FromUint64(uint64(cur) & ((1 << uint(width)) - 1)).Truncate(width)
					cur >>= uint(width)
				}

				outputs, err := sim.Update(inputs)
				if err != nil {
					t.Fatal(err)
				}
				if !outputs[0].Equal(outputs[1]) {
					t.Fatalf("inputs %s: expected %s, result %s", spew.Sdump(inputs), outputs[0], outputs[1])
				}
			}
		}
	})
}

func TestFlattening(t *testing.T) {
	testFlattenOp(t, hdl.OpAnd, [][]int{{2, 2}})
	testFlattenOp(t, hdl.OpOr, [][]int{{2, 2}})
	testFlattenOp(t, hdl.OpXor, [][]int{{2, 2}})
	testFlattenOp(t, hdl.OpNot, [][]int{{2}})
	testFlattenOp(t, hdl.OpAdd, [][]int{{4, 4}})
	testFlattenOp(t, hdl.OpSub, [][]int{{4, 4}})
	testFlattenOp(t, hdl.OpMul, [][]int{{4, 4}, {2, 3}})
	testFlattenOp(t, hdl.OpEq, [][]int{{4, 4}})
	testFlattenOp(t, hdl.OpLtU, [][]int{{3, 3}, {4, 4}})
	testFlattenOp(t, hdl.OpLtS, [][]int{{3, 3}, {4, 4}})
	testFlattenOp(t, hdl.OpLeU, [][]int{{3, 3}})
	testFlattenOp(t, hdl.OpLeS, [][]int{{3, 3}})
	testFlattenOp(t, hdl.OpConcat, [][]int{{3, 2}})
	testFlattenOp(t, hdl.OpShl, [][]int{{4, 2}})
	testFlattenOp(t, hdl.OpShrU, [][]int{{4, 2}, {5, 2}, {3, 2}})
	testFlattenOp(t, hdl.OpShrS, [][]int{{4, 2}, {5, 2}, {3, 2}})
	testFlattenOp(t, hdl.OpSelect, [][]int{{1, 3, 3}})
}

func TestFlattening_Slice(t *testing.T) {
	// Slice with a symbolic offset lowers to a shift; the width stays
	// statically fixed by the constant third argument.
	m := hdl.NewModule("top")
	flattening := hdl.NewFlattening(m)

	value := m.Input("value", 5)
	offset := m.Input("offset", 2)
	flattening.Define(value, flattening.Split(value))
	flattening.Define(offset, flattening.Split(offset))

	slice := op(t, m, hdl.OpSlice, value, offset, m.Constant(hdl.FromUint64(3)))
	if err := flattening.Flatten(slice); err != nil {
		t.Fatal(err)
	}
	bits, err := flattening.Bits(slice)
	if err != nil {
		t.Fatal(err)
	}

	m.Output("expected", slice)
	m.Output("result", flattening.Join(bits))

	sim := hdl.NewSimulation(m)
	for v := 0; v < 1<<5; v++ {
		for off := 0; off < 1<<2; off++ {
			outputs, err := sim.Update([]hdl.BitString{
				hdl.FromUint64(uint64(v)).Truncate(5),
				hdl.FromUint64(uint64(off)).Truncate(2),
			})
			if err != nil {
				t.Fatal(err)
			}
			if !outputs[0].Equal(outputs[1]) {
				t.Fatalf("value %d offset %d: expected %s, result %s", v, off, outputs[0], outputs[1])
			}
		}
	}
}

func TestFlattening_Constant(t *testing.T) {
	m := hdl.NewModule("top")
	flattening := hdl.NewFlattening(m)

	c := m.Constant(bs(t, "0110"))
	if err := flattening.Flatten(c); err != nil {
		t.Fatal(err)
	}
	bits, err := flattening.Bits(c)
	if err != nil {
		t.Fatal(err)
	}
	for i, bit := range bits {
		constant, ok := bit.(*hdl.Constant)
		if !ok || constant.Width() != 1 {
			t.Fatalf("bit %d is not a one-bit constant: %s", i, bit)
		}
		if constant.Value.Bool() != c.Value.At(i) {
			t.Fatalf("bit %d has the wrong value", i)
		}
	}
}

func TestFlattening_Unknown(t *testing.T) {
	m := hdl.NewModule("top")
	flattening := hdl.NewFlattening(m)

	u := m.Unknown(3)
	if err := flattening.Flatten(u); err != nil {
		t.Fatal(err)
	}
	bits, err := flattening.Bits(u)
	if err != nil {
		t.Fatal(err)
	}
	for i, bit := range bits {
		unknown, ok := bit.(*hdl.Unknown)
		if !ok || unknown.Width() != 1 {
			t.Fatalf("bit %d is not a one-bit unknown: %s", i, bit)
		}
	}
}

func TestFlattening_UnsplitLeaf(t *testing.T) {
	m := hdl.NewModule("top")
	flattening := hdl.NewFlattening(m)

	a := m.Input("a", 4)
	not := op(t, m, hdl.OpNot, a)
	if err := flattening.Flatten(not); err == nil {
		t.Fatal("expected an error for the undefined input")
	}
}

func TestFlattening_SplitJoinRoundTrip(t *testing.T) {
	m := hdl.NewModule("top")
	flattening := hdl.NewFlattening(m)

	a := m.Input("a", 6)
	joined := flattening.Join(flattening.Split(a))
	m.Output("joined", joined)
	m.Output("a", a)

	sim := hdl.NewSimulation(m)
	for v := 0; v < 1<<6; v++ {
		outputs, err := sim.Update([]hdl.BitString{hdl.FromUint64(uint64(v)).Truncate(6)})
		if err != nil {
			t.Fatal(err)
		}
		if !outputs[0].Equal(outputs[1]) {
			t.Fatalf("value %d: joined %s != %s", v, outputs[0], outputs[1])
		}
	}
}
