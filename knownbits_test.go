package hdl_test

import (
	"math/rand"
	"testing"

	"github.com/benbjohnson/hdl"
)

func TestKnownBits_Masking(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 4)

	kb := hdl.NewKnownBits()

	// Anding with a constant pins the masked bits.
	masked := op(t, m, hdl.OpAnd, x, m.Constant(bs(t, "0011")))
	if got := kb.Lower(masked); !got.Equal(pbs(t, "00xx")) {
		t.Fatalf("and mask: %s", got)
	}

	// Oring with a constant pins the set bits.
	set := op(t, m, hdl.OpOr, x, m.Constant(bs(t, "1100")))
	if got := kb.Lower(set); !got.Equal(pbs(t, "11xx")) {
		t.Fatalf("or mask: %s", got)
	}

	// Concat with a constant keeps the constant half known.
	joined := op(t, m, hdl.OpConcat, m.Constant(bs(t, "10")), x)
	if got := kb.Lower(joined); !got.Equal(pbs(t, "10xxxx")) {
		t.Fatalf("concat: %s", got)
	}
}

func TestKnownBits_Define(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 4)

	kb := hdl.NewKnownBits()
	kb.Define(x, pbs(t, "01x0"))

	notX := op(t, m, hdl.OpNot, x)
	if got := kb.Lower(notX); !got.Equal(pbs(t, "10x1")) {
		t.Fatalf("not: %s", got)
	}
}

func TestKnownBits_SelectMerge(t *testing.T) {
	m := hdl.NewModule("top")
	cond := m.Input("cond", 1)

	// Both branches agree on the top bits; the merge keeps them even
	// though the condition is unknown.
	sel := op(t, m, hdl.OpSelect, cond, m.Constant(bs(t, "1010")), m.Constant(bs(t, "1001")))
	kb := hdl.NewKnownBits()
	if got := kb.Lower(sel); !got.Equal(pbs(t, "10xx")) {
		t.Fatalf("select: %s", got)
	}
}

func TestKnownBits_LowerModule(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 4)
	m.Output("masked", op(t, m, hdl.OpAnd, x, m.Zero(4)))
	m.Output("free", x)

	partials := hdl.NewKnownBits().LowerModule(m)
	if value, ok := partials[0].Value(); !ok || !value.IsZero() {
		t.Fatalf("and with zero must be fully known: %s", partials[0])
	}
	if partials[1].Known().Popcount() != 0 {
		t.Fatalf("an input is fully unknown: %s", partials[1])
	}
}

func TestKnownBits_SoundAgainstSimulation(t *testing.T) {
	// Every bit the analysis claims to know must match the simulated
	// value on every sampled input.
	m := hdl.NewModule("top")
	x := m.Input("x", 8)
	y := m.Input("y", 8)

	values := []hdl.Value{
		op(t, m, hdl.OpAnd, x, m.Constant(bs(t, "00001111"))),
		op(t, m, hdl.OpOr, x, y),
		op(t, m, hdl.OpXor, x, m.Constant(bs(t, "10101010"))),
		op(t, m, hdl.OpConcat, m.Constant(bs(t, "01")), op(t, m, hdl.OpAnd, x, m.Zero(8))),
		op(t, m, hdl.OpAdd, op(t, m, hdl.OpAnd, x, m.Zero(8)), m.Constant(hdl.FromUint8(3))),
		op(t, m, hdl.OpSlice, op(t, m, hdl.OpOr, x, m.Constant(bs(t, "11110000"))), m.Constant(hdl.FromUint64(2)), m.Constant(hdl.FromUint64(4))),
		op(t, m, hdl.OpEq, x, y),
		op(t, m, hdl.OpEq, op(t, m, hdl.OpAnd, x, m.Constant(bs(t, "00001111"))), m.Constant(hdl.FromUint8(5))),
		op(t, m, hdl.OpLtU, x, y),
	}
	for _, value := range values {
		m.Output("", value)
	}

	kb := hdl.NewKnownBits()
	partials := kb.LowerModule(m)

	sim := hdl.NewSimulation(m)
	rnd := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		outputs, err := sim.Update([]hdl.BitString{
			hdl.RandomBitString(rnd, 8),
			hdl.RandomBitString(rnd, 8),
		})
		if err != nil {
			t.Fatal(err)
		}
		for i, output := range outputs {
			partial := partials[i]
			for bit := 0; bit < output.Width(); bit++ {
				claim := partial.At(bit)
				if claim == hdl.TernaryUnknown {
					continue
				}
				if (claim == hdl.TernaryTrue) != output.At(bit) {
					t.Fatalf("output %d bit %d: claimed %s, simulated %v", i, bit, claim, output.At(bit))
				}
			}
		}
	}
}
