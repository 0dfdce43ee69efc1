package hdl_test

import (
	"testing"

	"github.com/benbjohnson/hdl"
)

func TestAffineValue_AddSub(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 8)
	y := m.Input("y", 8)

	cache := make(map[hdl.Value]hdl.AffineValue)

	// (x + y) - y collapses back to x.
	expr := op(t, m, hdl.OpSub, op(t, m, hdl.OpAdd, x, y), y)
	affine := hdl.BuildAffine(expr, cache)
	want := hdl.BuildAffine(x, cache)
	if !affine.Equal(want) {
		t.Fatalf("affine form of (x+y)-y is not x")
	}

	// (x + 3) and (x + 5) differ by a constant: statically unequal.
	three := op(t, m, hdl.OpAdd, x, m.Constant(hdl.FromUint8(3)))
	five := op(t, m, hdl.OpAdd, x, m.Constant(hdl.FromUint8(5)))
	if got := hdl.BuildAffine(three, cache).StaticEqual(hdl.BuildAffine(five, cache)); got != hdl.TernaryFalse {
		t.Fatalf("static_equal: %s", got)
	}
	if got := hdl.BuildAffine(three, cache).StaticEqual(hdl.BuildAffine(three, cache)); got != hdl.TernaryTrue {
		t.Fatalf("static_equal: %s", got)
	}

	// x + y vs x + z share no decidable relation.
	z := m.Input("z", 8)
	xy := hdl.BuildAffine(op(t, m, hdl.OpAdd, x, y), cache)
	xz := hdl.BuildAffine(op(t, m, hdl.OpAdd, x, z), cache)
	if got := xy.StaticEqual(xz); got != hdl.TernaryUnknown {
		t.Fatalf("static_equal: %s", got)
	}
}

func TestAffineValue_ShlByConstant(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 8)
	cache := make(map[hdl.Value]hdl.AffineValue)

	// (x << 2) + x is 5x.
	shifted := op(t, m, hdl.OpShl, x, m.Constant(hdl.FromUint8(2)))
	expr := op(t, m, hdl.OpAdd, shifted, x)
	affine := hdl.BuildAffine(expr, cache)

	factor, ok := affine.Factors[x]
	if !ok || !factor.IsUint(5) {
		t.Fatalf("unexpected factor: %v", affine.Factors)
	}
	if !affine.Constant.IsZero() {
		t.Fatalf("unexpected constant: %s", affine.Constant)
	}
}

func TestAffineValue_Build(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 8)

	cache := make(map[hdl.Value]hdl.AffineValue)
	expr := op(t, m, hdl.OpAdd,
		op(t, m, hdl.OpShl, x, m.Constant(hdl.FromUint8(1))),
		m.Constant(hdl.FromUint8(7)),
	)
	affine := hdl.BuildAffine(expr, cache)

	rebuilt, err := affine.Build(m)
	if err != nil {
		t.Fatal(err)
	}

	// The rebuilt expression must simulate identically.
	m.Output("a", expr)
	m.Output("b", rebuilt)
	sim := hdl.NewSimulation(m)
	for v := uint64(0); v < 256; v += 17 {
		outputs, err := sim.Update([]hdl.BitString{hdl.FromUint64(v).Truncate(8)})
		if err != nil {
			t.Fatal(err)
		}
		if !outputs[0].Equal(outputs[1]) {
			t.Fatalf("x=%d: %s != %s", v, outputs[0], outputs[1])
		}
	}
}

func TestAffineValue_MulConstZero(t *testing.T) {
	m := hdl.NewModule("top")
	x := m.Input("x", 8)
	affine := hdl.AffineTerm(x, hdl.One(8)).MulConst(hdl.NewBitString(8))
	if !affine.IsConstant() || !affine.Constant.IsZero() {
		t.Fatal("scaling by zero must erase every term")
	}
}
