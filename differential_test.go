package symkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBundle_Shape(t *testing.T) {
	b := Bundle(S("x"), N(1), 1)
	assert.Equal(t, "(differential (d . x) (d 1 . 1))", b.String())
}

func TestBundle_ZeroTangentDegrades(t *testing.T) {
	assert.Equal(t, "x", Bundle(S("x"), N(0), 1).String())
}

func TestExtractTangent(t *testing.T) {
	b := Bundle(S("x"), S("v"), 3)
	assert.Equal(t, "v", ExtractTangent(b, 3).String())
	assert.Equal(t, "0", ExtractTangent(b, 4).String())
	assert.Equal(t, "0", ExtractTangent(S("x"), 3).String())
}

func TestPrimalTangent(t *testing.T) {
	b := Bundle(S("x"), S("v"), 3)
	p, tg := PrimalTangent(b, 3)
	assert.Equal(t, "x", p.String())
	assert.Equal(t, "v", tg.String())
}

func TestNilpotency_SameTagAnnihilates(t *testing.T) {
	b := Bundle(S("x"), N(1), 3)
	// (x + dx)^2 keeps only the first-order term in dx.
	sq := MulOf(b, b)
	assert.Equal(t, "(+ x x)", ExtractTangent(sq, 3).String())
	// No second-order residue survives.
	d, ok := sq.(*Differential)
	assert.True(t, ok)
	assert.Len(t, d.terms, 2)
}

func TestDiffF_ChainRule(t *testing.T) {
	var tags TagAllocator
	d := tags.DiffF(func(x Expr) Expr { return SinOf(x) })
	assert.Equal(t, "(cos x)", d(S("x")).String())
}

func TestDiffF_ProductRule(t *testing.T) {
	var tags TagAllocator
	d := tags.DiffF(func(x Expr) Expr { return MulOf(x, S("y")) })
	assert.Equal(t, "y", d(S("x")).String())
}

func TestDiffF_SecondDerivative(t *testing.T) {
	var tags TagAllocator
	d2 := tags.DiffF(tags.DiffF(func(x Expr) Expr { return SinOf(x) }))
	assert.Equal(t, "(* -1 (sin x))", d2(S("x")).String())
}

func TestDiffF_RegisteredOperatorTable(t *testing.T) {
	// Every operator in the table chains its registered derivative through
	// a unit-tangent bundle.
	var tags TagAllocator
	x := S("x")
	for op, spec := range unaryOps {
		op, spec := op, spec
		d := tags.DiffF(func(u Expr) Expr { return mustApply(op, u) })
		got := d(x)
		assert.True(t, spec.deriv(x).Equal(got), "%s: got %s", op, got)
	}
}

func TestDiff_Power(t *testing.T) {
	got := Diff(PowOf(S("x"), N(3)), "x")
	assert.Equal(t, "(* 3 (expt x 2))", got.String())
}

func TestDiff_Composition(t *testing.T) {
	// d/dx sin(x^2) = cos(x^2) * 2x
	got := Diff(SinOf(PowOf(S("x"), N(2))), "x")
	want := MulOf(N(2), S("x"), CosOf(PowOf(S("x"), N(2))))
	assert.True(t, want.Equal(got), "got %s", got)
}

func TestDiff_Atan2(t *testing.T) {
	den := AddOf(PowOf(S("x"), N(2)), PowOf(S("y"), N(2)))
	got := Diff(Atan2Of(S("y"), S("x")), "x")
	assert.True(t, NegOf(DivOf(S("y"), den)).Equal(got), "got %s", got)

	got = Diff(Atan2Of(S("y"), S("x")), "y")
	assert.True(t, DivOf(S("x"), den).Equal(got), "got %s", got)
}

func TestDiff_UnknownOperatorPanics(t *testing.T) {
	// No registered derivative: the chain rule must refuse, not yield 0.
	assert.Panics(t, func() { Diff(ApOf("bessel", S("x")), "x") })
	assert.Panics(t, func() { Diff(ApOf("beta", S("x"), S("y")), "x") })
}

func TestDiff_UnrelatedVariable(t *testing.T) {
	assert.Equal(t, "0", Diff(SinOf(S("y")), "x").String())
}

func TestTagAllocator_Monotonic(t *testing.T) {
	var tags TagAllocator
	a, b := tags.Fresh(), tags.Fresh()
	assert.Greater(t, b, a)
}
