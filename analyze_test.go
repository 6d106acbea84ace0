package symkit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_VariableTable(t *testing.T) {
	a := NewAnalyzer(nil, AddOf(SinOf(S("x")), S("y"), S("a")))
	vars := a.Variables()
	require.Len(t, vars, 3)
	// Symbols sorted by name come first, kernels after.
	assert.Equal(t, "a", vars[0].String())
	assert.Equal(t, "y", vars[1].String())
	assert.Equal(t, "(sin x)", vars[2].String())
}

func TestAnalyzer_KernelsAreOpaque(t *testing.T) {
	// The symbol under the sine is not a polynomial variable; the whole
	// sine application is.
	a := NewAnalyzer(nil, SinOf(S("x")))
	require.Len(t, a.Variables(), 1)
	assert.Equal(t, "(sin x)", a.Variables()[0].String())
}

func TestAnalyzer_ToValue_Polynomial(t *testing.T) {
	a := NewAnalyzer(nil, S("x"))
	v, err := a.ToValue(AddOf(PowOf(S("x"), N(2)), MulOf(N(2), S("x")), N(1)))
	require.NoError(t, err)
	want := NewPoly(1, nil, ratTerm(1, 2), ratTerm(2, 1), ratTerm(1, 0))
	assert.True(t, ValueEqual(want, v))
}

func TestAnalyzer_ToValue_UnknownKernel(t *testing.T) {
	a := NewAnalyzer(nil, S("x"))
	_, err := a.ToValue(SinOf(S("x")))
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestAnalyzer_ToValue_NegativePower(t *testing.T) {
	a := NewAnalyzer(nil, S("x"))
	v, err := a.ToValue(PowOf(S("x"), N(-1)))
	require.NoError(t, err)
	inv, err := MakeRatFunc(big.NewRat(1, 1), PolyVar(1, 0, nil))
	require.NoError(t, err)
	assert.True(t, ValueEqual(inv, v))
}

func TestCanonicalize_CollectsLikeTerms(t *testing.T) {
	got, err := Canonicalize(AddOf(S("x"), S("x")))
	require.NoError(t, err)
	assert.Equal(t, "(* 2 x)", got.String())
}

func TestCanonicalize_CancelsCommonFactors(t *testing.T) {
	// (x^2 - 1)/(x - 1) = x + 1
	e := DivOf(
		AddOf(PowOf(S("x"), N(2)), N(-1)),
		AddOf(S("x"), N(-1)))
	got, err := Canonicalize(e)
	require.NoError(t, err)
	assert.Equal(t, "(+ 1 x)", got.String())
}

func TestCanonicalize_KeepsKernels(t *testing.T) {
	// sin x - sin x vanishes because both occurrences map to one variable.
	got, err := Canonicalize(SubOf(SinOf(S("x")), SinOf(S("x"))))
	require.NoError(t, err)
	assert.Equal(t, "0", got.String())
}

func TestCanonicalize_DivisionByZero(t *testing.T) {
	_, err := Canonicalize(DivOf(S("x"), SubOf(S("y"), S("y"))))
	require.ErrorIs(t, err, ErrArithmetic)
}

func TestSimplifiesToZero(t *testing.T) {
	x, y := S("x"), S("y")
	// (x + y)^2 - (x^2 + 2xy + y^2) == 0
	e := SubOf(
		PowOf(AddOf(x, y), N(2)),
		AddOf(PowOf(x, N(2)), MulOf(N(2), x, y), PowOf(y, N(2))))
	assert.True(t, SimplifiesToZero(e))

	assert.False(t, SimplifiesToZero(AddOf(x, y)))
	assert.True(t, SimplifiesToZero(N(0)))
}

func TestSimplifiesToZero_KernelRelationsNotProved(t *testing.T) {
	// sin^2 + cos^2 - 1 is zero, but not as a rational function over
	// independent kernels; the oracle must not certify it.
	e := SubOf(
		AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("x")), N(2))),
		N(1))
	assert.False(t, SimplifiesToZero(e))
}

func TestAnalyzer_RoundTripRational(t *testing.T) {
	// x/(x+1) survives a round trip structurally intact.
	a := NewAnalyzer(nil, S("x"))
	e := DivOf(S("x"), AddOf(S("x"), N(1)))
	v, err := a.ToValue(e)
	require.NoError(t, err)
	back := a.FromValue(v)
	assert.Equal(t, "(/ x (+ 1 x))", back.String())
}
