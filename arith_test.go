package symkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnaryFolds_Exact(t *testing.T) {
	assert.Equal(t, "0", SinOf(N(0)).String())
	assert.Equal(t, "1", CosOf(N(0)).String())
	assert.Equal(t, "1", ExpOf(N(0)).String())
	assert.Equal(t, "0", LogOf(N(1)).String())
	assert.Equal(t, "3", AbsOf(N(-3)).String())
	assert.Equal(t, "-1", SignOf(F(-2, 7)).String())
	// Non-special arguments stay symbolic.
	assert.Equal(t, "(sin 1)", SinOf(N(1)).String())
}

func TestSqrt_PerfectSquaresOnly(t *testing.T) {
	assert.Equal(t, "2", SqrtOf(N(4)).String())
	assert.Equal(t, "3/2", SqrtOf(F(9, 4)).String())
	// No float rounding: sqrt(2) stays exact and symbolic.
	assert.Equal(t, "(sqrt 2)", SqrtOf(N(2)).String())
	assert.Equal(t, "(sqrt -4)", SqrtOf(N(-4)).String())
}

func TestLogExp_InversePair(t *testing.T) {
	assert.Equal(t, "x", LogOf(ExpOf(S("x"))).String())
	assert.Equal(t, "x", ExpOf(LogOf(S("x"))).String())
}

func TestApply_UnknownOperatorStaysSymbolic(t *testing.T) {
	out, err := Apply("bessel", S("x"))
	require.NoError(t, err)
	assert.Equal(t, "(bessel x)", out.String())
}

func TestApply_AbsAtZeroPrimal(t *testing.T) {
	_, err := Apply("abs", Bundle(N(0), N(1), 5))
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestApply_UnknownDerivative(t *testing.T) {
	_, err := Apply("bessel", Bundle(S("x"), N(1), 5))
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestEvalFloat(t *testing.T) {
	e := AddOf(MulOf(N(2), S("x")), SinOf(S("y")))
	got, err := EvalFloat(e, map[string]float64{"x": 3, "y": 0})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got, 1e-12)

	e2 := PowOf(S("x"), N(2))
	got, err = EvalFloat(e2, map[string]float64{"x": 1.5})
	require.NoError(t, err)
	assert.InDelta(t, 2.25, got, 1e-12)
}

func TestEvalFloat_Errors(t *testing.T) {
	_, err := EvalFloat(S("x"), nil)
	require.ErrorIs(t, err, ErrIllegalState)
	_, err = EvalFloat(DivOf(S("x"), S("y")), map[string]float64{"x": 1, "y": 0})
	require.ErrorIs(t, err, ErrArithmetic)
}
