package symkit

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietSimplifier(opts ...Option) *Simplifier {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewSimplifier(opts...)
}

func TestSimplify_CollectsLikeTerms(t *testing.T) {
	s := quietSimplifier()
	assert.Equal(t, "(* 2 x)", s.Simplify(AddOf(S("x"), S("x"))).String())
	assert.Equal(t, "0", s.Simplify(SubOf(S("x"), S("x"))).String())
}

func TestSimplify_Pythagorean(t *testing.T) {
	s := quietSimplifier()
	e := AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("x")), N(2)))
	assert.Equal(t, "1", s.Simplify(e).String())
}

func TestSimplify_PythagoreanWithCoefficient(t *testing.T) {
	s := quietSimplifier()
	e := AddOf(
		MulOf(N(3), PowOf(SinOf(S("x")), N(2))),
		MulOf(N(3), PowOf(CosOf(S("x")), N(2))),
		S("y"))
	assert.Equal(t, "(+ 3 y)", s.Simplify(e).String())
}

func TestSimplify_RationalCancellation(t *testing.T) {
	s := quietSimplifier()
	e := DivOf(
		AddOf(PowOf(S("x"), N(2)), N(-1)),
		AddOf(S("x"), N(-1)))
	assert.Equal(t, "(+ 1 x)", s.Simplify(e).String())
}

func TestSimplify_Idempotent(t *testing.T) {
	s := quietSimplifier()
	for _, e := range []Expr{
		AddOf(S("x"), S("x")),
		AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("x")), N(2))),
		MulOf(ExpOf(S("a")), ExpOf(S("b"))),
		DivOf(SqrtOf(S("x")), SqrtOf(S("x"))),
	} {
		once := s.Simplify(e)
		assert.True(t, s.Simplify(once).Equal(once), "not a fixed point: %s", once)
	}
}

func TestSimplify_SqrtCancellation(t *testing.T) {
	s := quietSimplifier()
	e := DivOf(SqrtOf(S("x")), SqrtOf(S("x")))
	assert.Equal(t, "1", s.Simplify(e).String())
}

func TestSimplify_LogExp(t *testing.T) {
	s := quietSimplifier()
	e := MulOf(ExpOf(S("a")), ExpOf(S("b")))
	assert.Equal(t, "(exp (+ a b))", s.Simplify(e).String())
}

func TestSimplify_DeadlineReturnsInputUnchanged(t *testing.T) {
	s := quietSimplifier(WithDeadline(time.Nanosecond))
	// Heavy enough that the deadline has long expired by the first
	// cooperative check inside the canonicalizer.
	e := DivOf(
		PowOf(AddOf(S("x"), S("y"), S("z")), N(8)),
		PowOf(AddOf(S("x"), S("y")), N(4)))
	assert.True(t, s.Simplify(e).Equal(e))
}

func TestSimplify_CacheHitsAreStable(t *testing.T) {
	s := quietSimplifier()
	e := AddOf(S("x"), S("x"))
	first := s.Simplify(e)
	second := s.Simplify(e)
	assert.True(t, first.Equal(second))
}

func TestSimplifier_Hermetic(t *testing.T) {
	s := quietSimplifier()
	h := s.Hermetic()
	require.NotSame(t, s, h)
	e := AddOf(S("x"), S("x"))
	assert.True(t, s.Simplify(e).Equal(h.Simplify(e)))
}

func TestSimplifier_Diff(t *testing.T) {
	s := quietSimplifier()
	assert.Equal(t, "(cos x)", s.Diff(SinOf(S("x")), "x").String())
	assert.Equal(t, "(* 3 (expt x 2))", s.Diff(PowOf(S("x"), N(3)), "x").String())
}

func TestSimplify_PackageDefault(t *testing.T) {
	assert.Equal(t, "(* 2 x)", Simplify(AddOf(S("x"), S("x"))).String())
}

func TestSimplify_Concurrent(t *testing.T) {
	s := quietSimplifier()
	e := AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("x")), N(2)))
	done := make(chan Expr, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- s.Simplify(e) }()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, "1", (<-done).String())
	}
}
