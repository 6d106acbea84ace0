package symkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_Literal(t *testing.T) {
	_, ok := Match(Lit(N(2)), N(2))
	assert.True(t, ok)
	_, ok = Match(Lit(N(2)), N(3))
	assert.False(t, ok)
}

func TestMatch_Variable(t *testing.T) {
	b, ok := Match(P(opAdd, V("a"), V("b")), AddOf(S("x"), S("y")))
	require.True(t, ok)
	assert.Equal(t, "x", b.Expr("a").String())
	assert.Equal(t, "y", b.Expr("b").String())
}

func TestMatch_BindOnce(t *testing.T) {
	pat := P(opMul, V("a"), V("a"))
	_, ok := Match(pat, MulOf(S("x"), S("x")))
	assert.True(t, ok)
	_, ok = Match(pat, MulOf(S("x"), S("y")))
	assert.False(t, ok)
}

func TestMatch_Predicate(t *testing.T) {
	pat := P(opExpt, V("b"), VP("n", IsIntegerNum))
	b, ok := Match(pat, PowOf(S("x"), N(5)))
	require.True(t, ok)
	n, isInt := b.Int("n")
	assert.True(t, isInt)
	assert.Equal(t, int64(5), n)

	_, ok = Match(pat, PowOf(S("x"), S("y")))
	assert.False(t, ok)
}

func TestMatch_Segment(t *testing.T) {
	pat := P(opAdd, Seg("pre"), VP("n", IsIntegerNum), Seg("post"))
	b, ok := Match(pat, AddOf(N(2), S("x"), S("y")))
	require.True(t, ok)
	assert.Empty(t, b.Exprs("pre"))
	assert.Equal(t, "2", b.Expr("n").String())
	assert.Len(t, b.Exprs("post"), 2)
}

func TestMatch_SegmentBacktracking(t *testing.T) {
	pat := P(opAdd, Seg("a"), Lit(S("y")), Seg("b"))
	b, ok := Match(pat, AddOf(S("x"), S("y"), S("z")))
	require.True(t, ok)
	assert.Len(t, b.Exprs("a"), 1)
	assert.Equal(t, "x", b.Exprs("a")[0].String())
	assert.Len(t, b.Exprs("b"), 1)
	assert.Equal(t, "z", b.Exprs("b")[0].String())
}

func TestMatch_EmptySegment(t *testing.T) {
	b, ok := Match(P(opAdd, Seg("all")), AddOf(S("x"), S("y")))
	require.True(t, ok)
	assert.Len(t, b.Exprs("all"), 2)
}

func TestMatch_OperatorMismatch(t *testing.T) {
	_, ok := Match(P(opAdd, V("a"), V("b")), MulOf(S("x"), S("y")))
	assert.False(t, ok)
	_, ok = Match(P("sin", V("a")), S("x"))
	assert.False(t, ok)
}

func TestMatchWhere_ConditionDrivesBacktracking(t *testing.T) {
	// The structural first parse binds u=x; the condition rejects it and
	// the split search resumes until u=z satisfies it.
	pat := P(opAdd, Seg("pre"), V("u"), Seg("post"))
	b, ok := MatchWhere(pat, AddOf(S("x"), S("y"), S("z")), func(b Bindings) bool {
		return S("z").Equal(b.Expr("u"))
	})
	require.True(t, ok)
	assert.Len(t, b.Exprs("pre"), 2)
	assert.Empty(t, b.Exprs("post"))
}

func TestMatchWhere_ConditionNeverHolds(t *testing.T) {
	pat := P(opAdd, Seg("pre"), V("u"), Seg("post"))
	_, ok := MatchWhere(pat, AddOf(S("x"), S("y")), func(Bindings) bool { return false })
	assert.False(t, ok)
}

func TestMatch_Nested(t *testing.T) {
	pat := P(opExpt, P("sin", V("u")), Lit(N(2)))
	b, ok := Match(pat, PowOf(SinOf(S("x")), N(2)))
	require.True(t, ok)
	assert.Equal(t, "x", b.Expr("u").String())
}
