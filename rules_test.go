package symkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleset_FirstMatchWins(t *testing.T) {
	rs := NewRuleset(
		Rule{Pattern: V("any"), Then: func(Bindings) Expr { return N(1) }},
		Rule{Pattern: V("any"), Then: func(Bindings) Expr { return N(2) }},
	)
	out, fired := rs.Apply(S("x"))
	assert.True(t, fired)
	assert.Equal(t, "1", out.String())
}

func TestRuleset_NoMatchIsNotAnError(t *testing.T) {
	rs := NewRuleset(Rule{Pattern: P("sin", V("x")), Then: func(b Bindings) Expr { return b.Expr("x") }})
	out, fired := rs.Apply(S("x"))
	assert.False(t, fired)
	assert.Equal(t, "x", out.String())
}

func TestRuleset_GuardBlocks(t *testing.T) {
	rs := NewRuleset(Rule{
		Pattern: V("n"),
		When:    func(b Bindings) bool { return IsIntegerNum(b.Expr("n")) },
		Then:    func(Bindings) Expr { return N(0) },
	})
	_, fired := rs.Apply(S("x"))
	assert.False(t, fired)
	_, fired = rs.Apply(N(7))
	assert.True(t, fired)
}

func TestCanonicalOrderRules_Idempotent(t *testing.T) {
	simp := NewRuleSimplifier(CanonicalOrderRules())
	raw := ApOf(opAdd, S("y"), S("x"), N(0))
	assert.Equal(t, "(+ x y)", simp(raw).String())
	// Already canonical input is a fixed point.
	canon := AddOf(S("x"), S("y"))
	assert.True(t, simp(canon).Equal(canon))
}

func TestExponentContract_RepeatedFactors(t *testing.T) {
	simp := NewRuleSimplifier(ExponentContractRules())
	assert.Equal(t, "(expt x 3)", simp(MulOf(S("x"), S("x"), S("x"))).String())
	assert.Equal(t, "(expt x 5)",
		simp(MulOf(PowOf(S("x"), N(2)), PowOf(S("x"), N(3)))).String())
	got := simp(MulOf(S("y"), S("x"), S("x")))
	assert.Equal(t, "(* y (expt x 2))", got.String())
}

func TestSqrtExpandRules(t *testing.T) {
	simp := NewRuleSimplifier(SqrtExpandRules())
	assert.Equal(t, "(* (sqrt x) (sqrt y))",
		simp(SqrtOf(MulOf(S("x"), S("y")))).String())
	assert.Equal(t, "(/ (sqrt x) (sqrt y))",
		simp(SqrtOf(DivOf(S("x"), S("y")))).String())
	assert.Equal(t, "(expt x 2)",
		simp(SqrtOf(PowOf(S("x"), N(4)))).String())
}

func TestSqrtContractRules(t *testing.T) {
	simp := NewRuleSimplifier(SqrtContractRules(nil))
	assert.Equal(t, "1",
		simp(DivOf(SqrtOf(S("x")), SqrtOf(S("x")))).String())
	assert.Equal(t, "x",
		simp(MulOf(SqrtOf(S("x")), SqrtOf(S("x")))).String())
	assert.Equal(t, "y",
		simp(DivOf(MulOf(S("y"), SqrtOf(S("x"))), SqrtOf(S("x")))).String())
	assert.Equal(t, "x",
		simp(PowOf(SqrtOf(S("x")), N(2))).String())
	// Distinct radicands stay put.
	e := DivOf(SqrtOf(S("x")), SqrtOf(S("y")))
	assert.True(t, simp(e).Equal(e))
}

func TestSqrtContractRules_GuardBacktracksOverSplits(t *testing.T) {
	simp := NewRuleSimplifier(SqrtContractRules(nil))
	// The first pair the pattern proposes is (sqrt x, sqrt y); the guard
	// rejects it and the matcher moves on to the (sqrt x, sqrt x) pair.
	e := ApOf(opMul, SqrtOf(S("x")), SqrtOf(S("y")), SqrtOf(S("x")))
	assert.Equal(t, "(* x (sqrt y))", simp(e).String())
}

func TestLogExpRules(t *testing.T) {
	simp := NewRuleSimplifier(LogExpRules())
	assert.Equal(t, "(exp (+ a b))",
		simp(MulOf(ExpOf(S("a")), ExpOf(S("b")))).String())
	assert.Equal(t, "(log (* a b))",
		simp(AddOf(LogOf(S("a")), LogOf(S("b")))).String())
	assert.Equal(t, "(exp (* 2 a))",
		simp(PowOf(ExpOf(S("a")), N(2))).String())
	assert.Equal(t, "(* 3 (log x))",
		simp(LogOf(PowOf(S("x"), N(3)))).String())
}

func TestSinCosFlushRules_Plain(t *testing.T) {
	simp := NewRuleSimplifier(SinCosFlushRules(SimplifiesToZero))
	e := AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("x")), N(2)))
	assert.Equal(t, "1", simp(e).String())

	withRest := AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("x")), N(2)), S("z"))
	assert.Equal(t, "(+ 1 z)", simp(withRest).String())
}

func TestSinCosFlushRules_DifferentArguments(t *testing.T) {
	simp := NewRuleSimplifier(SinCosFlushRules(SimplifiesToZero))
	e := AddOf(PowOf(SinOf(S("x")), N(2)), PowOf(CosOf(S("y")), N(2)))
	assert.True(t, simp(e).Equal(e))
}

func TestSinCosFlushRules_SharedCoefficient(t *testing.T) {
	simp := NewRuleSimplifier(SinCosFlushRules(SimplifiesToZero))
	e := AddOf(
		MulOf(N(3), PowOf(SinOf(S("x")), N(2))),
		MulOf(N(3), PowOf(CosOf(S("x")), N(2))),
		S("y"))
	assert.Equal(t, "(+ 3 y)", simp(e).String())
}

func TestSinCosFlushRules_MismatchedCoefficient(t *testing.T) {
	simp := NewRuleSimplifier(SinCosFlushRules(SimplifiesToZero))
	e := AddOf(
		MulOf(N(3), PowOf(SinOf(S("x")), N(2))),
		MulOf(N(2), PowOf(CosOf(S("x")), N(2))))
	assert.True(t, simp(e).Equal(e))
}

func TestSinSqRules_PeelsHighPowers(t *testing.T) {
	simp := NewRuleSimplifier(SinSqRules())
	got := simp(PowOf(SinOf(S("x")), N(3)))
	want := MulOf(SinOf(S("x")), SubOf(N(1), PowOf(CosOf(S("x")), N(2))))
	assert.True(t, want.Equal(got), "got %s", got)
	// Squares are left for the flush pass.
	sq := PowOf(SinOf(S("x")), N(2))
	assert.True(t, simp(sq).Equal(sq))
}

func TestTrigInverseRules(t *testing.T) {
	simp := NewRuleSimplifier(TrigInverseRules())
	assert.Equal(t, "x", simp(SinOf(AsinOf(S("x")))).String())
	assert.Equal(t, "x", simp(CosOf(AcosOf(S("x")))).String())
	assert.Equal(t, "x", simp(TanOf(AtanOf(S("x")))).String())
	assert.Equal(t, "(sqrt (+ 1 (* -1 (expt x 2))))",
		simp(CosOf(AsinOf(S("x")))).String())
}

func TestPartialRules_FlattenAndSort(t *testing.T) {
	simp := NewRuleSimplifier(PartialRules())
	e := PartialOf([]int{2}, PartialOf([]int{1}, S("f")))
	assert.Equal(t, "(partial 1 2 f)", simp(e).String())

	// Operator squares arrive as repeated indices and stay that way.
	rep := PartialOf([]int{0}, PartialOf([]int{0}, S("f")))
	assert.Equal(t, "(partial 0 0 f)", simp(rep).String())
}

func TestPartialRules_DeepNesting(t *testing.T) {
	simp := NewRuleSimplifier(PartialRules())
	e := PartialOf([]int{2}, PartialOf([]int{0}, PartialOf([]int{1}, S("f"))))
	assert.Equal(t, "(partial 0 1 2 f)", simp(e).String())
}
