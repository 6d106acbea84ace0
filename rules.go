package symkit

import "github.com/samber/lo"

// The rule engine and the rewrite-rule library. A Rule pairs a pattern with
// an optional guard and a rebuilder; a Ruleset tries its rules in order and
// the first one that fires wins. The rule simplifier walks bottom-up and
// re-simplifies after every successful rewrite, with a fuel bound so a
// misbehaving ruleset cannot loop forever.

// Rule rewrites expressions matching Pattern. When, if non-nil, guards the
// rewrite with a side condition on the bindings. Then may return nil to
// decline after a structural match.
type Rule struct {
	Pattern Pattern
	When    func(Bindings) bool
	Then    func(Bindings) Expr
}

// Ruleset is an ordered rule collection.
type Ruleset struct {
	rules []Rule
}

func NewRuleset(rules ...Rule) *Ruleset { return &Ruleset{rules: rules} }

// Apply tries each rule in order against the root of e. The guard runs
// inside the match, so a parse it rejects backtracks to the next sequence
// split before the rule gives up. The boolean reports whether any rule
// fired; no match is not an error.
func (rs *Ruleset) Apply(e Expr) (Expr, bool) {
	for _, r := range rs.rules {
		b, ok := MatchWhere(r.Pattern, e, r.When)
		if !ok {
			continue
		}
		if out := r.Then(b); out != nil {
			return out, true
		}
	}
	return e, false
}

const maxRuleRewrites = 400

// NewRuleSimplifier compiles rulesets into a full-tree rewriter: operands
// first, then the node itself, re-simplifying the result of every firing
// until nothing applies.
func NewRuleSimplifier(sets ...*Ruleset) func(Expr) Expr {
	return func(e Expr) Expr {
		fuel := maxRuleRewrites
		return ruleWalk(e, sets, &fuel)
	}
}

func ruleWalk(e Expr, sets []*Ruleset, fuel *int) Expr {
	if ap, ok := e.(*Ap); ok {
		args := make([]Expr, len(ap.args))
		changed := false
		for i, a := range ap.args {
			args[i] = ruleWalk(a, sets, fuel)
			if !args[i].Equal(ap.args[i]) {
				changed = true
			}
		}
		if changed {
			e = rebuild(ap.op, args)
		}
	}
	if *fuel > 0 {
		for _, rs := range sets {
			if out, fired := rs.Apply(e); fired && !out.Equal(e) {
				*fuel--
				return ruleWalk(out, sets, fuel)
			}
		}
	}
	return e
}

// seq splices segment captures and single expressions into one operand list.
func seq(lists [][]Expr, extra ...Expr) []Expr {
	out := lo.Flatten(lists)
	return append(out, extra...)
}

// ============================================================
// Rule library
// ============================================================

// CanonicalOrderRules re-normalizes raw sum and product nodes through the
// arithmetic constructors: flatten, fold numbers, sort operands. On already
// canonical nodes it declines, so the simplifier reaches a fixed point.
func CanonicalOrderRules() *Ruleset {
	renorm := func(op string, build func(...Expr) Expr) Rule {
		return Rule{
			Pattern: P(op, Seg("ts")),
			Then: func(b Bindings) Expr {
				ts := b.Exprs("ts")
				out := build(ts...)
				if out.Equal(ApOf(op, ts...)) {
					return nil
				}
				return out
			},
		}
	}
	return NewRuleset(renorm(opAdd, AddOf), renorm(opMul, MulOf))
}

// ExponentContractRules collects repeated factors into integer powers:
// b^n * b^m -> b^(n+m), b * b -> b^2, and nested integer powers merge.
func ExponentContractRules() *Ruleset {
	mul3 := func(b Bindings, pow Expr) Expr {
		return MulOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys"), b.Exprs("zs")}, pow)...)
	}
	return NewRuleset(
		Rule{
			Pattern: P(opMul, Seg("xs"),
				P(opExpt, V("b"), VP("n", IsIntegerNum)), Seg("ys"),
				P(opExpt, V("b"), VP("m", IsIntegerNum)), Seg("zs")),
			Then: func(b Bindings) Expr {
				return mul3(b, PowOf(b.Expr("b"), AddOf(b.Expr("n"), b.Expr("m"))))
			},
		},
		Rule{
			Pattern: P(opMul, Seg("xs"),
				VP("b", NotNum), Seg("ys"), V("b"), Seg("zs")),
			Then: func(b Bindings) Expr {
				return mul3(b, PowOf(b.Expr("b"), N(2)))
			},
		},
		Rule{
			Pattern: P(opMul, Seg("xs"),
				P(opExpt, V("b"), VP("n", IsIntegerNum)), Seg("ys"),
				V("b"), Seg("zs")),
			Then: func(b Bindings) Expr {
				return mul3(b, PowOf(b.Expr("b"), AddOf(b.Expr("n"), N(1))))
			},
		},
		Rule{
			Pattern: P(opMul, Seg("xs"),
				VP("b", NotNum), Seg("ys"),
				P(opExpt, V("b"), VP("n", IsIntegerNum)), Seg("zs")),
			Then: func(b Bindings) Expr {
				return mul3(b, PowOf(b.Expr("b"), AddOf(b.Expr("n"), N(1))))
			},
		},
		Rule{
			Pattern: P(opExpt,
				P(opExpt, V("b"), VP("n", IsIntegerNum)),
				VP("m", IsIntegerNum)),
			Then: func(b Bindings) Expr {
				return PowOf(b.Expr("b"), MulOf(b.Expr("n"), b.Expr("m")))
			},
		},
	)
}

func isEvenInt(e Expr) bool {
	n, ok := e.(*Num)
	return ok && n.IsInteger() && n.Int64()%2 == 0
}

// SqrtExpandRules pushes square roots inward over products, quotients and
// even powers. Sound only under the nonnegative-radicand assumption the
// simplifier operates with.
func SqrtExpandRules() *Ruleset {
	return NewRuleset(
		Rule{
			Pattern: P(opSqrt, P(opMul, V("a"), V("b"), Seg("rest"))),
			Then: func(b Bindings) Expr {
				tail := append([]Expr{b.Expr("b")}, b.Exprs("rest")...)
				return MulOf(SqrtOf(b.Expr("a")), SqrtOf(MulOf(tail...)))
			},
		},
		Rule{
			Pattern: P(opSqrt, P(opDiv, V("a"), V("b"))),
			Then: func(b Bindings) Expr {
				return DivOf(SqrtOf(b.Expr("a")), SqrtOf(b.Expr("b")))
			},
		},
		Rule{
			Pattern: P(opSqrt, P(opExpt, V("b"), VP("n", isEvenInt))),
			Then: func(b Bindings) Expr {
				n, _ := b.Int("n")
				return PowOf(b.Expr("b"), N(n/2))
			},
		},
	)
}

// SqrtContractRules cancels square-root factors whose radicands the same
// predicate identifies as equal. The six placements cover roots on either
// side of a quotient, bare or inside a product, a root pair inside one
// product, and an even power of a root. A nil predicate means structural
// equality.
func SqrtContractRules(same func(a, b Expr) bool) *Ruleset {
	if same == nil {
		same = func(a, b Expr) bool { return a.Equal(b) }
	}
	whenSame := func(b Bindings) bool { return same(b.Expr("a"), b.Expr("b")) }
	return NewRuleset(
		Rule{
			Pattern: P(opDiv, P(opSqrt, V("a")), P(opSqrt, V("b"))),
			When:    whenSame,
			Then:    func(Bindings) Expr { return N(1) },
		},
		Rule{
			Pattern: P(opDiv,
				P(opMul, Seg("xs"), P(opSqrt, V("a")), Seg("ys")),
				P(opSqrt, V("b"))),
			When: whenSame,
			Then: func(b Bindings) Expr {
				return MulOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys")})...)
			},
		},
		Rule{
			Pattern: P(opDiv,
				P(opSqrt, V("a")),
				P(opMul, Seg("xs"), P(opSqrt, V("b")), Seg("ys"))),
			When: whenSame,
			Then: func(b Bindings) Expr {
				return DivOf(N(1), MulOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys")})...))
			},
		},
		Rule{
			Pattern: P(opDiv,
				P(opMul, Seg("xs"), P(opSqrt, V("a")), Seg("ys")),
				P(opMul, Seg("us"), P(opSqrt, V("b")), Seg("vs"))),
			When: whenSame,
			Then: func(b Bindings) Expr {
				num := MulOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys")})...)
				den := MulOf(seq([][]Expr{b.Exprs("us"), b.Exprs("vs")})...)
				return DivOf(num, den)
			},
		},
		Rule{
			Pattern: P(opMul, Seg("xs"),
				P(opSqrt, V("a")), Seg("ys"),
				P(opSqrt, V("b")), Seg("zs")),
			When: whenSame,
			Then: func(b Bindings) Expr {
				return MulOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys"), b.Exprs("zs")}, b.Expr("a"))...)
			},
		},
		Rule{
			Pattern: P(opExpt, P(opSqrt, V("a")), VP("n", isEvenInt)),
			Then: func(b Bindings) Expr {
				n, _ := b.Int("n")
				return PowOf(b.Expr("a"), N(n/2))
			},
		},
	)
}

// LogExpRules folds inverse pairs and contracts products of exponentials and
// sums of logarithms.
func LogExpRules() *Ruleset {
	return NewRuleset(
		Rule{
			Pattern: P("log", P("exp", V("x"))),
			Then:    func(b Bindings) Expr { return b.Expr("x") },
		},
		Rule{
			Pattern: P("exp", P("log", V("x"))),
			Then:    func(b Bindings) Expr { return b.Expr("x") },
		},
		Rule{
			Pattern: P(opMul, Seg("xs"),
				P("exp", V("a")), Seg("ys"),
				P("exp", V("b")), Seg("zs")),
			Then: func(b Bindings) Expr {
				e := ExpOf(AddOf(b.Expr("a"), b.Expr("b")))
				return MulOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys"), b.Exprs("zs")}, e)...)
			},
		},
		Rule{
			Pattern: P(opAdd, Seg("xs"),
				P("log", V("a")), Seg("ys"),
				P("log", V("b")), Seg("zs")),
			Then: func(b Bindings) Expr {
				l := LogOf(MulOf(b.Expr("a"), b.Expr("b")))
				return AddOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys"), b.Exprs("zs")}, l)...)
			},
		},
		Rule{
			Pattern: P(opExpt, P("exp", V("a")), V("n")),
			Then: func(b Bindings) Expr {
				return ExpOf(MulOf(b.Expr("n"), b.Expr("a")))
			},
		},
		Rule{
			Pattern: P("log", P(opExpt, V("x"), VP("n", IsIntegerNum))),
			Then: func(b Bindings) Expr {
				return MulOf(b.Expr("n"), LogOf(b.Expr("x")))
			},
		},
	)
}

// SinCosFlushRules collapses sin^2 + cos^2 pairs to 1 whenever the zero
// oracle certifies the two arguments equal. The second rule handles pairs
// carrying a shared coefficient, scanning the term list the way a human
// would rather than through a pattern, because the coefficient may be
// spread across several factors.
func SinCosFlushRules(zero func(Expr) bool) *Ruleset {
	if zero == nil {
		zero = func(e Expr) bool { return isNumZero(e) }
	}
	return NewRuleset(
		Rule{
			Pattern: P(opAdd, Seg("xs"),
				P(opExpt, P("cos", V("u")), Lit(N(2))), Seg("ys"),
				P(opExpt, P("sin", V("v")), Lit(N(2))), Seg("zs")),
			When: func(b Bindings) bool {
				return zero(SubOf(b.Expr("u"), b.Expr("v")))
			},
			Then: func(b Bindings) Expr {
				return AddOf(seq([][]Expr{b.Exprs("xs"), b.Exprs("ys"), b.Exprs("zs")}, N(1))...)
			},
		},
		Rule{
			Pattern: P(opAdd, Seg("ts")),
			Then: func(b Bindings) Expr {
				out, ok := flushPythagorean(b.Exprs("ts"), zero)
				if !ok {
					return nil
				}
				return out
			},
		},
	)
}

// trigSquare decomposes a term into coefficient * (sin u)^2 or
// coefficient * (cos u)^2.
func trigSquare(t Expr) (coeff Expr, trig string, arg Expr, ok bool) {
	matchSq := func(e Expr) (string, Expr, bool) {
		ap, isAp := e.(*Ap)
		if !isAp || ap.op != opExpt || len(ap.args) != 2 || !N(2).Equal(ap.args[1]) {
			return "", nil, false
		}
		inner, isAp2 := ap.args[0].(*Ap)
		if !isAp2 || len(inner.args) != 1 || (inner.op != "sin" && inner.op != "cos") {
			return "", nil, false
		}
		return inner.op, inner.args[0], true
	}
	if op, a, hit := matchSq(t); hit {
		return N(1), op, a, true
	}
	ap, isAp := t.(*Ap)
	if !isAp || ap.op != opMul {
		return nil, "", nil, false
	}
	var rest []Expr
	for _, f := range ap.args {
		if op, a, hit := matchSq(f); hit && trig == "" {
			trig, arg = op, a
			continue
		}
		rest = append(rest, f)
	}
	if trig == "" {
		return nil, "", nil, false
	}
	return MulOf(rest...), trig, arg, true
}

// flushPythagorean finds one sin^2/cos^2 pair with matching arguments and
// matching coefficients, replaces the pair by the shared coefficient, and
// reports whether it found one.
func flushPythagorean(terms []Expr, zero func(Expr) bool) (Expr, bool) {
	for i := 0; i < len(terms); i++ {
		ci, ti, ai, ok := trigSquare(terms[i])
		if !ok {
			continue
		}
		for j := i + 1; j < len(terms); j++ {
			cj, tj, aj, ok2 := trigSquare(terms[j])
			if !ok2 || ti == tj {
				continue
			}
			if !zero(SubOf(ai, aj)) || !zero(SubOf(ci, cj)) {
				continue
			}
			rest := make([]Expr, 0, len(terms)-1)
			for k, t := range terms {
				if k != i && k != j {
					rest = append(rest, t)
				}
			}
			return AddOf(append(rest, ci)...), true
		}
	}
	return nil, false
}

// SinSqRules peels a degree-2 factor off high odd or even powers of sine,
// exposing fresh sin^2 occurrences for the flush pass.
func SinSqRules() *Ruleset {
	return NewRuleset(
		Rule{
			Pattern: P(opExpt, P("sin", V("x")), VP("n", IntAtLeast(3))),
			Then: func(b Bindings) Expr {
				n, _ := b.Int("n")
				x := b.Expr("x")
				low := PowOf(SinOf(x), N(n-2))
				return MulOf(low, SubOf(N(1), PowOf(CosOf(x), N(2))))
			},
		},
	)
}

// TrigInverseRules folds trig functions applied to their own inverses. Only
// the directions valid on the whole real line are included.
func TrigInverseRules() *Ruleset {
	pair := func(outer, inner string) Rule {
		return Rule{
			Pattern: P(outer, P(inner, V("x"))),
			Then:    func(b Bindings) Expr { return b.Expr("x") },
		}
	}
	return NewRuleset(
		pair("sin", "asin"),
		pair("cos", "acos"),
		pair("tan", "atan"),
		Rule{
			Pattern: P("cos", P("asin", V("x"))),
			Then: func(b Bindings) Expr {
				return SqrtOf(SubOf(N(1), PowOf(b.Expr("x"), N(2))))
			},
		},
		Rule{
			Pattern: P("sin", P("acos", V("x"))),
			Then: func(b Bindings) Expr {
				return SqrtOf(SubOf(N(1), PowOf(b.Expr("x"), N(2))))
			},
		},
	)
}

func notPartialAp(e Expr) bool {
	ap, ok := e.(*Ap)
	return !ok || ap.op != opPartial
}

// PartialRules canonicalizes compositions of partial-derivative operators:
// nested applications flatten into one index list, and mixed partials
// commute, so the indices sort ascending. Operator exponentiation shows up
// as a repeated index after flattening.
func PartialRules() *Ruleset {
	return NewRuleset(
		Rule{
			Pattern: P(opPartial, Seg("is"), P(opPartial, Seg("js"), VP("f", notPartialAp))),
			When: func(b Bindings) bool {
				_, ok1 := intsOf(b.Exprs("is"))
				_, ok2 := intsOf(b.Exprs("js"))
				return ok1 && ok2
			},
			Then: func(b Bindings) Expr {
				args := seq([][]Expr{b.Exprs("is"), b.Exprs("js")}, b.Expr("f"))
				return ApOf(opPartial, args...)
			},
		},
		Rule{
			Pattern: P(opPartial, Seg("is"), VP("f", notPartialAp)),
			When: func(b Bindings) bool {
				is, ok := intsOf(b.Exprs("is"))
				return ok && !intsSorted(is)
			},
			Then: func(b Bindings) Expr {
				is, _ := intsOf(b.Exprs("is"))
				sortInts(is)
				return PartialOf(is, b.Expr("f"))
			},
		},
	)
}

func intsOf(es []Expr) ([]int, bool) {
	out := make([]int, len(es))
	for i, e := range es {
		n, ok := e.(*Num)
		if !ok || !n.IsInteger() {
			return nil, false
		}
		out[i] = int(n.Int64())
	}
	return out, true
}

func intsSorted(is []int) bool {
	for i := 1; i < len(is); i++ {
		if is[i] < is[i-1] {
			return false
		}
	}
	return true
}

func sortInts(is []int) {
	for i := 1; i < len(is); i++ {
		for j := i; j > 0 && is[j] < is[j-1]; j-- {
			is[j], is[j-1] = is[j-1], is[j]
		}
	}
}
