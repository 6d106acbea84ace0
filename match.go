package symkit

import "github.com/samber/lo"

// A recursive-descent tree matcher. Patterns contain plain bind-once
// variables, predicate-restricted variables and sequence variables that
// capture zero or more consecutive operands. The matcher enumerates every
// legal sequence split as an explicit candidate list, so a rule's side
// condition can reject one parse and fall through to the next. Failure is
// an explicit boolean, never an error.

// Pattern is an expression template.
type Pattern interface{ isPattern() }

type litPat struct{ e Expr }

type varPat struct {
	name string
	pred func(Expr) bool
}

type segPat struct{ name string }

type apPat struct {
	op    string
	parts []Pattern
}

func (litPat) isPattern() {}
func (varPat) isPattern() {}
func (segPat) isPattern() {}
func (apPat) isPattern()  {}

// Lit matches exactly the given expression.
func Lit(e Expr) Pattern { return litPat{e: e} }

// V matches any expression and binds it; repeated occurrences of the same
// name must bind structurally equal expressions.
func V(name string) Pattern { return varPat{name: name} }

// VP is V with a side predicate on the candidate.
func VP(name string, pred func(Expr) bool) Pattern { return varPat{name: name, pred: pred} }

// Seg matches zero or more consecutive operands and binds them as a list.
func Seg(name string) Pattern { return segPat{name: name} }

// P matches an application of op whose operands match parts in order, once
// sequence variables are resolved.
func P(op string, parts ...Pattern) Pattern { return apPat{op: op, parts: parts} }

// Binding associates a pattern-variable name with a single expression or,
// for sequence variables, a list.
type Binding struct {
	Name string
	Val  Expr
	Seq  []Expr
	seq  bool
}

// Bindings is the environment accumulated during one match.
type Bindings []Binding

func (b Bindings) lookup(name string) (Binding, bool) {
	return lo.Find(b, func(x Binding) bool { return x.Name == name })
}

// extend copies the environment before adding, so sibling candidate parses
// never share a backing array.
func (b Bindings) extend(bd Binding) Bindings {
	out := make(Bindings, len(b), len(b)+1)
	copy(out, b)
	return append(out, bd)
}

// Expr returns the expression bound to name; nil when unbound.
func (b Bindings) Expr(name string) Expr {
	if bd, ok := b.lookup(name); ok && !bd.seq {
		return bd.Val
	}
	return nil
}

// Exprs returns the operand list bound to a sequence variable.
func (b Bindings) Exprs(name string) []Expr {
	if bd, ok := b.lookup(name); ok && bd.seq {
		return bd.Seq
	}
	return nil
}

// Int returns the bound expression as an int64; ok is false when the
// binding is missing or not an integer.
func (b Bindings) Int(name string) (int64, bool) {
	n, ok := b.Expr(name).(*Num)
	if !ok || !n.IsInteger() {
		return 0, false
	}
	return n.Int64(), true
}

// Match matches a pattern against an expression, returning the binding
// environment of the first successful parse.
func Match(p Pattern, e Expr) (Bindings, bool) {
	return MatchWhere(p, e, nil)
}

// MatchWhere is Match with a side condition: the first candidate parse
// whose bindings satisfy the condition wins, so a rejected parse backtracks
// to the next sequence split instead of failing the whole match.
func MatchWhere(p Pattern, e Expr, when func(Bindings) bool) (Bindings, bool) {
	for _, b := range matchPat(p, e, nil) {
		if when == nil || when(b) {
			return b, true
		}
	}
	return nil, false
}

// matchPat returns every environment extending b under which p matches e,
// in split order.
func matchPat(p Pattern, e Expr, b Bindings) []Bindings {
	switch pat := p.(type) {
	case litPat:
		if pat.e.Equal(e) {
			return []Bindings{b}
		}
		return nil
	case varPat:
		if prev, bound := b.lookup(pat.name); bound {
			if !prev.seq && prev.Val.Equal(e) {
				return []Bindings{b}
			}
			return nil
		}
		if pat.pred != nil && !pat.pred(e) {
			return nil
		}
		return []Bindings{b.extend(Binding{Name: pat.name, Val: e})}
	case apPat:
		ap, ok := e.(*Ap)
		if !ok || ap.op != pat.op {
			return nil
		}
		return matchSeq(pat.parts, ap.args, b)
	case segPat:
		// A sequence variable is only meaningful inside an operand list.
		return nil
	}
	return nil
}

// matchSeq matches a pattern list against an operand list, collecting the
// environments of every legal split of each sequence variable (the empty
// capture included).
func matchSeq(parts []Pattern, args []Expr, b Bindings) []Bindings {
	if len(parts) == 0 {
		if len(args) == 0 {
			return []Bindings{b}
		}
		return nil
	}
	if seg, isSeg := parts[0].(segPat); isSeg {
		if prev, bound := b.lookup(seg.name); bound {
			// A re-occurring sequence variable must match its previous
			// capture verbatim.
			if !prev.seq || len(args) < len(prev.Seq) {
				return nil
			}
			for i, want := range prev.Seq {
				if !want.Equal(args[i]) {
					return nil
				}
			}
			return matchSeq(parts[1:], args[len(prev.Seq):], b)
		}
		var out []Bindings
		for k := 0; k <= len(args); k++ {
			bound := b.extend(Binding{Name: seg.name, Seq: args[:k], seq: true})
			out = append(out, matchSeq(parts[1:], args[k:], bound)...)
		}
		return out
	}
	if len(args) == 0 {
		return nil
	}
	var out []Bindings
	for _, ext := range matchPat(parts[0], args[0], b) {
		out = append(out, matchSeq(parts[1:], args[1:], ext)...)
	}
	return out
}

// ============================================================
// Common binding predicates
// ============================================================

// IsIntegerNum accepts exact integers.
func IsIntegerNum(e Expr) bool {
	n, ok := e.(*Num)
	return ok && n.IsInteger()
}

// IntAtLeast accepts exact integers >= k.
func IntAtLeast(k int64) func(Expr) bool {
	return func(e Expr) bool {
		n, ok := e.(*Num)
		return ok && n.IsInteger() && n.Int64() >= k
	}
}

// NotNum accepts anything but a number.
func NotNum(e Expr) bool {
	_, ok := e.(*Num)
	return !ok
}
