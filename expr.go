// Package symkit is a canonical-form symbolic algebra kernel.
//
// Expressions are immutable trees of exact rational numbers, named symbols
// and operator applications. Simplification rewrites trees with an algebraic
// rule engine and decides equality through canonical polynomial and
// rational-function forms; differentiation is forward-mode, threading tagged
// infinitesimal bundles through the same generic arithmetic.
package symkit

import (
	"math/big"
	"sort"
	"strings"
)

// Operator symbols used by the kernel. Any other operator is carried as an
// opaque application and treated as a variable by the canonical-form
// analyzers.
const (
	opAdd     = "+"
	opMul     = "*"
	opDiv     = "/"
	opExpt    = "expt"
	opSqrt    = "sqrt"
	opPartial = "partial"
)

const (
	kindNum = iota
	kindSym
	kindAp
	kindDiff
)

// Expr is a symbolic expression: a number, a symbol, an operator
// application, or a differential (a tagged dual-number term list).
// Expressions are immutable and structurally compared.
type Expr interface {
	String() string
	Equal(other Expr) bool
	kind() int
}

// ============================================================
// Num — exact rational number
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }

func F(p, q int64) *Num {
	if q == 0 {
		panic("symkit: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// RatOf wraps a copy of r as an expression.
func RatOf(r *big.Rat) *Num { return &Num{val: new(big.Rat).Set(r)} }

func (n *Num) String() string { return n.val.RatString() }
func (n *Num) kind() int      { return kindNum }
func (n *Num) Equal(other Expr) bool {
	o, ok := other.(*Num)
	return ok && n.val.Cmp(o.val) == 0
}

func (n *Num) Rat() *big.Rat    { return new(big.Rat).Set(n.val) }
func (n *Num) IsZero() bool     { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool      { return n.val.Cmp(ratOne) == 0 }
func (n *Num) IsInteger() bool  { return n.val.IsInt() }
func (n *Num) IsNegative() bool { return n.val.Sign() < 0 }
func (n *Num) Int64() int64     { return n.val.Num().Int64() }

var (
	ratOne    = big.NewRat(1, 1)
	ratNegOne = big.NewRat(-1, 1)
)

// ============================================================
// Sym — named variable
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym { return &Sym{name: name} }

func (s *Sym) String() string { return s.name }
func (s *Sym) kind() int      { return kindSym }
func (s *Sym) Name() string   { return s.name }
func (s *Sym) Equal(other Expr) bool {
	o, ok := other.(*Sym)
	return ok && s.name == o.name
}

// ============================================================
// Ap — operator application
// ============================================================

// Ap is an operator symbol applied to an ordered list of operands.
type Ap struct {
	op   string
	args []Expr
}

// ApOf builds a raw application without any folding. The arithmetic
// constructors (AddOf, MulOf, ...) are the normalizing entry points.
func ApOf(op string, args ...Expr) *Ap { return &Ap{op: op, args: args} }

func (a *Ap) Op() string   { return a.op }
func (a *Ap) Args() []Expr { return a.args }
func (a *Ap) kind() int    { return kindAp }

func (a *Ap) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(a.op)
	for _, arg := range a.args {
		sb.WriteString(" ")
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (a *Ap) Equal(other Expr) bool {
	o, ok := other.(*Ap)
	if !ok || a.op != o.op || len(a.args) != len(o.args) {
		return false
	}
	for i := range a.args {
		if !a.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

// ============================================================
// Canonical expression order
// ============================================================

// exprCmp is the total order used for canonical operand sorting:
// numbers < symbols < applications < differentials; numbers by value,
// symbols by name, applications by operator then operands.
func exprCmp(a, b Expr) int {
	if a.kind() != b.kind() {
		if a.kind() < b.kind() {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case *Num:
		return x.val.Cmp(b.(*Num).val)
	case *Sym:
		return strings.Compare(x.name, b.(*Sym).name)
	case *Ap:
		y := b.(*Ap)
		if c := strings.Compare(x.op, y.op); c != 0 {
			return c
		}
		for i := 0; i < len(x.args) && i < len(y.args); i++ {
			if c := exprCmp(x.args[i], y.args[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(x.args) < len(y.args):
			return -1
		case len(x.args) > len(y.args):
			return 1
		}
		return 0
	default:
		return strings.Compare(a.String(), b.String())
	}
}

func sortExprs(es []Expr) {
	sort.SliceStable(es, func(i, j int) bool { return exprCmp(es[i], es[j]) < 0 })
}

// ============================================================
// Arithmetic constructors
// ============================================================

// AddOf sums its arguments: nested sums are flattened, numeric terms folded,
// zero dropped, and operands put in canonical order. Differential operands
// divert into the dual-number merge. No deep rewriting happens here.
func AddOf(terms ...Expr) Expr {
	if anyDifferential(terms) {
		return dAddAll(terms)
	}
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if ap, ok := t.(*Ap); ok && ap.op == opAdd {
			flat = append(flat, ap.args...)
			continue
		}
		flat = append(flat, t)
	}
	acc := new(big.Rat)
	rest := flat[:0]
	for _, t := range flat {
		if n, ok := t.(*Num); ok {
			acc.Add(acc, n.val)
			continue
		}
		rest = append(rest, t)
	}
	sortExprs(rest)
	out := make([]Expr, 0, len(rest)+1)
	if acc.Sign() != 0 {
		out = append(out, RatOf(acc))
	}
	out = append(out, rest...)
	switch len(out) {
	case 0:
		return N(0)
	case 1:
		return out[0]
	}
	return &Ap{op: opAdd, args: out}
}

// MulOf multiplies its arguments with the symmetric normalization: nested
// products flattened, numeric factors folded into a leading coefficient,
// zero annihilating, unit coefficient elided.
func MulOf(factors ...Expr) Expr {
	if anyDifferential(factors) {
		return dMulAll(factors)
	}
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if ap, ok := f.(*Ap); ok && ap.op == opMul {
			flat = append(flat, ap.args...)
			continue
		}
		flat = append(flat, f)
	}
	coeff := new(big.Rat).SetInt64(1)
	rest := flat[:0]
	for _, f := range flat {
		if n, ok := f.(*Num); ok {
			coeff.Mul(coeff, n.val)
			continue
		}
		rest = append(rest, f)
	}
	if coeff.Sign() == 0 {
		return N(0)
	}
	sortExprs(rest)
	if len(rest) == 0 {
		return RatOf(coeff)
	}
	if coeff.Cmp(ratOne) == 0 {
		if len(rest) == 1 {
			return rest[0]
		}
		return &Ap{op: opMul, args: rest}
	}
	return &Ap{op: opMul, args: append([]Expr{RatOf(coeff)}, rest...)}
}

// NegOf negates.
func NegOf(e Expr) Expr { return MulOf(N(-1), e) }

// SubOf is a - b.
func SubOf(a, b Expr) Expr { return AddOf(a, NegOf(b)) }

// DivOf builds a quotient node. Numeric quotients fold; division by the
// numeric zero panics (programmer error, as in construction of F(p, 0)).
func DivOf(a, b Expr) Expr {
	if anyDifferential([]Expr{a, b}) {
		return mustApply(opDiv, a, b)
	}
	if bn, ok := b.(*Num); ok {
		if bn.IsZero() {
			panic("symkit: division by zero")
		}
		if an, ok2 := a.(*Num); ok2 {
			return RatOf(new(big.Rat).Quo(an.val, bn.val))
		}
		if bn.IsOne() {
			return a
		}
	}
	if an, ok := a.(*Num); ok && an.IsZero() {
		return N(0)
	}
	return &Ap{op: opDiv, args: []Expr{a, b}}
}

// PowOf builds base^exp with the usual shallow folds. Nested integer powers
// merge; everything else is left to the rule library.
func PowOf(base, exp Expr) Expr {
	if anyDifferential([]Expr{base, exp}) {
		return mustApply(opExpt, base, exp)
	}
	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			if bn, ok2 := base.(*Num); ok2 && bn.IsZero() {
				// 0^0 is indeterminate; leave unevaluated.
				return &Ap{op: opExpt, args: []Expr{base, exp}}
			}
			return N(1)
		}
		if en.IsOne() {
			return base
		}
		if bn, ok2 := base.(*Num); ok2 {
			if bn.IsZero() {
				if en.IsNegative() {
					panic("symkit: division by zero")
				}
				return N(0)
			}
			if en.IsInteger() {
				e := en.Int64()
				if e >= -64 && e <= 64 {
					return RatOf(ratPowInt(bn.val, e))
				}
			}
		}
		if inner, ok2 := base.(*Ap); ok2 && inner.op == opExpt && en.IsInteger() {
			if in, ok3 := inner.args[1].(*Num); ok3 && in.IsInteger() {
				return PowOf(inner.args[0], RatOf(new(big.Rat).Mul(in.val, en.val)))
			}
		}
	}
	if bn, ok := base.(*Num); ok && bn.IsOne() {
		return N(1)
	}
	return &Ap{op: opExpt, args: []Expr{base, exp}}
}

func ratPowInt(r *big.Rat, e int64) *big.Rat {
	neg := e < 0
	if neg {
		e = -e
	}
	out := new(big.Rat).SetInt64(1)
	base := new(big.Rat).Set(r)
	for ; e > 0; e >>= 1 {
		if e&1 == 1 {
			out.Mul(out, base)
		}
		base.Mul(base, base)
	}
	if neg {
		out.Inv(out)
	}
	return out
}

// PartialOf is the partial-derivative operator: indices applied to an
// operand, e.g. PartialOf([]int{0, 1}, f) for the mixed partial.
func PartialOf(indices []int, f Expr) Expr {
	args := make([]Expr, 0, len(indices)+1)
	for _, i := range indices {
		args = append(args, N(int64(i)))
	}
	args = append(args, f)
	return &Ap{op: opPartial, args: args}
}

// ============================================================
// Structure queries and substitution
// ============================================================

// Vars returns the free symbols of e.
func Vars(e Expr) map[string]struct{} {
	out := map[string]struct{}{}
	collectVars(e, out)
	return out
}

func collectVars(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Ap:
		for _, a := range v.args {
			collectVars(a, out)
		}
	case *Differential:
		for _, t := range v.terms {
			collectVars(t.coeff, out)
		}
	}
}

// ContainsOp reports whether the operator symbol occurs anywhere in e.
// The simplifier uses it to skip whole rule passes.
func ContainsOp(e Expr, op string) bool {
	ap, ok := e.(*Ap)
	if !ok {
		return false
	}
	if ap.op == op {
		return true
	}
	for _, a := range ap.args {
		if ContainsOp(a, op) {
			return true
		}
	}
	return false
}

// Subst replaces every free occurrence of the named symbol with value,
// re-normalizing through the arithmetic constructors on the way out.
func Subst(e Expr, name string, value Expr) Expr {
	switch v := e.(type) {
	case *Sym:
		if v.name == name {
			return value
		}
		return v
	case *Ap:
		args := make([]Expr, len(v.args))
		for i, a := range v.args {
			args[i] = Subst(a, name, value)
		}
		return rebuild(v.op, args)
	default:
		return e
	}
}

// rebuild reassembles an application after its operands changed, routing
// through the normalizing constructor for the operator when one exists.
// Unary and binary operators go through generic application so a
// differential operand hits the chain rule; an operand that cannot chain
// through the operator panics rather than degrading to a raw node, since a
// raw node would read as derivative zero.
func rebuild(op string, args []Expr) Expr {
	switch op {
	case opAdd:
		return AddOf(args...)
	case opMul:
		return MulOf(args...)
	}
	if len(args) == 1 || len(args) == 2 {
		out, err := Apply(op, args...)
		if err == nil {
			return out
		}
		if anyDifferential(args) {
			panic(err)
		}
	}
	return &Ap{op: op, args: args}
}
