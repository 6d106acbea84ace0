package symkit

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
)

// Sparse multivariate polynomial in canonical form: a fixed arity, a fixed
// monomial order and a term list sorted descending under that order. No
// stored term has a zero coefficient; the zero polynomial has no terms.

// Term is one monomial with its coefficient.
type Term struct {
	Exps  Exponents
	Coeff *big.Rat
}

type Poly struct {
	arity int
	order MonomialOrder
	terms []Term // descending by order
}

// NewPoly builds a canonical polynomial: duplicate exponent vectors are
// merged, zero coefficients dropped, terms sorted descending. A nil order
// means GradedLex. Terms whose exponent vector does not match arity are a
// programmer error.
func NewPoly(arity int, order MonomialOrder, terms ...Term) *Poly {
	if order == nil {
		order = GradedLex
	}
	merged := map[string]Term{}
	for _, t := range terms {
		if len(t.Exps) != arity {
			panic(fmt.Sprintf("symkit: term arity %d in polynomial of arity %d", len(t.Exps), arity))
		}
		key := expsKey(t.Exps)
		if prev, ok := merged[key]; ok {
			prev.Coeff = new(big.Rat).Add(prev.Coeff, t.Coeff)
			merged[key] = prev
		} else {
			merged[key] = Term{Exps: t.Exps.clone(), Coeff: new(big.Rat).Set(t.Coeff)}
		}
	}
	out := make([]Term, 0, len(merged))
	for _, key := range maps.Keys(merged) {
		if t := merged[key]; t.Coeff.Sign() != 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return order(out[i].Exps, out[j].Exps) > 0 })
	return &Poly{arity: arity, order: order, terms: out}
}

func expsKey(e Exponents) string {
	var sb strings.Builder
	for i, x := range e {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(x))
	}
	return sb.String()
}

// PolyConst is the constant polynomial c of the given arity.
func PolyConst(arity int, c *big.Rat, order MonomialOrder) *Poly {
	return NewPoly(arity, order, Term{Exps: make(Exponents, arity), Coeff: c})
}

// PolyVar is the variable x_i of the given arity.
func PolyVar(arity, i int, order MonomialOrder) *Poly {
	e := make(Exponents, arity)
	e[i] = 1
	return NewPoly(arity, order, Term{Exps: e, Coeff: big.NewRat(1, 1)})
}

func (p *Poly) Arity() int          { return p.arity }
func (p *Poly) Order() MonomialOrder { return p.order }
func (p *Poly) Terms() []Term       { return p.terms }
func (p *Poly) IsZero() bool        { return len(p.terms) == 0 }

// IsConstant reports whether p has no variable dependence.
func (p *Poly) IsConstant() bool {
	return len(p.terms) == 0 || (len(p.terms) == 1 && p.terms[0].Exps.isZero())
}

// ConstantValue returns the value of a constant polynomial.
func (p *Poly) ConstantValue() *big.Rat {
	if len(p.terms) == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).Set(p.terms[0].Coeff)
}

func (p *Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	parts := make([]string, len(p.terms))
	for i, t := range p.terms {
		parts[i] = t.Coeff.RatString() + "*x^" + expsKey(t.Exps)
	}
	return strings.Join(parts, " + ")
}

func (p *Poly) Equal(q *Poly) bool {
	if p.arity != q.arity || len(p.terms) != len(q.terms) {
		return false
	}
	for i := range p.terms {
		if Lex(p.terms[i].Exps, q.terms[i].Exps) != 0 || p.terms[i].Coeff.Cmp(q.terms[i].Coeff) != 0 {
			return false
		}
	}
	return true
}

// checkArity panics with a wrapped ErrIllegalState when the arities differ.
// Mixing arities in the ring methods is a programmer error, like a bad Term
// in NewPoly; the rational-function layer is the checked surface and turns
// the same condition into an error return.
func (p *Poly) checkArity(q *Poly) {
	if p.arity != q.arity {
		panic(fmt.Errorf("%w: polynomial arity mismatch %d vs %d", ErrIllegalState, p.arity, q.arity))
	}
}

// ============================================================
// Ring operations
// ============================================================
// Binary ring methods panic on an arity mismatch; callers that cannot
// guarantee matching arities go through the rational-function layer.

func (p *Poly) Add(q *Poly) *Poly {
	p.checkArity(q)
	return NewPoly(p.arity, p.order, append(append([]Term{}, p.terms...), q.terms...)...)
}

func (p *Poly) Neg() *Poly {
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{Exps: t.Exps, Coeff: new(big.Rat).Neg(t.Coeff)}
	}
	return &Poly{arity: p.arity, order: p.order, terms: out}
}

func (p *Poly) Sub(q *Poly) *Poly { return p.Add(q.Neg()) }

// Mul convolves the term lists: exponent vectors add, coefficients multiply,
// colliding monomials accumulate.
func (p *Poly) Mul(q *Poly) *Poly {
	p.checkArity(q)
	out := make([]Term, 0, len(p.terms)*len(q.terms))
	for _, a := range p.terms {
		for _, b := range q.terms {
			out = append(out, Term{
				Exps:  addExps(a.Exps, b.Exps),
				Coeff: new(big.Rat).Mul(a.Coeff, b.Coeff),
			})
		}
	}
	return NewPoly(p.arity, p.order, out...)
}

// MulRat scales every coefficient.
func (p *Poly) MulRat(c *big.Rat) *Poly {
	if c.Sign() == 0 {
		return NewPoly(p.arity, p.order)
	}
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{Exps: t.Exps, Coeff: new(big.Rat).Mul(t.Coeff, c)}
	}
	return &Poly{arity: p.arity, order: p.order, terms: out}
}

func (p *Poly) Pow(n uint) *Poly {
	out := PolyConst(p.arity, big.NewRat(1, 1), p.order)
	base := p
	for ; n > 0; n >>= 1 {
		if n&1 == 1 {
			out = out.Mul(base)
		}
		base = base.Mul(base)
	}
	return out
}

// ============================================================
// Degrees and leading data
// ============================================================

// Degree returns the highest power of variable v, or -1 for the zero
// polynomial.
func (p *Poly) Degree(v int) int {
	if p.IsZero() {
		return -1
	}
	d := 0
	for _, t := range p.terms {
		if t.Exps[v] > d {
			d = t.Exps[v]
		}
	}
	return d
}

// TotalDegree returns the maximum term degree, or -1 for zero.
func (p *Poly) TotalDegree() int {
	if p.IsZero() {
		return -1
	}
	d := 0
	for _, t := range p.terms {
		if td := totalDegree(t.Exps); td > d {
			d = td
		}
	}
	return d
}

// LeadingTerm is the highest term under the polynomial's monomial order.
func (p *Poly) LeadingTerm() Term {
	if p.IsZero() {
		return Term{Exps: make(Exponents, p.arity), Coeff: new(big.Rat)}
	}
	return p.terms[0]
}

func (p *Poly) LeadingCoefficient() *big.Rat { return p.LeadingTerm().Coeff }

// ============================================================
// Exact division
// ============================================================

// EvenlyDivide returns the exact quotient p/q. Division that leaves a
// remainder is an ErrArithmetic, never a silent rational result.
func (p *Poly) EvenlyDivide(q *Poly) (*Poly, error) {
	return p.evenlyDivideCtx(context.Background(), q)
}

func (p *Poly) evenlyDivideCtx(ctx context.Context, q *Poly) (*Poly, error) {
	p.checkArity(q)
	if q.IsZero() {
		return nil, fmt.Errorf("%w: division by zero polynomial", ErrArithmetic)
	}
	rem := p
	var quot []Term
	for !rem.IsZero() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: exact division interrupted", ErrTimeout)
		}
		lr, lq := rem.LeadingTerm(), q.LeadingTerm()
		exps, ok := subExps(lr.Exps, lq.Exps)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not evenly divide", ErrArithmetic, q)
		}
		t := Term{Exps: exps, Coeff: new(big.Rat).Quo(lr.Coeff, lq.Coeff)}
		quot = append(quot, t)
		rem = rem.Sub(NewPoly(p.arity, p.order, t).Mul(q))
	}
	return NewPoly(p.arity, p.order, quot...), nil
}

// ============================================================
// Content and GCD
// ============================================================

// content is the rational content: gcd of coefficient numerators over lcm
// of denominators, carrying the sign of the leading coefficient.
func (p *Poly) content() *big.Rat {
	if p.IsZero() {
		return new(big.Rat)
	}
	num := new(big.Int)
	den := big.NewInt(1)
	for _, t := range p.terms {
		num.GCD(nil, nil, num, new(big.Int).Abs(t.Coeff.Num()))
		den.Div(new(big.Int).Mul(den, t.Coeff.Denom()), new(big.Int).GCD(nil, nil, den, t.Coeff.Denom()))
	}
	c := new(big.Rat).SetFrac(num, den)
	if p.LeadingCoefficient().Sign() < 0 {
		c.Neg(c)
	}
	return c
}

// primitive divides out the content; the zero polynomial stays zero.
func (p *Poly) primitive() *Poly {
	c := p.content()
	if c.Sign() == 0 {
		return p
	}
	return p.MulRat(new(big.Rat).Inv(c))
}

func ratGCD(a, b *big.Rat) *big.Rat {
	if a.Sign() == 0 {
		return new(big.Rat).Abs(b)
	}
	if b.Sign() == 0 {
		return new(big.Rat).Abs(a)
	}
	num := new(big.Int).GCD(nil, nil, new(big.Int).Abs(a.Num()), new(big.Int).Abs(b.Num()))
	g := new(big.Int).GCD(nil, nil, a.Denom(), b.Denom())
	den := new(big.Int).Div(new(big.Int).Mul(a.Denom(), b.Denom()), g)
	return new(big.Rat).SetFrac(num, den)
}

// GCD computes the polynomial greatest common divisor by content extraction
// and a primitive Euclidean remainder sequence on the principal variable,
// recursing into the coefficient domain. The result is sign-normalized to a
// positive leading coefficient.
func (p *Poly) GCD(q *Poly) *Poly {
	g, err := p.gcdCtx(context.Background(), q)
	if err != nil {
		// Background context never expires.
		panic(err)
	}
	return g
}

func (p *Poly) gcdCtx(ctx context.Context, q *Poly) (*Poly, error) {
	p.checkArity(q)
	switch {
	case p.IsZero():
		return q.absNormalize(), nil
	case q.IsZero():
		return p.absNormalize(), nil
	}
	if p.arity == 0 {
		return PolyConst(0, ratGCD(p.ConstantValue(), q.ConstantValue()), p.order), nil
	}
	cg := ratGCD(p.content(), q.content())
	pg, err := primGCD(ctx, p.primitive(), q.primitive())
	if err != nil {
		return nil, err
	}
	return pg.MulRat(cg).absNormalize(), nil
}

func (p *Poly) absNormalize() *Poly {
	if !p.IsZero() && p.LeadingCoefficient().Sign() < 0 {
		return p.Neg()
	}
	return p
}

// primGCD handles rational-content-free operands. When neither involves the
// principal variable the problem drops to arity-1; otherwise a primitive
// remainder sequence runs in the principal variable, with the polynomial
// content of the coefficients split off and handled recursively.
func primGCD(ctx context.Context, u, v *Poly) (*Poly, error) {
	if u.arity == 0 {
		return PolyConst(0, big.NewRat(1, 1), u.order), nil
	}
	if u.Degree(0) == 0 && v.Degree(0) == 0 {
		g, err := dropMainVar(u).gcdCtx(ctx, dropMainVar(v))
		if err != nil {
			return nil, err
		}
		return liftMainVar(g), nil
	}
	cu, pu, err := mainSplit(ctx, u)
	if err != nil {
		return nil, err
	}
	cv, pv, err := mainSplit(ctx, v)
	if err != nil {
		return nil, err
	}
	cg, err := cu.gcdCtx(ctx, cv)
	if err != nil {
		return nil, err
	}
	if pu.Degree(0) < pv.Degree(0) {
		pu, pv = pv, pu
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: polynomial gcd interrupted", ErrTimeout)
		}
		if pv.IsZero() {
			return cg.Mul(pu).absNormalize(), nil
		}
		if pv.Degree(0) == 0 {
			// Main-primitive parts share no principal-variable factor;
			// only the coefficient content survives.
			return cg, nil
		}
		r, err := pseudoRemainder(ctx, pu, pv)
		if err != nil {
			return nil, err
		}
		if r.IsZero() {
			pu, pv = pv, r
			continue
		}
		_, rp, err := mainSplit(ctx, r.primitive())
		if err != nil {
			return nil, err
		}
		pu, pv = pv, rp
	}
}

// mainSplit factors p into its principal-variable content and the
// main-primitive cofactor.
func mainSplit(ctx context.Context, p *Poly) (content, prim *Poly, err error) {
	c, err := mainContent(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	pr, err := p.evenlyDivideCtx(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return c, pr, nil
}

// mainCoefficient extracts the coefficient of x_0^d as a polynomial with
// zero principal-variable degree.
func (p *Poly) mainCoefficient(d int) *Poly {
	var out []Term
	for _, t := range p.terms {
		if t.Exps[0] == d {
			e := t.Exps.clone()
			e[0] = 0
			out = append(out, Term{Exps: e, Coeff: t.Coeff})
		}
	}
	return NewPoly(p.arity, p.order, out...)
}

// mainContent is the gcd of all principal-variable coefficients.
func mainContent(ctx context.Context, p *Poly) (*Poly, error) {
	acc := NewPoly(p.arity, p.order)
	for d := 0; d <= p.Degree(0); d++ {
		c := p.mainCoefficient(d)
		if c.IsZero() {
			continue
		}
		var err error
		acc, err = acc.gcdCtx(ctx, c)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// pseudoRemainder reduces u by v in the principal variable without
// coefficient division: each round replaces u with lc(v)*u - lc(u)*x^k*v.
func pseudoRemainder(ctx context.Context, u, v *Poly) (*Poly, error) {
	dv := v.Degree(0)
	lcv := v.mainCoefficient(dv)
	r := u
	for !r.IsZero() && r.Degree(0) >= dv {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: pseudo-division interrupted", ErrTimeout)
		}
		dr := r.Degree(0)
		lcr := r.mainCoefficient(dr)
		shift := PolyVar(u.arity, 0, u.order).Pow(uint(dr - dv))
		r = lcv.Mul(r).Sub(lcr.Mul(shift).Mul(v))
	}
	return r, nil
}

// dropMainVar removes the (degree-zero) principal variable.
func dropMainVar(p *Poly) *Poly {
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{Exps: t.Exps[1:].clone(), Coeff: t.Coeff}
	}
	return NewPoly(p.arity-1, p.order, out...)
}

// liftMainVar prepends a zero-degree principal variable.
func liftMainVar(p *Poly) *Poly {
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		e := make(Exponents, p.arity+1)
		copy(e[1:], t.Exps)
		out[i] = Term{Exps: e, Coeff: t.Coeff}
	}
	return NewPoly(p.arity+1, p.order, out...)
}

// ============================================================
// Evaluation, derivatives and substitutions
// ============================================================

// Eval evaluates p at a point, one coordinate per variable.
func (p *Poly) Eval(point []*big.Rat) (*big.Rat, error) {
	if len(point) != p.arity {
		return nil, fmt.Errorf("%w: evaluation point arity %d for polynomial of arity %d", ErrIllegalState, len(point), p.arity)
	}
	acc := new(big.Rat)
	for _, t := range p.terms {
		v := new(big.Rat).Set(t.Coeff)
		for i, e := range t.Exps {
			v.Mul(v, ratPowInt(point[i], int64(e)))
		}
		acc.Add(acc, v)
	}
	return acc, nil
}

// Partial is the partial derivative with respect to variable v.
func (p *Poly) Partial(v int) *Poly {
	var out []Term
	for _, t := range p.terms {
		if t.Exps[v] == 0 {
			continue
		}
		e := t.Exps.clone()
		e[v]--
		out = append(out, Term{
			Exps:  e,
			Coeff: new(big.Rat).Mul(t.Coeff, new(big.Rat).SetInt64(int64(t.Exps[v]))),
		})
	}
	return NewPoly(p.arity, p.order, out...)
}

// ArgScale substitutes x_v -> c*x_v.
func (p *Poly) ArgScale(v int, c *big.Rat) *Poly {
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		out[i] = Term{
			Exps:  t.Exps,
			Coeff: new(big.Rat).Mul(t.Coeff, ratPowInt(c, int64(t.Exps[v]))),
		}
	}
	return NewPoly(p.arity, p.order, out...)
}

// ArgShift substitutes x_v -> x_v + c by binomial expansion.
func (p *Poly) ArgShift(v int, c *big.Rat) *Poly {
	var out []Term
	for _, t := range p.terms {
		n := t.Exps[v]
		binom := big.NewInt(1)
		for k := 0; k <= n; k++ {
			e := t.Exps.clone()
			e[v] = k
			coeff := new(big.Rat).Mul(t.Coeff, new(big.Rat).SetInt(binom))
			coeff.Mul(coeff, ratPowInt(c, int64(n-k)))
			out = append(out, Term{Exps: e, Coeff: coeff})
			// next binomial coefficient C(n, k+1)
			binom = new(big.Int).Div(new(big.Int).Mul(binom, big.NewInt(int64(n-k))), big.NewInt(int64(k+1)))
		}
	}
	return NewPoly(p.arity, p.order, out...)
}

// ExtendArity embeds p into a polynomial ring with more variables; the new
// variables are appended after the existing ones.
func (p *Poly) ExtendArity(arity int) *Poly {
	if arity < p.arity {
		panic(fmt.Errorf("%w: cannot shrink arity %d to %d", ErrIllegalState, p.arity, arity))
	}
	if arity == p.arity {
		return p
	}
	out := make([]Term, len(p.terms))
	for i, t := range p.terms {
		e := make(Exponents, arity)
		copy(e, t.Exps)
		out[i] = Term{Exps: e, Coeff: t.Coeff}
	}
	return NewPoly(arity, p.order, out...)
}
