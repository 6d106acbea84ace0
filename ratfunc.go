package symkit

import (
	"context"
	"fmt"
	"math/big"
)

// Rational functions in canonical form: a reduced numerator/denominator
// pair. The denominator is never zero, shares no factor with the numerator,
// and carries a positive leading coefficient. Values that reduce further
// degrade: a unit denominator yields a bare polynomial, constants yield a
// bare *big.Rat.

// Value is the coefficient domain the rational-function layer works over:
// *big.Rat, *Poly or *RatFunc.
type Value interface{}

type RatFunc struct {
	num, den *Poly
}

func (r *RatFunc) Num() *Poly { return r.num }
func (r *RatFunc) Den() *Poly { return r.den }
func (r *RatFunc) Arity() int { return r.num.arity }

func (r *RatFunc) String() string {
	return "(" + r.num.String() + ") / (" + r.den.String() + ")"
}

// ValueEqual compares two values in the same canonical domain.
func ValueEqual(a, b Value) bool {
	switch x := a.(type) {
	case *big.Rat:
		y, ok := b.(*big.Rat)
		return ok && x.Cmp(y) == 0
	case *Poly:
		y, ok := b.(*Poly)
		return ok && x.Equal(y)
	case *RatFunc:
		y, ok := b.(*RatFunc)
		return ok && x.num.Equal(y.num) && x.den.Equal(y.den)
	}
	return false
}

func valueIsZero(v Value) bool {
	switch x := v.(type) {
	case *big.Rat:
		return x.Sign() == 0
	case *Poly:
		return x.IsZero()
	}
	return false
}

// ============================================================
// Construction
// ============================================================

// MakeRatFunc builds the canonical quotient u/v. Scalar operands divide
// directly; otherwise fractional coefficients are cleared, the pair is
// reduced by its GCD and the result degrades to a polynomial or scalar
// when the denominator becomes the unit. A zero denominator is an
// ErrArithmetic.
func MakeRatFunc(u, v Value) (Value, error) {
	return makeRatFuncCtx(context.Background(), u, v)
}

func makeRatFuncCtx(ctx context.Context, u, v Value) (Value, error) {
	if ur, ok := u.(*big.Rat); ok {
		if vr, ok2 := v.(*big.Rat); ok2 {
			if vr.Sign() == 0 {
				return nil, fmt.Errorf("%w: zero denominator", ErrArithmetic)
			}
			return new(big.Rat).Quo(ur, vr), nil
		}
	}
	// u/v = (n1*d2)/(d1*n2)
	n1, d1, n2, d2, err := alignedPairs(u, v)
	if err != nil {
		return nil, err
	}
	return reducePair(ctx, n1.Mul(d2), d1.Mul(n2))
}

// reducePair clears fractional coefficients, divides out the gcd and
// normalizes sign, then degrades.
func reducePair(ctx context.Context, n, d *Poly) (Value, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: zero denominator", ErrArithmetic)
	}
	if n.IsZero() {
		return new(big.Rat), nil
	}
	// Clear coefficient denominators with one common factor so the ratio
	// is unchanged and both sides have integer coefficients.
	l := new(big.Int).Mul(coeffDenomLCM(n), coeffDenomLCM(d))
	scale := new(big.Rat).SetInt(l)
	n, d = n.MulRat(scale), d.MulRat(scale)
	g, err := n.gcdCtx(ctx, d)
	if err != nil {
		return nil, err
	}
	n, err = n.evenlyDivideCtx(ctx, g)
	if err != nil {
		return nil, err
	}
	d, err = d.evenlyDivideCtx(ctx, g)
	if err != nil {
		return nil, err
	}
	return assembleReduced(n, d)
}

// assembleReduced wraps an already-coprime pair: sign moves to the
// numerator, unit denominators degrade.
func assembleReduced(n, d *Poly) (Value, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: zero denominator", ErrArithmetic)
	}
	if n.IsZero() {
		return new(big.Rat), nil
	}
	if d.LeadingCoefficient().Sign() < 0 {
		n, d = n.Neg(), d.Neg()
	}
	if d.IsConstant() {
		n = n.MulRat(new(big.Rat).Inv(d.ConstantValue()))
		if n.IsConstant() {
			return n.ConstantValue(), nil
		}
		return n, nil
	}
	return &RatFunc{num: n, den: d}, nil
}

func coeffDenomLCM(p *Poly) *big.Int {
	l := big.NewInt(1)
	for _, t := range p.terms {
		g := new(big.Int).GCD(nil, nil, l, t.Coeff.Denom())
		l.Div(new(big.Int).Mul(l, t.Coeff.Denom()), g)
	}
	return l
}

// ============================================================
// Numerator/denominator views and arity alignment
// ============================================================

// valueNumDen views any value as a numerator/denominator polynomial pair.
func valueNumDen(v Value) (n, d *Poly, err error) {
	switch x := v.(type) {
	case *big.Rat:
		return PolyConst(0, x, nil), PolyConst(0, big.NewRat(1, 1), nil), nil
	case *Poly:
		return x, PolyConst(x.arity, big.NewRat(1, 1), x.order), nil
	case *RatFunc:
		return x.num, x.den, nil
	}
	return nil, nil, fmt.Errorf("%w: not a rational-function value: %T", ErrIllegalState, v)
}

// alignPair brings two polynomials to a common arity. Scalars (arity 0)
// lift freely; two genuine polynomials of different arity are an error.
func alignPair(a, b *Poly) (*Poly, *Poly, error) {
	switch {
	case a.arity == b.arity:
		return a, b, nil
	case a.arity == 0:
		return PolyConst(b.arity, a.ConstantValue(), b.order), b, nil
	case b.arity == 0:
		return a, PolyConst(a.arity, b.ConstantValue(), a.order), nil
	}
	return nil, nil, fmt.Errorf("%w: polynomial arity mismatch %d vs %d", ErrIllegalState, a.arity, b.arity)
}

// ============================================================
// Arithmetic (Knuth vol.2 §4.5.1)
// ============================================================

// RFAdd adds two values in canonical form.
func RFAdd(a, b Value) (Value, error) { return rfAddCtx(context.Background(), a, b) }

func rfAddCtx(ctx context.Context, a, b Value) (Value, error) {
	if ar, ok := a.(*big.Rat); ok {
		if br, ok2 := b.(*big.Rat); ok2 {
			return new(big.Rat).Add(ar, br), nil
		}
	}
	n1, d1, n2, d2, err := alignedPairs(a, b)
	if err != nil {
		return nil, err
	}
	if d1.Equal(d2) {
		// Shared denominator: add numerators and make one gcd pass
		// against it.
		t := n1.Add(n2)
		g, err := t.gcdCtx(ctx, d1)
		if err != nil {
			return nil, err
		}
		tn, err := t.evenlyDivideCtx(ctx, g)
		if err != nil {
			return nil, err
		}
		td, err := d1.evenlyDivideCtx(ctx, g)
		if err != nil {
			return nil, err
		}
		return assembleReduced(tn, td)
	}
	g1, err := d1.gcdCtx(ctx, d2)
	if err != nil {
		return nil, err
	}
	if g1.IsConstant() {
		return assembleReduced(n1.Mul(d2).Add(n2.Mul(d1)), d1.Mul(d2))
	}
	// Cross-multiply with g1-reduced cofactors, then a second gcd pass of
	// the new numerator against g1 only; the full denominator product is
	// never re-analyzed.
	c2, err := d2.evenlyDivideCtx(ctx, g1)
	if err != nil {
		return nil, err
	}
	c1, err := d1.evenlyDivideCtx(ctx, g1)
	if err != nil {
		return nil, err
	}
	t := n1.Mul(c2).Add(n2.Mul(c1))
	g2, err := t.gcdCtx(ctx, g1)
	if err != nil {
		return nil, err
	}
	tn, err := t.evenlyDivideCtx(ctx, g2)
	if err != nil {
		return nil, err
	}
	dg, err := d2.evenlyDivideCtx(ctx, g2)
	if err != nil {
		return nil, err
	}
	return assembleReduced(tn, c1.Mul(dg))
}

// RFSub subtracts in canonical form.
func RFSub(a, b Value) (Value, error) {
	nb, err := RFNeg(b)
	if err != nil {
		return nil, err
	}
	return RFAdd(a, nb)
}

// RFNeg negates.
func RFNeg(v Value) (Value, error) {
	switch x := v.(type) {
	case *big.Rat:
		return new(big.Rat).Neg(x), nil
	case *Poly:
		return x.Neg(), nil
	case *RatFunc:
		return &RatFunc{num: x.num.Neg(), den: x.den}, nil
	}
	return nil, fmt.Errorf("%w: not a rational-function value: %T", ErrIllegalState, v)
}

// RFMul multiplies with symmetric two-sided cross-cancellation before the
// products are formed, keeping intermediates small.
func RFMul(a, b Value) (Value, error) { return rfMulCtx(context.Background(), a, b) }

func rfMulCtx(ctx context.Context, a, b Value) (Value, error) {
	if ar, ok := a.(*big.Rat); ok {
		if br, ok2 := b.(*big.Rat); ok2 {
			return new(big.Rat).Mul(ar, br), nil
		}
	}
	n1, d1, n2, d2, err := alignedPairs(a, b)
	if err != nil {
		return nil, err
	}
	g1, err := n1.gcdCtx(ctx, d2)
	if err != nil {
		return nil, err
	}
	g2, err := n2.gcdCtx(ctx, d1)
	if err != nil {
		return nil, err
	}
	n1r, err := n1.evenlyDivideCtx(ctx, g1)
	if err != nil {
		return nil, err
	}
	d2r, err := d2.evenlyDivideCtx(ctx, g1)
	if err != nil {
		return nil, err
	}
	n2r, err := n2.evenlyDivideCtx(ctx, g2)
	if err != nil {
		return nil, err
	}
	d1r, err := d1.evenlyDivideCtx(ctx, g2)
	if err != nil {
		return nil, err
	}
	return assembleReduced(n1r.Mul(n2r), d1r.Mul(d2r))
}

// RFDiv multiplies by the inverse; a zero divisor is an ErrArithmetic.
func RFDiv(a, b Value) (Value, error) { return rfDivCtx(context.Background(), a, b) }

func rfDivCtx(ctx context.Context, a, b Value) (Value, error) {
	if valueIsZero(b) {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	n2, d2, err := valueNumDen(b)
	if err != nil {
		return nil, err
	}
	inv, err := assembleReduced(d2, n2)
	if err != nil {
		return nil, err
	}
	return rfMulCtx(ctx, a, inv)
}

func alignedPairs(a, b Value) (n1, d1, n2, d2 *Poly, err error) {
	n1, d1, err = valueNumDen(a)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	n2, d2, err = valueNumDen(b)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	n1, n2, err = alignPair(n1, n2)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	d1, d2, err = alignPair(d1, d2)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	n1, d1, err = alignPair(n1, d1)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	n2, d2, err = alignPair(n2, d2)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return n1, d1, n2, d2, nil
}

// ============================================================
// Composition
// ============================================================

// RFCompose substitutes s into the principal variable of r, scaling by the
// denominator degree so the substitution itself stays a proper rational
// function.
func RFCompose(r, s Value) (Value, error) {
	ctx := context.Background()
	rn, rd, err := valueNumDen(r)
	if err != nil {
		return nil, err
	}
	sn, sd, err := valueNumDen(s)
	if err != nil {
		return nil, err
	}
	rn, rd, err = alignPair(rn, rd)
	if err != nil {
		return nil, err
	}
	if rn.arity == 0 {
		return reducePair(ctx, rn, rd)
	}
	sn, err = liftTo(sn, rn.arity)
	if err != nil {
		return nil, err
	}
	sd, err = liftTo(sd, rn.arity)
	if err != nil {
		return nil, err
	}
	m := rn.Degree(0)
	if d := rd.Degree(0); d > m {
		m = d
	}
	num := composeMain(rn, sn, sd, m)
	den := composeMain(rd, sn, sd, m)
	return reducePair(ctx, num, den)
}

func liftTo(p *Poly, arity int) (*Poly, error) {
	if p.arity == arity {
		return p, nil
	}
	if p.arity == 0 {
		return PolyConst(arity, p.ConstantValue(), nil), nil
	}
	return nil, fmt.Errorf("%w: polynomial arity mismatch %d vs %d", ErrIllegalState, p.arity, arity)
}

// composeMain evaluates p with x_0 -> sn/sd, cleared by sd^m.
func composeMain(p *Poly, sn, sd *Poly, m int) *Poly {
	out := NewPoly(p.arity, p.order)
	for d := 0; d <= p.Degree(0); d++ {
		c := p.mainCoefficient(d)
		if c.IsZero() {
			continue
		}
		out = out.Add(c.Mul(sn.Pow(uint(d))).Mul(sd.Pow(uint(m - d))))
	}
	return out
}
