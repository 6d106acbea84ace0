package symkit

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// The bridge between expression trees and canonical values. An Analyzer
// assigns one polynomial variable to every symbol and every non-arithmetic
// kernel (a sine, a square root, an unknown operator application) found in
// its root expressions, then converts arithmetic over those kernels into
// exact polynomial or rational-function form and back. Two expressions that
// agree as rational functions over the same kernel set are equal; that is
// the zero test the rule guards rely on.

type Analyzer struct {
	vars  []Expr
	index map[string]int
	order MonomialOrder
}

// NewAnalyzer scans the root expressions and fixes the variable table:
// symbols first, sorted by name, then kernels sorted by their printed form.
// A nil order means GradedLex.
func NewAnalyzer(order MonomialOrder, roots ...Expr) *Analyzer {
	if order == nil {
		order = GradedLex
	}
	a := &Analyzer{index: map[string]int{}, order: order}
	for _, e := range roots {
		a.scan(e)
	}
	sort.SliceStable(a.vars, func(i, j int) bool {
		_, si := a.vars[i].(*Sym)
		_, sj := a.vars[j].(*Sym)
		if si != sj {
			return si
		}
		return strings.Compare(a.vars[i].String(), a.vars[j].String()) < 0
	})
	for i, v := range a.vars {
		a.index[v.String()] = i
	}
	return a
}

// Variables returns the table in index order.
func (a *Analyzer) Variables() []Expr { return a.vars }

// scan walks the arithmetic skeleton of e. Everything the polynomial layer
// cannot interpret becomes an opaque kernel: a whole subtree mapped to one
// variable, its interior never examined.
func (a *Analyzer) scan(e Expr) {
	switch v := e.(type) {
	case *Num:
	case *Sym:
		a.addVar(v)
	case *Ap:
		switch v.op {
		case opAdd, opMul:
			for _, arg := range v.args {
				a.scan(arg)
			}
		case opDiv:
			if len(v.args) == 2 {
				a.scan(v.args[0])
				a.scan(v.args[1])
				return
			}
			a.addVar(v)
		case opExpt:
			if len(v.args) == 2 && IsIntegerNum(v.args[1]) {
				a.scan(v.args[0])
				return
			}
			a.addVar(v)
		default:
			a.addVar(v)
		}
	default:
		a.addVar(e)
	}
}

func (a *Analyzer) addVar(e Expr) {
	key := e.String()
	if _, ok := a.index[key]; ok {
		return
	}
	a.index[key] = len(a.vars)
	a.vars = append(a.vars, e)
}

// ============================================================
// Expression to value
// ============================================================

// ToValue converts e to its canonical value over the analyzer's variable
// table. Kernels not seen at construction time are an ErrIllegalState.
func (a *Analyzer) ToValue(e Expr) (Value, error) {
	return a.toValueCtx(context.Background(), e)
}

func (a *Analyzer) toValueCtx(ctx context.Context, e Expr) (Value, error) {
	if _, isNum := e.(*Num); !isNum {
		if idx, ok := a.index[e.String()]; ok {
			return PolyVar(len(a.vars), idx, a.order), nil
		}
	}
	switch v := e.(type) {
	case *Num:
		return v.Rat(), nil
	case *Ap:
		switch v.op {
		case opAdd:
			acc := Value(new(big.Rat))
			for _, arg := range v.args {
				av, err := a.toValueCtx(ctx, arg)
				if err != nil {
					return nil, err
				}
				acc, err = rfAddCtx(ctx, acc, av)
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		case opMul:
			acc := Value(big.NewRat(1, 1))
			for _, arg := range v.args {
				av, err := a.toValueCtx(ctx, arg)
				if err != nil {
					return nil, err
				}
				acc, err = rfMulCtx(ctx, acc, av)
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		case opDiv:
			if len(v.args) != 2 {
				break
			}
			num, err := a.toValueCtx(ctx, v.args[0])
			if err != nil {
				return nil, err
			}
			den, err := a.toValueCtx(ctx, v.args[1])
			if err != nil {
				return nil, err
			}
			return rfDivCtx(ctx, num, den)
		case opExpt:
			if len(v.args) != 2 || !IsIntegerNum(v.args[1]) {
				break
			}
			base, err := a.toValueCtx(ctx, v.args[0])
			if err != nil {
				return nil, err
			}
			return valuePowCtx(ctx, base, v.args[1].(*Num).Int64())
		}
	}
	return nil, fmt.Errorf("%w: no canonical form for %s", ErrIllegalState, e)
}

func valuePowCtx(ctx context.Context, v Value, n int64) (Value, error) {
	neg := n < 0
	if neg {
		n = -n
	}
	acc := Value(big.NewRat(1, 1))
	base := v
	var err error
	for ; n > 0; n >>= 1 {
		if n&1 == 1 {
			if acc, err = rfMulCtx(ctx, acc, base); err != nil {
				return nil, err
			}
		}
		if n > 1 {
			if base, err = rfMulCtx(ctx, base, base); err != nil {
				return nil, err
			}
		}
	}
	if neg {
		return rfDivCtx(ctx, big.NewRat(1, 1), acc)
	}
	return acc, nil
}

// ============================================================
// Value to expression
// ============================================================

// FromValue rebuilds the expression form of a canonical value, substituting
// the kernel expressions back for their variables.
func (a *Analyzer) FromValue(v Value) Expr {
	switch x := v.(type) {
	case *big.Rat:
		return RatOf(x)
	case *Poly:
		terms := make([]Expr, 0, len(x.terms))
		for _, t := range x.terms {
			factors := []Expr{RatOf(t.Coeff)}
			for i, e := range t.Exps {
				if e == 0 {
					continue
				}
				factors = append(factors, PowOf(a.vars[i], N(int64(e))))
			}
			terms = append(terms, MulOf(factors...))
		}
		return AddOf(terms...)
	case *RatFunc:
		return DivOf(a.FromValue(x.num), a.FromValue(x.den))
	}
	panic(fmt.Errorf("%w: not a rational-function value: %T", ErrIllegalState, v))
}

// Canonical round-trips e through its rational-function form. Like terms
// collect, common factors between numerator and denominator cancel, and the
// term order becomes the canonical one.
func (a *Analyzer) Canonical(e Expr) (Expr, error) {
	return a.canonicalCtx(context.Background(), e)
}

func (a *Analyzer) canonicalCtx(ctx context.Context, e Expr) (Expr, error) {
	v, err := a.toValueCtx(ctx, e)
	if err != nil {
		return nil, err
	}
	return a.FromValue(v), nil
}

// Canonicalize is Canonical over a fresh single-expression analyzer.
func Canonicalize(e Expr) (Expr, error) {
	return NewAnalyzer(nil, e).Canonical(e)
}

// SimplifiesToZero reports whether e is identically zero as a rational
// function over its kernels. It cannot prove non-zero relations between
// kernels (sin and cos stay independent variables here); a false answer
// means "not certified", not "known non-zero".
func SimplifiesToZero(e Expr) bool {
	return simplifiesToZeroCtx(context.Background(), e)
}

func simplifiesToZeroCtx(ctx context.Context, e Expr) bool {
	a := NewAnalyzer(nil, e)
	v, err := a.toValueCtx(ctx, e)
	return err == nil && valueIsZero(v)
}
