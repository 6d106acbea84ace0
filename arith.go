package symkit

import (
	"fmt"
	"math"
	"math/big"
)

// Generic operator application. Every transcendental operator is described
// once: how it folds on exact numbers and what its derivative is. The same
// table serves plain symbolic construction, numeric evaluation and the
// forward-mode chain rule, so differentials thread through any composition
// of these operators unchanged.

type unaryOp struct {
	// fold returns an exact result for special rational arguments
	// (sin 0 = 0, sqrt of a perfect square, ...). No float rounding here:
	// tolerance-free simplification is a hard requirement.
	fold func(*big.Rat) (Expr, bool)
	// deriv is the registered derivative, evaluated at the primal.
	deriv func(Expr) Expr
	// eval is the float64 interpretation used by EvalFloat.
	eval func(float64) float64
}

var unaryOps map[string]unaryOp

// The derivative closures call the operator constructors, which dispatch
// back through this table; filling it in init keeps the initializer
// acyclic.
func init() {
	unaryOps = map[string]unaryOp{
		"sin": {
			fold:  foldAtZero(N(0)),
			deriv: func(x Expr) Expr { return CosOf(x) },
			eval:  math.Sin,
		},
		"cos": {
			fold:  foldAtZero(N(1)),
			deriv: func(x Expr) Expr { return NegOf(SinOf(x)) },
			eval:  math.Cos,
		},
		"tan": {
			fold:  foldAtZero(N(0)),
			deriv: func(x Expr) Expr { return AddOf(N(1), PowOf(TanOf(x), N(2))) },
			eval:  math.Tan,
		},
		"exp": {
			fold:  foldAtZero(N(1)),
			deriv: func(x Expr) Expr { return ExpOf(x) },
			eval:  math.Exp,
		},
		"log": {
			fold: func(r *big.Rat) (Expr, bool) {
				if r.Cmp(ratOne) == 0 {
					return N(0), true
				}
				return nil, false
			},
			deriv: func(x Expr) Expr { return PowOf(x, N(-1)) },
			eval:  math.Log,
		},
		opSqrt: {
			fold:  foldExactSqrt,
			deriv: func(x Expr) Expr { return DivOf(N(1), MulOf(N(2), SqrtOf(x))) },
			eval:  math.Sqrt,
		},
		"asin": {
			fold:  foldAtZero(N(0)),
			deriv: func(x Expr) Expr { return DivOf(N(1), SqrtOf(SubOf(N(1), PowOf(x, N(2))))) },
			eval:  math.Asin,
		},
		"acos": {
			deriv: func(x Expr) Expr { return NegOf(DivOf(N(1), SqrtOf(SubOf(N(1), PowOf(x, N(2)))))) },
			eval:  math.Acos,
		},
		"atan": {
			fold:  foldAtZero(N(0)),
			deriv: func(x Expr) Expr { return DivOf(N(1), AddOf(N(1), PowOf(x, N(2)))) },
			eval:  math.Atan,
		},
		"sinh": {
			fold:  foldAtZero(N(0)),
			deriv: func(x Expr) Expr { return CoshOf(x) },
			eval:  math.Sinh,
		},
		"cosh": {
			fold:  foldAtZero(N(1)),
			deriv: func(x Expr) Expr { return SinhOf(x) },
			eval:  math.Cosh,
		},
		"tanh": {
			fold:  foldAtZero(N(0)),
			deriv: func(x Expr) Expr { return SubOf(N(1), PowOf(TanhOf(x), N(2))) },
			eval:  math.Tanh,
		},
		"abs": {
			fold: func(r *big.Rat) (Expr, bool) {
				return RatOf(new(big.Rat).Abs(r)), true
			},
			deriv: func(x Expr) Expr { return SignOf(x) },
			eval:  math.Abs,
		},
		"sign": {
			fold: func(r *big.Rat) (Expr, bool) {
				return N(int64(r.Sign())), true
			},
			deriv: func(x Expr) Expr { return N(0) },
			eval: func(f float64) float64 {
				switch {
				case f > 0:
					return 1
				case f < 0:
					return -1
				}
				return 0
			},
		},
	}
}

func foldAtZero(result Expr) func(*big.Rat) (Expr, bool) {
	return func(r *big.Rat) (Expr, bool) {
		if r.Sign() == 0 {
			return result, true
		}
		return nil, false
	}
}

// foldExactSqrt folds sqrt of a rational whose numerator and denominator are
// both perfect squares; anything else stays symbolic.
func foldExactSqrt(r *big.Rat) (Expr, bool) {
	if r.Sign() < 0 {
		return nil, false
	}
	num, den := r.Num(), r.Denom()
	sn := new(big.Int).Sqrt(num)
	sd := new(big.Int).Sqrt(den)
	if new(big.Int).Mul(sn, sn).Cmp(num) != 0 || new(big.Int).Mul(sd, sd).Cmp(den) != 0 {
		return nil, false
	}
	return RatOf(new(big.Rat).SetFrac(sn, sd)), true
}

// Apply applies an operator generically. Numbers fold exactly where an exact
// result exists, differentials go through the chain rule, and everything
// else stays a symbolic application. The only failing combination in the
// unary table is the derivative of abs at a primal of exactly zero.
func Apply(op string, args ...Expr) (Expr, error) {
	switch len(args) {
	case 1:
		return applyUnary(op, args[0])
	case 2:
		return applyBinary(op, args[0], args[1])
	}
	return &Ap{op: op, args: args}, nil
}

func mustApply(op string, args ...Expr) Expr {
	out, err := Apply(op, args...)
	if err != nil {
		panic(err)
	}
	return out
}

func applyUnary(op string, arg Expr) (Expr, error) {
	spec, known := unaryOps[op]
	if d, ok := arg.(*Differential); ok {
		if !known {
			return nil, fmt.Errorf("%w: no derivative registered for operator %q", ErrIllegalState, op)
		}
		tag := d.maxTag()
		primal, delta := d.splitByTag(tag)
		if op == "abs" {
			if n, ok2 := primal.(*Num); ok2 && n.IsZero() {
				return nil, fmt.Errorf("%w: derivative of abs at zero", ErrIllegalState)
			}
		}
		fp, err := applyUnary(op, primal)
		if err != nil {
			return nil, err
		}
		return dAdd(fp, dMul(spec.deriv(primal), delta)), nil
	}
	if n, ok := arg.(*Num); ok && known && spec.fold != nil {
		if out, folded := spec.fold(n.val); folded {
			return out, nil
		}
	}
	// Inverse-pair folds, the one shallow rewrite kept in the constructor
	// layer (the rest belongs to the rule library).
	if inner, ok := arg.(*Ap); ok && len(inner.args) == 1 {
		if (op == "log" && inner.op == "exp") || (op == "exp" && inner.op == "log") {
			return inner.args[0], nil
		}
	}
	return &Ap{op: op, args: []Expr{arg}}, nil
}

func applyBinary(op string, a, b Expr) (Expr, error) {
	if !anyDifferential([]Expr{a, b}) {
		switch op {
		case opExpt:
			return PowOf(a, b), nil
		case opDiv:
			return DivOf(a, b), nil
		case opAdd:
			return AddOf(a, b), nil
		case opMul:
			return MulOf(a, b), nil
		}
		return &Ap{op: op, args: []Expr{a, b}}, nil
	}
	switch op {
	case opAdd:
		return dAdd(a, b), nil
	case opMul:
		return dMul(a, b), nil
	case opDiv:
		inv, err := applyBinary(opExpt, b, N(-1))
		if err != nil {
			return nil, err
		}
		return dMul(a, inv), nil
	case opExpt:
		return dExpt(a, b)
	case "atan2":
		return dAtan2(a, b)
	}
	return nil, fmt.Errorf("%w: no derivative registered for operator %q", ErrIllegalState, op)
}

// dExpt differentiates u^v by splitting both operands against the freshest
// tag present: u^v -> up^vp + vp*up^(vp-1)*du + up^vp*log(up)*dv. The log
// factor only materializes when the exponent actually carries the tag.
func dExpt(u, v Expr) (Expr, error) {
	tag := maxTagOf(u, v)
	up, du := splitAnyByTag(u, tag)
	vp, dv := splitAnyByTag(v, tag)
	base, err := applyBinary(opExpt, up, vp)
	if err != nil {
		return nil, err
	}
	out := base
	if !isNumZero(du) {
		d1 := MulOf(vp, PowOf(up, SubOf(vp, N(1))))
		out = dAdd(out, dMul(d1, du))
	}
	if !isNumZero(dv) {
		d2 := MulOf(PowOf(up, vp), LogOf(up))
		out = dAdd(out, dMul(d2, dv))
	}
	return out, nil
}

func dAtan2(y, x Expr) (Expr, error) {
	tag := maxTagOf(y, x)
	yp, dy := splitAnyByTag(y, tag)
	xp, dx := splitAnyByTag(x, tag)
	base, err := applyBinary("atan2", yp, xp)
	if err != nil {
		return nil, err
	}
	den := AddOf(PowOf(xp, N(2)), PowOf(yp, N(2)))
	out := base
	if !isNumZero(dy) {
		out = dAdd(out, dMul(DivOf(xp, den), dy))
	}
	if !isNumZero(dx) {
		out = dAdd(out, dMul(NegOf(DivOf(yp, den)), dx))
	}
	return out, nil
}

func isNumZero(e Expr) bool {
	n, ok := e.(*Num)
	return ok && n.IsZero()
}

// ============================================================
// Named operator constructors
// ============================================================

func SinOf(x Expr) Expr  { return mustApply("sin", x) }
func CosOf(x Expr) Expr  { return mustApply("cos", x) }
func TanOf(x Expr) Expr  { return mustApply("tan", x) }
func ExpOf(x Expr) Expr  { return mustApply("exp", x) }
func LogOf(x Expr) Expr  { return mustApply("log", x) }
func SqrtOf(x Expr) Expr { return mustApply(opSqrt, x) }
func AsinOf(x Expr) Expr { return mustApply("asin", x) }
func AcosOf(x Expr) Expr { return mustApply("acos", x) }
func AtanOf(x Expr) Expr { return mustApply("atan", x) }
func SinhOf(x Expr) Expr { return mustApply("sinh", x) }
func CoshOf(x Expr) Expr { return mustApply("cosh", x) }
func TanhOf(x Expr) Expr { return mustApply("tanh", x) }

// AbsOf panics when asked to differentiate through a primal of exactly
// zero; use Apply for the checked form.
func AbsOf(x Expr) Expr  { return mustApply("abs", x) }
func SignOf(x Expr) Expr { return mustApply("sign", x) }

func Atan2Of(y, x Expr) Expr { return mustApply("atan2", y, x) }

// ============================================================
// Numeric evaluation
// ============================================================

// EvalFloat evaluates e numerically with the given variable environment.
func EvalFloat(e Expr, env map[string]float64) (float64, error) {
	switch v := e.(type) {
	case *Num:
		f, _ := v.val.Float64()
		return f, nil
	case *Sym:
		if val, ok := env[v.name]; ok {
			return val, nil
		}
		return 0, fmt.Errorf("%w: unbound variable %q", ErrIllegalState, v.name)
	case *Ap:
		args := make([]float64, len(v.args))
		for i, a := range v.args {
			f, err := EvalFloat(a, env)
			if err != nil {
				return 0, err
			}
			args[i] = f
		}
		switch v.op {
		case opAdd:
			acc := 0.0
			for _, f := range args {
				acc += f
			}
			return acc, nil
		case opMul:
			acc := 1.0
			for _, f := range args {
				acc *= f
			}
			return acc, nil
		case opDiv:
			if args[1] == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrArithmetic)
			}
			return args[0] / args[1], nil
		case opExpt:
			return math.Pow(args[0], args[1]), nil
		case "atan2":
			return math.Atan2(args[0], args[1]), nil
		}
		if spec, ok := unaryOps[v.op]; ok && len(args) == 1 && spec.eval != nil {
			return spec.eval(args[0]), nil
		}
		return 0, fmt.Errorf("%w: cannot evaluate operator %q", ErrIllegalState, v.op)
	}
	return 0, fmt.Errorf("%w: cannot evaluate %s numerically", ErrIllegalState, e)
}
