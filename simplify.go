package symkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// The simplification orchestrator. One Simplifier owns the rule pipelines,
// a result cache and a deadline; concurrent callers simplifying the same
// expression share a single in-flight computation. When the deadline
// expires mid-run the input comes back unchanged, with a warning on the
// logger: a half-rewritten expression is worse than the original.

const (
	defaultDeadline   = 5 * time.Second
	maxSimplifyRounds = 20
)

type Simplifier struct {
	deadline time.Duration
	logger   *slog.Logger
	tags     *TagAllocator

	cache sync.Map // String() -> Expr
	group singleflight.Group
}

// Option configures a Simplifier.
type Option func(*Simplifier)

// WithDeadline bounds each top-level Simplify call; zero means no bound.
func WithDeadline(d time.Duration) Option {
	return func(s *Simplifier) { s.deadline = d }
}

// WithLogger sets the logger for timeout warnings; nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Simplifier) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTags sets the tag allocator used by the simplifier's Diff.
func WithTags(a *TagAllocator) Option {
	return func(s *Simplifier) {
		if a != nil {
			s.tags = a
		}
	}
}

func NewSimplifier(opts ...Option) *Simplifier {
	s := &Simplifier{
		deadline: defaultDeadline,
		logger:   slog.Default(),
		tags:     defaultTags,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hermetic returns a simplifier with the same configuration but a private
// tag allocator and an empty cache, sharing no state with the receiver.
func (s *Simplifier) Hermetic() *Simplifier {
	return &Simplifier{deadline: s.deadline, logger: s.logger, tags: &TagAllocator{}}
}

var defaultSimplifier = sync.OnceValue(func() *Simplifier { return NewSimplifier() })

// Simplify runs the default simplifier.
func Simplify(e Expr) Expr { return defaultSimplifier().Simplify(e) }

// Simplify rewrites e to its simplified form. Results are cached by printed
// form; concurrent calls on the same expression coalesce. On deadline
// expiry the input is returned unchanged.
func (s *Simplifier) Simplify(e Expr) Expr {
	key := e.String()
	if v, ok := s.cache.Load(key); ok {
		return v.(Expr)
	}
	out, _, _ := s.group.Do(key, func() (interface{}, error) {
		return s.run(e), nil
	})
	res := out.(Expr)
	s.cache.Store(key, res)
	return res
}

// Diff differentiates with respect to the named symbol and simplifies the
// result, using the simplifier's own tag allocator.
func (s *Simplifier) Diff(e Expr, name string) Expr {
	d := s.tags.DiffF(func(x Expr) Expr { return Subst(e, name, x) })(S(name))
	return s.Simplify(d)
}

func (s *Simplifier) run(e Expr) Expr {
	ctx := context.Background()
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}
	out, err := s.runCtx(ctx, e)
	if err != nil {
		s.logger.Warn("simplification interrupted, returning input unchanged",
			"expr", e.String(), "err", err)
		return e
	}
	return out
}

// runCtx is one full simplification: repeated rounds of canonical
// rational-function reduction and operator-gated rule passes, until a round
// changes nothing. The rule guards share the round's context, so a deadline
// cuts through the zero oracle too.
func (s *Simplifier) runCtx(ctx context.Context, e Expr) (Expr, error) {
	zero := func(x Expr) bool { return simplifiesToZeroCtx(ctx, x) }
	same := func(a, b Expr) bool { return zero(SubOf(a, b)) }

	base := NewRuleSimplifier(CanonicalOrderRules(), ExponentContractRules(), PartialRules())
	trig := NewRuleSimplifier(SinSqRules(), SinCosFlushRules(zero), TrigInverseRules())
	logexp := NewRuleSimplifier(LogExpRules())
	sqrtExpand := NewRuleSimplifier(SqrtExpandRules())
	sqrtContract := NewRuleSimplifier(SqrtContractRules(same))

	cur := e
	for round := 0; round < maxSimplifyRounds; round++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: simplification interrupted", ErrTimeout)
		}
		next, err := s.oneRound(ctx, cur, base, trig, logexp, sqrtExpand, sqrtContract)
		if err != nil {
			return nil, err
		}
		if next.Equal(cur) {
			return next, nil
		}
		// A round that produced an equivalent rational function has
		// converged semantically even if the printed form moved; further
		// rounds would only shuttle between the equivalent forms.
		if zero(SubOf(next, cur)) {
			return next, nil
		}
		cur = next
	}
	return cur, nil
}

func (s *Simplifier) oneRound(ctx context.Context, e Expr, base, trig, logexp, sqrtExpand, sqrtContract func(Expr) Expr) (Expr, error) {
	next := e
	if c, err := NewAnalyzer(nil, next).canonicalCtx(ctx, next); err == nil {
		next = c
	} else if errors.Is(err, ErrTimeout) {
		return nil, err
	}
	// Division by zero or an unconvertible shape leaves the tree to the
	// rules alone.
	next = base(next)
	if ContainsOp(next, "sin") || ContainsOp(next, "cos") || ContainsOp(next, "tan") {
		next = trig(next)
	}
	if ContainsOp(next, "log") || ContainsOp(next, "exp") {
		next = logexp(next)
	}
	if ContainsOp(next, opSqrt) {
		next = sqrtContract(sqrtExpand(next))
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: simplification interrupted", ErrTimeout)
	}
	return next, nil
}
