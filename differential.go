package symkit

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"
)

// Forward-mode differentiation. A Differential is a truncated power series
// in nilpotent infinitesimal generators: an ordered list of (tag-set,
// coefficient) terms where each tag identifies one in-flight
// differentiation. Squaring a generator vanishes, so multiplying two terms
// whose tag-sets intersect yields zero.

// Tag identifies one infinitesimal generator.
type Tag = int

// TagAllocator mints process-unique tags. Fresh is safe for concurrent use;
// nested differentiations each mint a new tag before descending, so scopes
// never collide. Tests wanting a clean numbering construct their own
// allocator instead of resetting the shared one.
type TagAllocator struct {
	n atomic.Int64
}

// Fresh returns the next tag, strictly greater than every tag this
// allocator has handed out before.
func (a *TagAllocator) Fresh() Tag { return Tag(a.n.Add(1)) }

var defaultTags = &TagAllocator{}

type dTerm struct {
	tags  []Tag // sorted ascending, no duplicates
	coeff Expr
}

// Differential is an Expr, so bundles flow through the same generic
// arithmetic as every other value.
type Differential struct {
	terms []dTerm // sorted by tag-set, no duplicate tag-sets, no zero coefficients
}

func (d *Differential) kind() int { return kindDiff }

func (d *Differential) String() string {
	var sb strings.Builder
	sb.WriteString("(differential")
	for _, t := range d.terms {
		sb.WriteString(" (d")
		for _, tag := range t.tags {
			fmt.Fprintf(&sb, " %d", tag)
		}
		sb.WriteString(" . ")
		sb.WriteString(t.coeff.String())
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

func (d *Differential) Equal(other Expr) bool {
	o, ok := other.(*Differential)
	if !ok || len(d.terms) != len(o.terms) {
		return false
	}
	for i := range d.terms {
		if !tagsEqual(d.terms[i].tags, o.terms[i].tags) || !d.terms[i].coeff.Equal(o.terms[i].coeff) {
			return false
		}
	}
	return true
}

// tagsetCmp orders tag-sets by length, then lexicographically. The empty
// set (the primal term) sorts first.
func tagsetCmp(a, b []Tag) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func tagsEqual(a, b []Tag) bool { return tagsetCmp(a, b) == 0 }

func tagsIntersect(a, b []Tag) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

func tagsUnion(a, b []Tag) []Tag {
	out := make([]Tag, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// newDifferential enforces the term-list invariants: duplicate tag-sets
// summed, zero coefficients dropped, terms sorted. A term list that
// collapses to a single untagged term degrades to its bare coefficient.
func newDifferential(terms []dTerm) Expr {
	merged := make([]dTerm, 0, len(terms))
	for _, t := range terms {
		found := false
		for i := range merged {
			if tagsEqual(merged[i].tags, t.tags) {
				merged[i].coeff = AddOf(merged[i].coeff, t.coeff)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, dTerm{tags: t.tags, coeff: t.coeff})
		}
	}
	merged = lo.Filter(merged, func(t dTerm, _ int) bool { return !isNumZero(t.coeff) })
	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && tagsetCmp(merged[j-1].tags, merged[j].tags) > 0; j-- {
			merged[j-1], merged[j] = merged[j], merged[j-1]
		}
	}
	switch {
	case len(merged) == 0:
		return N(0)
	case len(merged) == 1 && len(merged[0].tags) == 0:
		return merged[0].coeff
	}
	return &Differential{terms: merged}
}

func anyDifferential(es []Expr) bool {
	return lo.SomeBy(es, func(e Expr) bool {
		_, ok := e.(*Differential)
		return ok
	})
}

// dTermsOf views any expression as a term list; a plain value is a single
// untagged term.
func dTermsOf(e Expr) []dTerm {
	if d, ok := e.(*Differential); ok {
		return d.terms
	}
	if isNumZero(e) {
		return nil
	}
	return []dTerm{{tags: nil, coeff: e}}
}

// dAdd merges two term lists, summing coefficients of identical tag-sets.
func dAdd(a, b Expr) Expr {
	ta, tb := dTermsOf(a), dTermsOf(b)
	out := make([]dTerm, 0, len(ta)+len(tb))
	i, j := 0, 0
	for i < len(ta) && j < len(tb) {
		switch tagsetCmp(ta[i].tags, tb[j].tags) {
		case 0:
			out = append(out, dTerm{tags: ta[i].tags, coeff: AddOf(ta[i].coeff, tb[j].coeff)})
			i++
			j++
		case -1:
			out = append(out, ta[i])
			i++
		default:
			out = append(out, tb[j])
			j++
		}
	}
	out = append(out, ta[i:]...)
	out = append(out, tb[j:]...)
	return newDifferential(out)
}

// dMul is the Cartesian product of both term lists, dropping any pair whose
// tag-sets intersect (an infinitesimal squared vanishes).
func dMul(a, b Expr) Expr {
	ta, tb := dTermsOf(a), dTermsOf(b)
	out := make([]dTerm, 0, len(ta)*len(tb))
	for _, x := range ta {
		for _, y := range tb {
			if tagsIntersect(x.tags, y.tags) {
				continue
			}
			out = append(out, dTerm{tags: tagsUnion(x.tags, y.tags), coeff: MulOf(x.coeff, y.coeff)})
		}
	}
	return newDifferential(out)
}

func dAddAll(terms []Expr) Expr {
	acc := Expr(N(0))
	for _, t := range terms {
		acc = dAdd(acc, t)
	}
	return acc
}

func dMulAll(factors []Expr) Expr {
	acc := Expr(N(1))
	for _, f := range factors {
		acc = dMul(acc, f)
	}
	return acc
}

// ============================================================
// Bundles and extraction
// ============================================================

// Bundle pairs a primal value with a tangent under the given tag:
// primal + tangent*d(tag).
func Bundle(primal, tangent Expr, tag Tag) Expr {
	return dAdd(primal, newDifferential([]dTerm{{tags: []Tag{tag}, coeff: tangent}}))
}

// ExtractTangent returns the sub-sum of terms carrying tag, each with the
// tag removed. A value with no differential part has tangent zero.
func ExtractTangent(e Expr, tag Tag) Expr {
	d, ok := e.(*Differential)
	if !ok {
		return N(0)
	}
	var out []dTerm
	for _, t := range d.terms {
		if !lo.Contains(t.tags, tag) {
			continue
		}
		rest := lo.Without(t.tags, tag)
		out = append(out, dTerm{tags: rest, coeff: t.coeff})
	}
	return newDifferential(out)
}

// PrimalTangent splits e into the part free of tag and the extracted
// tangent at tag.
func PrimalTangent(e Expr, tag Tag) (primal, tangent Expr) {
	d, ok := e.(*Differential)
	if !ok {
		return e, N(0)
	}
	p, _ := d.splitByTag(tag)
	return p, ExtractTangent(e, tag)
}

func (d *Differential) maxTag() Tag {
	max := 0
	for _, t := range d.terms {
		for _, tag := range t.tags {
			if tag > max {
				max = tag
			}
		}
	}
	return max
}

func maxTagOf(es ...Expr) Tag {
	max := 0
	for _, e := range es {
		if d, ok := e.(*Differential); ok {
			if t := d.maxTag(); t > max {
				max = t
			}
		}
	}
	return max
}

// splitByTag separates the terms free of tag (the primal, possibly itself a
// differential in lower tags) from the terms carrying tag, which keep their
// full tag-sets.
func (d *Differential) splitByTag(tag Tag) (primal, delta Expr) {
	var without, with []dTerm
	for _, t := range d.terms {
		if lo.Contains(t.tags, tag) {
			with = append(with, t)
		} else {
			without = append(without, t)
		}
	}
	return newDifferential(without), newDifferential(with)
}

func splitAnyByTag(e Expr, tag Tag) (primal, delta Expr) {
	if d, ok := e.(*Differential); ok {
		return d.splitByTag(tag)
	}
	return e, N(0)
}

// ============================================================
// Derivatives
// ============================================================

// DiffF lifts a unary function built from the generic operators to its
// derivative, minting a fresh tag from the allocator so nested calls never
// collide.
func (a *TagAllocator) DiffF(f func(Expr) Expr) func(Expr) Expr {
	return func(x Expr) Expr {
		tag := a.Fresh()
		return ExtractTangent(f(Bundle(x, N(1), tag)), tag)
	}
}

// DiffF is TagAllocator.DiffF on the shared process-wide allocator.
func DiffF(f func(Expr) Expr) func(Expr) Expr { return defaultTags.DiffF(f) }

// Diff computes the partial derivative of e with respect to the named
// symbol by threading a tagged bundle through the expression.
func Diff(e Expr, name string) Expr {
	return DiffF(func(x Expr) Expr { return Subst(e, name, x) })(S(name))
}
