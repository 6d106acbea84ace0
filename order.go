package symkit

// Exponents is the exponent vector of one monomial: Exponents[i] is the
// power of variable i. All vectors handled by one polynomial share a length.
type Exponents []int

// MonomialOrder is a three-way comparison over equal-length exponent
// vectors: negative when a sorts below b, zero when equal, positive when
// above. Every order in this package is a strict total order compatible
// with monomial multiplication.
type MonomialOrder func(a, b Exponents) int

func checkSameLen(a, b Exponents) {
	if len(a) != len(b) {
		panic("symkit: exponent vectors of different arity")
	}
}

func totalDegree(a Exponents) int {
	d := 0
	for _, e := range a {
		d += e
	}
	return d
}

// Lex compares component-wise left to right; the first difference decides.
func Lex(a, b Exponents) int {
	checkSameLen(a, b)
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

// GradedLex compares total degree first, then breaks ties lexicographically.
func GradedLex(a, b Exponents) int {
	checkSameLen(a, b)
	da, db := totalDegree(a), totalDegree(b)
	if da != db {
		if da < db {
			return -1
		}
		return 1
	}
	return Lex(a, b)
}

// GradedRevLex compares total degree first; among equal-degree monomials the
// one with the higher power in a later variable sorts smaller (reversed
// vectors compared with flipped sign).
func GradedRevLex(a, b Exponents) int {
	checkSameLen(a, b)
	da, db := totalDegree(a), totalDegree(b)
	if da != db {
		if da < db {
			return -1
		}
		return 1
	}
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// addExps returns the component-wise sum, the exponent vector of the
// product monomial.
func addExps(a, b Exponents) Exponents {
	checkSameLen(a, b)
	out := make(Exponents, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// subExps returns the component-wise difference and whether every component
// stayed non-negative (i.e. whether monomial a is divisible by monomial b).
func subExps(a, b Exponents) (Exponents, bool) {
	checkSameLen(a, b)
	out := make(Exponents, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
		if out[i] < 0 {
			return nil, false
		}
	}
	return out, true
}

func (a Exponents) clone() Exponents {
	out := make(Exponents, len(a))
	copy(out, a)
	return out
}

func (a Exponents) isZero() bool {
	for _, e := range a {
		if e != 0 {
			return false
		}
	}
	return true
}
