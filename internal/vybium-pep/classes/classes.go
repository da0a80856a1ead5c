// Package classes implements the catalog of function and operator classes.
// Each class emits the interpolation conditions of its members over a
// finite list of (point, subgradient, value) triples.
package classes

import (
	"fmt"
	"math"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// Pair is an index pair into a list of triples
type Pair struct {
	I, J int
}

// Pairs returns every unordered pair i < j of n triples: C(n,2) pairs
func Pairs(n int) []Pair {
	out := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{I: i, J: j})
		}
	}
	return out
}

// OrderedPairs returns every ordered pair i != j of n triples: 2*C(n,2) pairs
func OrderedPairs(n int) []Pair {
	out := make([]Pair, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				out = append(out, Pair{I: i, J: j})
			}
		}
	}
	return out
}

func pairName(prefix, class string, p Pair) string {
	return fmt.Sprintf("%s:%s[%d,%d]", prefix, class, p.I, p.J)
}

func pointName(prefix, class string, i int) string {
	return fmt.Sprintf("%s:%s[%d]", prefix, class, i)
}

func checkFinitePositive(class, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return core.NewError(core.ErrInvalidInput, "%s: %s must be finite and positive, got %g", class, param, v)
	}
	return nil
}

func checkNonNegative(class, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return core.NewError(core.ErrInvalidInput, "%s: %s must be finite and non-negative, got %g", class, param, v)
	}
	return nil
}

// convexGap returns f_j - f_i + <g_j, x_i - x_j>, which is <= 0 for every
// convex function
func convexGap(ti, tj core.Triple) *core.Expression {
	return tj.F.Sub(ti.F).Add(tj.G.Dot(ti.X.Sub(tj.X)))
}
