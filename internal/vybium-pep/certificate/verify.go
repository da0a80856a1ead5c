package certificate

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// Report is the outcome of a verification
type Report struct {
	Verified bool
	// WeightSum is the sum of the metric weights
	WeightSum float64
	// MinGramEigen is the smallest eigenvalue of the Gram multiplier
	MinGramEigen float64
	// Residual is the largest coefficient of the certificate identity
	Residual float64
	// Gap is the relative gap between the bound and the primal objective
	Gap      float64
	Failures []string
}

// Err returns nil for a verified report and an ErrCertificate error otherwise
func (r *Report) Err() error {
	if r.Verified {
		return nil
	}
	return core.NewError(core.ErrCertificate, "certificate rejected: %s", strings.Join(r.Failures, "; "))
}

// Verify checks the certificate identity and the sign conditions on the
// weights, all up to tol
func (c *Certificate) Verify(tol float64) *Report {
	r := &Report{}
	fail := func(format string, args ...interface{}) {
		r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
	}

	for _, t := range c.Metrics {
		r.WeightSum += t.Weight
		if t.Weight < -tol {
			fail("metric %s has negative weight %.3e", t.Name, t.Weight)
		}
	}
	if math.Abs(r.WeightSum-1) > tol {
		fail("metric weights sum to %.9g", r.WeightSum)
	}

	for _, t := range c.Rows {
		if t.Kind == core.Inequality && t.Weight < -tol {
			fail("inequality %s has negative weight %.3e", t.Name, t.Weight)
		}
	}

	for _, l := range c.LMIs {
		if lmin, ok := minEigen(l.Weight); !ok || lmin < -tol*math.Max(1, maxAbs(l.Weight)) {
			fail("multiplier of %s is not PSD (min eigenvalue %.3e)", l.Name, lmin)
		}
	}

	if c.Gram != nil {
		lmin, ok := minEigen(c.Gram)
		r.MinGramEigen = lmin
		if !ok || lmin < -tol*math.Max(1, maxAbs(c.Gram)) {
			fail("Gram multiplier is not PSD (min eigenvalue %.3e)", lmin)
		}
	}

	scale := math.Max(1, math.Abs(c.Bound))
	r.Residual = c.Residual().MaxAbs()
	if r.Residual > tol*scale {
		fail("identity residual %.3e exceeds %.3e", r.Residual, tol*scale)
	}

	r.Gap = math.Abs(c.Bound-c.Primal) / (1 + math.Abs(c.Primal))
	if r.Gap > tol {
		fail("duality gap %.3e exceeds %.3e", r.Gap, tol)
	}

	r.Verified = len(r.Failures) == 0
	return r
}

func minEigen(a *mat.SymDense) (float64, bool) {
	n := a.SymmetricDim()
	if n == 1 {
		return a.At(0, 0), true
	}
	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return math.NaN(), false
	}
	return eig.Values(nil)[0], true
}

func maxAbs(a *mat.SymDense) float64 {
	n := a.SymmetricDim()
	out := 0.0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out = math.Max(out, math.Abs(a.At(i, j)))
		}
	}
	return out
}
