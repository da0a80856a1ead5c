// Package certificate turns the dual solution of a PEP into a proof of its
// bound: a weighted sum of the assembled constraints which, as an identity
// between linear forms, reads
//
//	sum_k w_k m_k = B + sum_r l_r g_r + sum_j v_j h_j - <S, G> - sum_l <X_l, L_l>
//
// with metric weights w summing to one, nonnegative weights l on the
// inequalities g <= 0, free weights v on the equalities h = 0, and PSD
// multipliers S (of the Gram matrix G) and X_l (of every LMI L_l). On the
// feasible set every term after B is nonpositive, so the smallest metric is
// at most B. The identity is checked by symbolic substitution only.
package certificate

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/mat"

	"github.com/vybium/vybium-pep/internal/vybium-pep/assembler"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

// Multipliers are dual values aligned with an assembled problem
type Multipliers struct {
	// Metrics holds one weight per objective
	Metrics []float64
	// Rows holds one weight per assembled row
	Rows []float64
	// LMIs holds one PSD multiplier per assembled LMI
	LMIs []*mat.SymDense
	// Gram is the multiplier of the Gram matrix
	Gram *mat.SymDense
	// Bound is the dual objective value
	Bound float64
	// Primal is the primal objective the bound is compared with
	Primal float64
}

// Term is one weighted scalar constraint of the proof
type Term struct {
	Name     string
	Kind     core.ConstraintKind
	Source   assembler.Source
	Function string
	Class    string
	Weight   float64
	Form     core.LinearForm
}

// MatrixTerm is one LMI of the proof with its matrix multiplier
type MatrixTerm struct {
	Name     string
	Source   assembler.Source
	Function string
	Class    string
	Weight   *mat.SymDense
	Entries  [][]core.LinearForm
}

// Certificate is a dual proof of a PEP bound
type Certificate struct {
	Bound   float64
	Primal  float64
	Metrics []Term
	Rows    []Term
	LMIs    []MatrixTerm
	Gram    *mat.SymDense

	PointNames []string
	ValueNames []string
}

// Extract aligns the multipliers with the problem's objectives, rows and
// LMIs. It fails with ErrCertificate when any multiplier is missing.
func Extract(ctx context.Context, p *assembler.Problem, m Multipliers) (*Certificate, error) {
	_, span := utils.StartSpan(ctx, "certificate.Extract",
		attribute.Int("rows", len(p.Rows)),
		attribute.Int("lmis", len(p.LMIs)),
	)
	c, err := extract(p, m)
	utils.EndSpan(span, err)
	return c, err
}

func extract(p *assembler.Problem, m Multipliers) (*Certificate, error) {
	if len(m.Metrics) != len(p.Objectives) {
		return nil, core.NewError(core.ErrCertificate, "%d metric weights for %d metrics", len(m.Metrics), len(p.Objectives))
	}
	if len(m.Rows) != len(p.Rows) {
		return nil, core.NewError(core.ErrCertificate, "%d row weights for %d rows", len(m.Rows), len(p.Rows))
	}
	if len(m.LMIs) != len(p.LMIs) {
		return nil, core.NewError(core.ErrCertificate, "%d LMI multipliers for %d LMIs", len(m.LMIs), len(p.LMIs))
	}
	if p.NumPoints > 0 && (m.Gram == nil || m.Gram.SymmetricDim() != p.NumPoints) {
		return nil, core.NewError(core.ErrCertificate, "missing Gram multiplier of size %d", p.NumPoints)
	}

	c := &Certificate{
		Bound:      m.Bound,
		Primal:     m.Primal,
		PointNames: p.PointNames,
		ValueNames: p.ValueNames,
	}
	for k, o := range p.Objectives {
		c.Metrics = append(c.Metrics, Term{
			Name:   o.Name,
			Kind:   core.Inequality,
			Weight: m.Metrics[k],
			Form:   o.Form.Clone(),
		})
	}
	for r, row := range p.Rows {
		c.Rows = append(c.Rows, Term{
			Name:     row.Name,
			Kind:     row.Kind,
			Source:   row.Source,
			Function: row.Function,
			Class:    row.Class,
			Weight:   m.Rows[r],
			Form:     row.Form.Clone(),
		})
	}
	for l, lmi := range p.LMIs {
		x := m.LMIs[l]
		if x == nil || x.SymmetricDim() != lmi.Size() {
			return nil, core.NewError(core.ErrCertificate, "missing multiplier for LMI %s", lmi.Name)
		}
		c.LMIs = append(c.LMIs, MatrixTerm{
			Name:     lmi.Name,
			Source:   lmi.Source,
			Function: lmi.Function,
			Class:    lmi.Class,
			Weight:   mat.NewSymDense(x.SymmetricDim(), nil),
			Entries:  lmi.Entries,
		})
		c.LMIs[l].Weight.CopySym(x)
	}
	if m.Gram != nil {
		c.Gram = mat.NewSymDense(m.Gram.SymmetricDim(), nil)
		c.Gram.CopySym(m.Gram)
	}
	return c, nil
}

// Residual returns sum_k w_k m_k - B - sum_r l_r g_r - sum_j v_j h_j
// + <S, G> + sum_l <X_l, L_l>, which is identically zero for a valid
// certificate
func (c *Certificate) Residual() core.LinearForm {
	out := core.NewLinearForm()
	for _, t := range c.Metrics {
		out.AddScaled(t.Weight, t.Form)
	}
	out.Constant -= c.Bound
	for _, t := range c.Rows {
		out.AddScaled(-t.Weight, t.Form)
	}
	if c.Gram != nil {
		gram := core.NewLinearForm()
		n := c.Gram.SymmetricDim()
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := c.Gram.At(i, j)
				if i != j {
					v *= 2
				}
				if v != 0 {
					gram.Products[core.NewPair(i, j)] = v
				}
			}
		}
		out.AddScaled(1, gram)
	}
	for _, lmi := range c.LMIs {
		for a := range lmi.Entries {
			for b := range lmi.Entries[a] {
				out.AddScaled(lmi.Weight.At(a, b), lmi.Entries[a][b])
			}
		}
	}
	return out
}

// Active returns the scalar terms whose weight exceeds threshold in
// absolute value, in assembly order
func (c *Certificate) Active(threshold float64) []Term {
	var out []Term
	for _, t := range c.Rows {
		if t.Weight > threshold || t.Weight < -threshold {
			out = append(out, t)
		}
	}
	return out
}

// WeightsByFunction sums the absolute scalar weights per function, with
// initial conditions and user constraints under their source name
func (c *Certificate) WeightsByFunction() map[string]float64 {
	out := make(map[string]float64)
	for _, t := range c.Rows {
		key := t.Function
		if key == "" {
			key = t.Source.String()
		}
		w := t.Weight
		if w < 0 {
			w = -w
		}
		out[key] += w
	}
	return out
}

func (c *Certificate) pointName(i int) string {
	if i < len(c.PointNames) {
		return c.PointNames[i]
	}
	return fmt.Sprintf("x%d", i)
}

func (c *Certificate) valueName(i int) string {
	if i < len(c.ValueNames) {
		return c.ValueNames[i]
	}
	return fmt.Sprintf("f%d", i)
}

// Format renders the proof, listing terms with weights above threshold
func (c *Certificate) Format(threshold float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bound %.9g (primal %.9g)\n", c.Bound, c.Primal)
	for _, t := range c.Metrics {
		fmt.Fprintf(&sb, "  metric  %-40s weight %.6g\n", t.Name, t.Weight)
	}
	for _, t := range c.Active(threshold) {
		fmt.Fprintf(&sb, "  %-7s %-40s weight %.6g : %s %s 0\n",
			t.Source, t.Name, t.Weight, t.Form.Format(c.pointName, c.valueName), t.Kind)
	}
	for _, l := range c.LMIs {
		fmt.Fprintf(&sb, "  lmi     %-40s multiplier trace %.6g\n", l.Name, mat.Trace(l.Weight))
	}
	if c.Gram != nil {
		fmt.Fprintf(&sb, "  gram    multiplier trace %.6g\n", mat.Trace(c.Gram))
	}
	return sb.String()
}

// String renders the proof with every nonzero weight
func (c *Certificate) String() string {
	return c.Format(0)
}
