package certificate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/vybium/vybium-pep/internal/vybium-pep/assembler"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

func form(constant float64, values map[int]float64, products map[core.Pair]float64) core.LinearForm {
	out := core.NewLinearForm()
	out.Constant = constant
	for k, v := range values {
		out.Values[k] = v
	}
	for k, v := range products {
		out.Products[k] = v
	}
	return out
}

// descentProblem: maximize f0 - f1 subject to f0 - f1 <= |x0|^2, |x0|^2 <= 2
// and f1 = 0, whose bound 2 is certified by unit weights on both
// inequalities
func descentProblem() (*assembler.Problem, Multipliers) {
	sq := map[core.Pair]float64{core.NewPair(0, 0): 1}
	p := &assembler.Problem{
		NumPoints:  1,
		NumValues:  2,
		PointNames: []string{"x0"},
		ValueNames: []string{"f0", "f1"},
		Objectives: []assembler.Objective{{Name: "metric[0]", Form: form(0, map[int]float64{0: 1, 1: -1}, nil)}},
		Rows: []assembler.Row{
			{Name: "decrease", Kind: core.Inequality, Source: assembler.SourceClass, Function: "f", Class: "Convex",
				Form: form(0, map[int]float64{0: 1, 1: -1}, map[core.Pair]float64{core.NewPair(0, 0): -1})},
			{Name: "initial[0]", Kind: core.Inequality, Source: assembler.SourceInitial, Form: form(-2, nil, sq)},
			{Name: "anchor", Kind: core.Equality, Source: assembler.SourceUser, Form: form(0, map[int]float64{1: 1}, nil)},
		},
	}
	m := Multipliers{
		Metrics: []float64{1},
		Rows:    []float64{1, 1, 0},
		Gram:    mat.NewSymDense(1, nil),
		Bound:   2,
		Primal:  2,
	}
	return p, m
}

// matrixProblem: maximize -|x0|^2 - |x1|^2 subject to [[|x1|^2]] PSD, bound 0
// with multiplier 1 on the Gram entry of x0 and on the LMI
func matrixProblem() (*assembler.Problem, Multipliers) {
	p := &assembler.Problem{
		NumPoints:  2,
		PointNames: []string{"x0", "x1"},
		Objectives: []assembler.Objective{{Name: "metric[0]", Form: form(0, nil, map[core.Pair]float64{
			core.NewPair(0, 0): -1,
			core.NewPair(1, 1): -1,
		})}},
		LMIs: []assembler.LMI{{
			Name:    "square",
			Source:  assembler.SourceUser,
			Entries: [][]core.LinearForm{{form(0, nil, map[core.Pair]float64{core.NewPair(1, 1): 1})}},
		}},
	}
	gram := mat.NewSymDense(2, []float64{1, 0, 0, 0})
	m := Multipliers{
		Metrics: []float64{1},
		LMIs:    []*mat.SymDense{mat.NewSymDense(1, []float64{1})},
		Gram:    gram,
	}
	return p, m
}

func extractOrFail(t *testing.T, p *assembler.Problem, m Multipliers) *Certificate {
	t.Helper()
	c, err := Extract(context.Background(), p, m)
	require.NoError(t, err)
	return c
}

func TestValidCertificates(t *testing.T) {
	for name, build := range map[string]func() (*assembler.Problem, Multipliers){
		"scalar": descentProblem,
		"matrix": matrixProblem,
	} {
		t.Run(name, func(t *testing.T) {
			p, m := build()
			c := extractOrFail(t, p, m)
			rep := c.Verify(1e-9)
			assert.True(t, rep.Verified, rep.Failures)
			assert.NoError(t, rep.Err())
			assert.InDelta(t, 1, rep.WeightSum, 1e-12)
			assert.Equal(t, 0.0, rep.Residual)
			assert.GreaterOrEqual(t, rep.MinGramEigen, -1e-12)
		})
	}
}

func TestTamperedCertificates(t *testing.T) {
	tests := []struct {
		name   string
		build  func() (*assembler.Problem, Multipliers)
		tamper func(c *Certificate)
	}{
		{"inequality weight", descentProblem, func(c *Certificate) { c.Rows[0].Weight = 1.5 }},
		{"initial condition weight", descentProblem, func(c *Certificate) { c.Rows[1].Weight = 0.5 }},
		{"equality weight", descentProblem, func(c *Certificate) { c.Rows[2].Weight = 0.25 }},
		{"metric weight", descentProblem, func(c *Certificate) { c.Metrics[0].Weight = 0.5 }},
		{"bound", descentProblem, func(c *Certificate) { c.Bound = 1 }},
		{"negative weight", descentProblem, func(c *Certificate) { c.Rows[1].Weight = -1 }},
		{"gram multiplier", matrixProblem, func(c *Certificate) { c.Gram.SetSym(0, 0, 2) }},
		{"indefinite gram", matrixProblem, func(c *Certificate) { c.Gram.SetSym(0, 1, 3) }},
		{"lmi multiplier", matrixProblem, func(c *Certificate) { c.LMIs[0].Weight.SetSym(0, 0, -1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, m := tt.build()
			c := extractOrFail(t, p, m)
			tt.tamper(c)
			rep := c.Verify(1e-6)
			assert.False(t, rep.Verified)
			assert.NotEmpty(t, rep.Failures)
			err := rep.Err()
			require.Error(t, err)
			assert.True(t, core.IsCode(err, core.ErrCertificate))
		})
	}
}

func TestDualityGap(t *testing.T) {
	p, m := descentProblem()
	m.Primal = 1.5
	rep := extractOrFail(t, p, m).Verify(1e-6)
	assert.False(t, rep.Verified)
	assert.InDelta(t, 0.2, rep.Gap, 1e-12)
}

func TestExtractMissingMultipliers(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *assembler.Problem, m *Multipliers)
	}{
		{"metrics", func(p *assembler.Problem, m *Multipliers) { m.Metrics = nil }},
		{"rows", func(p *assembler.Problem, m *Multipliers) { m.Rows = m.Rows[:1] }},
		{"gram", func(p *assembler.Problem, m *Multipliers) { m.Gram = nil }},
		{"gram size", func(p *assembler.Problem, m *Multipliers) { m.Gram = mat.NewSymDense(3, nil) }},
		{"lmis", func(p *assembler.Problem, m *Multipliers) {
			p.LMIs = []assembler.LMI{{Name: "extra", Entries: [][]core.LinearForm{{core.NewLinearForm()}}}}
		}},
		{"lmi size", func(p *assembler.Problem, m *Multipliers) {
			p.LMIs = []assembler.LMI{{Name: "extra", Entries: [][]core.LinearForm{{core.NewLinearForm()}}}}
			m.LMIs = []*mat.SymDense{mat.NewSymDense(2, nil)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, m := descentProblem()
			tt.build(p, &m)
			_, err := Extract(context.Background(), p, m)
			require.Error(t, err)
			assert.True(t, core.IsCode(err, core.ErrCertificate))
		})
	}
}

func TestExtractCopiesMultipliers(t *testing.T) {
	p, m := matrixProblem()
	c := extractOrFail(t, p, m)
	m.Gram.SetSym(0, 0, 7)
	m.LMIs[0].SetSym(0, 0, 7)
	assert.Equal(t, 1.0, c.Gram.At(0, 0))
	assert.Equal(t, 1.0, c.LMIs[0].Weight.At(0, 0))
}

func TestActiveAndWeights(t *testing.T) {
	p, m := descentProblem()
	c := extractOrFail(t, p, m)
	active := c.Active(1e-9)
	require.Len(t, active, 2)
	assert.Equal(t, "decrease", active[0].Name)
	assert.Equal(t, "initial[0]", active[1].Name)

	weights := c.WeightsByFunction()
	assert.Equal(t, 1.0, weights["f"])
	assert.Equal(t, 1.0, weights["initial"])
	assert.Equal(t, 0.0, weights["user"])

	text := c.String()
	assert.Contains(t, text, "bound 2")
	assert.Contains(t, text, "decrease")
	assert.Contains(t, text, "|x0|^2")
	assert.NotContains(t, text, "anchor")
}

func TestCommit(t *testing.T) {
	p, m := descentProblem()
	c := extractOrFail(t, p, m)
	first, err := c.Commit()
	require.NoError(t, err)
	again, err := c.Commit()
	require.NoError(t, err)
	assert.Equal(t, first.Hex(), again.Hex())
	// bound, one metric, three rows, the Gram multiplier
	assert.Equal(t, 6, first.Leaves)
	assert.Len(t, first.Bytes(), len(first.Root)*8)

	changes := []func(c *Certificate){
		func(c *Certificate) { c.Rows[2].Weight = 1e-12 },
		func(c *Certificate) { c.Rows[0].Name = "renamed" },
		func(c *Certificate) { c.Metrics[0].Weight = 0.999 },
		func(c *Certificate) { c.Gram.SetSym(0, 0, 1) },
		func(c *Certificate) { c.Bound = 2.5 },
	}
	for i, change := range changes {
		p, m := descentProblem()
		other := extractOrFail(t, p, m)
		change(other)
		com, err := other.Commit()
		require.NoError(t, err)
		assert.NotEqual(t, first.Hex(), com.Hex(), "change %d", i)
	}
}

func TestCommitNegativeZero(t *testing.T) {
	p, m := descentProblem()
	a := extractOrFail(t, p, m)
	m.Rows[2] = negZero()
	b := extractOrFail(t, p, m)
	ca, err := a.Commit()
	require.NoError(t, err)
	cb, err := b.Commit()
	require.NoError(t, err)
	assert.Equal(t, ca.Hex(), cb.Hex())
}

func negZero() float64 {
	z := 0.0
	return -z
}
