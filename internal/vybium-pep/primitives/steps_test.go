package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

func TestProximalStepRegistersSubgradient(t *testing.T) {
	reg := core.NewRegistry()
	f := reg.DeclareFunction("f", core.WithClass(classes.NewConvex()))
	x0 := reg.NewPoint("x0")

	x, g, fx := ProximalStep(x0, f, 0.5)
	require.NoError(t, f.Err())

	triples := f.Triples()
	require.Len(t, triples, 1)
	assert.Same(t, x, triples[0].X)
	assert.Same(t, fx, triples[0].F)
	assert.True(t, g.Equal(x0.Sub(x).Scale(2)))
	assert.True(t, triples[0].G.Equal(g))
}

func TestProximalStepOnCompositeSplitsSubgradient(t *testing.T) {
	reg := core.NewRegistry()
	f1 := reg.DeclareFunction("f1", core.WithClass(classes.NewConvex()))
	f2 := reg.DeclareFunction("f2", core.WithClass(classes.NewConvex()))
	x0 := reg.NewPoint("x0")

	x, g, _ := ProximalStep(x0, f1.Add(f2), 1)
	require.Len(t, f1.Triples(), 1)
	require.Len(t, f2.Triples(), 1)
	sum := f1.Triples()[0].G.Add(f2.Triples()[0].G)
	assert.True(t, sum.Equal(g))
	assert.Same(t, x, f2.Triples()[0].X)
}

func TestInexactGradientStep(t *testing.T) {
	tests := []struct {
		name   string
		notion Inexactness
	}{
		{"relative", Relative},
		{"absolute", Absolute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := core.NewRegistry()
			smooth, err := classes.NewSmoothConvex(1)
			require.NoError(t, err)
			f := reg.DeclareFunction("f", core.WithClass(smooth))
			x0 := reg.NewPoint("x0")

			x, d, fx0 := InexactGradientStep(x0, f, 0.5, 0.1, tt.notion)
			assert.True(t, x.Equal(x0.Sub(d.Scale(0.5))))
			assert.Same(t, fx0, f.Value(x0))

			set := f.Interpolate()
			var extra []*core.Constraint
			for _, c := range set.Scalars {
				if c.Name == "f:extra[0]" {
					extra = append(extra, c)
				}
			}
			require.Len(t, extra, 1)
			assert.Equal(t, core.Inequality, extra[0].Kind)
		})
	}

	assert.Panics(t, func() {
		reg := core.NewRegistry()
		f := reg.DeclareFunction("f", core.WithClass(classes.NewConvex()))
		InexactGradientStep(reg.NewPoint(""), f, 1, 0.1, Inexactness(7))
	})
}

func TestBregmanGradientStep(t *testing.T) {
	reg := core.NewRegistry()
	h := reg.DeclareFunction("h", core.WithClass(classes.NewConvex()))
	g0 := reg.NewPoint("g0")
	s0 := reg.NewPoint("s0")

	x, sx, hx := BregmanGradientStep(g0, s0, h, 2)
	require.Len(t, h.Triples(), 1)
	tr := h.Triples()[0]
	assert.Same(t, x, tr.X)
	assert.Same(t, hx, tr.F)
	assert.True(t, sx.Equal(s0.Sub(g0.Scale(2))))
}

func TestBregmanProximalStep(t *testing.T) {
	reg := core.NewRegistry()
	h := reg.DeclareFunction("h", core.WithClass(classes.NewConvex()))
	f := reg.DeclareFunction("f", core.WithClass(classes.NewConvex()))
	s0 := reg.NewPoint("s0")

	x, sx, _, gx, _ := BregmanProximalStep(s0, h, f, 0.5)
	require.Len(t, f.Triples(), 1)
	require.Len(t, h.Triples(), 1)
	assert.Same(t, x, f.Triples()[0].X)
	assert.Same(t, x, h.Triples()[0].X)
	assert.True(t, sx.Equal(s0.Sub(gx.Scale(0.5))))
}

func TestLinearOptimizationStep(t *testing.T) {
	reg := core.NewRegistry()
	ind, err := classes.NewConvexIndicator(1)
	require.NoError(t, err)
	f := reg.DeclareFunction("ind", core.WithClass(ind))
	dir := reg.NewPoint("d")

	_, gx, _ := LinearOptimizationStep(dir, f)
	assert.True(t, gx.Equal(dir.Scale(-1)))
	assert.Len(t, f.Triples(), 1)
}

func TestExactLineSearchStep(t *testing.T) {
	reg := core.NewRegistry()
	smooth, err := classes.NewSmoothConvex(1)
	require.NoError(t, err)
	f := reg.DeclareFunction("f", core.WithClass(smooth))
	x0 := reg.NewPoint("x0")
	g0 := f.Gradient(x0)

	x, gx, _ := ExactLineSearchStep(x0, f, g0)
	assert.Same(t, gx, f.Gradient(x))

	var eqs int
	for _, c := range f.Interpolate().Scalars {
		if c.Kind == core.Equality {
			eqs++
		}
	}
	assert.Equal(t, 2, eqs)
}
