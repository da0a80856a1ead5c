package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// gradientStep describes one step of gradient descent with step 1/L on an
// L-smooth convex function
func gradientStep(t *testing.T, l float64, opts ...core.FunctionOption) Input {
	t.Helper()
	reg := core.NewRegistry()
	smooth, err := classes.NewSmoothConvex(l)
	require.NoError(t, err)
	f := reg.DeclareFunction("f", append([]core.FunctionOption{core.WithClass(smooth)}, opts...)...)
	xs := f.StationaryPoint("xs")
	fs := f.Value(xs)
	x0 := reg.NewPoint("x0")
	x1 := x0.Sub(f.Gradient(x0).Scale(1 / l))

	in := Input{
		Registry:          reg,
		Metrics:           []*core.Expression{f.Value(x1).Sub(fs)},
		InitialConditions: []*core.Constraint{x0.Sub(xs).NormSquared().LeConst(1)},
		HashFunction:      "sha3",
	}
	reg.Finalize()
	return in
}

// brokenClass cannot build its constraints
type brokenClass struct{}

func (brokenClass) Name() string         { return "Broken" }
func (brokenClass) Differentiable() bool { return false }
func (brokenClass) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	_, err := core.NewPSDMatrix(prefix+":Broken", nil)
	set.Fail(err)
	return set
}

func TestAssembleGradientStep(t *testing.T) {
	prob, err := Assemble(gradientStep(t, 1))
	require.NoError(t, err)

	// leaves: xs, x0, g(x0), g(x1); x1 is a combination
	assert.Equal(t, 4, prob.NumPoints)
	assert.Equal(t, 3, prob.NumValues)
	require.Len(t, prob.Objectives, 1)
	assert.Len(t, prob.Rows, 6+1)
	assert.Equal(t, 0, prob.Duplicates)
	assert.Len(t, prob.Digest, 64)

	assert.Equal(t, SourceInitial, prob.Rows[0].Source)
	for _, r := range prob.Rows[1:] {
		assert.Equal(t, SourceClass, r.Source)
		assert.Equal(t, "f", r.Function)
		assert.Equal(t, "SmoothConvex(L=1)", r.Class)
		assert.Equal(t, core.Inequality, r.Kind)
	}
	assert.Equal(t, map[string]int{"initial": 1, "f": 6}, prob.Stats())
	assert.Equal(t, 0, prob.NumEqualities())
}

func TestAssembleMergesDuplicateClassConstraints(t *testing.T) {
	smooth, err := classes.NewSmoothConvex(1)
	require.NoError(t, err)

	prob, err := Assemble(gradientStep(t, 1, core.WithClass(smooth)))
	require.NoError(t, err)
	assert.Len(t, prob.Rows, 6+1)
	assert.Equal(t, 6, prob.Duplicates)
	for _, r := range prob.Rows[1:] {
		assert.Len(t, r.Aliases, 1)
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	a, err := Assemble(gradientStep(t, 1))
	require.NoError(t, err)
	b, err := Assemble(gradientStep(t, 1))
	require.NoError(t, err)
	c, err := Assemble(gradientStep(t, 2))
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.NotEqual(t, a.Digest, c.Digest)
	assert.NotEqual(t, a.Digest, Digest(a, "sha256"))
}

func TestDigestIgnoresConstraintOrder(t *testing.T) {
	withConstraints := func(swap bool) *Problem {
		in := gradientStep(t, 1)
		x0 := in.Registry.Point(1)
		a := x0.NormSquared().LeConst(4)
		b := in.Metrics[0].LeConst(2)
		in.Constraints = []*core.Constraint{a, b}
		if swap {
			in.Constraints = []*core.Constraint{b, a}
		}
		prob, err := Assemble(in)
		require.NoError(t, err)
		return prob
	}
	first, swapped := withConstraints(false), withConstraints(true)
	require.NotEqual(t, first.Rows[len(first.Rows)-1].Form.Key(12), swapped.Rows[len(swapped.Rows)-1].Form.Key(12))
	assert.Equal(t, first.Digest, swapped.Digest)
}

func TestAssembleErrors(t *testing.T) {
	t.Run("registry not finalized", func(t *testing.T) {
		reg := core.NewRegistry()
		x := reg.NewPoint("x")
		_, err := Assemble(Input{Registry: reg, Metrics: []*core.Expression{x.NormSquared()}})
		assert.True(t, core.IsCode(err, core.ErrInvalidState))
	})

	t.Run("no metric", func(t *testing.T) {
		in := gradientStep(t, 1)
		in.Metrics = nil
		_, err := Assemble(in)
		assert.True(t, core.IsCode(err, core.ErrNoObjective))
	})

	t.Run("metric from another registry", func(t *testing.T) {
		in := gradientStep(t, 1)
		other := core.NewRegistry()
		in.Metrics = []*core.Expression{other.NewPoint("y").NormSquared()}
		_, err := Assemble(in)
		assert.True(t, core.IsCode(err, core.ErrInvalidReference))
	})

	t.Run("sticky function error", func(t *testing.T) {
		reg := core.NewRegistry()
		f := reg.DeclareFunction("f", core.WithClass(classes.NewConvex()))
		other := core.NewRegistry()
		f.AddTriple(other.NewPoint("y"), core.ZeroPoint(), nil)
		x := reg.NewPoint("x")
		reg.Finalize()
		_, err := Assemble(Input{Registry: reg, Metrics: []*core.Expression{x.NormSquared()}})
		assert.True(t, core.IsCode(err, core.ErrInvalidReference))
	})

	t.Run("class generator error", func(t *testing.T) {
		reg := core.NewRegistry()
		f := reg.DeclareFunction("f", core.WithClass(brokenClass{}))
		x := reg.NewPoint("x")
		f.Oracle(x)
		reg.Finalize()
		_, err := Assemble(Input{Registry: reg, Metrics: []*core.Expression{x.NormSquared()}})
		require.Error(t, err)
		assert.True(t, core.IsCode(err, core.ErrMalformedExpression))
		assert.True(t, core.IsCode(err, core.ErrInvalidInput))
		assert.Contains(t, err.Error(), "Broken")
	})

	t.Run("asymmetric matrix", func(t *testing.T) {
		in := gradientStep(t, 1)
		a := in.Registry.Point(0).NormSquared()
		b := in.Registry.Point(1).NormSquared()
		m, err := core.NewPSDMatrix("M", [][]*core.Expression{{a, a}, {b, a}})
		require.NoError(t, err)
		in.Matrices = []*core.PSDMatrix{m}
		_, err = Assemble(in)
		assert.True(t, core.IsCode(err, core.ErrMalformedExpression))
	})
}

func TestConstantConstraints(t *testing.T) {
	in := gradientStep(t, 1)
	in.Constraints = []*core.Constraint{
		core.Constant(0).LeConst(1),
		core.Constant(0).EqConst(0),
		core.Constant(2).LeConst(1),
	}
	prob, err := Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, 2, prob.Trivial)

	last := prob.Rows[len(prob.Rows)-1]
	assert.Equal(t, SourceUser, last.Source)
	assert.Equal(t, "constraint[2]", last.Name)
	assert.True(t, last.Form.IsConstant())
	assert.Equal(t, 1.0, last.Form.Constant)
}

func TestUserMatrixIsAssembled(t *testing.T) {
	in := gradientStep(t, 1)
	x := in.Registry.Point(0)
	y := in.Registry.Point(2)
	m, err := core.NewPSDMatrix("M", [][]*core.Expression{
		{x.NormSquared(), x.Dot(y)},
		{y.Dot(x), y.NormSquared()},
	})
	require.NoError(t, err)
	in.Matrices = []*core.PSDMatrix{m}

	prob, err := Assemble(in)
	require.NoError(t, err)
	require.Len(t, prob.LMIs, 1)
	assert.Equal(t, 2, prob.LMIs[0].Size())
	assert.Equal(t, SourceUser, prob.LMIs[0].Source)
}
