package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointArithmeticCanonicalForm(t *testing.T) {
	reg := NewRegistry()
	x := reg.NewPoint("x")
	y := reg.NewPoint("y")

	tests := []struct {
		name string
		p    *Point
		want map[int]float64
	}{
		{name: "leaf", p: x, want: map[int]float64{0: 1}},
		{name: "sum", p: x.Add(y), want: map[int]float64{0: 1, 1: 1}},
		{name: "difference cancels", p: x.Add(y).Sub(y), want: map[int]float64{0: 1}},
		{name: "scale", p: x.Scale(2).Sub(y.Scale(0.5)), want: map[int]float64{0: 2, 1: -0.5}},
		{name: "zero", p: x.Sub(x), want: map[int]float64{}},
		{name: "zero point is neutral", p: ZeroPoint().Add(y), want: map[int]float64{1: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Decomposition())
			assert.NoError(t, tt.p.Err())
		})
	}
}

func TestOperationsDoNotMutateOperands(t *testing.T) {
	reg := NewRegistry()
	x := reg.NewPoint("x")
	y := reg.NewPoint("y")
	before := x.Decomposition()

	_ = x.Add(y).Scale(3)
	_ = x.Dot(y)

	assert.Equal(t, before, x.Decomposition())
	assert.True(t, x.IsLeaf())
}

func TestInnerProductIsBilinearAndSymmetric(t *testing.T) {
	reg := NewRegistry()
	x := reg.NewPoint("x")
	y := reg.NewPoint("y")
	z := reg.NewPoint("z")

	lhs := x.Add(y.Scale(2)).Dot(z.Sub(x))
	rhs := x.Dot(z).Sub(x.Dot(x)).Add(y.Dot(z).Scale(2)).Sub(y.Dot(x).Scale(2))
	assert.Equal(t, rhs.Form().Key(12), lhs.Form().Key(12))

	assert.Equal(t, x.Dot(y).Form().Key(12), y.Dot(x).Form().Key(12))

	d := x.Sub(y)
	norm := d.NormSquared().Form()
	assert.Equal(t, 1.0, norm.Products[NewPair(0, 0)])
	assert.Equal(t, -2.0, norm.Products[NewPair(0, 1)])
	assert.Equal(t, 1.0, norm.Products[NewPair(1, 1)])
	assert.Len(t, norm.Products, 3)
}

func TestExpressionForm(t *testing.T) {
	reg := NewRegistry()
	x := reg.NewPoint("x")
	f0 := reg.NewValue("f0")
	f1 := reg.NewValue("f1")

	e := f1.Sub(f0).Add(x.NormSquared().Scale(0.5)).AddConstant(-1)
	form := e.Form()

	assert.Equal(t, -1.0, form.Constant)
	assert.Equal(t, map[int]float64{0: -1, 1: 1}, form.Values)
	assert.Equal(t, map[Pair]float64{{0, 0}: 0.5}, form.Products)
	assert.Equal(t, "-f0 + f1 + 0.5*|x|^2 - 1", e.String())

	zero := f0.Sub(f0)
	assert.True(t, zero.Form().IsConstant())
}

func TestConstraintRelations(t *testing.T) {
	reg := NewRegistry()
	a := reg.NewValue("a")
	b := reg.NewValue("b")

	le := a.Le(b)
	assert.Equal(t, Inequality, le.Kind)
	assert.Equal(t, map[int]float64{0: 1, 1: -1}, le.Expr.Form().Values)

	ge := a.GeConst(2)
	assert.Equal(t, Inequality, ge.Kind)
	assert.Equal(t, 2.0, ge.Expr.Form().Constant)
	assert.Equal(t, map[int]float64{0: -1}, ge.Expr.Form().Values)

	eq := a.EqConst(1).Named("unit")
	assert.Equal(t, Equality, eq.Kind)
	assert.Equal(t, "unit: a - 1 == 0", eq.String())
}

func TestCrossRegistryReferenceIsSticky(t *testing.T) {
	r1 := NewRegistry()
	r2 := NewRegistry()
	x := r1.NewPoint("x")
	y := r2.NewPoint("y")

	mixed := x.Add(y)
	require.Error(t, mixed.Err())
	assert.True(t, IsCode(mixed.Err(), ErrInvalidReference))

	// the error survives further arithmetic
	e := mixed.Scale(2).NormSquared().AddConstant(1)
	assert.True(t, IsCode(e.Err(), ErrInvalidReference))

	// constants are compatible with any registry
	ok := x.NormSquared().Add(Constant(3))
	assert.NoError(t, ok.Err())
	assert.Equal(t, r1, ok.Registry())
}

func TestFinalizedRegistryPanics(t *testing.T) {
	reg := NewRegistry()
	reg.NewPoint("x")
	reg.Finalize()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*Error)
		require.True(t, ok)
		assert.Equal(t, ErrFinalized, err.Code)
	}()
	reg.NewPoint("late")
}

func TestLinearFormKeyNormalizes(t *testing.T) {
	reg := NewRegistry()
	x := reg.NewPoint("x")
	f := reg.NewValue("f")

	a := f.Add(x.NormSquared()).AddConstant(-1).Form()
	b := f.Add(x.NormSquared()).AddConstant(-1).Scale(3).Form()
	c := f.Add(x.NormSquared()).AddConstant(-2).Form()

	assert.Equal(t, a.Key(10), b.Key(10))
	assert.NotEqual(t, a.Key(10), c.Key(10))
	assert.Equal(t, "0", NewLinearForm().Key(10))
}

func TestLinearFormEval(t *testing.T) {
	reg := NewRegistry()
	x := reg.NewPoint("x")
	y := reg.NewPoint("y")
	f := reg.NewValue("f")

	e := x.Dot(y).Scale(2).Add(f).AddConstant(1)
	gram := [][]float64{{1, 0.5}, {0.5, 4}}
	got := e.Form().Eval(func(i, j int) float64 { return gram[i][j] }, []float64{3})
	assert.InDelta(t, 2*0.5+3+1, got, 1e-12)
}

func TestPSDMatrixValidation(t *testing.T) {
	reg := NewRegistry()
	a := reg.NewValue("a")

	_, err := NewPSDMatrix("empty", nil)
	assert.True(t, IsCode(err, ErrInvalidInput))

	_, err = NewPSDMatrix("ragged", [][]*Expression{{a, a}, {a}})
	assert.True(t, IsCode(err, ErrInvalidInput))

	m, err := NewPSDMatrix("ok", [][]*Expression{{a, Constant(1)}, {Constant(1), a}})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Size())
	assert.NoError(t, m.Err())
}

func TestConstraintSetKeepsFirstError(t *testing.T) {
	var a, b ConstraintSet
	assert.NoError(t, a.Err())

	_, first := NewPSDMatrix("empty", nil)
	require.Error(t, first)
	b.Fail(first)
	b.Fail(NewError(ErrInvalidInput, "later"))
	b.Fail(nil)
	assert.Same(t, first, b.Err())

	a.Add(Constant(1).LeConst(2))
	a.Merge(b)
	assert.Same(t, first, a.Err())
	assert.Equal(t, 1, a.Len())
}

func TestErrorFormatting(t *testing.T) {
	cause := NewError(ErrSolver, "cholesky failed")
	err := WrapError(ErrInfeasible, cause, "solve %d", 3)

	assert.Contains(t, err.Error(), "infeasible")
	assert.Contains(t, err.Error(), "solve 3")
	assert.ErrorIs(t, err, &Error{Code: ErrInfeasible})
	assert.True(t, IsCode(err, ErrSolver))
	assert.False(t, IsCode(err, ErrNotFound))
	assert.Equal(t, "code(99)", ErrorCode(99).String())
}
