package vybiumpep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/sdp"
	"github.com/vybium/vybium-pep/internal/vybium-pep/store"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

func newTestPEP(opts ...Option) *PEP {
	opts = append([]Option{WithLogger(utils.DiscardLogger())}, opts...)
	return New(utils.DefaultConfig(), opts...)
}

type descent struct {
	p      *PEP
	f      *core.Function
	x0, xs *core.Point
	x      *core.Point
	metric *core.Expression
}

// gradientDescent builds n steps of x <- x - gamma grad f(x) on f, measured
// by f(x_n) - f(x_star) from |x0 - x_star|^2 <= 1
func gradientDescent(t *testing.T, class core.Class, n int, gamma float64) *descent {
	t.Helper()
	p := newTestPEP()
	f := p.DeclareFunction("f", core.WithClass(class))
	xs := f.StationaryPoint("x_star")
	fs := f.Value(xs)
	x0 := p.SetInitialPoint("x0")
	p.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))

	x := x0
	for i := 0; i < n; i++ {
		x = x.Sub(f.Gradient(x).Scale(gamma))
	}
	metric := f.Value(x).Sub(fs)
	p.AddPerformanceMetric(metric)
	return &descent{p: p, f: f, x0: x0, xs: xs, x: x, metric: metric}
}

func smoothConvex(t *testing.T, l float64) core.Class {
	t.Helper()
	c, err := classes.NewSmoothConvex(l)
	require.NoError(t, err)
	return c
}

func solveOrFail(t *testing.T, p *PEP) *Result {
	t.Helper()
	res, err := p.Solve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestGradientDescentBound(t *testing.T) {
	tests := []struct {
		steps int
		want  float64
	}{
		{1, 1.0 / 6},
		{2, 0.1},
		{3, 1.0 / 14},
	}
	for _, tt := range tests {
		d := gradientDescent(t, smoothConvex(t, 1), tt.steps, 1)
		res := solveOrFail(t, d.p)

		assert.Equal(t, StateSolved, res.Status, res.Reason)
		assert.Equal(t, StateSolved, d.p.State())
		assert.Same(t, res, d.p.Result())
		assert.InDelta(t, tt.want, res.Bound, 1e-5, "steps=%d", tt.steps)
		assert.InDelta(t, res.Bound, res.DualBound, 1e-5)
		assert.NotEmpty(t, res.Digest)
		assert.Positive(t, res.Iterations)
		assert.Positive(t, res.Stats["f"])
	}
}

func TestGradientDescentCertificate(t *testing.T) {
	d := gradientDescent(t, smoothConvex(t, 1), 1, 1)
	res := solveOrFail(t, d.p)
	require.Equal(t, StateSolved, res.Status, res.Reason)

	require.NotNil(t, res.Certificate)
	require.NotNil(t, res.Verification)
	assert.True(t, res.Verified(), res.Verification.Failures)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Commitment, hash.DigestLen*8*2)

	// The initial condition is active in every proof of the bound
	active := res.Certificate.Active(1e-6)
	var names []string
	for _, term := range active {
		names = append(names, term.Name)
	}
	assert.Contains(t, names, "initial[0]")
	assert.Contains(t, res.Summary(), "verified=true")
}

func TestCertificateDisabled(t *testing.T) {
	p := New(utils.DefaultConfig().WithCertificate(false), WithLogger(utils.DiscardLogger()))
	f := p.DeclareFunction("f", core.WithClass(smoothConvex(t, 1)))
	xs := f.StationaryPoint("")
	x0 := p.SetInitialPoint("x0")
	p.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))
	p.AddPerformanceMetric(f.Value(x0).Sub(f.Value(xs)))

	res := solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	// f(x0) - f* <= L/2 |x0 - x*|^2
	assert.InDelta(t, 0.5, res.Bound, 1e-5)
	assert.Nil(t, res.Certificate)
	assert.Empty(t, res.Commitment)
}

func TestWorstCaseEvaluation(t *testing.T) {
	d := gradientDescent(t, smoothConvex(t, 1), 1, 1)
	res := solveOrFail(t, d.p)
	require.Equal(t, StateSolved, res.Status, res.Reason)

	v, err := res.Eval(d.metric)
	require.NoError(t, err)
	assert.InDelta(t, res.Bound, v, 1e-5)

	dist, err := res.Eval(d.x0.Sub(d.xs).NormSquared())
	require.NoError(t, err)
	assert.LessOrEqual(t, dist, 1+1e-5)

	coords, err := res.EvalPoint(d.x0.Sub(d.xs))
	require.NoError(t, err)
	sq := 0.0
	for _, c := range coords {
		sq += c * c
	}
	assert.InDelta(t, dist, sq, 1e-5)

	assert.GreaterOrEqual(t, res.Rank, 1)
	low, err := res.WorstCasePoint(d.x0)
	require.NoError(t, err)
	assert.Len(t, low, res.Rank)

	lowValue, err := res.WorstCaseValue(d.metric)
	require.NoError(t, err)
	assert.InDelta(t, res.Bound, lowValue, 1e-3)

	for i := 1; i < len(res.Eigenvalues); i++ {
		assert.GreaterOrEqual(t, res.Eigenvalues[i-1], res.Eigenvalues[i])
	}
}

func TestEvalRejectsForeignExpressions(t *testing.T) {
	d := gradientDescent(t, smoothConvex(t, 1), 1, 1)
	res := solveOrFail(t, d.p)
	require.Equal(t, StateSolved, res.Status, res.Reason)

	other := newTestPEP()
	y := other.SetInitialPoint("y")
	_, err := res.Eval(y.NormSquared())
	assert.True(t, core.IsCode(err, core.ErrInvalidReference))
	_, err = res.EvalPoint(y)
	assert.True(t, core.IsCode(err, core.ErrInvalidReference))
}

func TestQuadraticGradientDescent(t *testing.T) {
	class, err := classes.NewSmoothStronglyConvexQuadratic(0.3, 3)
	require.NoError(t, err)
	d := gradientDescent(t, class, 1, 1.0/3)
	res := solveOrFail(t, d.p)

	require.Equal(t, StateSolved, res.Status, res.Reason)
	// max over lambda in [mu, L] of lambda/2 (1 - lambda/L)^2, reached at lambda = 1
	assert.InDelta(t, 2.0/9, res.Bound, 1e-5)
	assert.Equal(t, 1, res.LMIs)
}

func TestValuesOnlyProblem(t *testing.T) {
	p := newTestPEP()
	a := p.Registry().NewValue("a")
	b := p.Registry().NewValue("b")
	p.AddConstraint(a.LeConst(3))
	p.AddConstraint(b.LeConst(1))
	p.AddPerformanceMetric(a)
	p.AddPerformanceMetric(a.Add(b))

	res := solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	// the smallest metric is a once b is pushed to its bound
	assert.InDelta(t, 3, res.Bound, 1e-5)
	assert.Nil(t, res.Gram)
	require.Len(t, res.Values, 2)
	assert.InDelta(t, 3, res.Values[0], 1e-5)
}

func TestInfeasibleProblems(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *PEP)
	}{
		{"contradicting equalities", func(p *PEP) {
			v := p.Registry().NewValue("v")
			p.AddConstraint(v.EqConst(1))
			p.AddConstraint(v.EqConst(2))
			p.AddPerformanceMetric(v)
		}},
		{"violated constant", func(p *PEP) {
			v := p.Registry().NewValue("v")
			p.AddConstraint(v.LeConst(1))
			p.AddConstraint(core.Constant(1).LeConst(0))
			p.AddPerformanceMetric(v)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPEP()
			tt.build(p)
			res := solveOrFail(t, p)
			assert.Equal(t, StateInfeasible, res.Status)
			assert.Equal(t, sdp.StatusInfeasible, res.SolverStatus)
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, StateInfeasible, p.State())

			_, err := res.Eval(core.Constant(0))
			assert.True(t, core.IsCode(err, core.ErrInvalidState))
		})
	}
}

func TestContradictingClasses(t *testing.T) {
	// no function is both 1-smooth and 2-strongly convex, so two distinct
	// points cannot be interpolated while a single one can
	build := func(distance func(e *core.Expression) *core.Constraint) *PEP {
		strong, err := classes.NewStronglyConvex(2)
		require.NoError(t, err)
		p := newTestPEP()
		f := p.DeclareFunction("f", core.WithClass(smoothConvex(t, 1)), core.WithClass(strong))
		xs := f.StationaryPoint("x_star")
		x0 := p.SetInitialPoint("x0")
		p.SetInitialCondition(distance(x0.Sub(xs).NormSquared()))
		p.AddPerformanceMetric(f.Value(x0).Sub(f.Value(xs)))
		return p
	}

	p := build(func(e *core.Expression) *core.Constraint { return e.EqConst(1) })
	res := solveOrFail(t, p)
	assert.Equal(t, StateInfeasible, res.Status, res.Reason)
	assert.Equal(t, StateInfeasible, p.State())

	p = build(func(e *core.Expression) *core.Constraint { return e.LeConst(1) })
	res = solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	assert.InDelta(t, 0, res.Bound, 1e-5)
}

func TestCompositeSum(t *testing.T) {
	// two 1-smooth convex terms make a 2-smooth convex sum, so a step of 1/2
	// has the worst case 2/6
	p := newTestPEP()
	f1 := p.DeclareFunction("f1", core.WithClass(smoothConvex(t, 1)))
	f2 := p.DeclareFunction("f2", core.WithClass(smoothConvex(t, 1)))
	f := f1.Add(f2)
	xs := f.StationaryPoint("x_star")
	x0 := p.SetInitialPoint("x0")
	p.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))
	x1 := x0.Sub(f.Gradient(x0).Scale(0.5))
	metric := f.Value(x1).Sub(f.Value(xs))
	p.AddPerformanceMetric(metric)

	res := solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	assert.InDelta(t, 1.0/3, res.Bound, 1e-5)
	assert.True(t, res.Verified(), res.Warnings)
	assert.Positive(t, res.Stats["f1"])
	assert.Positive(t, res.Stats["f2"])

	leaves := f1.Gradient(xs).Add(f2.Gradient(xs))
	sum, err := res.EvalPoint(f.Gradient(xs))
	require.NoError(t, err)
	parts, err := res.EvalPoint(leaves)
	require.NoError(t, err)
	require.Len(t, parts, len(sum))
	for i := range sum {
		assert.InDelta(t, parts[i], sum[i], 1e-9)
	}
	norm, err := res.Eval(leaves.NormSquared())
	require.NoError(t, err)
	assert.InDelta(t, 0, norm, 1e-9)

	v, err := res.Eval(metric)
	require.NoError(t, err)
	assert.InDelta(t, res.Bound, v, 1e-5)
}

func TestUnboundedProblem(t *testing.T) {
	p := newTestPEP()
	p.AddPerformanceMetric(p.Registry().NewValue("v"))

	res := solveOrFail(t, p)
	assert.Equal(t, StateInfeasible, res.Status)
	assert.Equal(t, sdp.StatusUnbounded, res.SolverStatus)
	assert.Contains(t, res.Reason, "unbounded: ")
}

type stubSolver struct {
	sol *sdp.Solution
	err error
}

func (s *stubSolver) Name() string { return "stub" }

func (s *stubSolver) Solve(ctx context.Context, p *sdp.Problem, opts sdp.Options) (*sdp.Solution, error) {
	return s.sol, s.err
}

func valuesProblem(p *PEP) {
	v := p.Registry().NewValue("v")
	p.AddConstraint(v.LeConst(1))
	p.AddPerformanceMetric(v)
}

func TestSolverFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		p := newTestPEP(WithSolver(&stubSolver{sol: &sdp.Solution{Status: sdp.StatusSolverError, Reason: "boom"}}))
		valuesProblem(p)
		res := solveOrFail(t, p)
		assert.Equal(t, StateError, res.Status)
		assert.Equal(t, "boom", res.Reason)
		assert.Equal(t, StateError, p.State())
	})

	t.Run("shape", func(t *testing.T) {
		p := newTestPEP(WithSolver(&stubSolver{sol: &sdp.Solution{Status: sdp.StatusOptimal, Y: []float64{1}}}))
		valuesProblem(p)
		res := solveOrFail(t, p)
		assert.Equal(t, StateError, res.Status)
		assert.Contains(t, res.Reason, "wrong shape")
	})

	t.Run("error", func(t *testing.T) {
		p := newTestPEP(WithSolver(&stubSolver{err: errors.New("crashed")}))
		valuesProblem(p)
		res, err := p.Solve(context.Background())
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, core.IsCode(err, core.ErrSolver))
		assert.Equal(t, StateError, p.State())
	})

	t.Run("cancelled", func(t *testing.T) {
		p := newTestPEP(WithSolver(&stubSolver{err: context.Canceled}))
		valuesProblem(p)
		_, err := p.Solve(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, core.IsCode(err, core.ErrSolver))
	})
}

func TestSolveOnce(t *testing.T) {
	p := newTestPEP()
	valuesProblem(p)
	solveOrFail(t, p)

	_, err := p.Solve(context.Background())
	assert.True(t, core.IsCode(err, core.ErrInvalidState))

	assert.Panics(t, func() { p.SetInitialPoint("late") })
	assert.Panics(t, func() { p.AddPerformanceMetric(core.Constant(1)) })
	assert.Panics(t, func() { p.AddConstraint(core.Constant(1).LeConst(2)) })
	assert.Panics(t, func() { p.DeclareFunction("g") })
}

func TestSolveErrors(t *testing.T) {
	t.Run("no metric", func(t *testing.T) {
		p := newTestPEP()
		p.SetInitialPoint("x0")
		_, err := p.Solve(context.Background())
		assert.True(t, core.IsCode(err, core.ErrNoObjective))
		assert.Equal(t, StateError, p.State())
	})

	t.Run("foreign metric", func(t *testing.T) {
		p := newTestPEP()
		other := newTestPEP()
		x := other.SetInitialPoint("x")
		p.SetInitialPoint("x0")
		p.AddPerformanceMetric(x.NormSquared())
		_, err := p.Solve(context.Background())
		assert.True(t, core.IsCode(err, core.ErrInvalidReference))
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := utils.DefaultConfig()
		cfg.Tolerance = 2
		p := New(cfg, WithLogger(utils.DiscardLogger()))
		valuesProblem(p)
		_, err := p.Solve(context.Background())
		assert.True(t, core.IsCode(err, core.ErrInvalidConfig))
		assert.Equal(t, StateUnsolved, p.State())
	})
}

func TestAddPSDMatrix(t *testing.T) {
	p := newTestPEP()
	x := p.SetInitialPoint("x")
	// [[1, <x,x>], [<x,x>, 1]] PSD bounds |x|^2 by 1
	one := core.Constant(1)
	require.NoError(t, p.AddPSDMatrix("box", [][]*core.Expression{
		{one, x.NormSquared()},
		{x.NormSquared(), one},
	}))
	p.AddPerformanceMetric(x.NormSquared())
	res := solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	assert.InDelta(t, 1, res.Bound, 1e-5)
	assert.True(t, res.Verified(), res.Verification.Failures)

	err := newTestPEP().AddPSDMatrix("ragged", [][]*core.Expression{{one, one}})
	assert.Error(t, err)
}

func TestArchive(t *testing.T) {
	dir := t.TempDir()
	p := New(utils.DefaultConfig().WithStorePath(dir), WithLogger(utils.DiscardLogger()))
	valuesProblem(p)
	res := solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	assert.Empty(t, res.Warnings)

	a, err := store.Open(store.DefaultConfig(dir))
	require.NoError(t, err)
	defer a.Close()
	rec, err := a.Get(res.Digest)
	require.NoError(t, err)
	assert.Equal(t, "SOLVED", rec.Status)
	assert.Equal(t, res.ID, rec.ProblemID)
	assert.InDelta(t, 1, rec.Bound, 1e-5)
	assert.Equal(t, res.Commitment, rec.Commitment)
}

func TestArchiveFailureIsAWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(path, []byte("not a directory"), 0600))

	p := New(utils.DefaultConfig().WithStorePath(path), WithLogger(utils.DiscardLogger()))
	valuesProblem(p)
	res := solveOrFail(t, p)
	require.Equal(t, StateSolved, res.Status, res.Reason)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "result not archived")

	// the stored result is the returned one, complete with the warning
	assert.Same(t, res, p.Result())
	assert.Equal(t, res.Warnings, p.Result().Warnings)
}

func solveCount(t *testing.T, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "vybium_pep_bridge_solves_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSolveMetricsUseStateNames(t *testing.T) {
	solved := solveCount(t, "solved")
	infeasible := solveCount(t, "infeasible")

	p := newTestPEP()
	valuesProblem(p)
	require.Equal(t, StateSolved, solveOrFail(t, p).Status)

	p = newTestPEP()
	v := p.Registry().NewValue("v")
	p.AddConstraint(v.EqConst(1))
	p.AddConstraint(v.EqConst(2))
	p.AddPerformanceMetric(v)
	require.Equal(t, StateInfeasible, solveOrFail(t, p).Status)

	assert.Equal(t, solved+1, solveCount(t, "solved"))
	assert.Equal(t, infeasible+1, solveCount(t, "infeasible"))
	for _, status := range []string{"optimal", "optimal_inaccurate", "SOLVED", "ERROR"} {
		assert.Zero(t, solveCount(t, status), status)
	}
	assert.Equal(t, "error", StateError.label())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNSOLVED", StateUnsolved.String())
	assert.Equal(t, "COMPILING", StateCompiling.String())
	assert.Equal(t, "INFEASIBLE", StateInfeasible.String())
	assert.Equal(t, "STATE(9)", State(9).String())
	assert.False(t, StateCompiling.Terminal())
	assert.True(t, StateError.Terminal())
}

func TestNewDefaults(t *testing.T) {
	p := New(nil, WithLogger(utils.DiscardLogger()))
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, StateUnsolved, p.State())
	assert.Nil(t, p.Result())
	assert.Equal(t, utils.DefaultConfig(), p.Config())
}
