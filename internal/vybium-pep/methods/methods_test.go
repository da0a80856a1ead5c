package methods

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vybiumpep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

func build(t *testing.T, name string, p Params) *Instance {
	t.Helper()
	in, err := Build(name, p, utils.DefaultConfig(), vybiumpep.WithLogger(utils.DiscardLogger()))
	require.NoError(t, err)
	return in
}

func solve(t *testing.T, in *Instance) *vybiumpep.Result {
	t.Helper()
	res, err := in.PEP.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, vybiumpep.StateSolved, res.Status, "%s: %s", in.Method, res.Reason)
	return res
}

func TestTightBounds(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   float64
	}{
		{"gradient_descent", nil, 1.0 / 6},
		{"gradient_descent", Params{"L": 3, "n": 2}, 3.0 / 10},
		{"gradient_descent_quadratics", nil, 2.0 / 27},
		{"gradient_descent_quadratics", Params{"mu": 0.3, "L": 3}, 2.0 / 9},
		{"inexact_gradient", nil, math.Pow(1.01/1.19, 4)},
		{"proximal_gradient", nil, 0.6561},
		{"accelerated_proximal_gradient", nil, 0.25},
		{"nolips", nil, 1.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := build(t, tt.name, tt.params)
			require.True(t, in.HasTheoretical())
			assert.True(t, in.Tight)
			assert.InDelta(t, tt.want, in.Theoretical, 1e-12)

			res := solve(t, in)
			assert.InDelta(t, in.Theoretical, res.Bound, 1e-4*math.Max(1, in.Theoretical))
		})
	}
}

func TestUpperBounds(t *testing.T) {
	for _, name := range []string{"accelerated_gradient", "douglas_rachford"} {
		t.Run(name, func(t *testing.T) {
			in := build(t, name, nil)
			require.True(t, in.HasTheoretical())
			assert.False(t, in.Tight)
			res := solve(t, in)
			assert.LessOrEqual(t, res.Bound, in.Theoretical+1e-5)
		})
	}
}

func TestMethodsWithoutTheory(t *testing.T) {
	for _, name := range []string{"heavy_ball", "past_extragradient", "alternate_projections"} {
		t.Run(name, func(t *testing.T) {
			in := build(t, name, nil)
			assert.False(t, in.HasTheoretical())
			res := solve(t, in)
			assert.GreaterOrEqual(t, res.Bound, -1e-6)
			assert.True(t, res.Verified(), res.Warnings)
		})
	}
}

func TestAcceleratedGradientFirstStep(t *testing.T) {
	// no momentum on the first step, so one step is gradient descent
	res := solve(t, build(t, "accelerated_gradient", Params{"L": 2}))
	assert.InDelta(t, 2.0/6, res.Bound, 1e-4)
}

func TestBuildParameters(t *testing.T) {
	in := build(t, "gradient_descent", Params{"L": 2})
	assert.Equal(t, Params{"L": 2, "n": 1}, in.Params)
	assert.Equal(t, "gradient_descent", in.Method)
	assert.InDelta(t, 2.0/6, in.Theoretical, 1e-12)

	off := build(t, "gradient_descent", Params{"gamma": 0.5})
	assert.False(t, off.HasTheoretical())

	tests := []struct {
		name   string
		method string
		params Params
		code   core.ErrorCode
	}{
		{"unknown parameter", "gradient_descent", Params{"momentum": 1}, core.ErrInvalidInput},
		{"fractional steps", "gradient_descent", Params{"n": 1.5}, core.ErrInvalidInput},
		{"zero steps", "heavy_ball", Params{"n": 0}, core.ErrInvalidInput},
		{"infinite value", "gradient_descent", Params{"L": math.Inf(1)}, core.ErrInvalidInput},
		{"invalid class", "proximal_gradient", Params{"mu": 2}, core.ErrInvalidInput},
		{"large step", "douglas_rachford", Params{"alpha": 1}, core.ErrInvalidInput},
		{"unknown method", "newton", nil, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.method, tt.params, nil, vybiumpep.WithLogger(utils.DiscardLogger()))
			require.Error(t, err)
			assert.True(t, core.IsCode(err, tt.code), err.Error())
		})
	}
}

func TestCatalog(t *testing.T) {
	names := Names()
	assert.Len(t, names, 11)
	assert.IsIncreasing(t, names)
	for _, name := range names {
		m, err := Lookup(name)
		require.NoError(t, err)
		assert.NotEmpty(t, m.Description)
		assert.True(t, m.accepts("n"), name)
	}

	err := Register("gradient_descent", "again", nil, gradientDescent)
	assert.True(t, core.IsCode(err, core.ErrInvalidInput))
	assert.Error(t, Register("", "", nil, gradientDescent))
	assert.Error(t, Register("empty", "", nil, nil))
}

func TestLongerRuns(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		want   float64
	}{
		{"gradient_descent", Params{"n": 5}, 1.0 / 22},
		{"gradient_descent", Params{"n": 10}, 1.0 / 42},
		{"accelerated_proximal_gradient", Params{"n": 4}, 2.0 / 38},
		{"past_extragradient", Params{"n": 5, "gamma": 0.25, "L": 1}, 0.0602613},
		{"inexact_gradient", Params{"n": 2}, math.Pow(1.01/1.19, 4)},
		{"inexact_gradient", Params{"n": 1}, math.Pow(1.01/1.19, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := solve(t, build(t, tt.name, tt.params))
			assert.True(t, res.SolverStatus.Solved(), res.SolverStatus.String())
			assert.InDelta(t, tt.want, res.Bound, 1e-4*math.Max(1, tt.want))
		})
	}

	t.Run("alternate_projections", func(t *testing.T) {
		res := solve(t, build(t, "alternate_projections", Params{"n": 5}))
		assert.GreaterOrEqual(t, res.Bound, -1e-6)
		assert.True(t, res.Verified(), res.Warnings)
	})
	t.Run("douglas_rachford", func(t *testing.T) {
		in := build(t, "douglas_rachford", Params{"n": 2})
		res := solve(t, in)
		assert.LessOrEqual(t, res.Bound, in.Theoretical+1e-5)
	})
}
