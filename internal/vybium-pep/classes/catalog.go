package classes

import (
	"math"
	"sort"
	"sync"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// Params holds named class parameters (mu, L, M, D, beta)
type Params map[string]float64

// Factory builds a class from its parameters
type Factory func(p Params) (core.Class, error)

type entry struct {
	factory Factory
	params  []string
}

var catalog = struct {
	mu sync.RWMutex
	m  map[string]entry
}{
	m: make(map[string]entry),
}

func init() {
	initializeBuiltInClasses()
}

func initializeBuiltInClasses() {
	MustRegister("convex", nil, func(Params) (core.Class, error) { return NewConvex(), nil })
	MustRegister("strongly_convex", []string{"mu"}, func(p Params) (core.Class, error) {
		mu, err := p.require("strongly_convex", "mu")
		if err != nil {
			return nil, err
		}
		return NewStronglyConvex(mu)
	})
	MustRegister("convex_lipschitz", []string{"M"}, func(p Params) (core.Class, error) {
		m, err := p.require("convex_lipschitz", "M")
		if err != nil {
			return nil, err
		}
		return NewConvexLipschitz(m)
	})
	MustRegister("convex_indicator", []string{"D"}, func(p Params) (core.Class, error) {
		return NewConvexIndicator(p.get("D", math.Inf(1)))
	})
	MustRegister("convex_support", []string{"M"}, func(p Params) (core.Class, error) {
		return NewConvexSupport(p.get("M", math.Inf(1)))
	})
	MustRegister("smooth_convex", []string{"L"}, func(p Params) (core.Class, error) {
		l, err := p.require("smooth_convex", "L")
		if err != nil {
			return nil, err
		}
		return NewSmoothConvex(l)
	})
	MustRegister("smooth_strongly_convex", []string{"mu", "L"}, func(p Params) (core.Class, error) {
		l, err := p.require("smooth_strongly_convex", "L")
		if err != nil {
			return nil, err
		}
		return NewSmoothStronglyConvex(p.get("mu", 0), l)
	})
	MustRegister("smooth", []string{"L"}, func(p Params) (core.Class, error) {
		l, err := p.require("smooth", "L")
		if err != nil {
			return nil, err
		}
		return NewSmooth(l)
	})
	MustRegister("smooth_strongly_convex_quadratic", []string{"mu", "L"}, func(p Params) (core.Class, error) {
		l, err := p.require("smooth_strongly_convex_quadratic", "L")
		if err != nil {
			return nil, err
		}
		return NewSmoothStronglyConvexQuadratic(p.get("mu", 0), l)
	})
	MustRegister("monotone", nil, func(Params) (core.Class, error) { return NewMonotone(), nil })
	MustRegister("strongly_monotone", []string{"mu"}, func(p Params) (core.Class, error) {
		mu, err := p.require("strongly_monotone", "mu")
		if err != nil {
			return nil, err
		}
		return NewStronglyMonotone(mu)
	})
	MustRegister("lipschitz_operator", []string{"L"}, func(p Params) (core.Class, error) {
		l, err := p.require("lipschitz_operator", "L")
		if err != nil {
			return nil, err
		}
		return NewLipschitzOperator(l)
	})
	MustRegister("cocoercive", []string{"beta"}, func(p Params) (core.Class, error) {
		beta, err := p.require("cocoercive", "beta")
		if err != nil {
			return nil, err
		}
		return NewCocoercive(beta)
	})
	MustRegister("lipschitz_strongly_monotone", []string{"mu", "L"}, func(p Params) (core.Class, error) {
		mu, err := p.require("lipschitz_strongly_monotone", "mu")
		if err != nil {
			return nil, err
		}
		l, err := p.require("lipschitz_strongly_monotone", "L")
		if err != nil {
			return nil, err
		}
		return NewLipschitzStronglyMonotone(mu, l)
	})
}

// Register adds a named class factory to the catalog
func Register(name string, params []string, f Factory) error {
	if name == "" {
		return core.NewError(core.ErrInvalidInput, "class name is required")
	}
	if f == nil {
		return core.NewError(core.ErrInvalidInput, "class %q: factory is required", name)
	}
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if _, ok := catalog.m[name]; ok {
		return core.NewError(core.ErrInvalidInput, "class %q already registered", name)
	}
	catalog.m[name] = entry{factory: f, params: append([]string(nil), params...)}
	return nil
}

// MustRegister is Register that panics on error
func MustRegister(name string, params []string, f Factory) {
	if err := Register(name, params, f); err != nil {
		panic(err)
	}
}

// Lookup builds the class registered under name
func Lookup(name string, p Params) (core.Class, error) {
	catalog.mu.RLock()
	e, ok := catalog.m[name]
	catalog.mu.RUnlock()
	if !ok {
		return nil, core.NewError(core.ErrNotFound, "class %q not found", name)
	}
	return e.factory(p)
}

// Names lists the registered class names in sorted order
func Names() []string {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()
	out := make([]string, 0, len(catalog.m))
	for name := range catalog.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParamNames lists the parameters accepted by a registered class
func ParamNames(name string) []string {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()
	return append([]string(nil), catalog.m[name].params...)
}

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (p Params) require(class, name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, core.NewError(core.ErrInvalidInput, "class %s requires parameter %s", class, name)
	}
	return v, nil
}
