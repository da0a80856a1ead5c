// Package methods is a catalog of first-order methods whose worst cases are
// computed by performance estimation. Every entry builds a ready-to-solve PEP
// from named parameters and reports the known theoretical bound, if any.
package methods

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	vybiumpep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

// Params holds named method parameters. Missing parameters take the default
// of the method.
type Params map[string]float64

// Param describes a method parameter. A NaN default is derived from the
// other parameters.
type Param struct {
	Name    string
	Default float64
	Doc     string
}

// Instance is a built PEP together with the known guarantee of the method
type Instance struct {
	Method string
	PEP    *vybiumpep.PEP
	Params Params

	// Theoretical is the known bound, NaN when none is known
	Theoretical float64
	// Tight reports whether Theoretical is the exact worst case
	Tight bool
	// Guarantee describes the bounded quantity
	Guarantee string
}

// HasTheoretical reports whether a theoretical bound is known
func (in *Instance) HasTheoretical() bool {
	return !math.IsNaN(in.Theoretical)
}

// Builder declares a method on an empty PEP
type Builder func(pep *vybiumpep.PEP, p Params) (*Instance, error)

// Method is a catalog entry
type Method struct {
	Name        string
	Description string
	Params      []Param
	build       Builder
}

var catalog = struct {
	mu sync.RWMutex
	m  map[string]*Method
}{
	m: make(map[string]*Method),
}

// Register adds a method to the catalog
func Register(name, description string, params []Param, b Builder) error {
	if name == "" {
		return core.NewError(core.ErrInvalidInput, "method name is required")
	}
	if b == nil {
		return core.NewError(core.ErrInvalidInput, "method %q: builder is required", name)
	}
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if _, ok := catalog.m[name]; ok {
		return core.NewError(core.ErrInvalidInput, "method %q already registered", name)
	}
	catalog.m[name] = &Method{
		Name:        name,
		Description: description,
		Params:      append([]Param(nil), params...),
		build:       b,
	}
	return nil
}

// MustRegister is Register that panics on error
func MustRegister(name, description string, params []Param, b Builder) {
	if err := Register(name, description, params, b); err != nil {
		panic(err)
	}
}

// Lookup returns the method registered under name
func Lookup(name string) (*Method, error) {
	catalog.mu.RLock()
	defer catalog.mu.RUnlock()
	m, ok := catalog.m[name]
	if !ok {
		return nil, core.NewError(core.ErrNotFound, "method %q not found", name)
	}
	return m, nil
}

// Names lists the registered methods in sorted order
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

// Build looks a method up and builds it on a new PEP
func Build(name string, p Params, cfg *utils.Config, opts ...vybiumpep.Option) (*Instance, error) {
	m, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return m.Build(p, cfg, opts...)
}

// Build builds the method on a new PEP. Unknown parameters are rejected;
// missing ones take their defaults.
func (m *Method) Build(p Params, cfg *utils.Config, opts ...vybiumpep.Option) (*Instance, error) {
	resolved := make(Params, len(m.Params))
	for _, param := range m.Params {
		if !math.IsNaN(param.Default) {
			resolved[param.Name] = param.Default
		}
	}
	for k, v := range p {
		if !m.accepts(k) {
			return nil, core.NewError(core.ErrInvalidInput, "method %s has no parameter %q (accepted: %s)", m.Name, k, m.paramList())
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, core.NewError(core.ErrInvalidInput, "method %s: parameter %s must be finite, got %g", m.Name, k, v)
		}
		resolved[k] = v
	}

	pep := vybiumpep.New(cfg, opts...)
	in, err := m.build(pep, resolved)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", m.Name, err)
	}
	in.Method = m.Name
	in.PEP = pep
	in.Params = resolved
	return in, nil
}

func (m *Method) accepts(name string) bool {
	for _, p := range m.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (m *Method) paramList() string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// steps reads the iteration count, a positive integer
func (p Params) steps() (int, error) {
	v := p.get("n", 1)
	if v < 1 || v != math.Trunc(v) {
		return 0, core.NewError(core.ErrInvalidInput, "n must be a positive integer, got %g", v)
	}
	return int(v), nil
}

func positive(name string, v float64) error {
	if v <= 0 {
		return core.NewError(core.ErrInvalidInput, "%s must be positive, got %g", name, v)
	}
	return nil
}

// unknown is the theoretical bound of methods without one
func unknown() float64 {
	return math.NaN()
}
