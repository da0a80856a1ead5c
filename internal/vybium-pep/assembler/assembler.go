// Package assembler turns a finalized registry, its functions' interpolation
// conditions and the user's constraints and metrics into one flat problem
// over the point Gram matrix and the function value vector.
package assembler

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

// Source tells where an assembled constraint comes from
type Source int

const (
	// SourceInitial marks initial conditions
	SourceInitial Source = iota
	// SourceUser marks constraints added by the user
	SourceUser
	// SourceClass marks class interpolation conditions
	SourceClass
	// SourceFunction marks constraints attached to a function by a step
	SourceFunction
)

// String returns the source name
func (s Source) String() string {
	switch s {
	case SourceInitial:
		return "initial"
	case SourceUser:
		return "user"
	case SourceClass:
		return "class"
	case SourceFunction:
		return "function"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Row is one scalar constraint form <= 0 or form == 0
type Row struct {
	Name     string
	Kind     core.ConstraintKind
	Form     core.LinearForm
	Source   Source
	Function string
	Class    string
	// Aliases names the duplicates merged into this row
	Aliases []string
}

// LMI is a symmetric matrix of linear forms required to be PSD
type LMI struct {
	Name     string
	Source   Source
	Function string
	Class    string
	Entries  [][]core.LinearForm
}

// Size returns the dimension of the matrix
func (m LMI) Size() int {
	return len(m.Entries)
}

// Objective is one performance metric
type Objective struct {
	Name string
	Form core.LinearForm
}

// Problem is an assembled PEP: maximize the minimum of the objectives
// subject to the rows and LMIs, over a PSD Gram matrix of NumPoints points
// and a free vector of NumValues values
type Problem struct {
	NumPoints  int
	NumValues  int
	PointNames []string
	ValueNames []string
	Objectives []Objective
	Rows       []Row
	LMIs       []LMI
	// Duplicates counts rows merged into an earlier identical row
	Duplicates int
	// Trivial counts constant rows dropped because they always hold
	Trivial int
	// Digest identifies the problem independently of names and of the order
	// in which constraints were added
	Digest string
}

// Input collects what the bridge hands to Assemble
type Input struct {
	Registry          *core.Registry
	Metrics           []*core.Expression
	InitialConditions []*core.Constraint
	Constraints       []*core.Constraint
	Matrices          []*core.PSDMatrix
	DedupDigits       int
	HashFunction      string
}

// Assemble builds the problem. The registry must be finalized; every
// function contributes its interpolation conditions exactly once.
func Assemble(in Input) (*Problem, error) {
	reg := in.Registry
	if reg == nil {
		return nil, core.NewError(core.ErrInvalidInput, "assemble: nil registry")
	}
	if !reg.Finalized() {
		return nil, core.NewError(core.ErrInvalidState, "assemble: registry is not finalized")
	}
	if err := reg.Err(); err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	if len(in.Metrics) == 0 {
		return nil, core.NewError(core.ErrNoObjective, "no performance metric declared")
	}
	digits := in.DedupDigits
	if digits <= 0 {
		digits = 10
	}

	b := &builder{
		reg:    reg,
		digits: digits,
		seen:   make(map[string]int),
		prob: &Problem{
			NumPoints: reg.NumPoints(),
			NumValues: reg.NumValues(),
		},
	}
	for i := 0; i < reg.NumPoints(); i++ {
		b.prob.PointNames = append(b.prob.PointNames, reg.PointName(i))
	}
	for i := 0; i < reg.NumValues(); i++ {
		b.prob.ValueNames = append(b.prob.ValueNames, reg.ValueName(i))
	}

	for k, m := range in.Metrics {
		if err := b.objective(k, m); err != nil {
			return nil, err
		}
	}
	for i, c := range in.InitialConditions {
		if err := b.scalar(c, origin{source: SourceInitial}, fmt.Sprintf("initial[%d]", i)); err != nil {
			return nil, err
		}
	}
	for _, f := range reg.Functions() {
		triples := f.Triples()
		for _, class := range f.Classes() {
			set := class.Interpolate(f.Name(), triples)
			if err := set.Err(); err != nil {
				return nil, core.WrapError(core.ErrMalformedExpression, err, "class %s of %s", class.Name(), f.Name())
			}
			for _, c := range set.Scalars {
				if err := b.scalar(c, origin{SourceClass, f.Name(), class.Name()}, c.Name); err != nil {
					return nil, err
				}
			}
			for _, m := range set.Matrices {
				if err := b.matrix(m, origin{SourceClass, f.Name(), class.Name()}); err != nil {
					return nil, err
				}
			}
		}
		for _, c := range f.Extras() {
			if err := b.scalar(c, origin{SourceFunction, f.Name(), ""}, c.Name); err != nil {
				return nil, err
			}
		}
	}
	for i, c := range in.Constraints {
		if err := b.scalar(c, origin{source: SourceUser}, fmt.Sprintf("constraint[%d]", i)); err != nil {
			return nil, err
		}
	}
	for _, m := range in.Matrices {
		if err := b.matrix(m, origin{source: SourceUser}); err != nil {
			return nil, err
		}
	}

	b.prob.Digest = Digest(b.prob, in.HashFunction)
	return b.prob, nil
}

type origin struct {
	source   Source
	function string
	class    string
}

type builder struct {
	reg    *core.Registry
	digits int
	seen   map[string]int
	prob   *Problem
}

func (b *builder) objective(k int, m *core.Expression) error {
	if m == nil {
		return core.NewError(core.ErrMalformedExpression, "metric %d is nil", k)
	}
	if err := b.owned(m, fmt.Sprintf("metric %d", k)); err != nil {
		return err
	}
	form := m.Form()
	if err := b.inRange(form, fmt.Sprintf("metric %d", k)); err != nil {
		return err
	}
	b.prob.Objectives = append(b.prob.Objectives, Objective{Name: fmt.Sprintf("metric[%d]", k), Form: form})
	return nil
}

func (b *builder) scalar(c *core.Constraint, o origin, fallback string) error {
	if c == nil {
		return core.NewError(core.ErrMalformedExpression, "%s is nil", fallback)
	}
	name := c.Name
	if name == "" {
		name = fallback
	}
	if c.Expr == nil {
		return core.NewError(core.ErrMalformedExpression, "constraint %s has no expression", name)
	}
	if err := b.owned(c.Expr, name); err != nil {
		return err
	}
	form := c.Expr.Form()
	if err := b.inRange(form, name); err != nil {
		return err
	}

	if form.IsConstant() && holds(c.Kind, form.Constant) {
		b.prob.Trivial++
		return nil
	}

	key := c.Kind.String() + form.Key(b.digits)
	if idx, ok := b.seen[key]; ok {
		row := &b.prob.Rows[idx]
		row.Aliases = append(row.Aliases, name)
		b.prob.Duplicates++
		return nil
	}
	b.seen[key] = len(b.prob.Rows)
	b.prob.Rows = append(b.prob.Rows, Row{
		Name:     name,
		Kind:     c.Kind,
		Form:     form,
		Source:   o.source,
		Function: o.function,
		Class:    o.class,
	})
	return nil
}

func (b *builder) matrix(m *core.PSDMatrix, o origin) error {
	if m == nil {
		return core.NewError(core.ErrMalformedExpression, "PSD matrix is nil")
	}
	if _, err := core.NewPSDMatrix(m.Name, m.Entries); err != nil {
		return err
	}
	n := m.Size()
	entries := make([][]core.LinearForm, n)
	for i := range entries {
		entries[i] = make([]core.LinearForm, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			where := fmt.Sprintf("%s[%d,%d]", m.Name, i, j)
			if err := b.owned(m.Entries[i][j], where); err != nil {
				return err
			}
			form := m.Entries[i][j].Form()
			if err := b.inRange(form, where); err != nil {
				return err
			}
			entries[i][j] = form
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			tol := 1e-12 * math.Max(1, entries[i][j].MaxAbs())
			if !entries[i][j].ApproxEqual(entries[j][i], tol) {
				return core.NewError(core.ErrMalformedExpression, "PSD matrix %s is not symmetric at (%d,%d)", m.Name, i, j)
			}
		}
	}
	b.prob.LMIs = append(b.prob.LMIs, LMI{Name: m.Name, Source: o.source, Function: o.function, Class: o.class, Entries: entries})
	return nil
}

// owned checks that e carries no construction error and belongs to the registry
func (b *builder) owned(e *core.Expression, where string) error {
	if err := e.Err(); err != nil {
		if core.IsCode(err, core.ErrInvalidReference) {
			return fmt.Errorf("%s: %w", where, err)
		}
		return core.WrapError(core.ErrMalformedExpression, err, "%s", where)
	}
	if r := e.Registry(); r != nil && r != b.reg {
		return core.NewError(core.ErrInvalidReference, "%s references another PEP's registry", where)
	}
	return nil
}

// inRange checks that every index of form exists in the finalized registry
func (b *builder) inRange(form core.LinearForm, where string) error {
	if k := form.MaxValueIndex(); k >= b.prob.NumValues {
		return core.NewError(core.ErrInvalidReference, "%s references value %d outside the registry (%d values)", where, k, b.prob.NumValues)
	}
	if k := form.MaxPointIndex(); k >= b.prob.NumPoints {
		return core.NewError(core.ErrInvalidReference, "%s references point %d outside the registry (%d points)", where, k, b.prob.NumPoints)
	}
	return nil
}

func holds(kind core.ConstraintKind, c float64) bool {
	if kind == core.Equality {
		return c == 0
	}
	return c <= 0
}

// Digest hashes the problem structure: sizes, then the sorted keys of the
// objectives, rows and LMIs, with coefficients rounded to 12 significant
// digits. Points and values enter by index, so the digest still depends on
// the order in which they were created.
func Digest(p *Problem, hashFunc string) string {
	ch := utils.NewChannel(hashFunc)
	ch.SendInt("points", p.NumPoints)
	ch.SendInt("values", p.NumValues)

	objectives := make([]string, len(p.Objectives))
	for k, o := range p.Objectives {
		objectives[k] = o.Form.Key(12)
	}
	rows := make([]string, len(p.Rows))
	for k, r := range p.Rows {
		rows[k] = r.Kind.String() + r.Form.Key(12)
	}
	lmis := make([]string, len(p.LMIs))
	for k, m := range p.LMIs {
		lmis[k] = lmiKey(m)
	}
	for _, part := range []struct {
		label string
		keys  []string
	}{{"objective", objectives}, {"row", rows}, {"lmi", lmis}} {
		sort.Strings(part.keys)
		ch.SendInt(part.label+"s", len(part.keys))
		for _, key := range part.keys {
			ch.SendString(part.label, key)
		}
	}
	return ch.Hex()
}

// lmiKey serializes the upper triangle of an LMI row by row
func lmiKey(m LMI) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", m.Size())
	for i := range m.Entries {
		for j := i; j < len(m.Entries); j++ {
			sb.WriteString("|")
			sb.WriteString(m.Entries[i][j].Key(12))
		}
	}
	return sb.String()
}

// Stats summarizes the number of rows per function
func (p *Problem) Stats() map[string]int {
	out := make(map[string]int)
	for _, r := range p.Rows {
		key := r.Function
		if key == "" {
			key = r.Source.String()
		}
		out[key]++
	}
	return out
}

// NumEqualities returns the number of equality rows
func (p *Problem) NumEqualities() int {
	n := 0
	for _, r := range p.Rows {
		if r.Kind == core.Equality {
			n++
		}
	}
	return n
}
