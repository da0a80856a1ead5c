package core

import (
	"fmt"
	"strings"
)

// ConstraintKind distinguishes inequalities from equalities
type ConstraintKind int

const (
	// Inequality constrains its expression to be <= 0
	Inequality ConstraintKind = iota
	// Equality constrains its expression to be == 0
	Equality
)

// String returns the relation symbol of the kind
func (k ConstraintKind) String() string {
	if k == Equality {
		return "=="
	}
	return "<="
}

// Constraint is a scalar condition Expr <= 0 or Expr == 0
type Constraint struct {
	Name string
	Kind ConstraintKind
	Expr *Expression
}

func newConstraint(kind ConstraintKind, expr *Expression) *Constraint {
	return &Constraint{Kind: kind, Expr: expr}
}

// Named returns a copy of the constraint carrying the given name
func (c *Constraint) Named(name string) *Constraint {
	out := *c
	out.Name = name
	return &out
}

// Err returns the construction error of the underlying expression
func (c *Constraint) Err() error {
	if c.Expr == nil {
		return NewError(ErrMalformedExpression, "constraint %q has no expression", c.Name)
	}
	return c.Expr.Err()
}

// Registry returns the registry of the underlying expression
func (c *Constraint) Registry() *Registry {
	if c.Expr == nil {
		return nil
	}
	return c.Expr.Registry()
}

// String renders the constraint
func (c *Constraint) String() string {
	body := "<nil>"
	if c.Expr != nil {
		body = c.Expr.String()
	}
	if c.Name == "" {
		return fmt.Sprintf("%s %s 0", body, c.Kind)
	}
	return fmt.Sprintf("%s: %s %s 0", c.Name, body, c.Kind)
}

// PSDMatrix is a symmetric matrix of expressions required to be positive
// semidefinite (a linear matrix inequality)
type PSDMatrix struct {
	Name    string
	Entries [][]*Expression
}

// NewPSDMatrix checks that rows form a non-empty square matrix
func NewPSDMatrix(name string, rows [][]*Expression) (*PSDMatrix, error) {
	if len(rows) == 0 {
		return nil, NewError(ErrInvalidInput, "PSD matrix %q is empty", name)
	}
	for i, row := range rows {
		if len(row) != len(rows) {
			return nil, NewError(ErrInvalidInput, "PSD matrix %q row %d has %d entries, want %d", name, i, len(row), len(rows))
		}
		for j, e := range row {
			if e == nil {
				return nil, NewError(ErrInvalidInput, "PSD matrix %q entry (%d,%d) is nil", name, i, j)
			}
		}
	}
	return &PSDMatrix{Name: name, Entries: rows}, nil
}

// Size returns the dimension of the matrix
func (m *PSDMatrix) Size() int {
	return len(m.Entries)
}

// Err returns the first construction error among the entries
func (m *PSDMatrix) Err() error {
	for _, row := range m.Entries {
		for _, e := range row {
			if err := e.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// String renders the matrix row by row
func (m *PSDMatrix) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: PSD %dx%d", m.Name, m.Size(), m.Size())
	for _, row := range m.Entries {
		sb.WriteString("\n  [")
		for j, e := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// ConstraintSet groups the scalar constraints and LMIs of one generator.
// A generator that cannot build a constraint records the error with Fail;
// the first one sticks.
type ConstraintSet struct {
	Scalars  []*Constraint
	Matrices []*PSDMatrix
	err      error
}

// Fail records err unless an earlier error is recorded
func (s *ConstraintSet) Fail(err error) {
	s.err = firstErr(s.err, err)
}

// Err returns the first recorded error
func (s ConstraintSet) Err() error {
	return s.err
}

// Add appends scalar constraints
func (s *ConstraintSet) Add(cs ...*Constraint) {
	s.Scalars = append(s.Scalars, cs...)
}

// AddMatrix appends LMIs
func (s *ConstraintSet) AddMatrix(ms ...*PSDMatrix) {
	s.Matrices = append(s.Matrices, ms...)
}

// Merge appends every constraint of o
func (s *ConstraintSet) Merge(o ConstraintSet) {
	s.Scalars = append(s.Scalars, o.Scalars...)
	s.Matrices = append(s.Matrices, o.Matrices...)
	s.err = firstErr(s.err, o.err)
}

// Len returns the number of scalar constraints plus LMIs
func (s ConstraintSet) Len() int {
	return len(s.Scalars) + len(s.Matrices)
}
