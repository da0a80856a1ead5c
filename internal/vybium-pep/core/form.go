package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Pair indexes one entry of the symmetric Gram matrix, with I <= J
type Pair struct {
	I, J int
}

// NewPair returns the canonical pair for leaf points i and j
func NewPair(i, j int) Pair {
	if i > j {
		i, j = j, i
	}
	return Pair{I: i, J: j}
}

// LinearForm is the canonical form of a scalar expression:
//
//	Constant + sum_k Values[k] * f_k + sum_(i<=j) Products[(i,j)] * G_ij
//
// where f_k are the registered function values and G_ij the Gram entries
// <x_i, x_j> of the registered leaf points.
type LinearForm struct {
	Constant float64
	Values   map[int]float64
	Products map[Pair]float64
}

// NewLinearForm returns an empty linear form
func NewLinearForm() LinearForm {
	return LinearForm{
		Values:   make(map[int]float64),
		Products: make(map[Pair]float64),
	}
}

// Clone returns a deep copy of the form
func (l LinearForm) Clone() LinearForm {
	out := LinearForm{
		Constant: l.Constant,
		Values:   make(map[int]float64, len(l.Values)),
		Products: make(map[Pair]float64, len(l.Products)),
	}
	for k, v := range l.Values {
		out.Values[k] = v
	}
	for k, v := range l.Products {
		out.Products[k] = v
	}
	return out
}

// AddScaled adds alpha * o to the form in place
func (l *LinearForm) AddScaled(alpha float64, o LinearForm) {
	if l.Values == nil {
		l.Values = make(map[int]float64)
	}
	if l.Products == nil {
		l.Products = make(map[Pair]float64)
	}
	l.Constant += alpha * o.Constant
	for k, v := range o.Values {
		addCoef(l.Values, k, alpha*v)
	}
	for k, v := range o.Products {
		addCoef(l.Products, k, alpha*v)
	}
}

// Scaled returns alpha * l
func (l LinearForm) Scaled(alpha float64) LinearForm {
	out := NewLinearForm()
	out.AddScaled(alpha, l)
	return out
}

// MaxAbs returns the largest absolute coefficient, constant included
func (l LinearForm) MaxAbs() float64 {
	out := math.Abs(l.Constant)
	for _, v := range l.Values {
		out = math.Max(out, math.Abs(v))
	}
	for _, v := range l.Products {
		out = math.Max(out, math.Abs(v))
	}
	return out
}

// ApproxEqual reports whether every coefficient of l - o is at most tol in
// absolute value
func (l LinearForm) ApproxEqual(o LinearForm, tol float64) bool {
	d := l.Clone()
	d.AddScaled(-1, o)
	return d.MaxAbs() <= tol
}

// IsConstant reports whether the form has no value or Gram coefficient
func (l LinearForm) IsConstant() bool {
	return len(l.Values) == 0 && len(l.Products) == 0
}

// MaxValueIndex returns the largest value index used, or -1
func (l LinearForm) MaxValueIndex() int {
	largest := -1
	for k := range l.Values {
		if k > largest {
			largest = k
		}
	}
	return largest
}

// MaxPointIndex returns the largest leaf point index used, or -1
func (l LinearForm) MaxPointIndex() int {
	largest := -1
	for p := range l.Products {
		if p.J > largest {
			largest = p.J
		}
	}
	return largest
}

// Eval evaluates the form for a Gram matrix accessor and a value vector
func (l LinearForm) Eval(gram func(i, j int) float64, values []float64) float64 {
	out := l.Constant
	for k, v := range l.Values {
		out += v * values[k]
	}
	for p, v := range l.Products {
		out += v * gram(p.I, p.J)
	}
	return out
}

// SortedValues returns the value indices in increasing order
func (l LinearForm) SortedValues() []int {
	keys := make([]int, 0, len(l.Values))
	for k := range l.Values {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SortedProducts returns the Gram pairs in row-major order
func (l LinearForm) SortedProducts() []Pair {
	keys := make([]Pair, 0, len(l.Products))
	for k := range l.Products {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].I != keys[b].I {
			return keys[a].I < keys[b].I
		}
		return keys[a].J < keys[b].J
	})
	return keys
}

// Key returns a deterministic encoding of the form with coefficients rounded
// to the given number of significant digits, after normalizing by the
// largest absolute coefficient. Two constraints with equal keys describe the
// same half-space or hyperplane.
func (l LinearForm) Key(digits int) string {
	scale := l.MaxAbs()
	if scale == 0 {
		return "0"
	}
	round := func(v float64) string {
		return strconvFloat(v/scale, digits)
	}

	var sb strings.Builder
	sb.WriteString("c=")
	sb.WriteString(round(l.Constant))
	for _, k := range l.SortedValues() {
		fmt.Fprintf(&sb, ";f%d=%s", k, round(l.Values[k]))
	}
	for _, p := range l.SortedProducts() {
		fmt.Fprintf(&sb, ";g%d.%d=%s", p.I, p.J, round(l.Products[p]))
	}
	return sb.String()
}

// Format renders the form with the given leaf names
func (l LinearForm) Format(pointName, valueName func(int) string) string {
	var terms []string
	for _, k := range l.SortedValues() {
		terms = append(terms, formatTerm(l.Values[k], valueName(k)))
	}
	for _, p := range l.SortedProducts() {
		var name string
		if p.I == p.J {
			name = fmt.Sprintf("|%s|^2", pointName(p.I))
		} else {
			name = fmt.Sprintf("<%s, %s>", pointName(p.I), pointName(p.J))
		}
		terms = append(terms, formatTerm(l.Products[p], name))
	}
	if l.Constant != 0 || len(terms) == 0 {
		terms = append(terms, strconvFloat(l.Constant, 6))
	}
	out := strings.Join(terms, " + ")
	return strings.ReplaceAll(out, "+ -", "- ")
}

func formatTerm(coef float64, name string) string {
	switch coef {
	case 1:
		return name
	case -1:
		return "-" + name
	}
	return strconvFloat(coef, 6) + "*" + name
}

func strconvFloat(v float64, digits int) string {
	out := fmt.Sprintf("%.*g", digits, v)
	if out == "-0" {
		return "0"
	}
	return out
}

func addCoef[K comparable](m map[K]float64, k K, v float64) {
	if v == 0 {
		return
	}
	nv := m[k] + v
	if nv == 0 {
		delete(m, k)
		return
	}
	m[k] = nv
}
