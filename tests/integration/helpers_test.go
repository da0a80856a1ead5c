package integration_test

import "math"

// within reports whether got matches want up to a relative tolerance
func within(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}
