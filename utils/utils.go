package utils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Identity Matrix.
func Eye(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Constant vector.
func Full(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// AllFinite reports whether xx is free of NaNs and infinities.
func AllFinite(xx []float64) bool {
	for _, x := range xx {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
