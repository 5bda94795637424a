package model

import (
	"math/rand"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// synthetic returns rows where y depends on feature 0 (step), feature 1
// (linear) and not at all on feature 2.
func synthetic(n int, seed int64) ([][]float64, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b, c := rnd.Float64()*10, rnd.Float64()*10, rnd.Float64()*10
		X[i] = []float64{a, b, c}
		y[i] = 2 * b
		if a > 5 {
			y[i] += 20
		}
		y[i] += rnd.NormFloat64() * 0.1
	}
	return X, y
}
