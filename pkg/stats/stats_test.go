package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinite(t *testing.T) {
	got := Finite([]float64{1, math.NaN(), 2, math.Inf(1), 3})
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestMeanAndStd(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), Std([]float64{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, Std([]float64{7}))
}

func TestPercentile(t *testing.T) {
	x := []float64{5, 1, 3, 2, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{100, 5},
		{50, 3},
		{25, 2},
		{90, 4.6},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(x, tt.p), 1e-12, "p=%v", tt.p)
	}
	// input must not be reordered
	assert.Equal(t, []float64{5, 1, 3, 2, 4}, x)
	assert.InDelta(t, 2.5, Median([]float64{1, 2, 3, 4}), 1e-12)
}

func TestMinMax(t *testing.T) {
	lo, hi := MinMax([]float64{3, -1, 8, 2})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 8.0, hi)
}
