package explain

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/impala3/CARin2050/pkg/model"
)

// dataset has an interaction between features 0 and 1, a linear term on
// feature 2 and a constant feature 3 that can never be split on.
func dataset(n int, seed int64) ([][]float64, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b, c := rnd.Float64(), rnd.Float64(), rnd.Float64()*4
		X[i] = []float64{a, b, c, 1}
		y[i] = c
		if a > 0.5 && b > 0.3 {
			y[i] += 5
		}
	}
	return X, y
}

func fitForest(t *testing.T, X [][]float64, y []float64) *model.RandomForestRegressor {
	t.Helper()
	p := model.DefaultParams()
	p.NEstimators = 20
	p.MaxDepth = 6
	p.MaxFeatures = "all"
	rf := model.NewRandomForestRegressor(p)
	require.NoError(t, rf.Fit(context.Background(), X, y))
	return rf
}

// shapOf explains a single row.
func shapOf(t *testing.T, e *TreeExplainer, x []float64) []float64 {
	t.Helper()
	vals, err := e.ShapValues(context.Background(), [][]float64{x})
	require.NoError(t, err)
	return mat.Row(nil, 0, vals)
}

func TestTreeExplainer_Stump(t *testing.T) {
	X := [][]float64{{0}, {0}, {1}, {1}}
	y := []float64{0, 0, 10, 10}
	p := model.DefaultParams()
	p.NEstimators = 1
	p.Bootstrap = false
	p.MaxFeatures = "all"
	p.MinSamplesSplit = 2
	p.MinSamplesLeaf = 1
	rf := model.NewRandomForestRegressor(p)
	require.NoError(t, rf.Fit(context.Background(), X, y))

	e, err := NewTreeExplainer(rf)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, e.ExpectedValue(), 1e-12)

	phi := shapOf(t, e, []float64{1})
	assert.InDelta(t, 5.0, phi[0], 1e-12)

	phi = shapOf(t, e, []float64{0})
	assert.InDelta(t, -5.0, phi[0], 1e-12)
}

func TestTreeExplainer_TwoFeatureInteraction(t *testing.T) {
	// y = 4 only when both features are 1; the credit is split evenly
	X := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	y := []float64{0, 0, 0, 4}
	p := model.DefaultParams()
	p.NEstimators = 1
	p.Bootstrap = false
	p.MaxFeatures = "all"
	p.MinSamplesSplit = 2
	p.MinSamplesLeaf = 1
	rf := model.NewRandomForestRegressor(p)
	require.NoError(t, rf.Fit(context.Background(), X, y))

	e, err := NewTreeExplainer(rf)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e.ExpectedValue(), 1e-12)

	phi := shapOf(t, e, []float64{1, 1})
	assert.InDelta(t, 1.5, phi[0], 1e-12)
	assert.InDelta(t, 1.5, phi[1], 1e-12)
}

func TestTreeExplainer_LocalAccuracy(t *testing.T) {
	X, y := dataset(300, 1)
	rf := fitForest(t, X, y)

	e, err := NewTreeExplainer(rf)
	require.NoError(t, err)
	e.SetWorkers(3)

	vals, err := e.ShapValues(context.Background(), X)
	require.NoError(t, err)
	r, c := vals.Dims()
	require.Equal(t, 300, r)
	require.Equal(t, 4, c)

	pred := rf.Predict(X)
	for i := range X {
		sum := e.ExpectedValue()
		for j := 0; j < c; j++ {
			sum += vals.At(i, j)
		}
		assert.InDelta(t, pred[i], sum, 1e-9, "row %d", i)
		assert.Equal(t, 0.0, vals.At(i, 3), "constant feature gets no credit")
	}

	one := shapOf(t, e, X[7])
	for j := 0; j < c; j++ {
		assert.InDelta(t, vals.At(7, j), one[j], 1e-12)
	}
}

func TestTreeExplainer_MissingValues(t *testing.T) {
	X, y := dataset(300, 5)
	rnd := rand.New(rand.NewSource(6))
	for i := range X {
		for j := 0; j < 3; j++ {
			if rnd.Float64() < 0.1 {
				X[i][j] = math.NaN()
			}
		}
	}
	p := model.DefaultParams()
	p.NEstimators = 50
	rf := model.NewRandomForestRegressor(p)
	require.NoError(t, rf.Fit(context.Background(), X, y))

	e, err := NewTreeExplainer(rf)
	require.NoError(t, err)
	vals, err := e.ShapValues(context.Background(), X)
	require.NoError(t, err)

	pred := rf.Predict(X)
	nanRows := 0
	for i := range X {
		sum := e.ExpectedValue()
		hasNaN := false
		for j := range X[i] {
			sum += vals.At(i, j)
			hasNaN = hasNaN || math.IsNaN(X[i][j])
		}
		if hasNaN {
			nanRows++
		}
		assert.False(t, math.IsNaN(sum), "row %d", i)
		assert.InDelta(t, pred[i], sum, 1e-9, "row %d", i)
	}
	assert.Greater(t, nanRows, 0)
}

func TestTreeExplainer_Errors(t *testing.T) {
	_, err := NewTreeExplainer(model.NewRandomForestRegressor(model.DefaultParams()))
	assert.ErrorIs(t, err, ErrNoTrees)

	X, y := dataset(50, 2)
	e, err := NewTreeExplainer(fitForest(t, X, y))
	require.NoError(t, err)

	_, err = e.ShapValues(context.Background(), nil)
	assert.Error(t, err)
	_, err = e.ShapValues(context.Background(), [][]float64{{1, 2}})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.ShapValues(ctx, X)
	assert.ErrorIs(t, err, context.Canceled)
}
