package model

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallParams() Params {
	p := DefaultParams()
	p.NEstimators = 30
	p.MaxFeatures = "all"
	return p
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		setting string
		p       int
		want    int
	}{
		{"sqrt", 17, 4},
		{"SQRT", 2, 1},
		{"log2", 17, 4},
		{"all", 17, 17},
		{"", 5, 5},
		{"3", 17, 3},
		{"40", 17, 17},
		{"0.5", 17, 8},
		{"0.01", 17, 1},
	}
	for _, tt := range tests {
		got, err := ResolveMaxFeatures(tt.setting, tt.p)
		require.NoError(t, err, tt.setting)
		assert.Equal(t, tt.want, got, tt.setting)
	}
	for _, bad := range []string{"cube", "-1", "0", "1.5"} {
		_, err := ResolveMaxFeatures(bad, 10)
		assert.Error(t, err, bad)
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.NEstimators = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.MaxFeatures = "half"
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.MinSamplesLeaf = -1
	assert.Error(t, p.Validate())
}

func TestRandomForest_FitPredict(t *testing.T) {
	X, y := synthetic(400, 1)
	Xte, yte := synthetic(100, 2)

	var calls atomic.Int64
	rf := NewRandomForestRegressor(smallParams(), WithProgress(func(done, total int) {
		calls.Add(1)
		assert.Equal(t, 30, total)
	}))
	require.NoError(t, rf.Fit(context.Background(), X, y))

	assert.Len(t, rf.Estimators(), 30)
	assert.Equal(t, 3, rf.NumFeatures())
	assert.Equal(t, int64(30), calls.Load())

	m, err := Evaluate(rf, Xte, yte)
	require.NoError(t, err)
	assert.Greater(t, m.R2, 0.95)
	assert.Len(t, m.Predictions, 100)

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Less(t, imp[2], imp[0])
	assert.Less(t, imp[2], imp[1])
}

func TestRandomForest_Reproducible(t *testing.T) {
	X, y := synthetic(150, 5)
	p := smallParams()
	p.NEstimators = 10
	p.MaxFeatures = "sqrt"

	a := NewRandomForestRegressor(p, WithWorkers(1))
	b := NewRandomForestRegressor(p, WithWorkers(4))
	require.NoError(t, a.Fit(context.Background(), X, y))
	require.NoError(t, b.Fit(context.Background(), X, y))

	assert.Equal(t, a.Predict(X), b.Predict(X))
}

func TestRandomForest_NoBootstrapSingleTreeMatchesTree(t *testing.T) {
	X, y := synthetic(80, 9)
	p := smallParams()
	p.NEstimators = 1
	rf := NewRandomForestRegressor(p, WithBootstrap(false), WithNEstimators(1))
	require.NoError(t, rf.Fit(context.Background(), X, y))

	tree := rf.Trees[0]
	assert.Equal(t, tree.Predict(X), rf.Predict(X))
	assert.InDelta(t, float64(len(X)), tree.Nodes[0].Weight, 1e-12)
}

func TestRandomForest_Cancelled(t *testing.T) {
	X, y := synthetic(100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rf := NewRandomForestRegressor(smallParams())
	err := rf.Fit(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rf.Trees)
}

func TestRandomForest_NotFitted(t *testing.T) {
	rf := NewRandomForestRegressor(smallParams())
	_, err := rf.FeatureImportances()
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Nil(t, rf.Predict(nil))
}
