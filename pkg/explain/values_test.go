package explain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "region_shap_values.npy")
	m := mat.NewDense(2, 3, []float64{1, -2, 3.5, 0, 0.25, -7})

	require.NoError(t, SaveValues(path, m))
	got, err := LoadValues(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, got))

	_, err = LoadValues(filepath.Join(t.TempDir(), "missing.npy"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestComputeOrLoad(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	X, y := dataset(80, 3)
	e, err := NewTreeExplainer(fitForest(t, X, y))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "shap.npy")

	first, cached, err := ComputeOrLoad(ctx, logger, path, e, X, false)
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := ComputeOrLoad(ctx, logger, path, e, X, false)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.True(t, mat.EqualApprox(first, second, 0))

	// a different table invalidates the cache
	third, cached, err := ComputeOrLoad(ctx, logger, path, e, X[:10], false)
	require.NoError(t, err)
	assert.False(t, cached)
	r, _ := third.Dims()
	assert.Equal(t, 10, r)

	_, cached, err = ComputeOrLoad(ctx, nil, path, e, X[:10], true)
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestMeanAbsAndOrder(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, -4, 0,
		-3, 2, 0.5,
	})
	assert.Equal(t, []float64{2, 3, 0.25}, MeanAbs(m))
	assert.Equal(t, []int{1, 0, 2}, Order(MeanAbs(m)))
}
