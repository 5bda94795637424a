package explain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/sbinet/npyio"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SaveValues writes m as a NumPy .npy file.
func SaveValues(path string, m *mat.Dense) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("shap values: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("shap values: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := npyio.Write(tmp, m); err != nil {
		tmp.Close()
		return fmt.Errorf("shap values: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("shap values: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadValues reads a .npy matrix written by SaveValues or by NumPy.
func LoadValues(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shap values: %w", err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("shap values: decode %s: %w", path, err)
	}
	return &m, nil
}

// ComputeOrLoad returns the cached matrix at path when its shape matches
// X, otherwise computes the values with e and stores them at path. The
// bool result reports a cache hit.
func ComputeOrLoad(ctx context.Context, logger *zap.Logger, path string, e *TreeExplainer, X [][]float64, force bool) (*mat.Dense, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("shap_path", path))

	if !force {
		m, err := LoadValues(path)
		switch {
		case err == nil:
			r, c := m.Dims()
			if r == len(X) && len(X) > 0 && c == len(X[0]) {
				log.Info("loaded cached SHAP values", zap.Int("rows", r), zap.Int("cols", c))
				return m, true, nil
			}
			log.Warn("cached SHAP values have a different shape, recomputing",
				zap.Int("cached_rows", r), zap.Int("cached_cols", c))
		case errors.Is(err, os.ErrNotExist):
		default:
			log.Warn("cached SHAP values unreadable, recomputing", zap.Error(err))
		}
	}

	m, err := e.ShapValues(ctx, X)
	if err != nil {
		return nil, false, err
	}
	if err := SaveValues(path, m); err != nil {
		return nil, false, err
	}
	log.Info("SHAP values saved")
	return m, false, nil
}

// MeanAbs returns the mean absolute attribution of every column.
func MeanAbs(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	if r == 0 {
		return out
	}
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += math.Abs(m.At(i, j))
		}
		out[j] = s / float64(r)
	}
	return out
}

// Order returns column indexes sorted by descending score.
func Order(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	return idx
}
