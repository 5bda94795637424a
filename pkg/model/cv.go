package model

import (
	"context"
	"fmt"

	"github.com/impala3/CARin2050/pkg/loader"
	"github.com/impala3/CARin2050/pkg/stats"
)

// CVResult holds per-fold scores of a k-fold cross-validation.
type CVResult struct {
	R2   []float64
	RMSE []float64
}

func (r CVResult) MeanR2() float64   { return stats.Mean(r.R2) }
func (r CVResult) MeanRMSE() float64 { return stats.Mean(r.RMSE) }
func (r CVResult) StdR2() float64    { return stats.Std(r.R2) }

// CrossValidate fits a fresh model from newModel on every k-1 folds and
// scores it on the remaining fold.
func CrossValidate(ctx context.Context, newModel func() Model, X [][]float64, y []float64, k int, seed int64) (CVResult, error) {
	var res CVResult
	folds, err := loader.KFoldSplit(len(X), k, seed)
	if err != nil {
		return res, err
	}
	for f, test := range folds {
		train := loader.Complement(len(X), test)
		xTr, yTr := loader.Take(X, y, train)
		xTe, yTe := loader.Take(X, y, test)

		m := newModel()
		if err := m.Fit(ctx, xTr, yTr); err != nil {
			return res, fmt.Errorf("cv fold %d: %w", f, err)
		}
		met, err := Evaluate(m, xTe, yTe)
		if err != nil {
			return res, fmt.Errorf("cv fold %d: %w", f, err)
		}
		res.R2 = append(res.R2, met.R2)
		res.RMSE = append(res.RMSE, met.RMSE)
	}
	return res, nil
}
