package model

import (
	"context"
	"errors"
)

var (
	ErrNotFitted     = errors.New("model: not fitted")
	ErrEmptyDataset  = errors.New("model: empty X")
	ErrShapeMismatch = errors.New("model: shape mismatch")
)

// Model is a supervised regressor.
type Model interface {
	Fit(ctx context.Context, X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
}

// TreeEnsemble is implemented by models whose prediction is the mean of
// a set of regression trees.
type TreeEnsemble interface {
	Model
	Estimators() []*DecisionTreeRegressor
	NumFeatures() int
}

// checkXY validates the shape of a training set and returns the feature
// count.
func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyDataset
	}
	if len(y) != len(X) {
		return 0, errors.Join(ErrShapeMismatch, errors.New("X and y length mismatch"))
	}
	p := len(X[0])
	if p == 0 {
		return 0, errors.Join(ErrShapeMismatch, errors.New("no features"))
	}
	for i := range X {
		if len(X[i]) != p {
			return 0, errors.Join(ErrShapeMismatch, errors.New("inconsistent number of features in X rows"))
		}
	}
	return p, nil
}
