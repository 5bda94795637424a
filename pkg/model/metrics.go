package model

import (
	"fmt"
	"math"

	"github.com/impala3/CARin2050/pkg/stats"
)

func MSE(yTrue, yPred []float64) float64 {
	n := float64(len(yTrue))
	if n == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return s / n
}

func MAE(yTrue, yPred []float64) float64 {
	n := float64(len(yTrue))
	if n == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yPred[i] - yTrue[i])
	}
	return s / n
}

func RMSE(yTrue, yPred []float64) float64 { return math.Sqrt(MSE(yTrue, yPred)) }

// R2 is the coefficient of determination. A constant yTrue scores 1 when
// predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	m := stats.Mean(yTrue)
	ssTot := 0.0
	ssRes := 0.0
	for i := range yTrue {
		d := yTrue[i] - m
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Metrics summarizes a model on a held-out set.
type Metrics struct {
	R2          float64
	RMSE        float64
	MAE         float64
	Predictions []float64
}

// Evaluate predicts X and scores the result against y.
func Evaluate(m Model, X [][]float64, y []float64) (Metrics, error) {
	if len(X) != len(y) {
		return Metrics{}, fmt.Errorf("evaluate: %w: %d rows, %d labels", ErrShapeMismatch, len(X), len(y))
	}
	if len(X) == 0 {
		return Metrics{}, fmt.Errorf("evaluate: %w", ErrEmptyDataset)
	}
	pred := m.Predict(X)
	return Metrics{
		R2:          R2(y, pred),
		RMSE:        RMSE(y, pred),
		MAE:         MAE(y, pred),
		Predictions: pred,
	}, nil
}
