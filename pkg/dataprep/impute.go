package dataprep

import (
	"errors"
	"fmt"
	"math"

	"github.com/impala3/CARin2050/pkg/stats"
)

// Strategy names the statistic used to fill missing feature values.
type Strategy string

const (
	StrategyMedian Strategy = "median"
	StrategyMean   Strategy = "mean"
	StrategyNone   Strategy = "none"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("dataprep: imputer not fitted")

// ParseStrategy validates a strategy name. An empty name selects median.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyMedian, nil
	case StrategyMedian, StrategyMean, StrategyNone:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("dataprep: unknown impute strategy %q", s)
}

// Imputer replaces NaN cells with a per-column statistic learned on the
// training rows. A column with no observed value is filled with 0.
type Imputer struct {
	Strategy Strategy
	Fill     []float64

	// Missing counts the NaN cells seen per column during Fit.
	Missing []int
}

func NewImputer(s Strategy) *Imputer { return &Imputer{Strategy: s} }

// Fit learns the fill value of every column of X.
func (im *Imputer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("dataprep: empty X")
	}
	p := len(X[0])
	im.Fill = make([]float64, p)
	im.Missing = make([]int, p)
	col := make([]float64, 0, len(X))
	for j := 0; j < p; j++ {
		col = col[:0]
		for i := range X {
			if len(X[i]) != p {
				return fmt.Errorf("dataprep: row %d has %d columns, want %d", i, len(X[i]), p)
			}
			if math.IsNaN(X[i][j]) {
				im.Missing[j]++
				continue
			}
			col = append(col, X[i][j])
		}
		switch im.Strategy {
		case StrategyMean:
			im.Fill[j] = stats.Mean(col)
		case StrategyNone:
			im.Fill[j] = math.NaN()
		default:
			im.Fill[j] = stats.Median(col)
		}
	}
	return nil
}

// Transform returns a copy of X with NaN cells filled. With the "none"
// strategy rows are returned unchanged.
func (im *Imputer) Transform(X [][]float64) ([][]float64, error) {
	if im.Fill == nil {
		return nil, ErrNotFitted
	}
	if im.Strategy == StrategyNone {
		return X, nil
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(im.Fill) {
			return nil, fmt.Errorf("dataprep: row %d has %d columns, want %d", i, len(row), len(im.Fill))
		}
		r := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				v = im.Fill[j]
			}
			r[j] = v
		}
		out[i] = r
	}
	return out, nil
}

// FitTransform fits on X and returns the filled copy.
func (im *Imputer) FitTransform(X [][]float64) ([][]float64, error) {
	if err := im.Fit(X); err != nil {
		return nil, err
	}
	return im.Transform(X)
}

// TotalMissing sums the NaN cells seen during Fit.
func (im *Imputer) TotalMissing() int {
	n := 0
	for _, c := range im.Missing {
		n += c
	}
	return n
}
