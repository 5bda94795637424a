package loader

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Split holds the two sides of a train/test partition.
type Split struct {
	XTrain, XTest [][]float64
	YTrain, YTest []float64

	// TrainIdx and TestIdx index into the rows passed to TrainTestSplit.
	TrainIdx, TestIdx []int
}

// TrainTestSplit shuffles rows with a seeded source and holds out
// ceil(n*testRatio) of them. Both sides must end up non-empty.
func TrainTestSplit(X [][]float64, Y []float64, testRatio float64, seed int64) (*Split, error) {
	n := len(X)
	if n != len(Y) {
		return nil, fmt.Errorf("loader: X has %d rows, Y has %d", n, len(Y))
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, fmt.Errorf("loader: test ratio %v outside (0,1)", testRatio)
	}
	nTest := int(math.Ceil(float64(n) * testRatio))
	if nTest < 1 || n-nTest < 1 {
		return nil, fmt.Errorf("loader: %d rows cannot be split with test ratio %v", n, testRatio)
	}

	indices := rand.New(rand.NewSource(seed)).Perm(n)
	s := &Split{
		TestIdx:  indices[:nTest],
		TrainIdx: indices[nTest:],
	}
	s.XTest, s.YTest = Take(X, Y, s.TestIdx)
	s.XTrain, s.YTrain = Take(X, Y, s.TrainIdx)
	return s, nil
}

// Take gathers the rows at idx. Rows are shared, not copied.
func Take(X [][]float64, Y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = Y[j]
	}
	return xs, ys
}

// KFoldSplit yields k folds of row indices after a seeded shuffle.
func KFoldSplit(n, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, errors.New("loader: need at least 2 folds")
	}
	if n < k {
		return nil, fmt.Errorf("loader: %d rows cannot fill %d folds", n, k)
	}
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	for i := 0; i < n; i++ {
		folds[i%k] = append(folds[i%k], indices[i])
	}
	return folds, nil
}

// Complement returns every index in [0,n) that is not in fold.
func Complement(n int, fold []int) []int {
	in := make([]bool, n)
	for _, i := range fold {
		in[i] = true
	}
	out := make([]int, 0, n-len(fold))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}
