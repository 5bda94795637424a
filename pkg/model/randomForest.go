package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Params are the forest hyperparameters as they appear in configuration.
type Params struct {
	NEstimators     int    `yaml:"n_estimators"`
	MaxDepth        int    `yaml:"max_depth"`
	MinSamplesSplit int    `yaml:"min_samples_split"`
	MinSamplesLeaf  int    `yaml:"min_samples_leaf"`
	MaxFeatures     string `yaml:"max_features"` // sqrt, log2, all, an integer or a fraction
	Bootstrap       bool   `yaml:"bootstrap"`
	RandomState     int64  `yaml:"random_state"`
	Workers         int    `yaml:"workers"` // 0 => GOMAXPROCS
}

// DefaultParams mirrors the forest used for the crop abundance models.
func DefaultParams() Params {
	return Params{
		NEstimators:     500,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		MaxFeatures:     "sqrt",
		Bootstrap:       true,
		RandomState:     42,
	}
}

// Validate checks that the parameters can build a forest.
func (p Params) Validate() error {
	if p.NEstimators <= 0 {
		return fmt.Errorf("model: n_estimators must be positive, got %d", p.NEstimators)
	}
	if p.MaxDepth < 0 || p.MinSamplesSplit < 0 || p.MinSamplesLeaf < 0 || p.Workers < 0 {
		return fmt.Errorf("model: negative hyperparameter in %+v", p)
	}
	if _, err := ResolveMaxFeatures(p.MaxFeatures, 1); err != nil {
		return err
	}
	return nil
}

// ResolveMaxFeatures turns a max_features setting into a feature count for p
// features. The result is always in [1, p].
func ResolveMaxFeatures(setting string, p int) (int, error) {
	var k int
	switch s := strings.ToLower(strings.TrimSpace(setting)); s {
	case "", "all", "none", "1.0":
		k = p
	case "sqrt":
		k = int(math.Sqrt(float64(p)))
	case "log2":
		k = int(math.Log2(float64(p)))
	default:
		if n, err := strconv.Atoi(s); err == nil {
			if n <= 0 {
				return 0, fmt.Errorf("model: max_features %q must be positive", setting)
			}
			k = n
			break
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 || f > 1 {
			return 0, fmt.Errorf("model: invalid max_features %q", setting)
		}
		k = int(f * float64(p))
	}
	return min(max(k, 1), p), nil
}

// RandomForestRegressor averages bootstrap-trained regression trees.
type RandomForestRegressor struct {
	Params

	// Internal state
	Trees     []*DecisionTreeRegressor
	NFeatures int

	progress func(done, total int)
}

// RandomForestOption functional config for RandomForestRegressor
type RandomForestOption func(*RandomForestRegressor)

func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}
func WithBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}
func WithWorkers(n int) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.Workers = n }
}

// WithProgress registers a callback invoked after each tree is fitted.
// It may be called from several goroutines.
func WithProgress(fn func(done, total int)) RandomForestOption {
	return func(rf *RandomForestRegressor) { rf.progress = fn }
}

// NewRandomForestRegressor initializes the forest from p.
func NewRandomForestRegressor(p Params, opts ...RandomForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{Params: p}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Tree i draws its bootstrap sample and feature
// subsets from RandomState+i, so a fit is reproducible regardless of the
// number of workers.
func (rf *RandomForestRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}
	if err := rf.Params.Validate(); err != nil {
		return err
	}
	mtry, err := ResolveMaxFeatures(rf.MaxFeatures, p)
	if err != nil {
		return err
	}

	n := len(X)
	trees := make([]*DecisionTreeRegressor, rf.NEstimators)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for i := 0; i < rf.NEstimators; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(i)))

			// bootstrap as draw counts rather than copied rows
			w := make([]float64, n)
			if rf.Bootstrap {
				for k := 0; k < n; k++ {
					w[treeRand.Intn(n)]++
				}
			} else {
				for j := range w {
					w[j] = 1
				}
			}

			tree := NewDecisionTreeRegressor(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(mtry),
				WithRandomState(treeRand.Int63()),
			)
			if err := tree.FitWeighted(gctx, X, y, w); err != nil {
				return fmt.Errorf("randomforest: tree %d: %w", i, err)
			}
			trees[i] = tree
			if rf.progress != nil {
				rf.progress(int(done.Add(1)), rf.NEstimators)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rf.Trees = trees
	rf.NFeatures = p
	return nil
}

// Predict returns the mean prediction of all trees. Rows are split across
// GOMAXPROCS goroutines.
func (rf *RandomForestRegressor) Predict(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	pred := make([]float64, len(X))
	if len(rf.Trees) == 0 {
		for i := range pred {
			pred[i] = math.NaN()
		}
		return pred
	}

	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (len(X) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		s := w * rowsPerWorker
		e := min(s+rowsPerWorker, len(X))
		if s >= e {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				sum := 0.0
				for _, t := range rf.Trees {
					sum += t.PredictOne(X[i])
				}
				pred[i] = sum / float64(len(rf.Trees))
			}
		}(s, e)
	}
	wg.Wait()
	return pred
}

// Estimators returns the fitted trees.
func (rf *RandomForestRegressor) Estimators() []*DecisionTreeRegressor { return rf.Trees }

// NumFeatures returns the number of features seen during Fit.
func (rf *RandomForestRegressor) NumFeatures() int { return rf.NFeatures }

// FeatureImportances averages the normalized per-tree impurity
// importances and renormalizes the result to sum to 1.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	imp := make([]float64, rf.NFeatures)
	used := 0
	for _, t := range rf.Trees {
		ti := t.FeatureImportances()
		sum := 0.0
		for _, v := range ti {
			sum += v
		}
		if sum == 0 {
			// single-leaf trees carry no importance
			continue
		}
		used++
		for j, v := range ti {
			imp[j] += v
		}
	}
	if used == 0 {
		return imp, nil
	}
	total := 0.0
	for j := range imp {
		imp[j] /= float64(used)
		total += imp[j]
	}
	for j := range imp {
		imp[j] /= total
	}
	return imp, nil
}
