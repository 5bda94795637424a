package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeRegressor is a CART regression tree using the squared error
// criterion.
type DecisionTreeRegressor struct {
	// Hyperparameters / options
	MaxDepth        int   // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit int   // minimum samples to attempt a split
	MinSamplesLeaf  int   // minimum samples required in each leaf
	MaxFeatures     int   // 0 => use all features, >0 => features sampled per split
	RandomState     int64 // seed for feature subsampling

	// Fitted state. Nodes[0] is the root.
	Nodes     []Node
	NFeatures int
}

// Node is one entry of the flattened tree. Leaves have Feature == -1.
type Node struct {
	Feature     int
	Threshold   float64 // x <= Threshold => Left
	MissingLeft bool    // NaN inputs follow Left when true
	Left        int
	Right       int

	Value    float64 // weighted mean target of the samples reaching the node
	Weight   float64 // weighted number of training samples reaching the node
	Samples  int     // distinct training rows reaching the node
	Impurity float64 // weighted variance of the targets
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Next returns the child x is routed to.
func (n *Node) Next(x []float64) int {
	v := x[n.Feature]
	if math.IsNaN(v) {
		if n.MissingLeft {
			return n.Left
		}
		return n.Right
	}
	if v <= n.Threshold {
		return n.Left
	}
	return n.Right
}

// Option functional config
type Option func(*DecisionTreeRegressor)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeRegressor) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeRegressor) { t.MaxFeatures = k } }
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor returns a regressor with sensible defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	d := &DecisionTreeRegressor{
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API
// ---------------------------

// Fit trains the tree on X (n x p) and y with unit sample weights.
func (t *DecisionTreeRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	w := make([]float64, len(X))
	for i := range w {
		w[i] = 1
	}
	return t.FitWeighted(ctx, X, y, w)
}

// FitWeighted trains the tree with per-row sample weights. Rows with zero
// weight are ignored; a bootstrap sample is expressed as draw counts.
// Missing values must be math.NaN().
func (t *DecisionTreeRegressor) FitWeighted(ctx context.Context, X [][]float64, y, w []float64) error {
	p, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if len(w) != len(X) {
		return errors.Join(ErrShapeMismatch, errors.New("dtree: weights length mismatch"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	idx := make([]int, 0, len(X))
	for i, wi := range w {
		if wi > 0 {
			if math.IsNaN(y[i]) {
				return errors.New("dtree: NaN in y")
			}
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return errors.New("dtree: all sample weights are zero")
	}

	b := &builder{
		tree: t,
		X:    X,
		y:    y,
		w:    w,
		p:    p,
		rnd:  rand.New(rand.NewSource(t.RandomState)),
	}
	t.NFeatures = p
	t.Nodes = t.Nodes[:0]
	b.build(idx, 0)
	return nil
}

// Predict returns the leaf value reached by every row of X.
func (t *DecisionTreeRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = t.PredictOne(X[i])
	}
	return out
}

// PredictOne returns the leaf value for a single row.
func (t *DecisionTreeRegressor) PredictOne(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return math.NaN()
	}
	n := 0
	for !t.Nodes[n].IsLeaf() {
		n = t.Nodes[n].Next(x)
	}
	return t.Nodes[n].Value
}

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(n, d int) int
	walk = func(n, d int) int {
		node := &t.Nodes[n]
		if node.IsLeaf() {
			return d
		}
		return max(walk(node.Left, d+1), walk(node.Right, d+1))
	}
	return walk(0, 0)
}

// FeatureImportances returns the total weighted impurity decrease per
// feature, normalized to sum to 1. A tree without splits returns zeros.
func (t *DecisionTreeRegressor) FeatureImportances() []float64 {
	imp := make([]float64, t.NFeatures)
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			continue
		}
		l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
		imp[n.Feature] += n.Weight*n.Impurity - l.Weight*l.Impurity - r.Weight*r.Impurity
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

type builder struct {
	tree *DecisionTreeRegressor
	X    [][]float64
	y, w []float64
	p    int
	rnd  *rand.Rand
}

// A struct to hold the results of a split search.
type splitResult struct {
	gain        float64
	feature     int
	threshold   float64
	missingLeft bool
}

// pair is a named type for a value and its original index.
type pair struct {
	v float64
	i int
}

// moments accumulates weighted statistics of y - center.
type moments struct {
	w, s, ss float64
	n        int
}

func (m *moments) add(y, w float64) {
	m.w += w
	m.s += w * y
	m.ss += w * y * y
	m.n++
}

func (m moments) sub(o moments) moments {
	return moments{w: m.w - o.w, s: m.s - o.s, ss: m.ss - o.ss, n: m.n - o.n}
}

func (m moments) plus(o moments) moments {
	return moments{w: m.w + o.w, s: m.s + o.s, ss: m.ss + o.ss, n: m.n + o.n}
}

// sse is the weighted sum of squared deviations from the mean.
func (m moments) sse() float64 {
	if m.w <= 0 {
		return 0
	}
	return math.Max(m.ss-m.s*m.s/m.w, 0)
}

func (b *builder) build(idx []int, depth int) int {
	t := b.tree
	var raw moments
	for _, i := range idx {
		raw.add(b.y[i], b.w[i])
	}
	mean := raw.s / raw.w

	// recentre on the node mean to keep the sums well conditioned
	var m moments
	for _, i := range idx {
		m.add(b.y[i]-mean, b.w[i])
	}

	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature:  -1,
		Value:    mean,
		Weight:   m.w,
		Samples:  len(idx),
		Impurity: m.sse() / m.w,
	})

	minLeaf := max(t.MinSamplesLeaf, 1)
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return id
	}
	if len(idx) < t.MinSamplesSplit || len(idx) < 2*minLeaf {
		return id
	}
	if t.Nodes[id].Impurity <= 1e-12*math.Max(1, mean*mean) {
		return id
	}

	best := b.bestSplit(idx, mean, m)
	if best.feature < 0 {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		v := b.X[i][best.feature]
		switch {
		case math.IsNaN(v):
			if best.missingLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		case v <= best.threshold:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &t.Nodes[id]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.MissingLeft = best.missingLeft
	n.Left = l
	n.Right = r
	return id
}

// candidateFeatures draws MaxFeatures distinct features without
// replacement, or returns all of them.
func (b *builder) candidateFeatures() []int {
	feats := make([]int, b.p)
	for j := range feats {
		feats[j] = j
	}
	k := b.tree.MaxFeatures
	if k <= 0 || k >= b.p {
		return feats
	}
	for i := 0; i < k; i++ {
		j := i + b.rnd.Intn(b.p-i)
		feats[i], feats[j] = feats[j], feats[i]
	}
	return feats[:k]
}

func (b *builder) bestSplit(idx []int, mean float64, parent moments) splitResult {
	best := splitResult{feature: -1}
	parentSSE := parent.sse()
	minLeaf := max(b.tree.MinSamplesLeaf, 1)
	valid := make([]pair, 0, len(idx))

	for _, f := range b.candidateFeatures() {
		valid = valid[:0]
		var nan moments
		for _, i := range idx {
			v := b.X[i][f]
			if math.IsNaN(v) {
				nan.add(b.y[i]-mean, b.w[i])
				continue
			}
			valid = append(valid, pair{v, i})
		}
		if len(valid) < 2 {
			continue
		}
		sort.Slice(valid, func(a, c int) bool { return valid[a].v < valid[c].v })

		total := parent.sub(nan)
		var left moments
		for s := 1; s < len(valid); s++ {
			prev := valid[s-1]
			left.add(b.y[prev.i]-mean, b.w[prev.i])
			if valid[s].v == prev.v {
				continue
			}
			right := total.sub(left)

			// missing values join the side holding more observed rows
			missingLeft := left.n >= right.n
			l, r := left, right
			if missingLeft {
				l = l.plus(nan)
			} else {
				r = r.plus(nan)
			}
			if l.n < minLeaf || r.n < minLeaf {
				continue
			}
			gain := parentSSE - l.sse() - r.sse()
			if gain <= best.gain || gain <= 1e-12*math.Max(parentSSE, 1e-300) {
				continue
			}
			thr := prev.v + (valid[s].v-prev.v)/2
			if thr >= valid[s].v {
				thr = prev.v
			}
			best = splitResult{gain: gain, feature: f, threshold: thr, missingLeft: missingLeft}
		}
	}
	return best
}
