package model

import (
	"fmt"
	"sort"
)

// Importance pairs a feature name with its score.
type Importance struct {
	Feature    string
	Importance float64
}

// RankImportances zips names and scores and sorts by descending score.
// Ties keep the input order.
func RankImportances(names []string, scores []float64) ([]Importance, error) {
	if len(names) != len(scores) {
		return nil, fmt.Errorf("importance: %w: %d names, %d scores", ErrShapeMismatch, len(names), len(scores))
	}
	out := make([]Importance, len(names))
	for i := range names {
		out[i] = Importance{Feature: names[i], Importance: scores[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}
