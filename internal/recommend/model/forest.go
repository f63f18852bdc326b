// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	// Trees is the number of trees in the ensemble.
	// Default: 100.
	Trees int `koanf:"trees" json:"trees"`

	// MaxDepth bounds tree depth.
	// Default: 10.
	MaxDepth int `koanf:"max_depth" json:"max_depth"`

	// MinSamplesSplit is the smallest node that may be split.
	// Default: 5.
	MinSamplesSplit int `koanf:"min_samples_split" json:"min_samples_split"`

	// MinSamplesLeaf is the smallest allowed leaf.
	// Default: 1.
	MinSamplesLeaf int `koanf:"min_samples_leaf" json:"min_samples_leaf"`

	// MaxFeatures is the number of features considered per split. Zero
	// means sqrt(features) for classifiers and all features for regressors.
	MaxFeatures int `koanf:"max_features" json:"max_features"`

	// Seed makes fitting reproducible. Tree t uses Seed+t.
	// Default: 42.
	Seed int64 `koanf:"seed" json:"seed"`

	// Workers bounds concurrent tree fitting. Zero means GOMAXPROCS.
	Workers int `koanf:"workers" json:"workers"`
}

// DefaultForestConfig returns the default hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// Validate checks the hyperparameters.
func (c ForestConfig) Validate() error {
	if c.Trees < 1 {
		return fmt.Errorf("trees must be at least 1")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1")
	}
	if c.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2")
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1")
	}
	if c.MaxFeatures < 0 || c.Workers < 0 {
		return fmt.Errorf("max_features and workers must not be negative")
	}
	return nil
}

// TreeNode is a split (Feature >= 0) or a leaf (Feature == -1). Leaves hold
// class probabilities for classifiers and a single mean for regressors.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// Tree is a fitted CART tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []TreeNode
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// RandomForest is a bagged ensemble of CART trees.
type RandomForest struct {
	Task       Kind
	Trees      []Tree
	NumClasses int
	Features   int
}

// FitForestClassifier fits a classifier over labels in [0, numClasses).
func FitForestClassifier(ctx context.Context, x [][]float64, y []int, numClasses int, cfg ForestConfig) (*RandomForest, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("got %d labels for %d rows", len(y), len(x))
	}
	if numClasses < 1 {
		return nil, fmt.Errorf("need at least one class")
	}
	for i, label := range y {
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("label %d at row %d outside [0,%d)", label, i, numClasses)
		}
	}
	return fitForest(ctx, &dataset{x: x, classes: y, numClasses: numClasses}, KindClassifier, cfg)
}

// FitForestRegressor fits a regressor over continuous targets.
func FitForestRegressor(ctx context.Context, x [][]float64, y []float64, cfg ForestConfig) (*RandomForest, error) {
	if len(y) != len(x) {
		return nil, fmt.Errorf("got %d targets for %d rows", len(y), len(x))
	}
	return fitForest(ctx, &dataset{x: x, targets: y}, KindRegressor, cfg)
}

type dataset struct {
	x          [][]float64
	classes    []int
	numClasses int
	targets    []float64
}

func (d *dataset) classification() bool { return d.classes != nil }

func fitForest(ctx context.Context, d *dataset, task Kind, cfg ForestConfig) (*RandomForest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(d.x) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	width := len(d.x[0])
	for i, row := range d.x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), width)
		}
	}

	maxFeatures := cfg.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = width
		if task == KindClassifier {
			maxFeatures = max(1, int(math.Sqrt(float64(width))))
		}
	}
	maxFeatures = min(maxFeatures, width)

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(t))) //nolint:gosec // math/rand is fine for bootstrap sampling
			b := &treeBuilder{data: d, cfg: cfg, maxFeatures: maxFeatures, rng: rng}
			sample := make([]int, len(d.x))
			for i := range sample {
				sample[i] = rng.Intn(len(d.x))
			}
			b.grow(sample, 0)
			trees[t] = Tree{Nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit trees: %w", err)
	}

	return &RandomForest{
		Task:       task,
		Trees:      trees,
		NumClasses: d.numClasses,
		Features:   width,
	}, nil
}

// Kind implements Estimator.
func (f *RandomForest) Kind() Kind { return f.Task }

// NumFeatures implements Estimator.
func (f *RandomForest) NumFeatures() int { return f.Features }

// PredictProba averages the class probabilities of all trees.
func (f *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if f.Task != KindClassifier {
		return nil, fmt.Errorf("forest is a %s", f.Task)
	}
	if err := checkWidth(x, f.Features); err != nil {
		return nil, err
	}
	out := make([]float64, f.NumClasses)
	for i := range f.Trees {
		for c, p := range f.Trees[i].leaf(x) {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out, nil
}

// PredictClass returns the most probable class, the lowest on ties.
func (f *RandomForest) PredictClass(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for c, p := range proba {
		if p > proba[best] {
			best = c
		}
	}
	return best, nil
}

// PredictValue averages the regression output of all trees.
func (f *RandomForest) PredictValue(x []float64) (float64, error) {
	if f.Task != KindRegressor {
		return 0, fmt.Errorf("forest is a %s", f.Task)
	}
	if err := checkWidth(x, f.Features); err != nil {
		return 0, err
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].leaf(x)[0]
	}
	return sum / float64(len(f.Trees)), nil
}

// BaseScore is the highest class probability for classifiers and the
// clamped prediction for regressors.
func (f *RandomForest) BaseScore(x []float64) (float64, error) {
	if f.Task == KindRegressor {
		v, err := f.PredictValue(x)
		if err != nil {
			return 0, err
		}
		return clamp01(v), nil
	}
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for _, p := range proba {
		best = max(best, p)
	}
	return best, nil
}

type treeBuilder struct {
	data        *dataset
	cfg         ForestConfig
	maxFeatures int
	rng         *rand.Rand
	nodes       []TreeNode
}

// grow appends the subtree for the samples idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: -1})

	if depth >= b.cfg.MaxDepth || len(idx) < b.cfg.MinSamplesSplit || b.pure(idx) {
		b.nodes[id].Value = b.leafValue(idx)
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[id].Value = b.leafValue(idx)
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.data.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) pure(idx []int) bool {
	first := idx[0]
	for _, i := range idx[1:] {
		if b.data.classification() {
			if b.data.classes[i] != b.data.classes[first] {
				return false
			}
		} else if b.data.targets[i] != b.data.targets[first] {
			return false
		}
	}
	return true
}

func (b *treeBuilder) leafValue(idx []int) []float64 {
	if b.data.classification() {
		proba := make([]float64, b.data.numClasses)
		for _, i := range idx {
			proba[b.data.classes[i]]++
		}
		for c := range proba {
			proba[c] /= float64(len(idx))
		}
		return proba
	}
	var sum float64
	for _, i := range idx {
		sum += b.data.targets[i]
	}
	return []float64{sum / float64(len(idx))}
}

// bestSplit searches a random subset of features for the threshold that
// most reduces Gini impurity (classification) or squared error
// (regression). Both reduce to maximizing a sum of per-side terms.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	width := len(b.data.x[0])
	candidates := b.rng.Perm(width)[:b.maxFeatures]

	parent := b.splitTerm(idx)
	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0

	sorted := make([]int, len(idx))
	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.data.x[sorted[a]][f] < b.data.x[sorted[c]][f]
		})

		gain, threshold, ok := b.scanFeature(sorted, f, parent)
		if ok && gain > bestGain {
			bestGain, bestFeature, bestThreshold = gain, f, threshold
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// splitTerm is sum(count_k^2)/n for classes or sum^2/n for targets.
func (b *treeBuilder) splitTerm(idx []int) float64 {
	n := float64(len(idx))
	if b.data.classification() {
		counts := make([]float64, b.data.numClasses)
		for _, i := range idx {
			counts[b.data.classes[i]]++
		}
		var sq float64
		for _, c := range counts {
			sq += c * c
		}
		return sq / n
	}
	var sum float64
	for _, i := range idx {
		sum += b.data.targets[i]
	}
	return sum * sum / n
}

func (b *treeBuilder) scanFeature(sorted []int, f int, parent float64) (float64, float64, bool) {
	n := len(sorted)
	minLeaf := b.cfg.MinSamplesLeaf
	x := b.data.x

	var leftCounts, rightCounts []float64
	var leftSq, rightSq, leftSum, rightSum float64
	if b.data.classification() {
		leftCounts = make([]float64, b.data.numClasses)
		rightCounts = make([]float64, b.data.numClasses)
		for _, i := range sorted {
			rightCounts[b.data.classes[i]]++
		}
		for _, c := range rightCounts {
			rightSq += c * c
		}
	} else {
		for _, i := range sorted {
			rightSum += b.data.targets[i]
		}
	}

	bestGain, bestThreshold, found := 0.0, 0.0, false
	for pos := 0; pos < n-1; pos++ {
		i := sorted[pos]
		if b.data.classification() {
			k := b.data.classes[i]
			leftSq += 2*leftCounts[k] + 1
			leftCounts[k]++
			rightSq -= 2*rightCounts[k] - 1
			rightCounts[k]--
		} else {
			leftSum += b.data.targets[i]
			rightSum -= b.data.targets[i]
		}

		nl, nr := pos+1, n-pos-1
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		cur, next := x[i][f], x[sorted[pos+1]][f]
		if cur == next {
			continue
		}

		var term float64
		if b.data.classification() {
			term = leftSq/float64(nl) + rightSq/float64(nr)
		} else {
			term = leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr)
		}
		if gain := term - parent; !found || gain > bestGain {
			bestGain, bestThreshold, found = gain, cur+(next-cur)/2, true
		}
	}
	return bestGain, bestThreshold, found
}
