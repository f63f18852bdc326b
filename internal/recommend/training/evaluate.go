// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/skyrank/internal/recommend/model"
)

// DefaultMetricValue is reported for any metric that lacks data.
const DefaultMetricValue = 0.5

// RankingCutoffs are the k values for precision, recall and F1 at k.
var RankingCutoffs = []int{1, 3, 5, 10}

// prediction is one held-out row scored by a model that never saw it.
type prediction struct {
	row       int
	traveler  string
	trueClass int
	predClass int
	trueRel   float64
	score     float64
	value     float64
}

// fitFunc fits an estimator on the rows in idx.
type fitFunc func(ctx context.Context, idx []int) (model.Estimator, error)

// Evaluator measures a strategy on held-out rows.
type Evaluator struct {
	Kind         model.Kind
	TestFraction float64
	Folds        int
	Seed         int64
}

// Evaluate returns the metrics map stored on the artifact. Folds > 1 runs
// stratified k-fold; otherwise a single stratified hold-out split.
func (ev Evaluator) Evaluate(ctx context.Context, ds *Dataset, fit fitFunc) (map[string]float64, error) {
	strata := ev.strata(ds)
	rng := rand.New(rand.NewSource(ev.Seed)) //nolint:gosec // deterministic split, not security sensitive

	var splits [][2][]int
	if ev.Folds > 1 {
		splits = kFoldSplits(strata, ev.Folds, rng)
	} else {
		train, test := holdoutSplit(strata, ev.TestFraction, rng)
		splits = [][2][]int{{train, test}}
	}

	var preds []prediction
	for _, s := range splits {
		train, test := s[0], s[1]
		if len(train) == 0 || len(test) == 0 {
			continue
		}
		est, err := fit(ctx, train)
		if err != nil {
			return nil, fmt.Errorf("fit evaluation model: %w", err)
		}
		for _, i := range test {
			p, err := ev.predict(est, ds, i)
			if err != nil {
				return nil, fmt.Errorf("predict row %d: %w", i, err)
			}
			preds = append(preds, p)
		}
	}

	out := defaultMetrics(ev.Kind)
	out["eval_samples"] = float64(len(preds))
	if len(preds) == 0 {
		return out, nil
	}

	acc, prec, rec, f1 := classificationMetrics(preds)
	out["accuracy"], out["precision"], out["recall"], out["f1"] = acc, prec, rec, f1
	for k, v := range rankingMetrics(preds) {
		out[k] = v
	}
	if ev.Kind == model.KindRegressor {
		out["rmse"] = rmse(preds)
	}
	return out, nil
}

// strata groups row indices by the label used for stratification.
func (ev Evaluator) strata(ds *Dataset) map[int][]int {
	out := make(map[int][]int)
	for i := range ds.Rows {
		label := ds.Bands[i]
		if ev.Kind == model.KindRegressor {
			label = Level(ds.Relevance[i])
		}
		out[label] = append(out[label], i)
	}
	return out
}

func (ev Evaluator) predict(est model.Estimator, ds *Dataset, i int) (prediction, error) {
	x := ds.X[i]
	p := prediction{
		row:      i,
		traveler: ds.Rows[i].TravelerID,
		trueRel:  ds.Relevance[i],
	}

	score, err := est.BaseScore(x)
	if err != nil {
		return p, err
	}
	p.score = score

	switch m := est.(type) {
	case *model.KNNIndex:
		p.trueClass = ds.Bands[i]
		p.predClass, err = m.Vote(x)
	case *model.RandomForest:
		if m.Task == model.KindRegressor {
			p.value, err = m.PredictValue(x)
			p.trueClass = Level(ds.Relevance[i])
			p.predClass = Level(p.value)
		} else {
			p.trueClass = ds.Bands[i]
			p.predClass, err = m.PredictClass(x)
		}
	default:
		err = fmt.Errorf("unsupported estimator %T", est)
	}
	return p, err
}

func defaultMetrics(kind model.Kind) map[string]float64 {
	out := map[string]float64{
		"accuracy":  DefaultMetricValue,
		"precision": DefaultMetricValue,
		"recall":    DefaultMetricValue,
		"f1":        DefaultMetricValue,
		"ndcg":      DefaultMetricValue,
		"map":       DefaultMetricValue,
	}
	for _, k := range RankingCutoffs {
		suffix := "_at_" + strconv.Itoa(k)
		out["precision"+suffix] = DefaultMetricValue
		out["recall"+suffix] = DefaultMetricValue
		out["f1"+suffix] = DefaultMetricValue
	}
	if kind == model.KindRegressor {
		out["rmse"] = DefaultMetricValue
	}
	return out
}

// sortedLabels returns the map keys in ascending order so splits are
// reproducible for a given seed.
func sortedLabels(strata map[int][]int) []int {
	labels := make([]int, 0, len(strata))
	for l := range strata {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// holdoutSplit moves round(frac*n) rows of each stratum to the test set.
// Strata with a single row stay in training.
func holdoutSplit(strata map[int][]int, frac float64, rng *rand.Rand) (train, test []int) {
	for _, label := range sortedLabels(strata) {
		idx := append([]int(nil), strata[label]...)
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		n := int(math.Round(frac * float64(len(idx))))
		if len(idx) < 2 {
			n = 0
		}
		n = min(n, len(idx)-1)
		test = append(test, idx[:max(n, 0)]...)
		train = append(train, idx[max(n, 0):]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// kFoldSplits deals each shuffled stratum round-robin across folds.
func kFoldSplits(strata map[int][]int, folds int, rng *rand.Rand) [][2][]int {
	assign := make(map[int]int)
	for _, label := range sortedLabels(strata) {
		idx := append([]int(nil), strata[label]...)
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for pos, i := range idx {
			assign[i] = pos % folds
		}
	}

	rows := make([]int, 0, len(assign))
	for i := range assign {
		rows = append(rows, i)
	}
	sort.Ints(rows)

	out := make([][2][]int, folds)
	for _, i := range rows {
		f := assign[i]
		for j := range out {
			if j == f {
				out[j][1] = append(out[j][1], i)
			} else {
				out[j][0] = append(out[j][0], i)
			}
		}
	}
	return out
}

// classificationMetrics returns accuracy and support-weighted precision,
// recall and F1.
func classificationMetrics(preds []prediction) (accuracy, precision, recall, f1 float64) {
	type counts struct{ tp, fp, fn, support int }
	byClass := make(map[int]*counts)
	get := func(c int) *counts {
		if byClass[c] == nil {
			byClass[c] = &counts{}
		}
		return byClass[c]
	}

	correct := 0
	for _, p := range preds {
		get(p.trueClass).support++
		if p.trueClass == p.predClass {
			correct++
			get(p.trueClass).tp++
		} else {
			get(p.predClass).fp++
			get(p.trueClass).fn++
		}
	}
	accuracy = float64(correct) / float64(len(preds))

	classes := make([]int, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	total := float64(len(preds))
	for _, class := range classes {
		c := byClass[class]
		if c.support == 0 {
			continue
		}
		var p, r, f float64
		if c.tp+c.fp > 0 {
			p = float64(c.tp) / float64(c.tp+c.fp)
		}
		r = float64(c.tp) / float64(c.tp+c.fn)
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		w := float64(c.support) / total
		precision += w * p
		recall += w * r
		f1 += w * f
	}
	return accuracy, precision, recall, f1
}

// rankingMetrics groups predictions by traveler and averages NDCG, MAP and
// the cutoff metrics over travelers with at least two held-out rows.
func rankingMetrics(preds []prediction) map[string]float64 {
	groups := make(map[string][]prediction)
	var order []string
	for _, p := range preds {
		if _, ok := groups[p.traveler]; !ok {
			order = append(order, p.traveler)
		}
		groups[p.traveler] = append(groups[p.traveler], p)
	}

	var ndcgs, aps []float64
	atK := make(map[string][]float64)
	for _, traveler := range order {
		g := groups[traveler]
		if len(g) < 2 {
			continue
		}
		trueOrder := rankBy(g, func(p prediction) float64 { return p.trueRel })
		predOrder := rankBy(g, func(p prediction) float64 { return p.score })

		if v, ok := ndcgAt(g, trueOrder, predOrder, min(5, len(g))); ok {
			ndcgs = append(ndcgs, v)
		}
		aps = append(aps, averagePrecision(trueOrder, predOrder))

		for _, k := range RankingCutoffs {
			if k > len(g) {
				continue
			}
			hit := overlap(trueOrder[:k], predOrder[:k])
			prec := float64(hit) / float64(k)
			rec := float64(hit) / float64(k)
			suffix := "_at_" + strconv.Itoa(k)
			atK["precision"+suffix] = append(atK["precision"+suffix], prec)
			atK["recall"+suffix] = append(atK["recall"+suffix], rec)
			if prec+rec > 0 {
				atK["f1"+suffix] = append(atK["f1"+suffix], 2*prec*rec/(prec+rec))
			} else {
				atK["f1"+suffix] = append(atK["f1"+suffix], 0)
			}
		}
	}

	out := map[string]float64{
		"ndcg": meanOr(ndcgs, DefaultMetricValue),
		"map":  meanOr(aps, DefaultMetricValue),
	}
	for _, k := range RankingCutoffs {
		suffix := "_at_" + strconv.Itoa(k)
		for _, name := range []string{"precision", "recall", "f1"} {
			out[name+suffix] = meanOr(atK[name+suffix], DefaultMetricValue)
		}
	}
	return out
}

// rankBy returns positions into g sorted by key descending, stable.
func rankBy(g []prediction, key func(prediction) float64) []int {
	idx := make([]int, len(g))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return key(g[idx[a]]) > key(g[idx[b]]) })
	return idx
}

// ndcgAt uses linear gains. Groups whose ideal DCG is zero are skipped.
func ndcgAt(g []prediction, trueOrder, predOrder []int, k int) (float64, bool) {
	var dcg, idcg float64
	for i := 0; i < k; i++ {
		discount := math.Log2(float64(i) + 2)
		dcg += g[predOrder[i]].trueRel / discount
		idcg += g[trueOrder[i]].trueRel / discount
	}
	if idcg == 0 {
		return 0, false
	}
	return dcg / idcg, true
}

// averagePrecision treats the upper half of the true ordering as relevant
// and averages precision at each relevant position of the predicted order.
func averagePrecision(trueOrder, predOrder []int) float64 {
	relevant := make(map[int]bool)
	for _, i := range trueOrder[:(len(trueOrder)+1)/2] {
		relevant[i] = true
	}
	var sum float64
	hits := 0
	for pos, i := range predOrder {
		if relevant[i] {
			hits++
			sum += float64(hits) / float64(pos+1)
		}
	}
	if hits == 0 {
		return 0
	}
	return sum / float64(hits)
}

func overlap(a, b []int) int {
	set := make(map[int]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	n := 0
	for _, v := range b {
		if _, ok := set[v]; ok {
			n++
		}
	}
	return n
}

func rmse(preds []prediction) float64 {
	got := make([]float64, len(preds))
	want := make([]float64, len(preds))
	for i, p := range preds {
		got[i] = p.value
		want[i] = p.trueRel
	}
	return floats.Distance(got, want, 2) / math.Sqrt(float64(len(preds)))
}

func meanOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return stat.Mean(values, nil)
}
