// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/core/parallel"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
	"github.com/YuminosukeSato/mindscope/sklearn/tree"
)

// RandomForestClassifier は決定木のバギングによる分類器
//
// 各木は学習前にフォレストの乱数から seed を受け取るため、
// 並列学習でも結果は決定的になる。
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     uint64
	nJobs           int

	trees       []*tree.DecisionTreeClassifier
	classes     []float64
	importances []float64
}

// これより木が少ないときは予測を逐次で行う
const predictParallelMinTrees = 16

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = c }
}

// WithMaxDepth limits tree depth. Negative means unlimited.
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets per-split feature sampling ("sqrt", "log2", "all").
func WithMaxFeatures(s string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = s }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(on bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = on }
}

// WithRandomState seeds the forest.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs limits concurrent tree fitting. Zero or negative uses all CPUs.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext trains the forest, fitting trees concurrently.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("RandomForestClassifier.Fit", rows, yRows, 0)
	}

	rng := rand.New(rand.NewPCG(rf.randomState, rf.randomState))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	Xd := mat.DenseCopyOf(X)
	yd := mat.DenseCopyOf(y)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)

	err = parallel.ForEach(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, i int) error {
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithRandomState(seeds[i]),
		)
		var w []float64
		if rf.bootstrap {
			w = bootstrapCounts(rows, seeds[i])
		}
		if err := dt.FitWeighted(Xd, yd, w); err != nil {
			return errors.Wrapf(err, "fit tree %d", i)
		}
		trees[i] = dt
		return nil
	})
	if err != nil {
		return err
	}

	rf.trees = trees
	rf.classes = uniqueLabels(yd)
	rf.importances = rf.meanImportances(cols)
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()

	log.GetLoggerWithName("ensemble").Debug("random forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", rf.nEstimators,
	)
	return nil
}

// bootstrapCounts draws n samples with replacement and returns how many
// times each row was drawn.
func bootstrapCounts(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, ^seed))
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		counts[r.IntN(n)]++
	}
	return counts
}

func uniqueLabels(y *mat.Dense) []float64 {
	rows, _ := y.Dims()
	seen := map[float64]bool{}
	var out []float64
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func (rf *RandomForestClassifier) meanImportances(cols int) []float64 {
	imp := make([]float64, cols)
	for _, t := range rf.trees {
		for j, v := range t.FeatureImportances() {
			imp[j] += v
		}
	}
	total := 0.0
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// PredictProba averages the per-tree class fractions. A bootstrap sample
// may miss a class, so tree columns are aligned to the forest classes.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.state.CheckInput("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	k := len(rf.classes)
	index := make(map[float64]int, k)
	for i, c := range rf.classes {
		index[c] = i
	}
	perTree := make([]mat.Matrix, len(rf.trees))
	err := parallel.ParallelizeWithThreshold(context.Background(), len(rf.trees), predictParallelMinTrees, func(start, end int) error {
		for i := start; i < end; i++ {
			p, err := rf.trees[i].PredictProba(X)
			if err != nil {
				return err
			}
			perTree[i] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 木の順に足し込むので結果はスケジューリングに依存しない
	out := mat.NewDense(rows, k, nil)
	for ti, t := range rf.trees {
		p := perTree[ti]
		for c, label := range t.ClassLabels() {
			col := index[label]
			for i := 0; i < rows; i++ {
				out.Set(i, col, out.At(i, col)+p.At(i, c))
			}
		}
	}
	out.Scale(1/float64(len(rf.trees)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxLabels(proba, rf.classes), nil
}

// Score returns mean accuracy, or 0 on error.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// Classes returns the sorted class labels.
func (rf *RandomForestClassifier) Classes() []int {
	out := make([]int, len(rf.classes))
	for i, c := range rf.classes {
		out[i] = int(c)
	}
	return out
}

// FeatureImportances returns the mean of per-tree importances, normalized.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.importances...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.trees
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
	}
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_features=%s, random_state=%d)",
		rf.nEstimators, rf.maxFeatures, rf.randomState)
}
