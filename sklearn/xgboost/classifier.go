// Package xgboost implements second-order gradient boosted trees for binary
// classification with the logistic loss, following XGBoost's exact greedy
// algorithm.
package xgboost

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// XGBClassifier is a binary gradient boosting classifier.
type XGBClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators    int
	maxDepth       int
	learningRate   float64
	subsample      float64
	regLambda      float64
	gamma          float64
	minChildWeight float64
	randomState    uint64

	// Model
	trees      []Tree
	baseMargin float64
	gainSum    []float64
	splitCount []int
}

// Option configures an XGBClassifier.
type Option func(*XGBClassifier)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option {
	return func(m *XGBClassifier) { m.nEstimators = n }
}

// WithMaxDepth sets the depth of each tree.
func WithMaxDepth(d int) Option {
	return func(m *XGBClassifier) { m.maxDepth = d }
}

// WithLearningRate sets the shrinkage (eta).
func WithLearningRate(eta float64) Option {
	return func(m *XGBClassifier) { m.learningRate = eta }
}

// WithSubsample sets the row sampling ratio per round.
func WithSubsample(r float64) Option {
	return func(m *XGBClassifier) { m.subsample = r }
}

// WithRegLambda sets the L2 penalty on leaf weights.
func WithRegLambda(l float64) Option {
	return func(m *XGBClassifier) { m.regLambda = l }
}

// WithGamma sets the minimum loss reduction required to split.
func WithGamma(g float64) Option {
	return func(m *XGBClassifier) { m.gamma = g }
}

// WithMinChildWeight sets the minimum hessian sum per child.
func WithMinChildWeight(w float64) Option {
	return func(m *XGBClassifier) { m.minChildWeight = w }
}

// WithRandomState seeds row subsampling.
func WithRandomState(seed uint64) Option {
	return func(m *XGBClassifier) { m.randomState = seed }
}

// NewXGBClassifier creates a classifier with XGBoost defaults.
func NewXGBClassifier(opts ...Option) *XGBClassifier {
	m := &XGBClassifier{
		state:          model.NewStateManager(),
		nEstimators:    100,
		maxDepth:       6,
		learningRate:   0.3,
		subsample:      1.0,
		regLambda:      1.0,
		minChildWeight: 1.0,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *XGBClassifier) validate() error {
	switch {
	case m.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", m.nEstimators)
	case m.maxDepth < 1:
		return errors.NewValidationError("max_depth", "must be >= 1", m.maxDepth)
	case m.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", m.learningRate)
	case m.subsample <= 0 || m.subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", m.subsample)
	case m.regLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", m.regLambda)
	case m.gamma < 0:
		return errors.NewValidationError("gamma", "must be non-negative", m.gamma)
	case m.minChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be non-negative", m.minChildWeight)
	}
	return nil
}

// Fit trains the booster. Labels must be 0 or 1.
func (m *XGBClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBClassifier.Fit")

	if err := m.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("XGBClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("XGBClassifier.Fit", rows, yRows, 0)
	}

	labels := make([]float64, rows)
	pos := 0.0
	for i := range labels {
		v := y.At(i, 0)
		if v != 0 && v != 1 {
			return errors.NewValidationError("y", "binary:logistic requires labels in {0, 1}", v)
		}
		labels[i] = v
		pos += v
	}
	if pos == 0 || pos == float64(rows) {
		return errors.NewModelError("XGBClassifier.Fit", "need samples of both classes", errors.ErrSingleClass)
	}

	b := &booster{
		m:    m,
		cols: make([][]float64, cols),
		grad: make([]float64, rows),
		hess: make([]float64, rows),
	}
	for j := 0; j < cols; j++ {
		b.cols[j] = mat.Col(nil, j, X)
	}

	// 初期マージンは正例率の対数オッズ
	rate := pos / float64(rows)
	m.baseMargin = math.Log(rate / (1 - rate))
	m.trees = make([]Tree, 0, m.nEstimators)
	m.gainSum = make([]float64, cols)
	m.splitCount = make([]int, cols)

	margin := make([]float64, rows)
	for i := range margin {
		margin[i] = m.baseMargin
	}

	rng := rand.New(rand.NewPCG(m.randomState, m.randomState))
	row := make([]float64, cols)
	logger := log.GetLoggerWithName("xgboost")

	for round := 0; round < m.nEstimators; round++ {
		for i := range margin {
			p := errors.Sigmoid(margin[i])
			b.grad[i] = p - labels[i]
			b.hess[i] = math.Max(p*(1-p), 1e-16)
		}

		idx := make([]int, 0, rows)
		for i := 0; i < rows; i++ {
			if m.subsample >= 1 || rng.Float64() < m.subsample {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}

		tree := Tree{}
		b.tree = &tree
		b.build(idx, 0)
		m.trees = append(m.trees, tree)

		for i := 0; i < rows; i++ {
			for j := range row {
				row[j] = b.cols[j][i]
			}
			margin[i] += tree.Predict(row)
		}

		if logger.Enabled(context.Background(), log.LevelDebug) && (round+1)%10 == 0 {
			logger.Debug("boosting round",
				log.IterationKey, round+1,
				log.LossKey, logLoss(labels, margin),
			)
		}
	}

	m.state.SetDimensions(cols, rows)
	m.state.SetFitted()
	return nil
}

func logLoss(y, margin []float64) float64 {
	s := 0.0
	for i, z := range margin {
		s += errors.Log1pExp(z) - y[i]*z
	}
	return s / float64(len(y))
}

// booster grows one tree per round on the current gradients.
type booster struct {
	m    *XGBClassifier
	cols [][]float64
	grad []float64
	hess []float64
	tree *Tree
}

type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *booster) score(g, h float64) float64 {
	return g * g / (h + b.m.regLambda)
}

func (b *booster) build(idx []int, depth int) int {
	g, h := 0.0, 0.0
	for _, i := range idx {
		g += b.grad[i]
		h += b.hess[i]
	}
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		LeftChild:  -1,
		RightChild: -1,
		Feature:    -1,
		LeafValue:  -g / (h + b.m.regLambda) * b.m.learningRate,
		SumHess:    h,
		Count:      len(idx),
	})

	if depth >= b.m.maxDepth || h < 2*b.m.minChildWeight {
		return id
	}
	best, ok := b.findSplit(idx, g, h)
	if !ok {
		return id
	}

	var left, right []int
	col := b.cols[best.feature]
	for _, i := range idx {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.m.gainSum[best.feature] += best.gain
	b.m.splitCount[best.feature]++

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &b.tree.Nodes[id]
	n.LeftChild, n.RightChild = l, r
	n.Feature, n.Threshold, n.Gain = best.feature, best.threshold, best.gain
	n.LeafValue = 0
	return id
}

// findSplit runs the exact greedy search over every feature.
func (b *booster) findSplit(idx []int, g, h float64) (splitInfo, bool) {
	best := splitInfo{gain: math.Inf(-1)}
	parent := b.score(g, h)
	order := make([]int, len(idx))

	for f, col := range b.cols {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })

		gl, hl := 0.0, 0.0
		for p := 0; p < len(order)-1; p++ {
			i := order[p]
			gl += b.grad[i]
			hl += b.hess[i]
			v, next := col[i], col[order[p+1]]
			if v == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.m.minChildWeight || hr < b.m.minChildWeight {
				continue
			}
			gain := 0.5*(b.score(gl, hl)+b.score(gr, hr)-parent) - b.m.gamma
			if gain > best.gain {
				thr := v + (next-v)/2
				if thr >= next {
					thr = v
				}
				best = splitInfo{feature: f, threshold: thr, gain: gain}
			}
		}
	}
	return best, best.gain > 0
}

// DecisionFunction returns the raw margin per sample.
func (m *XGBClassifier) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	if err := m.state.RequireFitted("XGBClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := m.state.CheckInput("XGBClassifier.DecisionFunction", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewVecDense(rows, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		z := m.baseMargin
		for t := range m.trees {
			z += m.trees[t].Predict(row)
		}
		out.SetVec(i, z)
	}
	return out, nil
}

// PredictProba returns [P(0), P(1)] per sample.
func (m *XGBClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	margin, err := m.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := margin.Len()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := errors.Sigmoid(margin.AtVec(i))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict thresholds P(1) at 0.5.
func (m *XGBClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) > 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

// Score returns mean accuracy, or 0 on error.
func (m *XGBClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := m.Predict(X)
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

// Classes returns [0, 1].
func (m *XGBClassifier) Classes() []int { return []int{0, 1} }

// FeatureImportances returns the average gain per split for each feature,
// normalized to sum to 1.
func (m *XGBClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(m.gainSum))
	total := 0.0
	for j, g := range m.gainSum {
		if m.splitCount[j] > 0 {
			out[j] = g / float64(m.splitCount[j])
			total += out[j]
		}
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// Trees returns the fitted boosting rounds.
func (m *XGBClassifier) Trees() []Tree { return m.trees }

// BaseMargin returns the initial log-odds.
func (m *XGBClassifier) BaseMargin() float64 { return m.baseMargin }

// GetParams returns the hyperparameters.
func (m *XGBClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     m.nEstimators,
		"max_depth":        m.maxDepth,
		"learning_rate":    m.learningRate,
		"subsample":        m.subsample,
		"reg_lambda":       m.regLambda,
		"gamma":            m.gamma,
		"min_child_weight": m.minChildWeight,
		"random_state":     m.randomState,
	}
}

func (m *XGBClassifier) String() string {
	return fmt.Sprintf("XGBClassifier(n_estimators=%d, max_depth=%d, learning_rate=%g, subsample=%g)",
		m.nEstimators, m.maxDepth, m.learningRate, m.subsample)
}
