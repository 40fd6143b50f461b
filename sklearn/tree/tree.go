// Package tree implements a CART decision tree classifier.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// Node is one node of a fitted tree. Leaves have LeftChild == -1.
type Node struct {
	LeftChild  int
	RightChild int

	Feature   int
	Threshold float64 // samples with x[Feature] <= Threshold go left

	Impurity         float64
	NSamples         int
	WeightedNSamples float64

	// Value holds the weighted class fractions of the samples reaching the node.
	Value []float64
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild < 0
}

// DecisionTreeClassifier is a CART classifier with gini or entropy impurity.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int // < 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	maxFeaturesN    int
	randomState     uint64

	nodes       []Node
	classes     []float64
	nClasses_   int
	nFeatures   int
	importances []float64
	depth       int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure: "gini" or "entropy".
func WithCriterion(c string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = c }
}

// WithMaxDepth limits the depth of the tree. A negative value means unlimited.
func WithMaxDepth(d int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = d }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// "sqrt", "log2" or "all".
func WithMaxFeatures(spec string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = spec
		dt.maxFeaturesN = 0
	}
}

// WithMaxFeaturesN considers exactly n features per split.
func WithMaxFeaturesN(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = ""
		dt.maxFeaturesN = n
	}
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "all",
	}
	for _, o := range opts {
		o(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	switch dt.maxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2, all or an integer", dt.maxFeatures)
	}
	if dt.maxFeatures == "" && dt.maxFeaturesN < 1 {
		return errors.NewValidationError("max_features", "must be >= 1", dt.maxFeaturesN)
	}
	return nil
}

func (dt *DecisionTreeClassifier) featuresPerSplit(nFeatures int) int {
	var k int
	switch dt.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	case "":
		k = dt.maxFeaturesN
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k
}

// Fit builds the tree from training data.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Rows with zero
// weight are ignored. A nil slice means unit weights.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if weights != nil && len(weights) != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, len(weights), 0)
	}

	dt.classes = uniqueSorted(y, rows)
	dt.nClasses_ = len(dt.classes)
	classIdx := make(map[float64]int, dt.nClasses_)
	for i, c := range dt.classes {
		classIdx[c] = i
	}

	b := &builder{
		dt:        dt,
		cols:      make([][]float64, cols),
		y:         make([]int, rows),
		w:         make([]float64, rows),
		nClasses:  dt.nClasses_,
		mtry:      dt.featuresPerSplit(cols),
		rng:       rand.New(rand.NewPCG(dt.randomState, dt.randomState^0x9e3779b97f4a7c15)),
		imp:       make([]float64, cols),
		criterion: dt.criterion,
	}
	for j := 0; j < cols; j++ {
		b.cols[j] = mat.Col(nil, j, X)
	}
	idx := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		b.y[i] = classIdx[y.At(i, 0)]
		b.w[i] = 1
		if weights != nil {
			if weights[i] < 0 {
				return errors.NewValidationError("sample_weight", "must be non-negative", weights[i])
			}
			b.w[i] = weights[i]
		}
		if b.w[i] > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "all sample weights are zero", errors.ErrEmptyData)
	}

	b.build(idx, 0)

	total := 0.0
	for _, v := range b.imp {
		total += v
	}
	if total > 0 {
		for j := range b.imp {
			b.imp[j] /= total
		}
	}

	dt.nodes = b.nodes
	dt.importances = b.imp
	dt.depth = b.maxDepth
	dt.nFeatures = cols
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

func uniqueSorted(y mat.Matrix, rows int) []float64 {
	seen := make(map[float64]bool)
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

// builder grows a tree depth-first.
type builder struct {
	dt        *DecisionTreeClassifier
	cols      [][]float64
	y         []int
	w         []float64
	nClasses  int
	mtry      int
	rng       *rand.Rand
	criterion string

	nodes    []Node
	imp      []float64
	maxDepth int
}

func (b *builder) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	if b.criterion == "entropy" {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / total
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	s := 0.0
	for _, c := range counts {
		p := c / total
		s += p * p
	}
	return 1 - s
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples going left
	proxy     float64
}

func (b *builder) build(idx []int, depth int) int {
	if depth > b.maxDepth {
		b.maxDepth = depth
	}
	counts := make([]float64, b.nClasses)
	wTotal := 0.0
	for _, i := range idx {
		counts[b.y[i]] += b.w[i]
		wTotal += b.w[i]
	}
	imp := b.impurity(counts, wTotal)
	value := make([]float64, b.nClasses)
	for k, c := range counts {
		value[k] = c / wTotal
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		LeftChild:        -1,
		RightChild:       -1,
		Feature:          -1,
		Impurity:         imp,
		NSamples:         len(idx),
		WeightedNSamples: wTotal,
		Value:            value,
	})

	dt := b.dt
	n := len(idx)
	if (dt.maxDepth >= 0 && depth >= dt.maxDepth) ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		imp <= 1e-12 {
		return id
	}

	best, ok := b.findSplit(idx)
	if !ok {
		return id
	}

	col := b.cols[best.feature]
	var left, right []int
	for _, i := range idx {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.imp[best.feature] += wTotal*imp - best.proxy

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	node := &b.nodes[id]
	node.LeftChild = l
	node.RightChild = r
	node.Feature = best.feature
	node.Threshold = best.threshold
	return id
}

// findSplit evaluates up to mtry non-constant features in random order and
// returns the split minimizing the weighted child impurity.
func (b *builder) findSplit(idx []int) (split, bool) {
	nFeatures := len(b.cols)
	features := make([]int, nFeatures)
	for j := range features {
		features[j] = j
	}
	if b.mtry < nFeatures {
		b.rng.Shuffle(nFeatures, func(i, j int) { features[i], features[j] = features[j], features[i] })
	}

	best := split{proxy: math.Inf(1)}
	found := false
	visited := 0
	order := make([]int, len(idx))
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)

	for _, f := range features {
		if visited >= b.mtry && found {
			break
		}
		col := b.cols[f]
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })
		if col[order[0]] == col[order[len(order)-1]] {
			continue
		}
		visited++

		for k := range left {
			left[k], right[k] = 0, 0
		}
		wRight := 0.0
		for _, i := range order {
			right[b.y[i]] += b.w[i]
			wRight += b.w[i]
		}
		wLeft := 0.0
		minLeaf := b.dt.minSamplesLeaf
		n := len(order)
		for p := 0; p < n-1; p++ {
			i := order[p]
			left[b.y[i]] += b.w[i]
			right[b.y[i]] -= b.w[i]
			wLeft += b.w[i]
			wRight -= b.w[i]

			nLeft := p + 1
			if nLeft < minLeaf || n-nLeft < minLeaf {
				continue
			}
			v, next := col[i], col[order[p+1]]
			if v == next {
				continue
			}
			proxy := wLeft*b.impurity(left, wLeft) + wRight*b.impurity(right, wRight)
			if proxy < best.proxy {
				thr := v + (next-v)/2
				if thr >= next {
					thr = v
				}
				best = split{feature: f, threshold: thr, pos: nLeft, proxy: proxy}
				found = true
			}
		}
	}
	return best, found
}

func (dt *DecisionTreeClassifier) apply(row []float64) *Node {
	n := &dt.nodes[0]
	for !n.IsLeaf() {
		if row[n.Feature] <= n.Threshold {
			n = &dt.nodes[n.LeftChild]
		} else {
			n = &dt.nodes[n.RightChild]
		}
	}
	return n
}

// PredictProba returns the class fractions of the leaf each sample falls in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckInput("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.apply(row).Value)
	}
	return out, nil
}

// Predict returns the most probable class label per sample.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgmaxLabels(proba, dt.classes), nil
}

// ArgmaxLabels maps each probability row to the label with the highest
// probability. Ties go to the lower label.
func ArgmaxLabels(proba mat.Matrix, classes []float64) *mat.Dense {
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}

// Score returns the mean accuracy on the given data, or 0 on error.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
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

// Classes returns the class labels seen during Fit, ascending.
func (dt *DecisionTreeClassifier) Classes() []int {
	out := make([]int, len(dt.classes))
	for i, c := range dt.classes {
		out[i] = int(c)
	}
	return out
}

// ClassLabels returns the class labels as float64.
func (dt *DecisionTreeClassifier) ClassLabels() []float64 {
	return append([]float64(nil), dt.classes...)
}

// FeatureImportances returns the normalized impurity decrease per feature.
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), dt.importances...)
}

// GetFeatureImportances is an alias of FeatureImportances.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return dt.FeatureImportances()
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for i := range dt.nodes {
		if dt.nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Nodes exposes the fitted node array.
func (dt *DecisionTreeClassifier) Nodes() []Node { return dt.nodes }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	var maxFeatures interface{} = dt.maxFeatures
	if dt.maxFeatures == "" {
		maxFeatures = dt.maxFeaturesN
	}
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters. The model must be refitted afterwards.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "criterion":
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(k, "must be a string", v)
			}
			dt.criterion = s
		case "max_depth", "min_samples_split", "min_samples_leaf":
			n, ok := v.(int)
			if !ok {
				return errors.NewValidationError(k, "must be an int", v)
			}
			switch k {
			case "max_depth":
				dt.maxDepth = n
			case "min_samples_split":
				dt.minSamplesSplit = n
			default:
				dt.minSamplesLeaf = n
			}
		case "max_features":
			switch mf := v.(type) {
			case string:
				WithMaxFeatures(mf)(dt)
			case int:
				WithMaxFeaturesN(mf)(dt)
			default:
				return errors.NewValidationError(k, "must be a string or int", v)
			}
		case "random_state":
			switch s := v.(type) {
			case int:
				dt.randomState = uint64(s)
			case uint64:
				dt.randomState = s
			default:
				return errors.NewValidationError(k, "must be an int", v)
			}
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	dt.state.Reset()
	return dt.validate()
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}
