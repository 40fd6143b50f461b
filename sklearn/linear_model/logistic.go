package linear_model

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// LogisticRegression implements L2-regularized logistic regression.
// Binary problems fit a single coefficient row; more than two classes are
// handled one-vs-rest. Compatible with scikit-learn's LogisticRegression
// using the lbfgs solver.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool    // Whether to fit intercept
	classWeight  string  // Class weight: "balanced" or "none"
	maxIter      int     // Maximum L-BFGS iterations
	tol          float64 // Gradient norm tolerance

	// Model parameters
	coef_      [][]float64 // n_classes x n_features, or 1 x n_features for binary
	intercept_ []float64
	classes_   []int
	nClasses_  int
	nFeatures_ int
	nIter_     []int // iterations per fitted row
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		classWeight:  "none",
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLRMaxIter sets the iteration limit.
func WithLRMaxIter(n int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = n }
}

// WithLRTol sets the stopping tolerance.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRPenalty sets the penalty ("l2" or "none").
func WithLRPenalty(p string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = p }
}

// WithLRClassWeight sets the class weighting ("balanced" or "none").
// balanced は n_samples / (n_classes * n_c) で重み付けする。
func WithLRClassWeight(cw string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.classWeight = cw }
}

// WithLRFitIntercept toggles the intercept term.
func WithLRFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "lbfgs supports only l2 or none", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", lr.maxIter)
	}
	if lr.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", lr.tol)
	}
	switch lr.classWeight {
	case "balanced", "none", "":
	default:
		return errors.NewValidationError("class_weight", "must be balanced or none", lr.classWeight)
	}
	return nil
}

// Fit trains the model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if err := lr.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, _ := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("LogisticRegression.Fit", rows, yRows, 0)
	}

	labels := make([]int, rows)
	seen := map[int]int{}
	for i := 0; i < rows; i++ {
		labels[i] = int(y.At(i, 0))
		seen[labels[i]]++
	}
	lr.classes_ = lr.classes_[:0]
	for c := range seen {
		lr.classes_ = append(lr.classes_, c)
	}
	sort.Ints(lr.classes_)
	lr.nClasses_ = len(lr.classes_)
	if lr.nClasses_ < 2 {
		return errors.NewModelError("LogisticRegression.Fit", "need samples of at least 2 classes", errors.ErrSingleClass)
	}
	lr.nFeatures_ = cols

	// 二値は正例 (大きい方のラベル) の1行のみ学習する
	targets := lr.classes_
	if lr.nClasses_ == 2 {
		targets = lr.classes_[1:]
	}

	xs := mat.DenseCopyOf(X)
	lr.coef_ = make([][]float64, len(targets))
	lr.intercept_ = make([]float64, len(targets))
	lr.nIter_ = make([]int, len(targets))

	logger := log.GetLoggerWithName("linear_model")
	for k, pos := range targets {
		yb := make([]float64, rows)
		for i, l := range labels {
			if l == pos {
				yb[i] = 1
			}
		}
		w, b, iters, err := lr.fitBinary(xs, yb, lr.sampleWeights(yb))
		if err != nil {
			return err
		}
		lr.coef_[k], lr.intercept_[k], lr.nIter_[k] = w, b, iters
		logger.Debug("fitted logistic row",
			log.OperationKey, log.OperationFit,
			log.IterationKey, iters,
			"class", pos,
		)
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// sampleWeights returns balanced per-sample weights for a 0/1 target.
func (lr *LogisticRegression) sampleWeights(yb []float64) []float64 {
	w := make([]float64, len(yb))
	if lr.classWeight != "balanced" {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	nPos := floats.Sum(yb)
	n := float64(len(yb))
	wPos := errors.SafeDivide(n, 2*nPos)
	wNeg := errors.SafeDivide(n, 2*(n-nPos))
	for i, v := range yb {
		if v == 1 {
			w[i] = wPos
		} else {
			w[i] = wNeg
		}
	}
	return w
}

// fitBinary minimizes
//
//	C * Σ s_i [log(1+exp(z_i)) - y_i z_i] + ½‖w‖²,  z_i = x_i·w + b
//
// with L-BFGS. The intercept is not penalized.
func (lr *LogisticRegression) fitBinary(X *mat.Dense, y, s []float64) ([]float64, float64, int, error) {
	rows, cols := X.Dims()
	nParams := cols
	if lr.fitIntercept {
		nParams++
	}
	reg := 1.0
	if lr.penalty == "none" {
		reg = 0
	}

	z := make([]float64, rows)
	linear := func(theta []float64) {
		zv := mat.NewVecDense(rows, z)
		zv.MulVec(X, mat.NewVecDense(cols, theta[:cols]))
		if lr.fitIntercept {
			for i := range z {
				z[i] += theta[cols]
			}
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			linear(theta)
			loss := 0.0
			for i, zi := range z {
				loss += s[i] * (errors.Log1pExp(zi) - y[i]*zi)
			}
			w := theta[:cols]
			return lr.C*loss + 0.5*reg*floats.Dot(w, w)
		},
		Grad: func(grad, theta []float64) {
			linear(theta)
			r := make([]float64, rows)
			for i, zi := range z {
				r[i] = lr.C * s[i] * (errors.Sigmoid(zi) - y[i])
			}
			gw := mat.NewVecDense(cols, grad[:cols])
			gw.MulVec(X.T(), mat.NewVecDense(rows, r))
			for j := 0; j < cols; j++ {
				grad[j] += reg * theta[j]
			}
			if lr.fitIntercept {
				grad[cols] = floats.Sum(r)
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	init := make([]float64, nParams)
	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, 0, errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", result.X, result.Stats.MajorIterations); err != nil {
		return nil, 0, 0, err
	}
	if err != nil || result.Status == optimize.IterationLimit {
		reason := "increase max_iter or scale the data"
		if err != nil {
			reason = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations, reason))
	}

	w := append([]float64(nil), result.X[:cols]...)
	b := 0.0
	if lr.fitIntercept {
		b = result.X[cols]
	}
	return w, b, result.Stats.MajorIterations, nil
}

// DecisionFunction returns the signed distance to the hyperplane per row
// and fitted coefficient row.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckInput("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	k := len(lr.coef_)
	coef := mat.NewDense(k, lr.nFeatures_, nil)
	for r, row := range lr.coef_ {
		coef.SetRow(r, row)
	}
	out := mat.NewDense(rows, k, nil)
	out.Mul(X, coef.T())
	out.Apply(func(_, j int, v float64) float64 { return v + lr.intercept_[j] }, out)
	return out, nil
}

// PredictProba returns class probabilities, one column per class.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, _ := scores.Dims()
	proba := mat.NewDense(rows, lr.nClasses_, nil)
	for i := 0; i < rows; i++ {
		if lr.nClasses_ == 2 {
			p := errors.Sigmoid(scores.At(i, 0))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		// one-vs-rest: 各クラスのシグモイドを正規化
		sum := 0.0
		for k := 0; k < lr.nClasses_; k++ {
			p := errors.Sigmoid(scores.At(i, k))
			proba.Set(i, k, p)
			sum += p
		}
		for k := 0; k < lr.nClasses_; k++ {
			proba.Set(i, k, errors.SafeDivide(proba.At(i, k), sum))
		}
	}
	return proba, nil
}

// Predict returns the most probable class per sample.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < lr.nClasses_; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(lr.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy, or 0 on error.
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	pred, err := lr.Predict(X)
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
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the coefficient rows.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for i, row := range lr.coef_ {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Intercept returns a copy of the intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept_...)
}

// NIter returns the iterations used for each coefficient row.
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter_...)
}

// GetParams returns the hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"class_weight":  lr.classWeight,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty", "class_weight":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			if key == "penalty" {
				lr.penalty = s
			} else {
				lr.classWeight = s
			}
		case "C", "tol":
			f, ok := value.(float64)
			if !ok {
				return errors.NewValidationError(key, "must be a float64", value)
			}
			if key == "C" {
				lr.C = f
			} else {
				lr.tol = f
			}
		case "max_iter":
			n, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			lr.maxIter = n
		case "fit_intercept":
			b, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			lr.fitIntercept = b
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	lr.state.Reset()
	return nil
}

// String returns a string representation of the model
func (lr *LogisticRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LogisticRegression(penalty=%s, C=%.3f, class_weight=%s, max_iter=%d)",
			lr.penalty, lr.C, lr.classWeight, lr.maxIter)
	}
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%.3f, n_features=%d, n_classes=%d)",
		lr.penalty, lr.C, lr.nFeatures_, lr.nClasses_)
}
