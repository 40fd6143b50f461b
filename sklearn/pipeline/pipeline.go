// Package pipeline chains a frame preprocessor with a classifier.
package pipeline

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/preprocessing"
)

// contextFitter is implemented by classifiers whose training can be cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// Pipeline is a preprocessor followed by a classifier.
type Pipeline struct {
	Preprocessor preprocessing.FrameTransformer
	Classifier   model.Classifier

	state *model.StateManager
}

// New creates a pipeline.
func New(pre preprocessing.FrameTransformer, clf model.Classifier) *Pipeline {
	return &Pipeline{
		Preprocessor: pre,
		Classifier:   clf,
		state:        model.NewStateManager(),
	}
}

// Fit fits the preprocessor on f, then the classifier on the transformed matrix.
func (p *Pipeline) Fit(ctx context.Context, f *frame.Frame, y []float64) error {
	if f.NRows() != len(y) {
		return errors.NewDimensionError("Pipeline.Fit", f.NRows(), len(y), 0)
	}
	X, err := p.Preprocessor.FitTransform(f)
	if err != nil {
		return errors.Wrap(err, "preprocess")
	}
	yv := mat.NewDense(len(y), 1, append([]float64(nil), y...))
	if cf, ok := p.Classifier.(contextFitter); ok {
		err = cf.FitContext(ctx, X, yv)
	} else {
		err = p.Classifier.Fit(X, yv)
	}
	if err != nil {
		return errors.Wrap(err, "fit classifier")
	}
	_, cols := X.Dims()
	p.state.SetDimensions(cols, len(y))
	p.state.SetFitted()
	return nil
}

// Transform runs only the fitted preprocessor.
func (p *Pipeline) Transform(f *frame.Frame) (*mat.Dense, error) {
	if err := p.state.RequireFitted("Pipeline", "Transform"); err != nil {
		return nil, err
	}
	return p.Preprocessor.Transform(f)
}

// PredictProba returns class probabilities for each row of f.
func (p *Pipeline) PredictProba(f *frame.Frame) (mat.Matrix, error) {
	X, err := p.Transform(f)
	if err != nil {
		return nil, err
	}
	return p.Classifier.PredictProba(X)
}

// Predict returns predicted labels for each row of f.
func (p *Pipeline) Predict(f *frame.Frame) (*mat.VecDense, error) {
	X, err := p.Transform(f)
	if err != nil {
		return nil, err
	}
	pred, err := p.Classifier.Predict(X)
	if err != nil {
		return nil, err
	}
	rows, _ := pred.Dims()
	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		out.SetVec(i, pred.At(i, 0))
	}
	return out, nil
}

// PositiveProba returns P(label=1) for each row of f.
func (p *Pipeline) PositiveProba(f *frame.Frame) (*mat.VecDense, error) {
	proba, err := p.PredictProba(f)
	if err != nil {
		return nil, err
	}
	col := -1
	for i, c := range p.Classifier.Classes() {
		if c == 1 {
			col = i
		}
	}
	rows, _ := proba.Dims()
	out := mat.NewVecDense(rows, nil)
	if col < 0 {
		return out, nil
	}
	for i := 0; i < rows; i++ {
		out.SetVec(i, proba.At(i, col))
	}
	return out, nil
}

// FeatureNamesOut returns the names of the matrix columns fed to the classifier.
func (p *Pipeline) FeatureNamesOut() []string {
	return p.Preprocessor.FeatureNamesOut()
}

// FeatureImportance returns tree importances when the classifier has them,
// otherwise the first coefficient row of a linear classifier, otherwise nil.
func (p *Pipeline) FeatureImportance() []float64 {
	if !p.state.IsFitted() {
		return nil
	}
	switch c := p.Classifier.(type) {
	case model.FeatureImportancer:
		return c.FeatureImportances()
	case model.Coefficienter:
		coef := c.Coef()
		if len(coef) == 0 {
			return nil
		}
		return coef[0]
	}
	return nil
}
