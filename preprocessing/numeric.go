package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// NumericPipeline selects numeric columns from a frame and runs them through
// a chain of matrix transformers, e.g. StandardScaler then PCA.
type NumericPipeline struct {
	state *model.StateManager

	Columns []string
	Steps   []model.Transformer
}

// NewNumericPipeline creates a pipeline over the given columns.
func NewNumericPipeline(columns []string, steps ...model.Transformer) *NumericPipeline {
	return &NumericPipeline{
		state:   model.NewStateManager(),
		Columns: append([]string(nil), columns...),
		Steps:   steps,
	}
}

// Matrix copies the named numeric columns into a dense matrix. Missing cells
// are rejected because nothing downstream can represent them.
func Matrix(f *frame.Frame, columns []string) (*mat.Dense, error) {
	rows := f.NRows()
	if rows == 0 || len(columns) == 0 {
		return nil, errors.NewModelError("preprocessing.Matrix", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(rows, len(columns), nil)
	for j, name := range columns {
		col, ok := f.Column(name)
		if !ok {
			return nil, errors.NewValidationError("column", "not found", name)
		}
		if col.Kind != frame.Numeric {
			return nil, errors.NewValidationError(name, "expected numeric column", col.Kind.String())
		}
		for i, v := range col.Floats {
			if math.IsNaN(v) {
				return nil, errors.NewValidationError(name, "contains missing values", i)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// Fit fits every step in order on the output of the previous one.
func (p *NumericPipeline) Fit(f *frame.Frame) error {
	_, err := p.FitTransform(f)
	return err
}

// FitTransform fits the chain and returns the transformed training matrix.
func (p *NumericPipeline) FitTransform(f *frame.Frame) (*mat.Dense, error) {
	X, err := Matrix(f, p.Columns)
	if err != nil {
		return nil, err
	}
	var cur mat.Matrix = X
	for _, step := range p.Steps {
		cur, err = step.FitTransform(cur)
		if err != nil {
			return nil, err
		}
	}
	p.state.SetDimensions(len(p.Columns), f.NRows())
	p.state.SetFitted()
	return mat.DenseCopyOf(cur), nil
}

// Transform applies the fitted chain.
func (p *NumericPipeline) Transform(f *frame.Frame) (*mat.Dense, error) {
	if err := p.state.RequireFitted("NumericPipeline", "Transform"); err != nil {
		return nil, err
	}
	X, err := Matrix(f, p.Columns)
	if err != nil {
		return nil, err
	}
	var cur mat.Matrix = X
	for _, step := range p.Steps {
		cur, err = step.Transform(cur)
		if err != nil {
			return nil, err
		}
	}
	return mat.DenseCopyOf(cur), nil
}

// FeatureNamesOut follows the names of the last step that renames columns.
func (p *NumericPipeline) FeatureNamesOut() []string {
	names := append([]string(nil), p.Columns...)
	for _, step := range p.Steps {
		if n, ok := step.(model.FeatureNamer); ok {
			names = n.GetFeatureNamesOut(names)
		}
	}
	return names
}
