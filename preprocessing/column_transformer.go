package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// FrameTransformer maps a frame to a numeric matrix.
type FrameTransformer interface {
	Fit(f *frame.Frame) error
	FitTransform(f *frame.Frame) (*mat.Dense, error)
	Transform(f *frame.Frame) (*mat.Dense, error)
	FeatureNamesOut() []string
}

// Branch is one named part of a ColumnTransformer.
type Branch struct {
	Name        string
	Transformer FrameTransformer
}

// ColumnTransformer fits each branch on the same frame and concatenates
// their outputs horizontally in branch order. Columns not claimed by any
// branch are dropped.
type ColumnTransformer struct {
	state *model.StateManager

	Branches []Branch
	widths   []int
}

// NewColumnTransformer creates a transformer from branches.
func NewColumnTransformer(branches ...Branch) *ColumnTransformer {
	return &ColumnTransformer{
		state:    model.NewStateManager(),
		Branches: branches,
	}
}

// Fit fits every branch.
func (ct *ColumnTransformer) Fit(f *frame.Frame) error {
	_, err := ct.FitTransform(f)
	return err
}

// FitTransform fits every branch and returns the concatenated output.
func (ct *ColumnTransformer) FitTransform(f *frame.Frame) (*mat.Dense, error) {
	if len(ct.Branches) == 0 {
		return nil, errors.NewValidationError("branches", "at least one branch required", 0)
	}
	parts := make([]*mat.Dense, len(ct.Branches))
	for i, b := range ct.Branches {
		out, err := b.Transformer.FitTransform(f)
		if err != nil {
			return nil, errors.Wrapf(err, "fit branch %s", b.Name)
		}
		parts[i] = out
	}
	ct.widths = make([]int, len(parts))
	for i, p := range parts {
		_, ct.widths[i] = p.Dims()
	}
	out := hstack(parts)
	_, c := out.Dims()
	ct.state.SetDimensions(c, f.NRows())
	ct.state.SetFitted()
	return out, nil
}

// Transform applies every fitted branch.
func (ct *ColumnTransformer) Transform(f *frame.Frame) (*mat.Dense, error) {
	if err := ct.state.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	parts := make([]*mat.Dense, len(ct.Branches))
	for i, b := range ct.Branches {
		out, err := b.Transformer.Transform(f)
		if err != nil {
			return nil, errors.Wrapf(err, "transform branch %s", b.Name)
		}
		if _, c := out.Dims(); c != ct.widths[i] {
			return nil, errors.NewDimensionError("ColumnTransformer.Transform", ct.widths[i], c, 1)
		}
		parts[i] = out
	}
	return hstack(parts), nil
}

// FeatureNamesOut prefixes every branch output with "<branch>__".
func (ct *ColumnTransformer) FeatureNamesOut() []string {
	var names []string
	for _, b := range ct.Branches {
		for _, n := range b.Transformer.FeatureNamesOut() {
			names = append(names, b.Name+"__"+n)
		}
	}
	return names
}

func hstack(parts []*mat.Dense) *mat.Dense {
	rows, width := 0, 0
	for _, p := range parts {
		r, c := p.Dims()
		rows = r
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	off := 0
	for _, p := range parts {
		_, c := p.Dims()
		if c == 0 {
			continue
		}
		out.Slice(0, rows, off, off+c).(*mat.Dense).Copy(p)
		off += c
	}
	return out
}
