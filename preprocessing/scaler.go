package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// 分散がこれ未満の列は定数列とみなし、スケールを1のままにする
const minScale = 1e-8

// StandardScaler は各列を (x - Mean) / Scale に変換します。
// Scale は母標準偏差 (ddof=0)。
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	Z, err := scaler.FitTransform(X)
type StandardScaler struct {
	state *model.StateManager

	Mean     []float64
	Scale    []float64
	WithMean bool
	WithStd  bool
}

func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{state: model.NewStateManager(), WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault は平均も標準偏差も使うスケーラーを返します。
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

func (s *StandardScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	mean := make([]float64, cols)
	scale := make([]float64, cols)
	buf := make([]float64, rows)
	for j := range cols {
		m, variance := stat.PopMeanVariance(mat.Col(buf, j, X), nil)
		if s.WithMean {
			mean[j] = m
		}
		scale[j] = 1
		if sd := math.Sqrt(variance); s.WithStd && sd >= minScale {
			scale[j] = sd
		}
	}
	s.Mean, s.Scale = mean, scale

	s.state.SetDimensions(cols, rows)
	s.state.SetFitted()
	return nil
}

func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, func(v float64, j int) float64 { return (v - s.Mean[j]) / s.Scale[j] })
}

func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化した値を元のスケールに戻します。
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, func(v float64, j int) float64 { return v*s.Scale[j] + s.Mean[j] })
}

func (s *StandardScaler) apply(method string, X mat.Matrix, f func(v float64, j int) float64) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", method); err != nil {
		return nil, err
	}
	if err := s.state.CheckInput("StandardScaler."+method, X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 { return f(v, j) }, X)
	return out, nil
}

func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

func (s *StandardScaler) String() string {
	base := fmt.Sprintf("with_mean=%t, with_std=%t", s.WithMean, s.WithStd)
	if n, _ := s.state.GetDimensions(); s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(%s, n_features=%d)", base, n)
	}
	return "StandardScaler(" + base + ")"
}
