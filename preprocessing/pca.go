package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// PCA は主成分分析による次元削減
//
// NComponents が (0,1) の場合は累積寄与率がその値以上になる最小の成分数を、
// 1以上の場合はその数の成分を保持する。
type PCA struct {
	state *model.StateManager

	// NComponents は保持する成分数または寄与率の閾値
	NComponents float64

	// Mean は学習データの列平均
	Mean []float64

	// Components は (n_features, k) の主成分ベクトル
	Components *mat.Dense

	// ExplainedVariance は保持した成分の分散
	ExplainedVariance []float64

	// ExplainedVarianceRatio は保持した成分の寄与率
	ExplainedVarianceRatio []float64
}

// NewPCA は新しいPCAを作成する
func NewPCA(nComponents float64) *PCA {
	return &PCA{
		state:       model.NewStateManager(),
		NComponents: nComponents,
	}
}

// Fit は主成分を計算する
func (p *PCA) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}
	if p.NComponents <= 0 || (p.NComponents >= 1 && p.NComponents != math.Trunc(p.NComponents)) {
		return errors.NewValidationError("n_components", "must be a fraction in (0,1) or a positive integer", p.NComponents)
	}
	if r < 2 {
		return errors.NewModelError("PCA.Fit", "need at least 2 samples", errors.ErrEmptyData)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.NewModelError("PCA.Fit", "decomposition failed", errors.ErrSingularMatrix)
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := 0.0
	for _, v := range vars {
		total += v
	}
	ratios := make([]float64, len(vars))
	for i, v := range vars {
		ratios[i] = errors.SafeDivide(v, total)
	}

	k, err := p.selectK(ratios)
	if err != nil {
		return err
	}

	_, nVecs := vecs.Dims()
	if k > nVecs {
		k = nVecs
	}
	comps := mat.DenseCopyOf(vecs.Slice(0, c, 0, k))
	flipSigns(comps)

	p.Mean = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		p.Mean[j] = stat.Mean(col, nil)
	}
	p.Components = comps
	p.ExplainedVariance = append([]float64(nil), vars[:k]...)
	p.ExplainedVarianceRatio = append([]float64(nil), ratios[:k]...)

	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	return nil
}

func (p *PCA) selectK(ratios []float64) (int, error) {
	if p.NComponents >= 1 {
		k := int(p.NComponents)
		if k > len(ratios) {
			return 0, errors.NewValidationError("n_components", fmt.Sprintf("must be <= %d", len(ratios)), k)
		}
		return k, nil
	}
	cum := 0.0
	for i, r := range ratios {
		cum += r
		if cum >= p.NComponents {
			return i + 1, nil
		}
	}
	return len(ratios), nil
}

// flipSigns makes the largest-magnitude loading of each component positive.
func flipSigns(comps *mat.Dense) {
	rows, cols := comps.Dims()
	for j := 0; j < cols; j++ {
		best, bestAbs := 0.0, -1.0
		for i := 0; i < rows; i++ {
			if a := math.Abs(comps.At(i, j)); a > bestAbs {
				best, bestAbs = comps.At(i, j), a
			}
		}
		if best < 0 {
			for i := 0; i < rows; i++ {
				comps.Set(i, j, -comps.At(i, j))
			}
		}
	}
}

// Transform はデータを主成分空間へ射影する
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PCA", "Transform"); err != nil {
		return nil, err
	}
	if err := p.state.CheckInput("PCA.Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - p.Mean[j] }, X)

	var out mat.Dense
	out.Mul(centered, p.Components)
	return &out, nil
}

// FitTransform は学習と変換を同時に行う
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// NComponentsOut は保持した成分数を返す
func (p *PCA) NComponentsOut() int {
	return len(p.ExplainedVarianceRatio)
}

// GetFeatureNamesOut は pca0, pca1, ... を返す
func (p *PCA) GetFeatureNamesOut(_ []string) []string {
	names := make([]string, p.NComponentsOut())
	for i := range names {
		names[i] = fmt.Sprintf("pca%d", i)
	}
	return names
}

// GetParams はパラメータを返す
func (p *PCA) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_components": p.NComponents}
}
