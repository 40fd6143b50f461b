// Package model はmindscopeの変換器と分類器が共有するインターフェースと、
// 学習済み状態の管理を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Transformer は列を学習して変換するステップです。前処理パイプラインの各段が実装します。
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// FeatureNamer は入力列名から変換後の列名を作れるTransformerです。
type FeatureNamer interface {
	GetFeatureNamesOut(input []string) []string
}

// Classifier はレジストリに登録できる分類器です。
// PredictProba は (n_samples, n_classes) を返し、列は Classes の昇順に並びます。
type Classifier interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
	// Score は正解率を返す
	Score(X, y mat.Matrix) float64
}

// FeatureImportancer は木ベースの分類器が実装します。合計が1になるよう正規化済み。
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// Coefficienter は線形の分類器が実装します。Coef は (n_targets, n_features)。
type Coefficienter interface {
	Coef() [][]float64
	Intercept() []float64
}
