// Package metrics は分類モデルの評価指標を提供する
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

const logLossEps = 1e-15

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率を計算する（多クラス可）
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率 (1 - accuracy) を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// binaryCounts returns tp, fp, fn, tn with 1 as the positive label.
func binaryCounts(op string, yTrue, yPred *mat.VecDense) (tp, fp, fn, tn int, err error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return
	}
	if err = checkBinaryLabels(op, yTrue); err != nil {
		return
	}
	if err = checkBinaryLabels(op, yPred); err != nil {
		return
	}
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i) == 1, yPred.AtVec(i) == 1
		switch {
		case t && p:
			tp++
		case !t && p:
			fp++
		case t && !p:
			fn++
		default:
			tn++
		}
	}
	return
}

// zeroDivision returns num/den, or 0 with an UndefinedMetricWarning when den is 0.
func zeroDivision(metric, condition string, num, den float64) float64 {
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return num / den
}

// PrecisionScore は陽性クラス(1)の適合率を計算する
// 陽性予測が0件の場合は0を返し、UndefinedMetricWarningを発生させる
func PrecisionScore(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, fp, _, _, err := binaryCounts("PrecisionScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return zeroDivision("precision", "no predicted samples", float64(tp), float64(tp+fp)), nil
}

// RecallScore は陽性クラス(1)の再現率を計算する
func RecallScore(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, _, fn, _, err := binaryCounts("RecallScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return zeroDivision("recall", "no true samples", float64(tp), float64(tp+fn)), nil
}

// F1Score は適合率と再現率の調和平均を計算する
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	tp, fp, fn, _, err := binaryCounts("F1Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// 2TP / (2TP + FP + FN) は precision/recall から計算した値と一致する
	return zeroDivision("f-score", "no true nor predicted samples", float64(2*tp), float64(2*tp+fp+fn)), nil
}

// ConfusionMatrix は混同行列を返す
// 行は真のラベル、列は予測ラベル。ラベルは両ベクトルの和集合を昇順に並べたもの
func ConfusionMatrix(yTrue, yPred *mat.VecDense) ([][]int, []float64, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[float64]bool)
	for i := 0; i < n; i++ {
		seen[yTrue.AtVec(i)] = true
		seen[yPred.AtVec(i)] = true
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	pos := make(map[float64]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	cm := make([][]int, len(labels))
	for i := range cm {
		cm[i] = make([]int, len(labels))
	}
	for i := 0; i < n; i++ {
		cm[pos[yTrue.AtVec(i)]][pos[yPred.AtVec(i)]]++
	}
	return cm, labels, nil
}

// AUC はROC曲線下面積を計算する
// 同順位のスコアは0.5として数える。片方のクラスしかない場合は0.5を返す
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	// 平均順位を使ったMann-Whitney U統計量
	var nPos, nNeg int
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				nPos++
				rankSumPos += avgRank
			} else {
				nNeg++
			}
		}
		i = j + 1
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}
	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する（先頭列を使用）
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	yt, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	yp, err := firstColumn("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return AUC(yt, yp)
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// BinaryLogLoss は二値交差エントロピーを計算する
// 予測確率は [eps, 1-eps] にクリップされる
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEps, 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// BinaryConfusionMatrix は常に 2x2 の混同行列を返す (行 = 正解, 列 = 予測, ラベル順 0, 1)
func BinaryConfusionMatrix(yTrue, yPred *mat.VecDense) ([][]int, error) {
	tp, fp, fn, tn, err := binaryCounts("BinaryConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return [][]int{{tn, fp}, {fn, tp}}, nil
}

// BinaryReport は二値分類の評価結果をまとめたもの
type BinaryReport struct {
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	ConfusionMatrix [][]int
	ROCAUC          float64
	LogLoss         float64
}

// EvaluateBinary はラベル予測と陽性確率からBinaryReportを作る
func EvaluateBinary(yTrue, yPred, proba *mat.VecDense) (BinaryReport, error) {
	var r BinaryReport
	var err error
	if r.Accuracy, err = Accuracy(yTrue, yPred); err != nil {
		return r, err
	}
	if r.Precision, err = PrecisionScore(yTrue, yPred); err != nil {
		return r, err
	}
	if r.Recall, err = RecallScore(yTrue, yPred); err != nil {
		return r, err
	}
	if r.F1, err = F1Score(yTrue, yPred); err != nil {
		return r, err
	}
	if r.ConfusionMatrix, err = BinaryConfusionMatrix(yTrue, yPred); err != nil {
		return r, err
	}
	if r.ROCAUC, err = AUC(yTrue, proba); err != nil {
		return r, err
	}
	if r.LogLoss, err = BinaryLogLoss(yTrue, proba); err != nil {
		return r, err
	}
	return r, nil
}
