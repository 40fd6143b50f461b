package linear_model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func TestLogisticRegression_Binary(t *testing.T) {
	// 低ストレス群と高ストレス群
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10))
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, []int{0, 1}, lr.Classes())
	require.Len(t, lr.Coef(), 1, "binary fits one row for the positive class")
	assert.Equal(t, 1.0, lr.Score(X, y))
	assert.Greater(t, lr.Coef()[0][0], 0.0)
	assert.Greater(t, lr.Coef()[0][1], 0.0)

	pred, err := lr.Predict(mat.NewDense(2, 2, []float64{1, 1, 3, 3}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	dec, err := lr.DecisionFunction(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-12)
		assert.InDelta(t, errors.Sigmoid(dec.At(i, 0)), proba.At(i, 1), 1e-12)
	}
}

// 切片の勾配が 0 になるので、重み付き予測確率の和は重み付きラベルの和に一致する
func TestLogisticRegression_ClassWeight(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6, 7, 5.5, 8}
	ys := []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}
	X := mat.NewDense(len(xs), 1, xs)
	y := mat.NewDense(len(ys), 1, ys)

	positiveSum := func(lr *LogisticRegression, w func(label float64) float64) float64 {
		proba, err := lr.PredictProba(X)
		require.NoError(t, err)
		s := 0.0
		for i := range ys {
			s += w(ys[i]) * proba.At(i, 1)
		}
		return s
	}

	plain := NewLogisticRegression(WithLRMaxIter(1000), WithLRClassWeight("none"))
	require.NoError(t, plain.Fit(X, y))
	assert.InDelta(t, 2.0, positiveSum(plain, func(float64) float64 { return 1 }), 1e-2)

	balanced := NewLogisticRegression(WithLRMaxIter(1000), WithLRClassWeight("balanced"))
	require.NoError(t, balanced.Fit(X, y))
	// n/(2·n_pos) = 2.5, n/(2·n_neg) = 0.625
	w := func(label float64) float64 {
		if label == 1 {
			return 2.5
		}
		return 0.625
	}
	assert.InDelta(t, 5.0, positiveSum(balanced, w), 1e-2)
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 1, 0, 0, 1, 1, 1})

	norm := func(c float64) float64 {
		lr := NewLogisticRegression(WithLRC(c), WithLRMaxIter(1000))
		require.NoError(t, lr.Fit(X, y))
		return floats.Norm(lr.Coef()[0], 2)
	}
	assert.Less(t, norm(0.01), norm(100))
}

func TestLogisticRegression_OneVsRest(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		2, 2, 2, 3, 3, 2,
		4, 4, 4, 5, 5, 4,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRC(10))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 3, lr.nClasses_)
	assert.Len(t, lr.Coef(), 3)

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	require.Equal(t, 3, c)
	for i := 0; i < 9; i++ {
		sum := proba.At(i, 0) + proba.At(i, 1) + proba.At(i, 2)
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	pred, err := lr.Predict(mat.NewDense(2, 2, []float64{0, 0, 5, 5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 2.0, pred.At(1, 0))
}

func TestLogisticRegression_FitErrors(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	t.Run("single class", func(t *testing.T) {
		err := NewLogisticRegression().Fit(X, mat.NewDense(4, 1, []float64{1, 1, 1, 1}))
		assert.True(t, errors.Is(err, errors.ErrSingleClass))
	})
	t.Run("l1 penalty", func(t *testing.T) {
		err := NewLogisticRegression(WithLRPenalty("l1")).Fit(X, mat.NewDense(4, 1, []float64{0, 0, 1, 1}))
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})
	t.Run("label rows", func(t *testing.T) {
		err := NewLogisticRegression().Fit(X, mat.NewDense(3, 1, []float64{0, 1, 1}))
		var de *errors.DimensionError
		assert.True(t, errors.As(err, &de))
	})
}

func TestLogisticRegression_Params(t *testing.T) {
	lr := NewLogisticRegression()
	params := lr.GetParams()
	assert.Equal(t, 1.0, params["C"])
	assert.Equal(t, 100, params["max_iter"])

	require.NoError(t, lr.SetParams(map[string]interface{}{
		"C":        2.0,
		"max_iter": 200,
		"penalty":  "l1",
		"tol":      1e-5,
	}))
	assert.Equal(t, 2.0, lr.C)
	assert.Equal(t, 200, lr.maxIter)
	assert.Equal(t, "l1", lr.penalty)
	assert.Equal(t, 1e-5, lr.tol)
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := lr.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	_, err = lr.PredictProba(X)
	assert.Error(t, err)
}
