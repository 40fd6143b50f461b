package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func TestFitWeighted_ZeroWeightRowsIgnored(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	// the two rows that would otherwise force a split are dropped
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWeighted(X, y, []float64{1, 1, 1, 0, 0, 0}))

	assert.Equal(t, 1, dt.GetNLeaves())
	assert.Equal(t, 0, dt.GetDepth())

	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{5}))
	require.NoError(t, err)
	// class 1 was seen, so both columns exist
	assert.InDelta(t, 1.0, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, proba.At(0, 1), 1e-12)
}

func TestFitWeighted_WeightsShiftLeafValue(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWeighted(X, y, []float64{3, 1, 1, 1}))

	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, proba.At(0, 1), 1e-12)
}

func TestFitWeighted_Validation(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	dt := NewDecisionTreeClassifier()
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(dt.FitWeighted(X, y, []float64{1}), &dimErr))

	var valErr *errors.ValidationError
	assert.True(t, errors.As(dt.FitWeighted(X, y, []float64{1, -1}), &valErr))

	assert.Error(t, dt.FitWeighted(X, y, []float64{0, 0}))
}

func TestMaxFeatures(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want int
	}{
		{"sqrt", WithMaxFeatures("sqrt"), 3},
		{"log2", WithMaxFeatures("log2"), 3},
		{"all", WithMaxFeatures("all"), 10},
		{"fixed", WithMaxFeaturesN(4), 4},
		{"fixed capped", WithMaxFeaturesN(40), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opt)
			assert.Equal(t, tt.want, dt.featuresPerSplit(10))
		})
	}

	dt := NewDecisionTreeClassifier(WithMaxFeatures("half"))
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	assert.Error(t, dt.Fit(X, y))
}

func TestRandomState_Reproducible(t *testing.T) {
	n, d := 60, 5
	data := make([]float64, n*d)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			data[i*d+j] = float64((i*7+j*13)%17) + 0.1*float64(j)
		}
		if (i*7)%17 > 8 {
			labels[i] = 1
		}
	}
	X := mat.NewDense(n, d, data)
	y := mat.NewDense(n, 1, labels)

	fit := func(seed uint64) []float64 {
		dt := NewDecisionTreeClassifier(WithMaxFeatures("sqrt"), WithRandomState(seed))
		require.NoError(t, dt.Fit(X, y))
		return dt.FeatureImportances()
	}
	assert.Equal(t, fit(7), fit(7))
}

func TestPredict_NotFittedAndWidth(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	_, err := dt.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
	assert.Equal(t, []int{0, 1}, dt.Classes())
}
