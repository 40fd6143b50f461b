package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/preprocessing"
	"github.com/YuminosukeSato/mindscope/sklearn/ensemble"
	"github.com/YuminosukeSato/mindscope/sklearn/linear_model"
	"github.com/YuminosukeSato/mindscope/sklearn/xgboost"
)

func trainFrame(t *testing.T) (*frame.Frame, []float64) {
	t.Helper()
	n := 40
	pressure := make([]float64, n)
	hours := make([]float64, n)
	gender := make([]string, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		pressure[i] = float64(i % 5)
		hours[i] = float64((i * 3) % 7)
		gender[i] = "Male"
		if i%2 == 0 {
			gender[i] = "Female"
		}
		if pressure[i] >= 3 {
			y[i] = 1
		}
	}
	f, err := frame.New(
		frame.NewNumeric("Academic Pressure", pressure),
		frame.NewNumeric("Work/Study Hours", hours),
		frame.NewString("Gender", gender, nil),
	)
	require.NoError(t, err)
	return f, y
}

func preprocessor() *preprocessing.ColumnTransformer {
	return preprocessing.NewColumnTransformer(
		preprocessing.Branch{Name: "cont", Transformer: preprocessing.NewNumericPipeline(
			[]string{"Academic Pressure", "Work/Study Hours"},
			preprocessing.NewStandardScalerDefault(),
		)},
		preprocessing.Branch{Name: "cat", Transformer: preprocessing.NewOneHotEncoder([]string{"Gender"}, true)},
	)
}

func TestPipeline_Classifiers(t *testing.T) {
	tests := []struct {
		name string
		pipe *Pipeline
		tree bool
	}{
		{"random forest", New(preprocessor(), ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(10))), true},
		{"logistic", New(preprocessor(), linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(1000))), false},
		{"xgboost", New(preprocessor(), xgboost.NewXGBClassifier(xgboost.WithNEstimators(20), xgboost.WithMaxDepth(2))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, y := trainFrame(t)
			require.NoError(t, tt.pipe.Fit(context.Background(), f, y))

			pred, err := tt.pipe.Predict(f)
			require.NoError(t, err)
			correct := 0
			for i, v := range y {
				if pred.AtVec(i) == v {
					correct++
				}
			}
			assert.GreaterOrEqual(t, float64(correct)/float64(len(y)), 0.9)

			p1, err := tt.pipe.PositiveProba(f)
			require.NoError(t, err)
			assert.Equal(t, len(y), p1.Len())

			imp := tt.pipe.FeatureImportance()
			require.Len(t, imp, 3)
			assert.Equal(t, []string{"cont__Academic Pressure", "cont__Work/Study Hours", "cat__Gender_Male"}, tt.pipe.FeatureNamesOut())
			if tt.tree {
				assert.Greater(t, imp[0], imp[2])
			} else {
				assert.Greater(t, imp[0], 0.0)
			}
		})
	}
}

func TestPipeline_UnknownCategoryAtPredict(t *testing.T) {
	f, y := trainFrame(t)
	p := New(preprocessor(), linear_model.NewLogisticRegression())
	require.NoError(t, p.Fit(context.Background(), f, y))

	row, err := frame.New(
		frame.NewNumeric("Academic Pressure", []float64{3}),
		frame.NewNumeric("Work/Study Hours", []float64{2}),
		frame.NewString("Gender", []string{"Other"}, nil),
	)
	require.NoError(t, err)
	_, err = p.PredictProba(row)
	var uc *errors.UnknownCategoryError
	assert.True(t, errors.As(err, &uc))
}

func TestPipeline_NotFitted(t *testing.T) {
	f, y := trainFrame(t)
	p := New(preprocessor(), linear_model.NewLogisticRegression())
	_, err := p.Predict(f)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
	assert.Nil(t, p.FeatureImportance())

	var dim *errors.DimensionError
	assert.True(t, errors.As(p.Fit(context.Background(), f, y[:3]), &dim))
}
