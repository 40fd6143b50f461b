package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mindscope/internal/config"
	"github.com/YuminosukeSato/mindscope/internal/dataset"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

const samplePath = "../../testdata/student_depression_sample.csv"

var (
	sharedOnce sync.Once
	shared     *Registry
	sharedErr  error
)

func smallSettings() config.TrainingSettings {
	t := config.Default().Training
	t.RandomForest.NEstimators = 15
	t.XGBoost.NEstimators = 15
	t.LogisticRegression.MaxIter = 200
	return t
}

func prepared(t *testing.T) *dataset.Prepared {
	t.Helper()
	raw, err := dataset.Load(samplePath)
	require.NoError(t, err)
	p, err := dataset.Prepare(raw)
	require.NoError(t, err)
	return p
}

// sharedRegistry builds the three-model registry once for the read-only tests.
func sharedRegistry(t *testing.T) *Registry {
	t.Helper()
	sharedOnce.Do(func() {
		raw, err := dataset.Load(samplePath)
		if err != nil {
			sharedErr = err
			return
		}
		p, err := dataset.Prepare(raw)
		if err != nil {
			sharedErr = err
			return
		}
		shared, sharedErr = Build(context.Background(), p, smallSettings())
	})
	require.NoError(t, sharedErr)
	return shared
}

func validRecord() map[string]any {
	return map[string]any{
		dataset.ColAcademicPressure: 4.0,
		dataset.ColWorkStudyHours:   9.0,
		dataset.ColFinancialStress:  5.0,
		dataset.ColDietaryHabits:    "Unhealthy",
		dataset.ColSleepDuration:    4.0,
		dataset.ColFamilyHistory:    1.0,
		dataset.ColSuicidalThoughts: 1.0,
		dataset.ColCGPA:             6.1,
		dataset.ColGender:           "Male",
	}
}

func TestBuild_AllModels(t *testing.T) {
	r := sharedRegistry(t)

	assert.Equal(t, config.AllModels, r.IDs())
	assert.NotEmpty(t, r.RunID())
	assert.False(t, r.BuiltAt().IsZero())

	list := r.List()
	require.Len(t, list, 3)
	for i, info := range list {
		assert.Equal(t, config.AllModels[i], info.ID)
		assert.Equal(t, info.ID, info.Name)
		assert.GreaterOrEqual(t, info.Accuracy, 0.0)
		assert.LessOrEqual(t, info.Accuracy, 1.0)
	}

	for _, id := range r.IDs() {
		m, ok := r.Metrics(id)
		require.True(t, ok, id)
		require.Len(t, m.ConfusionMatrix, 2, id)
		total := 0
		for _, row := range m.ConfusionMatrix {
			require.Len(t, row, 2)
			for _, c := range row {
				total += c
			}
		}
		assert.Equal(t, m.TestSamples, total, id)
		assert.Equal(t, 160, m.TrainSamples+m.TestSamples, id)
		assert.Equal(t, 32, m.TestSamples, id)
		for _, v := range []float64{m.Precision, m.Recall, m.F1, m.ROCAUC} {
			assert.GreaterOrEqual(t, v, 0.0, id)
			assert.LessOrEqual(t, v, 1.0, id)
		}
		require.NotNil(t, m.FeatureImportance, id)
		assert.Len(t, m.FeatureImportance, len(m.FeatureNames), id)
	}

	s := r.Summary()
	assert.Equal(t, 160, s.Rows)
}

func TestBuild_FeatureNames(t *testing.T) {
	r := sharedRegistry(t)
	m, _ := r.Metrics(config.ModelLogisticRegression)

	// cont__pca* first, then one column per non-reference category level.
	require.NotEmpty(t, m.FeatureNames)
	assert.Equal(t, "cont__pca0", m.FeatureNames[0])
	assert.Contains(t, m.FeatureNames, "cat__Gender_Male")
	assert.NotContains(t, m.FeatureNames, "cat__Gender_Female")
	// Dietary Habits 3 levels + two 0/1 columns + Gender 2 levels, minus one each.
	nCat := 0
	for _, n := range m.FeatureNames {
		if len(n) > 5 && n[:5] == "cat__" {
			nCat++
		}
	}
	assert.Equal(t, 2+1+1+1, nCat)
}

func TestBuild_Deterministic(t *testing.T) {
	p := prepared(t)
	cfg := smallSettings()
	cfg.Models = []string{config.ModelRandomForest, config.ModelXGBoost}

	a, err := Build(context.Background(), p, cfg)
	require.NoError(t, err)
	b, err := Build(context.Background(), p, cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID(), b.RunID())
	for _, id := range cfg.Models {
		ma, _ := a.Metrics(id)
		mb, _ := b.Metrics(id)
		ma.FitMillis, mb.FitMillis = 0, 0
		assert.Equal(t, ma, mb, id)
	}
}

func TestBuild_Subset(t *testing.T) {
	cfg := smallSettings()
	// 順序は設定の並びではなく固定順になる
	cfg.Models = []string{config.ModelXGBoost, config.ModelLogisticRegression}
	r, err := Build(context.Background(), prepared(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{config.ModelLogisticRegression, config.ModelXGBoost}, r.IDs())
	_, ok := r.Metrics(config.ModelRandomForest)
	assert.False(t, ok)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("no models", func(t *testing.T) {
		cfg := smallSettings()
		cfg.Models = nil
		_, err := Build(context.Background(), prepared(t), cfg)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Build(ctx, prepared(t), smallSettings())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("bad test size", func(t *testing.T) {
		cfg := smallSettings()
		cfg.TestSize = 1.5
		_, err := Build(context.Background(), prepared(t), cfg)
		assert.Error(t, err)
	})
}
