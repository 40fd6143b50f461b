// Package registry builds the model bank once at startup and holds the
// fitted pipelines, their held-out metrics and the dataset summary for the
// lifetime of the process. A Registry is never mutated after Build returns,
// so handlers may read it concurrently.
package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/internal/config"
	"github.com/YuminosukeSato/mindscope/internal/dataset"
	"github.com/YuminosukeSato/mindscope/metrics"
	"github.com/YuminosukeSato/mindscope/model_selection"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
	"github.com/YuminosukeSato/mindscope/preprocessing"
	"github.com/YuminosukeSato/mindscope/sklearn/ensemble"
	"github.com/YuminosukeSato/mindscope/sklearn/linear_model"
	"github.com/YuminosukeSato/mindscope/sklearn/pipeline"
	"github.com/YuminosukeSato/mindscope/sklearn/xgboost"
)

// Metrics is the frozen evaluation record of one model.
type Metrics struct {
	Accuracy          float64   `json:"accuracy"`
	Precision         float64   `json:"precision"`
	Recall            float64   `json:"recall"`
	F1                float64   `json:"f1"`
	ConfusionMatrix   [][]int   `json:"confusion_matrix"`
	FeatureImportance []float64 `json:"feature_importance"`

	FeatureNames []string `json:"feature_names"`
	ROCAUC       float64  `json:"roc_auc"`
	LogLoss      float64  `json:"log_loss"`
	TrainSamples int      `json:"train_samples"`
	TestSamples  int      `json:"test_samples"`
	FitMillis    int64    `json:"fit_ms"`
}

// ModelInfo is one row of the model listing.
type ModelInfo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Accuracy float64 `json:"accuracy"`
}

type entry struct {
	pipeline *pipeline.Pipeline
	metrics  Metrics
}

// Registry holds everything built at startup.
type Registry struct {
	runID   string
	builtAt time.Time
	order   []string
	models  map[string]*entry
	summary dataset.Summary
}

// RunID identifies this startup.
func (r *Registry) RunID() string { return r.runID }

// BuiltAt is when Build finished.
func (r *Registry) BuiltAt() time.Time { return r.builtAt }

// IDs returns the model ids in training order.
func (r *Registry) IDs() []string { return append([]string(nil), r.order...) }

// List returns id, name and accuracy of every model in training order.
func (r *Registry) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, ModelInfo{ID: id, Name: id, Accuracy: r.models[id].metrics.Accuracy})
	}
	return out
}

// Metrics returns the metrics record of a model.
func (r *Registry) Metrics(id string) (Metrics, bool) {
	e, ok := r.models[id]
	if !ok {
		return Metrics{}, false
	}
	return e.metrics, true
}

// Summary returns the dataset summary.
func (r *Registry) Summary() dataset.Summary { return r.summary }

// Build splits the prepared data once and fits every configured model on the
// same training part, in the fixed model order. Any failure aborts the build.
func Build(ctx context.Context, data *dataset.Prepared, cfg config.TrainingSettings) (*Registry, error) {
	logger := log.GetLoggerWithName("registry")
	runID := uuid.NewString()
	logger = logger.With(log.RunIDKey, runID)

	ids := cfg.ModelOrder()
	if len(ids) == 0 {
		return nil, errors.NewValidationError("training.models", "no models configured", cfg.Models)
	}

	split, err := model_selection.TrainTestSplit(data.Labels,
		model_selection.WithTestSize(cfg.TestSize),
		model_selection.WithRandomState(cfg.Seed),
		model_selection.WithStratify(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "split dataset")
	}
	trainX := data.Features.Take(split.Train)
	testX := data.Features.Take(split.Test)
	trainY := pick(data.Labels, split.Train)
	testY := mat.NewVecDense(len(split.Test), pick(data.Labels, split.Test))
	logger.Info("dataset split",
		log.RandomSeedKey, cfg.Seed,
		"train_samples", len(split.Train),
		"test_samples", len(split.Test),
	)

	r := &Registry{
		runID:  runID,
		order:  ids,
		models: make(map[string]*entry, len(ids)),
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := fitOne(ctx, id, cfg, trainX, trainY, testX, testY, logger)
		if err != nil {
			logger.Error("model build failed", err, log.ModelNameKey, id)
			return nil, errors.Wrapf(err, "build %s", id)
		}
		r.models[id] = e
	}

	r.summary = dataset.Summarize(data)
	r.builtAt = time.Now()
	logger.Info("model registry ready", "models", len(ids))
	return r, nil
}

func fitOne(ctx context.Context, id string, cfg config.TrainingSettings,
	trainX *frame.Frame, trainY []float64, testX *frame.Frame, testY *mat.VecDense, logger log.Logger,
) (*entry, error) {
	clf, err := newClassifier(id, cfg)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(newPreprocessor(cfg.PCAVariance), clf)

	start := time.Now()
	logger.Info("fitting model", log.ModelNameKey, id, log.OperationKey, log.OperationFit, log.SamplesKey, len(trainY))
	if err := p.Fit(ctx, trainX, trainY); err != nil {
		return nil, err
	}
	fitMillis := time.Since(start).Milliseconds()

	pred, err := p.Predict(testX)
	if err != nil {
		return nil, errors.Wrap(err, "predict held-out")
	}
	proba, err := p.PositiveProba(testX)
	if err != nil {
		return nil, errors.Wrap(err, "predict_proba held-out")
	}
	report, err := metrics.EvaluateBinary(testY, pred, proba)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}

	m := Metrics{
		Accuracy:          report.Accuracy,
		Precision:         report.Precision,
		Recall:            report.Recall,
		F1:                report.F1,
		ConfusionMatrix:   report.ConfusionMatrix,
		FeatureImportance: p.FeatureImportance(),
		FeatureNames:      p.FeatureNamesOut(),
		ROCAUC:            report.ROCAUC,
		LogLoss:           report.LogLoss,
		TrainSamples:      len(trainY),
		TestSamples:       testY.Len(),
		FitMillis:         fitMillis,
	}
	logger.Info("model evaluated",
		log.ModelNameKey, id,
		log.PhaseKey, log.PhaseTesting,
		log.AccuracyKey, m.Accuracy,
		log.PrecisionKey, m.Precision,
		log.RecallKey, m.Recall,
		log.F1Key, m.F1,
		log.DurationMsKey, fitMillis,
	)
	return &entry{pipeline: p, metrics: m}, nil
}

// newPreprocessor returns the shared transform: standardize then PCA on the
// continuous columns, one-hot with the first level dropped on the
// categorical columns.
func newPreprocessor(pcaVariance float64) *preprocessing.ColumnTransformer {
	return preprocessing.NewColumnTransformer(
		preprocessing.Branch{Name: "cont", Transformer: preprocessing.NewNumericPipeline(
			dataset.ContinuousColumns,
			preprocessing.NewStandardScalerDefault(),
			preprocessing.NewPCA(pcaVariance),
		)},
		preprocessing.Branch{Name: "cat", Transformer: preprocessing.NewOneHotEncoder(dataset.CategoricalColumns, true)},
	)
}

func newClassifier(id string, cfg config.TrainingSettings) (model.Classifier, error) {
	switch id {
	case config.ModelRandomForest:
		rf := cfg.RandomForest
		depth := rf.MaxDepth
		if depth <= 0 {
			depth = -1
		}
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(rf.NEstimators),
			ensemble.WithMaxDepth(depth),
			ensemble.WithMaxFeatures(rf.MaxFeatures),
			ensemble.WithNJobs(rf.NJobs),
			ensemble.WithRandomState(cfg.Seed),
		), nil
	case config.ModelLogisticRegression:
		lr := cfg.LogisticRegression
		return linear_model.NewLogisticRegression(
			linear_model.WithLRC(lr.C),
			linear_model.WithLRMaxIter(lr.MaxIter),
			linear_model.WithLRClassWeight(lr.ClassWeight),
		), nil
	case config.ModelXGBoost:
		x := cfg.XGBoost
		return xgboost.NewXGBClassifier(
			xgboost.WithNEstimators(x.NEstimators),
			xgboost.WithMaxDepth(x.MaxDepth),
			xgboost.WithLearningRate(x.LearningRate),
			xgboost.WithSubsample(x.Subsample),
			xgboost.WithRegLambda(x.RegLambda),
			xgboost.WithMinChildWeight(x.MinChildWeight),
			xgboost.WithRandomState(cfg.Seed),
		), nil
	}
	return nil, errors.NewValidationError("model_id", "unknown model", id)
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}
