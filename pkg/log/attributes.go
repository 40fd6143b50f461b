package log

// ログのフィールド名。"model.name" のように分類.項目 の形にそろえ、カテゴリで絞り込めるようにする。
const (
	ModelNameKey = "model.name"
	RunIDKey     = "run.id"
	OperationKey = "ml.operation"
	PhaseKey     = "ml.phase"
	// ComponentKey は GetLoggerWithName の名前
	ComponentKey = "ml.component"

	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	ColumnKey    = "data.column"
	MissingKey   = "data.missing"
	FillValueKey = "data.fill_value"
	SourceKey    = "data.source"

	DurationMsKey = "perf.duration_ms"
	IterationKey  = "training.iteration"
	RandomSeedKey = "config.random_seed"

	AccuracyKey  = "metrics.accuracy"
	PrecisionKey = "metrics.precision"
	RecallKey    = "metrics.recall"
	F1Key        = "metrics.f1"
	LossKey      = "metrics.loss"

	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"

	RequestIDKey = "http.request_id"
	MethodKey    = "http.method"
	PathKey      = "http.path"
	StatusKey    = "http.status"
	RemoteKey    = "http.remote"
)

// OperationKey と PhaseKey の値
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationFitTransform = "fit_transform"
	OperationLoad         = "load"

	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
