// Package config loads the service configuration from a YAML file, an
// optional .env file and MINDSCOPE_* environment variables, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// Model identifiers, in training order.
const (
	ModelRandomForest       = "RandomForest"
	ModelLogisticRegression = "LogisticRegression"
	ModelXGBoost            = "XGBoost"
)

// AllModels is the fixed model order.
var AllModels = []string{ModelRandomForest, ModelLogisticRegression, ModelXGBoost}

// Config represents the entire application configuration
type Config struct {
	Server   ServerSettings   `yaml:"server"`
	Dataset  DatasetSettings  `yaml:"dataset"`
	Training TrainingSettings `yaml:"training"`
	Logging  LoggingSettings  `yaml:"logging"`
}

// ServerSettings contains HTTP server settings
type ServerSettings struct {
	Host            string        `yaml:"host" env:"MINDSCOPE_SERVER_HOST"`
	Port            int           `yaml:"port" env:"MINDSCOPE_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"MINDSCOPE_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"MINDSCOPE_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"MINDSCOPE_SERVER_SHUTDOWN_TIMEOUT"`
}

// DatasetSettings points at the source file.
type DatasetSettings struct {
	Path string `yaml:"path" env:"MINDSCOPE_DATASET_PATH"`
}

// TrainingSettings controls the split and the model bank.
type TrainingSettings struct {
	Seed        uint64   `yaml:"seed" env:"MINDSCOPE_SEED"`
	TestSize    float64  `yaml:"test_size" env:"MINDSCOPE_TEST_SIZE"`
	PCAVariance float64  `yaml:"pca_variance" env:"MINDSCOPE_PCA_VARIANCE"`
	Models      []string `yaml:"models" env:"MINDSCOPE_MODELS"`

	RandomForest       RandomForestSettings       `yaml:"random_forest"`
	LogisticRegression LogisticRegressionSettings `yaml:"logistic_regression"`
	XGBoost            XGBoostSettings            `yaml:"xgboost"`
}

// RandomForestSettings are the forest hyperparameters.
type RandomForestSettings struct {
	NEstimators int    `yaml:"n_estimators" env:"MINDSCOPE_RF_N_ESTIMATORS"`
	MaxDepth    int    `yaml:"max_depth" env:"MINDSCOPE_RF_MAX_DEPTH"` // <= 0 means unlimited
	MaxFeatures string `yaml:"max_features" env:"MINDSCOPE_RF_MAX_FEATURES"`
	NJobs       int    `yaml:"n_jobs" env:"MINDSCOPE_RF_N_JOBS"`
}

// LogisticRegressionSettings are the linear model hyperparameters.
type LogisticRegressionSettings struct {
	C           float64 `yaml:"c" env:"MINDSCOPE_LR_C"`
	MaxIter     int     `yaml:"max_iter" env:"MINDSCOPE_LR_MAX_ITER"`
	ClassWeight string  `yaml:"class_weight" env:"MINDSCOPE_LR_CLASS_WEIGHT"`
}

// XGBoostSettings are the booster hyperparameters.
type XGBoostSettings struct {
	NEstimators    int     `yaml:"n_estimators" env:"MINDSCOPE_XGB_N_ESTIMATORS"`
	MaxDepth       int     `yaml:"max_depth" env:"MINDSCOPE_XGB_MAX_DEPTH"`
	LearningRate   float64 `yaml:"learning_rate" env:"MINDSCOPE_XGB_LEARNING_RATE"`
	Subsample      float64 `yaml:"subsample" env:"MINDSCOPE_XGB_SUBSAMPLE"`
	RegLambda      float64 `yaml:"reg_lambda" env:"MINDSCOPE_XGB_REG_LAMBDA"`
	MinChildWeight float64 `yaml:"min_child_weight" env:"MINDSCOPE_XGB_MIN_CHILD_WEIGHT"`
}

// LoggingSettings contains logging configuration
type LoggingSettings struct {
	Level  string `yaml:"level" env:"MINDSCOPE_LOG_LEVEL"`
	Format string `yaml:"format" env:"MINDSCOPE_LOG_FORMAT"`
}

// ServerAddress returns the complete server address
func (s *ServerSettings) ServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	setDefaults(c)
	return c
}

// Load reads configPath when it exists, then the .env file at envPath when
// it exists, then overrides from the environment. Defaults fill whatever is
// still unset and the result is validated.
func Load(configPath, envPath string) (*Config, error) {
	c := &Config{}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, errors.Wrap(err, "read config file")
			}
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, errors.Wrap(err, "parse config file")
			}
		}
	}

	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			// godotenv never overrides variables already set in the process
			if err := godotenv.Load(envPath); err != nil {
				return nil, errors.Wrap(err, "load .env")
			}
		}
	}

	if err := LoadEnv(c); err != nil {
		return nil, errors.Wrap(err, "environment overrides")
	}

	setDefaults(c)

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return c, nil
}

// setDefaults sets default values for any missing configuration
func setDefaults(c *Config) {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Dataset.Path == "" {
		c.Dataset.Path = "data/Student_depression_dataset.csv"
	}

	t := &c.Training
	if t.Seed == 0 {
		t.Seed = 42
	}
	if t.TestSize == 0 {
		t.TestSize = 0.2
	}
	if t.PCAVariance == 0 {
		t.PCAVariance = 0.95
	}
	if len(t.Models) == 0 {
		t.Models = append([]string(nil), AllModels...)
	}

	if t.RandomForest.NEstimators == 0 {
		t.RandomForest.NEstimators = 100
	}
	if t.RandomForest.MaxFeatures == "" {
		t.RandomForest.MaxFeatures = "sqrt"
	}

	if t.LogisticRegression.C == 0 {
		t.LogisticRegression.C = 1.0
	}
	if t.LogisticRegression.MaxIter == 0 {
		t.LogisticRegression.MaxIter = 1000
	}
	if t.LogisticRegression.ClassWeight == "" {
		t.LogisticRegression.ClassWeight = "balanced"
	}

	x := &t.XGBoost
	if x.NEstimators == 0 {
		x.NEstimators = 100
	}
	if x.MaxDepth == 0 {
		x.MaxDepth = 3
	}
	if x.LearningRate == 0 {
		x.LearningRate = 0.1
	}
	if x.Subsample == 0 {
		x.Subsample = 0.8
	}
	if x.RegLambda == 0 {
		x.RegLambda = 1.0
	}
	if x.MinChildWeight == 0 {
		x.MinChildWeight = 1.0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks ranges and the model subset.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewValidationError("server.port", "must be in 1..65535", c.Server.Port)
	}
	t := c.Training
	if t.TestSize <= 0 || t.TestSize >= 1 {
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", t.TestSize)
	}
	if t.PCAVariance <= 0 || (t.PCAVariance >= 1 && t.PCAVariance != float64(int(t.PCAVariance))) {
		return errors.NewValidationError("training.pca_variance", "must be a fraction in (0, 1) or a component count", t.PCAVariance)
	}

	seen := map[string]bool{}
	for _, m := range t.Models {
		if !isKnownModel(m) {
			return errors.NewValidationError("training.models", "unknown model id", m)
		}
		if seen[m] {
			return errors.NewValidationError("training.models", "duplicate model id", m)
		}
		seen[m] = true
	}

	if _, err := log.ToLogLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return errors.NewValidationError("logging.format", "must be json or console", c.Logging.Format)
	}
	return nil
}

// ModelOrder returns the configured models in the fixed training order.
func (t TrainingSettings) ModelOrder() []string {
	want := map[string]bool{}
	for _, m := range t.Models {
		want[m] = true
	}
	var out []string
	for _, m := range AllModels {
		if want[m] {
			out = append(out, m)
		}
	}
	return out
}

func isKnownModel(id string) bool {
	for _, m := range AllModels {
		if m == id {
			return true
		}
	}
	return false
}

// LogSummary writes the effective configuration at info level.
func (c *Config) LogSummary(logger log.Logger) {
	logger.Info("configuration loaded",
		"server", c.Server.ServerAddress(),
		log.SourceKey, c.Dataset.Path,
		log.RandomSeedKey, c.Training.Seed,
		"test_size", c.Training.TestSize,
		"models", strings.Join(c.Training.ModelOrder(), ","),
		"log_level", c.Logging.Level,
	)
}
