package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "0.0.0.0:8000", c.Server.ServerAddress())
	assert.Equal(t, uint64(42), c.Training.Seed)
	assert.Equal(t, 0.2, c.Training.TestSize)
	assert.Equal(t, 0.95, c.Training.PCAVariance)
	assert.Equal(t, AllModels, c.Training.Models)
	assert.Equal(t, 100, c.Training.RandomForest.NEstimators)
	assert.Equal(t, 1000, c.Training.LogisticRegression.MaxIter)
	assert.Equal(t, "balanced", c.Training.LogisticRegression.ClassWeight)
	assert.Equal(t, 3, c.Training.XGBoost.MaxDepth)
	assert.Equal(t, 0.8, c.Training.XGBoost.Subsample)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server:
  port: 9000
  read_timeout: 3s
training:
  models: [XGBoost, RandomForest]
  xgboost:
    n_estimators: 10
logging:
  level: debug
`), 0o600))

	t.Setenv("MINDSCOPE_SERVER_PORT", "9100")
	t.Setenv("MINDSCOPE_RF_N_ESTIMATORS", "7")

	c, err := Load(cfgPath, "")
	require.NoError(t, err)

	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, 3*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, 10, c.Training.XGBoost.NEstimators)
	assert.Equal(t, 7, c.Training.RandomForest.NEstimators)
	assert.Equal(t, "debug", c.Logging.Level)
	// training order is fixed regardless of the listed order
	assert.Equal(t, []string{ModelRandomForest, ModelXGBoost}, c.Training.ModelOrder())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("MINDSCOPE_DATASET_PATH=/data/students.csv\nMINDSCOPE_MODELS=LogisticRegression\n"), 0o600))

	// register for cleanup; godotenv sets them through os.Setenv
	t.Setenv("MINDSCOPE_DATASET_PATH", "")
	os.Unsetenv("MINDSCOPE_DATASET_PATH")
	t.Setenv("MINDSCOPE_MODELS", "")
	os.Unsetenv("MINDSCOPE_MODELS")

	c, err := Load(filepath.Join(dir, "absent.yaml"), envPath)
	require.NoError(t, err)
	assert.Equal(t, "/data/students.csv", c.Dataset.Path)
	assert.Equal(t, []string{ModelLogisticRegression}, c.Training.Models)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown model", map[string]string{"MINDSCOPE_MODELS": "RandomForest,SVM"}},
		{"duplicate model", map[string]string{"MINDSCOPE_MODELS": "XGBoost,XGBoost"}},
		{"test size", map[string]string{"MINDSCOPE_TEST_SIZE": "1.5"}},
		{"log level", map[string]string{"MINDSCOPE_LOG_LEVEL": "verbose"}},
		{"log format", map[string]string{"MINDSCOPE_LOG_FORMAT": "xml"}},
		{"port", map[string]string{"MINDSCOPE_SERVER_PORT": "70000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", "")
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "%v", err)
		})
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("MINDSCOPE_SERVER_SHUTDOWN_TIMEOUT", "soon")
	_, err := Load("", "")
	assert.Error(t, err)

	t.Setenv("MINDSCOPE_SERVER_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MINDSCOPE_SEED", "-1")
	_, err = Load("", "")
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoad_RepoConfig(t *testing.T) {
	c, err := Load("../../configs/config.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, AllModels, c.Training.ModelOrder())
	assert.Equal(t, 15*time.Second, c.Server.ShutdownTimeout)
}
