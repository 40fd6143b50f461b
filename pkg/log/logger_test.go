package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func TestTestLogger_LevelsAndFields(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", ErrorTypeKey, "ConvergenceWarning")
	testLogger.Error("error message", fmt.Errorf("boom"), ErrorTypeKey, "DataError")

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("error message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(ErrorTypeKey, "DataError"))
}

func TestTestLogger_With(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "RandomForest",
		RunIDKey, "run-1",
	)
	contextLogger.Info("contextual message", OperationKey, OperationFit)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "RandomForest"))
	assert.True(t, testLogger.ContainsField(RunIDKey, "run-1"))
	assert.True(t, testLogger.ContainsField(OperationKey, OperationFit))
}

func TestTestLogger_Enabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")
	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

func TestTestLogger_Concurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				testLogger.Info(fmt.Sprintf("goroutine %d message %d", id, j), "goroutine_id", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("hidden")
	logger.With(ModelNameKey, "XGBoost").Info("trained", AccuracyKey, 0.9, SamplesKey, 100)
	logger.Error("failed", errors.NewValueError("Fit", "bad input"), OperationKey, OperationFit)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "trained", lines[0]["message"])
	assert.Equal(t, "XGBoost", lines[0][ModelNameKey])
	assert.Equal(t, 0.9, lines[0][AccuracyKey])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Contains(t, lines[1][ErrAttrKey], "bad input")
	assert.Equal(t, OperationFit, lines[1][OperationKey])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

func TestZerologProvider_Named(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(zerolog.New(&buf))
	p.GetLoggerWithName("server").Info("listening")
	p.SetLevel(LevelError)
	p.GetLogger().Info("dropped")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "server", lines[0][ComponentKey])
}

func TestSetupLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, "debug", "json"))
	defer SetProvider(NewZerologProvider(zerolog.Nop()))

	GetLoggerWithName("dataset").Debug("loaded", SamplesKey, 3)
	errors.Warn(errors.NewConvergenceWarning("lbfgs", 1000, ""))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "dataset", lines[0][ComponentKey])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "ConvergenceWarning", lines[1][ErrorTypeKey])

	assert.Error(t, SetupLoggerTo(&buf, "loud", "json"))
	assert.Error(t, SetupLoggerTo(&buf, "info", "xml"))
}

func TestToLogLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "warn": LevelWarn, "error": LevelError} {
		got, err := ToLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ToLogLevel("verbose")
	assert.Error(t, err)
}
