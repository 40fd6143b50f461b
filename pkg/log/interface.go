// Package log provides the structured logging interface used across mindscope.
//
// The interface is slog-compatible and backed by zerolog at runtime. Training,
// evaluation and request handling all log through it with the ML-specific
// attribute keys defined in attributes.go.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("registry").With(
//	    log.ModelNameKey, "RandomForest",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 9,
//	)
package log

import "context"

// Logger はmindscope全体で使う構造化ロガーです。メソッド形はlog/slogに揃えています。
//
// fields はキーと値を交互に並べます。キーの位置にerrorを置くと、ErrAttrKey の下に
// メッセージとスタックトレースが記録されます。
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With はフィールドを付与した子ロガーを返します。
	With(fields ...any) Logger

	Enabled(ctx context.Context, level Level) bool
}

// Level はslog.Levelと同じ値を持つログレベルです。
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// LoggerProvider はコンポーネント名付きのロガーを払い出します。
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
