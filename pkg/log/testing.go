package log

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"strings"
	"sync"
)

// TestLogger はログ行をJSONとしてメモリ上に書き出すLoggerです。
// 学習や配信のコードが何を出力したかをテストから検証するために使います。
type TestLogger struct {
	mu     *sync.Mutex
	buffer *bytes.Buffer
	level  Level
	fields map[string]any
}

// NewTestLogger は level 以上のログを捕捉するTestLoggerと、その出力先バッファを返します。
//
//	logger, buf := log.NewTestLogger(log.LevelDebug)
//	logger.Info("fit done", log.ModelNameKey, "RandomForest")
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &TestLogger{mu: &sync.Mutex{}, buffer: buf, level: level, fields: map[string]any{}}, buf
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.write(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.write(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

// With は親と同じバッファに書き込む子ロガーを返します。
func (t *TestLogger) With(fields ...any) Logger {
	child := &TestLogger{mu: t.mu, buffer: t.buffer, level: t.level, fields: maps.Clone(t.fields)}
	collectFields(child.fields, fields)
	return child
}

func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return t.level <= level
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	entry := maps.Clone(t.fields)
	entry["level"] = level.String()
	entry["message"] = msg
	collectFields(entry, fields)

	line, err := json.Marshal(entry)
	if err != nil {
		line, _ = json.Marshal(map[string]any{"level": level.String(), "message": msg, "marshal_error": err.Error()})
	}
	t.mu.Lock()
	t.buffer.Write(append(line, '\n'))
	t.mu.Unlock()
}

// エラー値はメッセージ文字列として保存する。
func collectFields(dst map[string]any, fields []any) {
	forEachField(fields, func(key string, value any) {
		if err, ok := value.(error); ok {
			dst[key] = err.Error()
			return
		}
		dst[key] = value
	})
}

// Entries は捕捉したログ行をデコードして返します。
func (t *TestLogger) Entries() ([]map[string]any, error) {
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(t.snapshot()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage は message を含むログ行があるかを返します。
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.snapshot(), message)
}

// ContainsField は key の値が value に一致するログ行があるかを返します。
// 値はJSONデコード後の型で比較するため、数値は float64 で渡してください。
func (t *TestLogger) ContainsField(key string, value any) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

func (t *TestLogger) snapshot() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer.String()
}
