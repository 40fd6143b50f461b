package errors

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var (
	warnMu sync.Mutex
	// 既定ではグローバルのzerologロガーへWARNで出す
	warnHandler = func(w error) {
		ev := zlog.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(w.Error())
	}
)

// SetWarningHandler は警告の処理関数を差し替え、以前の関数を返します。
//
//	prev := errors.SetWarningHandler(func(error) {})
//	defer errors.SetWarningHandler(prev)
func SetWarningHandler(h func(w error)) func(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	prev := warnHandler
	warnHandler = h
	return prev
}

// Warn は処理を止めずに警告を通知します。
func Warn(w error) {
	warnMu.Lock()
	h := warnHandler
	warnMu.Unlock()
	if h != nil {
		h(w)
	}
}

// ConvergenceWarning は反復最適化が max_iter 以内に収束しなかったことを示します。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	if w.Message == "" {
		return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").Str("algorithm", w.Algorithm).Int("iterations", w.Iterations).Str("message", w.Message)
}

// DataConversionWarning はCSVのセルなどが暗黙に変換された、または欠損扱いになったことを示します。
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "DataConversionWarning").Str("from_type", w.FromType).Str("to_type", w.ToType).Str("reason", w.Reason)
}

// UndefinedMetricWarning は指標が定義できず Result で代用したことを示します。
// 陽性の予測が一件もないときの precision など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").Str("metric", w.Metric).Str("condition", w.Condition).Float64("result", w.Result)
}
