// Package errors はmindscopeのエラー型と警告の仕組みをまとめたものです。
// 型はscikit-learnの例外に倣っており、予測サービスではエラーの型からHTTPステータスを決めます。
// スタックトレースはcockroachdb/errorsで付与します。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrEmptyData      = New("empty data")
	ErrSingularMatrix = New("singular matrix")
	ErrSingleClass    = New("training data contains a single class")
)

// NotFittedError は未学習のモデルで予測や変換を呼んだときのエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mindscope: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// DimensionError は行数または特徴量数が合わないときのエラーです。Axis 0 が行、1 が特徴量。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

func (e *DimensionError) Error() string {
	axis := "rows"
	if e.Axis != 0 {
		axis = "features"
	}
	return fmt.Sprintf("mindscope: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axis, e.Expected, e.Got)
}

// ValidationError は設定値や予測リクエストの特徴量が不正なときのエラーです。
// 特徴量の欠落、余分なキー、型違いもここで報告します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     any
}

func NewValidationError(param, reason string, value any) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mindscope: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// ValueError は引数の値そのものが扱えないときのエラーです。
type ValueError struct {
	Op      string
	Message string
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

func (e *ValueError) Error() string {
	return "mindscope: " + e.Op + ": " + e.Message
}

// UnknownCategoryError はエンコーダが学習時に見ていないカテゴリ値を受け取ったときのエラーです。
type UnknownCategoryError struct {
	Column string
	Value  any
}

func NewUnknownCategoryError(column string, value any) error {
	return errors.WithStack(&UnknownCategoryError{Column: column, Value: value})
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("mindscope: Found unknown categories [%v] in column %s during transform", e.Value, e.Column)
}

// DataError はデータセットの読み込みと前処理のエラーです。Column は空でもよい。
type DataError struct {
	Source string
	Column string
	Reason string
}

func NewDataError(source, column, reason string) error {
	return errors.WithStack(&DataError{Source: source, Column: column, Reason: reason})
}

func (e *DataError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("mindscope: dataset %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("mindscope: dataset %s: column %q: %s", e.Source, e.Column, e.Reason)
}

// ModelError は学習・推論中の失敗を Op と Kind で包みます。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return "mindscope: " + e.Op + ": " + e.Kind
	}
	return fmt.Sprintf("mindscope: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NumericalInstabilityError は NaN や Inf を検出したときのエラーです。Values は先頭5件まで表示します。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

func (e *NumericalInstabilityError) Error() string {
	shown := make([]string, 0, 6)
	for i, v := range e.Values {
		if i == 5 {
			shown = append(shown, "...")
			break
		}
		shown = append(shown, fmt.Sprintf("%.6g", v))
	}
	return fmt.Sprintf("mindscope: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(shown, ", "))
}

// 以下は cockroachdb/errors の薄いラッパー。

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(message string) error { return errors.New(message) }

func Newf(format string, args ...any) error { return errors.Newf(format, args...) }

func Wrap(err error, message string) error { return errors.Wrap(err, message) }

func Wrapf(err error, format string, args ...any) error { return errors.Wrapf(err, format, args...) }
