package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/internal/dataset"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// Decision threshold on P(label=1).
const Threshold = 0.5

// Prediction labels.
const (
	LabelLikely   = "Depression Likely"
	LabelUnlikely = "Depression Unlikely"
)

// ResultKind classifies a prediction outcome.
type ResultKind int

const (
	OK ResultKind = iota
	NotFound
	ValidationError
	InternalError
)

func (k ResultKind) String() string {
	switch k {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	case ValidationError:
		return "validation_error"
	default:
		return "internal_error"
	}
}

// PredictResult is the outcome of a single prediction.
type PredictResult struct {
	Kind        ResultKind
	Probability float64
	Prediction  string
	Err         error
}

// Predict scores one record with the named model.
func (r *Registry) Predict(id string, features map[string]any) PredictResult {
	e, ok := r.models[id]
	if !ok {
		return PredictResult{Kind: NotFound, Err: errors.Newf("model %q not found", id)}
	}

	row, err := recordFrame(features)
	if err != nil {
		return PredictResult{Kind: ValidationError, Err: err}
	}

	p, err := errors.SafeCall("Registry.Predict", func() (float64, error) {
		proba, err := e.pipeline.PositiveProba(row)
		if err != nil {
			return 0, err
		}
		return proba.AtVec(0), nil
	})
	if err != nil {
		log.GetLoggerWithName("registry").Warn("prediction failed",
			log.ModelNameKey, id,
			log.OperationKey, log.OperationPredict,
			err,
		)
		return PredictResult{Kind: InternalError, Err: err}
	}

	label := LabelUnlikely
	if p > Threshold {
		label = LabelLikely
	}
	return PredictResult{Kind: OK, Probability: p, Prediction: label}
}

// recordFrame turns a JSON feature object into a one-row frame with the
// training schema. Every feature must be present exactly once and nothing
// else may be sent.
func recordFrame(features map[string]any) (*frame.Frame, error) {
	if features == nil {
		return nil, errors.NewValidationError("features", "required", nil)
	}
	var extra []string
	for k := range features {
		if !isFeature(k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, errors.NewValidationError("features", "unexpected field(s) "+strings.Join(extra, ", "), extra)
	}

	cols := make([]*frame.Column, 0, len(dataset.FeatureColumns))
	for _, name := range dataset.FeatureColumns {
		raw, ok := features[name]
		if !ok {
			return nil, errors.NewValidationError(name, "field required", nil)
		}
		if raw == nil {
			return nil, errors.NewValidationError(name, "must not be null", nil)
		}
		if !dataset.IsNumericFeature(name) {
			s, ok := raw.(string)
			if !ok {
				return nil, errors.NewValidationError(name, "must be a string", raw)
			}
			cols = append(cols, frame.NewString(name, []string{s}, nil))
			continue
		}
		v, err := coerceNumber(name, raw)
		if err != nil {
			return nil, err
		}
		cols = append(cols, frame.NewNumeric(name, []float64{v}))
	}
	return frame.New(cols...)
}

func isFeature(name string) bool {
	for _, c := range dataset.FeatureColumns {
		if c == name {
			return true
		}
	}
	return false
}

// coerceNumber accepts numbers for every numeric feature, numeric strings for
// the continuous ones and booleans for the 0/1 categoricals.
func coerceNumber(name string, raw any) (float64, error) {
	continuous := isContinuous(name)
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, errors.NewValidationError(name, "not a valid number", raw)
		}
		return f, nil
	case bool:
		if continuous {
			return 0, errors.NewValidationError(name, "must be a number", raw)
		}
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		if !continuous {
			return 0, errors.NewValidationError(name, "must be a number", raw)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.NewValidationError(name, "not a valid number", raw)
		}
		return f, nil
	}
	return 0, errors.NewValidationError(name, fmt.Sprintf("unsupported type %T", raw), raw)
}

func isContinuous(name string) bool {
	for _, c := range dataset.ContinuousColumns {
		if c == name {
			return true
		}
	}
	return false
}
