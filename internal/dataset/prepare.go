package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// sleepHours maps the survey's sleep buckets to a representative value.
var sleepHours = map[string]float64{
	"Less than 5 hours": 4,
	"5-6 hours":         5.5,
	"7-8 hours":         7.5,
	"More than 8 hours": 9,
}

// MapYesNo trims s and maps "Yes" to 1 and "No" to 0. Anything else,
// including a missing cell, is NaN.
func MapYesNo(s string, present bool) float64 {
	if !present {
		return math.NaN()
	}
	switch strings.TrimSpace(s) {
	case "Yes":
		return 1
	case "No":
		return 0
	}
	return math.NaN()
}

// MapSleep maps a sleep bucket to hours by exact match. The text is not
// trimmed.
func MapSleep(s string, present bool) float64 {
	if !present {
		return math.NaN()
	}
	if v, ok := sleepHours[s]; ok {
		return v
	}
	return math.NaN()
}

// Imputation records one median fill.
type Imputation struct {
	Column string  `json:"column"`
	Median float64 `json:"median"`
	Filled int     `json:"filled"`
}

// Prepared is the cleaned training data.
type Prepared struct {
	// Features holds FeatureColumns in order.
	Features    *frame.Frame
	Labels      []float64
	Imputations []Imputation
	Dropped     []string
}

// NRows returns the number of samples.
func (p *Prepared) NRows() int { return len(p.Labels) }

// Prepare drops unused columns, maps the text fields to numbers, fills the
// imputed columns with their median and selects the feature columns.
//
// The median is taken over every row before any split, so held-out rows
// contribute to the fill value.
func Prepare(raw *frame.Frame) (*Prepared, error) {
	logger := log.GetLoggerWithName("dataset")

	var dropped []string
	for _, name := range DroppedColumns {
		if raw.Has(name) {
			dropped = append(dropped, name)
		}
	}
	f := raw.Drop(DroppedColumns...)

	for _, name := range append(append([]string(nil), FeatureColumns...), ColLabel) {
		if !f.Has(name) {
			return nil, errors.NewDataError("frame", name, "required column missing")
		}
	}

	var err error
	for _, name := range []string{ColSuicidalThoughts, ColFamilyHistory} {
		if f, err = mapText(f, name, MapYesNo); err != nil {
			return nil, err
		}
	}
	if f, err = mapText(f, ColSleepDuration, MapSleep); err != nil {
		return nil, err
	}

	var imputations []Imputation
	for _, name := range ImputedColumns {
		var imp Imputation
		f, imp, err = fillMedian(f, name)
		if err != nil {
			return nil, err
		}
		imputations = append(imputations, imp)
		logger.Info("median imputation",
			log.OperationKey, log.OperationFitTransform,
			log.ColumnKey, imp.Column,
			log.FillValueKey, imp.Median,
			log.MissingKey, imp.Filled,
			"scope", "full_dataset",
		)
	}

	labels, err := labelVector(f)
	if err != nil {
		return nil, err
	}

	features, err := f.Select(FeatureColumns...)
	if err != nil {
		return nil, err
	}
	for _, name := range FeatureColumns {
		col := features.MustColumn(name)
		if IsNumericFeature(name) && col.Kind != frame.Numeric {
			return nil, errors.NewDataError("frame", name, "expected a numeric column")
		}
	}

	logger.Info("dataset prepared",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, len(labels),
		log.FeaturesKey, features.NCols(),
	)
	return &Prepared{
		Features:    features,
		Labels:      labels,
		Imputations: imputations,
		Dropped:     dropped,
	}, nil
}

// mapText replaces a text column with its numeric mapping. A numeric column
// has no text to match, so every cell becomes missing.
func mapText(f *frame.Frame, name string, fn func(string, bool) float64) (*frame.Frame, error) {
	col := f.MustColumn(name)
	out := make([]float64, col.Len())
	unmapped := 0
	for i := range out {
		switch col.Kind {
		case frame.String:
			out[i] = fn(col.Strings[i], col.Valid[i])
			if math.IsNaN(out[i]) && col.Valid[i] {
				unmapped++
			}
		default:
			out[i] = math.NaN()
		}
	}
	if unmapped > 0 {
		errors.Warn(errors.NewDataConversionWarning("text", "float64",
			fmt.Sprintf("%d unrecognized values in %q treated as missing", unmapped, name)))
	}
	return f.Replace(frame.NewNumeric(name, out))
}

func fillMedian(f *frame.Frame, name string) (*frame.Frame, Imputation, error) {
	col := f.MustColumn(name)
	if col.Kind != frame.Numeric {
		return nil, Imputation{}, errors.NewDataError("frame", name, "cannot impute a text column")
	}
	median, err := stats.Median(col.Observed())
	if err != nil {
		return nil, Imputation{}, errors.NewDataError("frame", name, "no observed values to take a median of")
	}
	values := append([]float64(nil), col.Floats...)
	filled := 0
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = median
			filled++
		}
	}
	out, err := f.Replace(frame.NewNumeric(name, values))
	if err != nil {
		return nil, Imputation{}, err
	}
	return out, Imputation{Column: name, Median: median, Filled: filled}, nil
}

func labelVector(f *frame.Frame) ([]float64, error) {
	col := f.MustColumn(ColLabel)
	if col.Kind != frame.Numeric {
		return nil, errors.NewDataError("frame", ColLabel, "label must be numeric")
	}
	labels := append([]float64(nil), col.Floats...)
	for _, v := range labels {
		if v != 0 && v != 1 {
			return nil, errors.NewDataError("frame", ColLabel, "label values must be 0 or 1")
		}
	}
	return labels, nil
}
