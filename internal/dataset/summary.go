package dataset

import (
	"math"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mindscope/core/frame"
)

// Describe holds descriptive statistics of one group of values.
type Describe struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// ContinuousSummary describes one continuous feature overall and per label.
type ContinuousSummary struct {
	Name         string   `json:"name"`
	All          Describe `json:"all"`
	Depressed    Describe `json:"depressed"`
	NotDepressed Describe `json:"not_depressed"`
	// Pearson correlation with the label.
	Correlation float64 `json:"correlation"`
}

// CategoryCount is one level of a categorical feature.
type CategoryCount struct {
	Value     string  `json:"value"`
	Count     int     `json:"count"`
	Depressed int     `json:"depressed"`
	Rate      float64 `json:"depression_rate"`
}

// CategoricalSummary is the level breakdown of one categorical feature.
type CategoricalSummary struct {
	Name   string          `json:"name"`
	Levels []CategoryCount `json:"levels"`
}

// Summary is the dataset overview served alongside the models.
type Summary struct {
	Rows        int                  `json:"rows"`
	Depressed   int                  `json:"depressed"`
	Rate        float64              `json:"depression_rate"`
	Continuous  []ContinuousSummary  `json:"continuous"`
	Categorical []CategoricalSummary `json:"categorical"`
	Imputations []Imputation         `json:"imputations"`
	DroppedCols []string             `json:"dropped_columns"`
}

// Summarize computes the descriptive statistics of a prepared dataset.
func Summarize(p *Prepared) Summary {
	s := Summary{
		Rows:        p.NRows(),
		Imputations: p.Imputations,
		DroppedCols: p.Dropped,
	}
	for _, v := range p.Labels {
		if v == 1 {
			s.Depressed++
		}
	}
	if s.Rows > 0 {
		s.Rate = float64(s.Depressed) / float64(s.Rows)
	}

	for _, name := range ContinuousColumns {
		col := p.Features.MustColumn(name)
		var all, pos, neg, x, y []float64
		for i, v := range col.Floats {
			if math.IsNaN(v) {
				continue
			}
			all = append(all, v)
			x = append(x, v)
			y = append(y, p.Labels[i])
			if p.Labels[i] == 1 {
				pos = append(pos, v)
			} else {
				neg = append(neg, v)
			}
		}
		s.Continuous = append(s.Continuous, ContinuousSummary{
			Name:         name,
			All:          describe(all),
			Depressed:    describe(pos),
			NotDepressed: describe(neg),
			Correlation:  correlation(x, y),
		})
	}

	for _, name := range CategoricalColumns {
		s.Categorical = append(s.Categorical, CategoricalSummary{
			Name:   name,
			Levels: levels(p.Features.MustColumn(name), p.Labels),
		})
	}
	return s
}

// describe returns zero values for an empty group.
func describe(data []float64) Describe {
	d := Describe{Count: len(data)}
	if len(data) == 0 {
		return d
	}
	d.Mean, _ = stats.Mean(data)
	d.Median, _ = stats.Median(data)
	d.Std, _ = stats.StandardDeviationSample(data)
	d.Min, _ = stats.Min(data)
	d.Max, _ = stats.Max(data)
	d.Q25, _ = stats.Percentile(data, 25)
	d.Q75, _ = stats.Percentile(data, 75)
	if math.IsNaN(d.Std) {
		d.Std = 0
	}
	return d
}

func correlation(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func levels(col *frame.Column, labels []float64) []CategoryCount {
	idx := map[string]int{}
	var out []CategoryCount
	for i := 0; i < col.Len(); i++ {
		key := "nan"
		if v := col.Value(i); v != nil {
			switch t := v.(type) {
			case string:
				key = t
			case float64:
				key = strconv.FormatFloat(t, 'g', -1, 64)
			}
		}
		k, ok := idx[key]
		if !ok {
			k = len(out)
			idx[key] = k
			out = append(out, CategoryCount{Value: key})
		}
		out[k].Count++
		if labels[i] == 1 {
			out[k].Depressed++
		}
	}
	for k := range out {
		out[k].Rate = float64(out[k].Depressed) / float64(out[k].Count)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Value < out[b].Value })
	return out
}
