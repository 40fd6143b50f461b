package server

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// maxBars caps the chart to the strongest features.
const maxBars = 20

// renderImportance draws a horizontal bar chart of |importance| per feature,
// largest at the top, and returns it as PNG bytes.
func renderImportance(model string, names []string, values []float64) ([]byte, error) {
	if len(names) != len(values) {
		return nil, errors.NewDimensionError("renderImportance", len(names), len(values), 0)
	}
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(values[idx[a]]) > math.Abs(values[idx[b]])
	})
	if len(idx) > maxBars {
		idx = idx[:maxBars]
	}

	// NominalY は下から積むので逆順に並べる
	bars := make(plotter.Values, len(idx))
	labels := make([]string, len(idx))
	for k, i := range idx {
		pos := len(idx) - 1 - k
		bars[pos] = math.Abs(values[i])
		labels[pos] = names[i]
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s feature importance", model)
	p.X.Label.Text = "importance"

	chart, err := plotter.NewBarChart(bars, vg.Points(12))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	chart.Horizontal = true
	chart.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	chart.LineStyle.Width = 0
	p.Add(chart)
	p.NominalY(labels...)

	height := vg.Length(len(idx))*vg.Points(18) + 1.5*vg.Inch
	wt, err := p.WriterTo(8*vg.Inch, height, "png")
	if err != nil {
		return nil, errors.Wrap(err, "encode chart")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "write chart")
	}
	return buf.Bytes(), nil
}
