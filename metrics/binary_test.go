package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestPrecisionRecallF1(t *testing.T) {
	yTrue := vec(1, 1, 1, 0, 0, 0, 1, 0)
	yPred := vec(1, 0, 1, 1, 0, 0, 1, 0)
	// tp=3 fp=1 fn=1 tn=3

	p, err := PrecisionScore(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, p, 1e-12)

	r, err := RecallScore(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, r, 1e-12)

	f, err := F1Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, f, 1e-12)
}

func TestF1Score_Asymmetric(t *testing.T) {
	// tp=1 fp=0 fn=2 -> precision 1, recall 1/3, f1 0.5
	f, err := F1Score(vec(1, 1, 1, 0), vec(1, 0, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-12)
}

func TestZeroDivisionWarns(t *testing.T) {
	var warnings []error
	prev := errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(prev)

	p, err := PrecisionScore(vec(1, 0, 1), vec(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	f, err := F1Score(vec(0, 0), vec(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)

	require.Len(t, warnings, 2)
	var umw *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &umw))
	assert.Equal(t, "precision", umw.Metric)
}

func TestBinaryMetrics_RejectNonBinary(t *testing.T) {
	_, err := PrecisionScore(vec(0, 2), vec(0, 1))
	assert.Error(t, err)
	_, err = RecallScore(vec(0, 1), vec(0, 0.5))
	assert.Error(t, err)
	_, err = F1Score(nil, vec(1))
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, labels, err := ConfusionMatrix(vec(1, 1, 1, 0, 0, 0, 1, 0), vec(1, 0, 1, 1, 0, 0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, labels)
	assert.Equal(t, [][]int{{3, 1}, {1, 3}}, cm)

	_, _, err = ConfusionMatrix(vec(1), vec(1, 0))
	assert.Error(t, err)
}

func TestEvaluateBinary(t *testing.T) {
	yTrue := vec(0, 0, 1, 1)
	proba := vec(0.1, 0.4, 0.35, 0.8)
	yPred := vec(0, 0, 0, 1)

	rep, err := EvaluateBinary(yTrue, yPred, proba)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, rep.Accuracy, 1e-12)
	assert.InDelta(t, 1.0, rep.Precision, 1e-12)
	assert.InDelta(t, 0.5, rep.Recall, 1e-12)
	assert.InDelta(t, 0.75, rep.ROCAUC, 1e-12)
	assert.Equal(t, [][]int{{2, 0}, {1, 1}}, rep.ConfusionMatrix)
	assert.Greater(t, rep.LogLoss, 0.0)
}

func TestBinaryConfusionMatrix_AlwaysTwoByTwo(t *testing.T) {
	cm, err := BinaryConfusionMatrix(vec(0, 0, 0), vec(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3, 0}, {0, 0}}, cm)

	_, err = BinaryConfusionMatrix(vec(0, 2), vec(0, 1))
	assert.Error(t, err)
}
