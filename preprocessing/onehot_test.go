package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func catFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.NewString("Dietary Habits", []string{"Moderate", "Healthy", "Unhealthy", "Healthy"}, nil),
		frame.NewNumeric("Family History", []float64{1, 0, math.NaN(), 0}),
		frame.NewString("Gender", []string{"Male", "Female", "Male", "Male"}, nil),
	)
	require.NoError(t, err)
	return f
}

func TestOneHotEncoder_SortedCategoriesDropFirst(t *testing.T) {
	f := catFrame(t)
	enc := NewOneHotEncoder([]string{"Dietary Habits", "Family History", "Gender"}, true)
	out, err := enc.FitTransform(f)
	require.NoError(t, err)

	// (3-1) + (3-1) + (2-1)
	assert.Equal(t, 5, enc.NOutputs())
	r, c := out.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 5, c)

	assert.Equal(t, []string{
		"Dietary Habits_Moderate",
		"Dietary Habits_Unhealthy",
		"Family History_1.0",
		"Family History_nan",
		"Gender_Male",
	}, enc.FeatureNamesOut())

	// row 0: Moderate, 1, Male
	assert.Equal(t, []float64{1, 0, 1, 0, 1}, rowOf(out, 0))
	// row 1: Healthy (dropped), 0 (dropped), Female (dropped)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, rowOf(out, 1))
	// row 2: Unhealthy, missing, Male
	assert.Equal(t, []float64{0, 1, 0, 1, 1}, rowOf(out, 2))
}

func TestOneHotEncoder_KeepAll(t *testing.T) {
	enc := NewOneHotEncoder([]string{"Gender"}, false)
	out, err := enc.FitTransform(catFrame(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Gender_Female", "Gender_Male"}, enc.FeatureNamesOut())
	assert.Equal(t, []float64{0, 1}, rowOf(out, 0))
}

func TestOneHotEncoder_UnknownCategory(t *testing.T) {
	enc := NewOneHotEncoder([]string{"Gender"}, true)
	require.NoError(t, enc.Fit(catFrame(t)))

	row, err := frame.New(frame.NewString("Gender", []string{"Other"}, nil))
	require.NoError(t, err)
	_, err = enc.Transform(row)

	var uce *errors.UnknownCategoryError
	require.True(t, errors.As(err, &uce))
	assert.Equal(t, "Gender", uce.Column)
}

func TestOneHotEncoder_KindMismatch(t *testing.T) {
	enc := NewOneHotEncoder([]string{"Gender"}, true)
	require.NoError(t, enc.Fit(catFrame(t)))

	row, err := frame.New(frame.NewNumeric("Gender", []float64{1}))
	require.NoError(t, err)
	_, err = enc.Transform(row)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestOneHotEncoder_NotFitted(t *testing.T) {
	_, err := NewOneHotEncoder([]string{"Gender"}, true).Transform(catFrame(t))
	var nfe *errors.NotFittedError
	assert.True(t, errors.As(err, &nfe))
}
