package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

func rowOf(m mat.Matrix, i int) []float64 {
	return mat.Row(nil, i, m)
}

func mixedFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.NewNumeric("Academic Pressure", []float64{1, 2, 3, 4, 5, 3}),
		frame.NewNumeric("CGPA", []float64{6, 7, 8, 9, 10, 5}),
		frame.NewString("Gender", []string{"Male", "Female", "Male", "Female", "Male", "Male"}, nil),
		frame.NewString("City", []string{"a", "b", "c", "d", "e", "f"}, nil),
	)
	require.NoError(t, err)
	return f
}

func TestColumnTransformer_ConcatenatesBranches(t *testing.T) {
	ct := NewColumnTransformer(
		Branch{Name: "cont", Transformer: NewNumericPipeline(
			[]string{"Academic Pressure", "CGPA"},
			NewStandardScalerDefault(),
			NewPCA(2),
		)},
		Branch{Name: "cat", Transformer: NewOneHotEncoder([]string{"Gender"}, true)},
	)
	out, err := ct.FitTransform(mixedFrame(t))
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []string{"cont__pca0", "cont__pca1", "cat__Gender_Male"}, ct.FeatureNamesOut())
	assert.Equal(t, 1.0, out.At(0, 2))
	assert.Equal(t, 0.0, out.At(1, 2))

	again, err := ct.Transform(mixedFrame(t))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(out, again, 1e-12))
}

func TestNumericPipeline_RejectsMissing(t *testing.T) {
	f, err := frame.New(frame.NewNumeric("CGPA", []float64{1, math.NaN()}))
	require.NoError(t, err)
	_, err = NewNumericPipeline([]string{"CGPA"}, NewStandardScalerDefault()).FitTransform(f)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "CGPA", ve.ParamName)
}

func TestNumericPipeline_RejectsStringColumn(t *testing.T) {
	_, err := Matrix(mixedFrame(t), []string{"Gender"})
	assert.Error(t, err)
}

func TestColumnTransformer_NotFitted(t *testing.T) {
	ct := NewColumnTransformer(Branch{Name: "cat", Transformer: NewOneHotEncoder([]string{"Gender"}, true)})
	_, err := ct.Transform(mixedFrame(t))
	var nfe *errors.NotFittedError
	assert.True(t, errors.As(err, &nfe))
}

func TestColumnTransformer_PropagatesUnknownCategory(t *testing.T) {
	ct := NewColumnTransformer(Branch{Name: "cat", Transformer: NewOneHotEncoder([]string{"Gender"}, true)})
	require.NoError(t, ct.Fit(mixedFrame(t)))

	row, err := frame.New(frame.NewString("Gender", []string{"Other"}, nil))
	require.NoError(t, err)
	_, err = ct.Transform(row)
	var uce *errors.UnknownCategoryError
	assert.True(t, errors.As(err, &uce))
}
