package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labels interleaves pos ones among neg zeros.
func labels(pos, neg int) []float64 {
	y := make([]float64, pos+neg)
	for i := 0; i < pos; i++ {
		y[i*(pos+neg)/pos] = 1
	}
	return y
}

func count(y []float64, idx []int, label float64) int {
	n := 0
	for _, i := range idx {
		if y[i] == label {
			n++
		}
	}
	return n
}

func TestTrainTestSplit_Sizes(t *testing.T) {
	y := labels(37, 64)
	s, err := TrainTestSplit(y)
	require.NoError(t, err)

	// ceil(0.2 * 101) = 21
	assert.Len(t, s.Test, 21)
	assert.Len(t, s.Train, 80)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, s.Train...), s.Test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(y))
	assert.IsIncreasing(t, s.Train)
	assert.IsIncreasing(t, s.Test)
}

func TestTrainTestSplit_PreservesProportions(t *testing.T) {
	y := labels(40, 160)
	s, err := TrainTestSplit(y)
	require.NoError(t, err)

	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	wantPos := 0.2 * float64(pos)
	wantNeg := 0.2 * float64(len(y)-pos)
	assert.InDelta(t, wantPos, float64(count(y, s.Test, 1)), 1)
	assert.InDelta(t, wantNeg, float64(count(y, s.Test, 0)), 1)
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	y := labels(30, 70)
	a, err := TrainTestSplit(y, WithRandomState(42))
	require.NoError(t, err)
	b, err := TrainTestSplit(y, WithRandomState(42))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := TrainTestSplit(y, WithRandomState(7))
	require.NoError(t, err)
	assert.NotEqual(t, a.Test, c.Test)
}

func TestTrainTestSplit_NotStratified(t *testing.T) {
	y := labels(10, 10)
	s, err := TrainTestSplit(y, WithStratify(false), WithTestSize(0.25))
	require.NoError(t, err)
	assert.Len(t, s.Test, 5)
	assert.Len(t, s.Train, 15)
}

func TestTrainTestSplit_Errors(t *testing.T) {
	_, err := TrainTestSplit(nil)
	assert.Error(t, err)

	_, err = TrainTestSplit([]float64{0, 1, 0, 0}, WithTestSize(1.5))
	assert.Error(t, err)

	// a class with a single member cannot be stratified
	_, err = TrainTestSplit([]float64{0, 0, 0, 0, 1})
	assert.Error(t, err)

	_, err = TrainTestSplit([]float64{0, 0, 1, 1}, WithTestSize(0.7))
	assert.Error(t, err)
}
