// Package model_selection splits datasets into train and held-out parts.
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// Split holds sorted row indices of the train and test parts.
type Split struct {
	Train []int
	Test  []int
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

type splitConfig struct {
	testSize   float64
	seed       uint64
	stratified bool
}

// WithTestSize sets the held-out fraction (default 0.2).
func WithTestSize(f float64) SplitOption {
	return func(c *splitConfig) { c.testSize = f }
}

// WithRandomState sets the shuffle seed (default 42).
func WithRandomState(seed uint64) SplitOption {
	return func(c *splitConfig) { c.seed = seed }
}

// WithStratify toggles per-class allocation (default true).
func WithStratify(on bool) SplitOption {
	return func(c *splitConfig) { c.stratified = on }
}

// TrainTestSplit shuffles row indices with a PCG source seeded by the random
// state and assigns ceil(testSize·n) of them to the test part. When
// stratified, classes are visited in ascending label order and each class
// contributes in proportion to its size, so the same labels and seed always
// produce the same membership.
func TrainTestSplit(y []float64, opts ...SplitOption) (Split, error) {
	cfg := splitConfig{testSize: 0.2, seed: 42, stratified: true}
	for _, o := range opts {
		o(&cfg)
	}

	n := len(y)
	if n == 0 {
		return Split{}, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return Split{}, errors.NewValidationError("test_size", "must be in (0, 1)", cfg.testSize)
	}
	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	if nTest >= n {
		return Split{}, errors.NewValidationError("test_size", "leaves no training samples", cfg.testSize)
	}

	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed))
	var test []int
	if cfg.stratified {
		var err error
		if test, err = stratifiedTest(y, nTest, rng); err != nil {
			return Split{}, err
		}
	} else {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = idx[:nTest]
	}

	inTest := make([]bool, n)
	for _, i := range test {
		inTest[i] = true
	}
	out := Split{Train: make([]int, 0, n-nTest), Test: make([]int, 0, nTest)}
	for i := 0; i < n; i++ {
		if inTest[i] {
			out.Test = append(out.Test, i)
		} else {
			out.Train = append(out.Train, i)
		}
	}
	return out, nil
}

func stratifiedTest(y []float64, nTest int, rng *rand.Rand) ([]int, error) {
	groups := make(map[float64][]int)
	for i, label := range y {
		groups[label] = append(groups[label], i)
	}
	classes := make([]float64, 0, len(groups))
	for label := range groups {
		classes = append(classes, label)
	}
	sort.Float64s(classes)

	for _, c := range classes {
		if len(groups[c]) < 2 {
			return nil, errors.NewValidationError("y", "the least populated class has only 1 member, which is too few to stratify", c)
		}
	}
	if nTest < len(classes) {
		return nil, errors.NewValidationError("test_size", "test part must hold at least one sample per class", nTest)
	}
	if len(y)-nTest < len(classes) {
		return nil, errors.NewValidationError("test_size", "train part must hold at least one sample per class", nTest)
	}

	counts := allocate(classes, groups, nTest, len(y))

	var test []int
	for k, c := range classes {
		idx := groups[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = append(test, idx[:counts[k]]...)
	}
	return test, nil
}

// allocate gives each class floor(share) test rows, then hands the remainder
// to the classes with the largest fractional parts, earlier classes first on ties.
func allocate(classes []float64, groups map[float64][]int, nTest, n int) []int {
	counts := make([]int, len(classes))
	fracs := make([]float64, len(classes))
	assigned := 0
	for k, c := range classes {
		share := float64(nTest) * float64(len(groups[c])) / float64(n)
		counts[k] = int(math.Floor(share))
		fracs[k] = share - float64(counts[k])
		assigned += counts[k]
	}

	order := make([]int, len(classes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fracs[order[a]] > fracs[order[b]] })

	for r := 0; assigned < nTest; r++ {
		k := order[r%len(order)]
		if counts[k] < len(groups[classes[k]])-1 {
			counts[k]++
			assigned++
		}
	}
	return counts
}
