package preprocessing

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mindscope/core/frame"
	"github.com/YuminosukeSato/mindscope/core/model"
	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// Category is one distinct value of a categorical column.
type Category struct {
	Missing bool
	IsText  bool
	Num     float64
	Str     string
}

// String formats the category the way it appears in output feature names.
func (c Category) String() string {
	switch {
	case c.Missing:
		return "nan"
	case c.IsText:
		return c.Str
	case c.Num == math.Trunc(c.Num) && math.Abs(c.Num) < 1e15:
		return strconv.FormatFloat(c.Num, 'f', 1, 64)
	default:
		return strconv.FormatFloat(c.Num, 'g', -1, 64)
	}
}

func categoryAt(col *frame.Column, i int) Category {
	if col.IsMissing(i) {
		return Category{Missing: true}
	}
	if col.Kind == frame.Numeric {
		return Category{Num: col.Floats[i]}
	}
	return Category{IsText: true, Str: col.Strings[i]}
}

// lessCategory orders numeric values numerically, strings lexically and
// puts the missing category last.
func lessCategory(kind frame.Kind, a, b Category) bool {
	if a.Missing != b.Missing {
		return !a.Missing
	}
	if kind == frame.Numeric {
		return a.Num < b.Num
	}
	return a.Str < b.Str
}

// OneHotEncoder はカテゴリ列をダミー変数に展開する
//
// 学習時に見ていないカテゴリが変換時に現れた場合はエラーを返す
// (handle_unknown="error")。
type OneHotEncoder struct {
	state *model.StateManager

	// Columns は対象の列名
	Columns []string

	// DropFirst は各列の最初のカテゴリを落とす
	DropFirst bool

	// Categories は列ごとのソート済みカテゴリ
	Categories [][]Category

	kinds []frame.Kind
	index []map[Category]int
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder(columns []string, dropFirst bool) *OneHotEncoder {
	return &OneHotEncoder{
		state:     model.NewStateManager(),
		Columns:   append([]string(nil), columns...),
		DropFirst: dropFirst,
	}
}

// Fit は各列のカテゴリを学習する
func (e *OneHotEncoder) Fit(f *frame.Frame) error {
	if f.NRows() == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Categories = make([][]Category, len(e.Columns))
	e.kinds = make([]frame.Kind, len(e.Columns))
	e.index = make([]map[Category]int, len(e.Columns))

	for j, name := range e.Columns {
		col, ok := f.Column(name)
		if !ok {
			return errors.NewValidationError("column", "not found", name)
		}
		seen := make(map[Category]bool)
		var cats []Category
		for i := 0; i < col.Len(); i++ {
			c := categoryAt(col, i)
			if !seen[c] {
				seen[c] = true
				cats = append(cats, c)
			}
		}
		kind := col.Kind
		sort.Slice(cats, func(a, b int) bool { return lessCategory(kind, cats[a], cats[b]) })

		e.kinds[j] = kind
		e.Categories[j] = cats
		e.index[j] = make(map[Category]int, len(cats))
		for k, c := range cats {
			e.index[j][c] = k
		}
	}

	e.state.SetDimensions(len(e.Columns), f.NRows())
	e.state.SetFitted()
	return nil
}

func (e *OneHotEncoder) offset() int {
	if e.DropFirst {
		return 1
	}
	return 0
}

// NOutputs はエンコード後の列数を返す
func (e *OneHotEncoder) NOutputs() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats) - e.offset()
	}
	return n
}

// Transform はカテゴリ列を0/1の行列へ変換する
func (e *OneHotEncoder) Transform(f *frame.Frame) (*mat.Dense, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	rows := f.NRows()
	if rows == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	width := e.NOutputs()
	if width == 0 {
		return nil, errors.NewValueError("OneHotEncoder.Transform", "no output columns")
	}
	data := make([]float64, rows*width)
	drop := e.offset()

	base := 0
	for j, name := range e.Columns {
		col, ok := f.Column(name)
		if !ok {
			return nil, errors.NewValidationError("column", "not found", name)
		}
		if col.Kind != e.kinds[j] {
			return nil, errors.NewValidationError(name, fmt.Sprintf("expected %s column", e.kinds[j]), col.Kind.String())
		}
		for i := 0; i < rows; i++ {
			c := categoryAt(col, i)
			k, ok := e.index[j][c]
			if !ok {
				return nil, errors.NewUnknownCategoryError(name, c.String())
			}
			if k >= drop {
				data[i*width+base+k-drop] = 1
			}
		}
		base += len(e.Categories[j]) - drop
	}

	return mat.NewDense(rows, width, data), nil
}

// FitTransform は学習と変換を同時に行う
func (e *OneHotEncoder) FitTransform(f *frame.Frame) (*mat.Dense, error) {
	if err := e.Fit(f); err != nil {
		return nil, err
	}
	return e.Transform(f)
}

// FeatureNamesOut は <column>_<category> 形式の列名を返す
func (e *OneHotEncoder) FeatureNamesOut() []string {
	names := make([]string, 0, e.NOutputs())
	for j, name := range e.Columns {
		for k, c := range e.Categories[j] {
			if k < e.offset() {
				continue
			}
			names = append(names, name+"_"+c.String())
		}
	}
	return names
}
