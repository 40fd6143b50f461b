// Package frame provides a small column-oriented table used between dataset
// loading, cleaning and the column transformers.
package frame

import (
	"math"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns store float64 values, NaN marks a missing cell.
	Numeric Kind = iota
	// String columns store text values with a validity mask.
	String
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "string"
}

// Column is a named, typed vector of cells.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Valid   []bool
}

// NewNumeric creates a numeric column. The slice is not copied.
func NewNumeric(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Floats: values}
}

// NewString creates a string column. A nil valid mask means every cell is present.
func NewString(name string, values []string, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(values))
		for i := range valid {
			valid[i] = true
		}
	}
	return &Column{Name: name, Kind: String, Strings: values, Valid: valid}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return !c.Valid[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Observed returns the non-missing values of a numeric column.
func (c *Column) Observed() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for _, v := range c.Floats {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Value returns cell i as float64, string or nil when missing.
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	if c.Kind == Numeric {
		return c.Floats[i]
	}
	return c.Strings[i]
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Floats = append([]float64(nil), c.Floats...)
		return out
	}
	out.Strings = append([]string(nil), c.Strings...)
	out.Valid = append([]bool(nil), c.Valid...)
	return out
}

func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Floats = make([]float64, len(idx))
		for k, i := range idx {
			out.Floats[k] = c.Floats[i]
		}
		return out
	}
	out.Strings = make([]string, len(idx))
	out.Valid = make([]bool, len(idx))
	for k, i := range idx {
		out.Strings[k] = c.Strings[i]
		out.Valid[k] = c.Valid[i]
	}
	return out
}

// Frame is an ordered set of equal-length columns with unique names.
type Frame struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// New builds a Frame. All columns must have the same length and distinct names.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, errors.NewValueError("frame.New", "nil column")
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		if i == 0 {
			f.nrows = c.Len()
		} else if c.Len() != f.nrows {
			return nil, errors.NewDimensionError("frame.New", f.nrows, c.Len(), 0)
		}
		if c.Kind == String && len(c.Valid) != len(c.Strings) {
			return nil, errors.NewDimensionError("frame.New", len(c.Strings), len(c.Valid), 0)
		}
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nrows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// MustColumn is Column for names the caller has already validated.
func (f *Frame) MustColumn(name string) *Column {
	c, ok := f.Column(name)
	if !ok {
		panic("frame: no column " + name)
	}
	return c
}

// Select returns a frame with the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, errors.NewValidationError("column", "not found", n)
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.nrows = f.nrows
	}
	return out, nil
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Frame{index: make(map[string]int), nrows: f.nrows}
	for _, c := range f.cols {
		if skip[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Replace returns a frame where the column with the same name is swapped
// for col, or col is appended when absent.
func (f *Frame) Replace(col *Column) (*Frame, error) {
	if col.Len() != f.nrows && len(f.cols) > 0 {
		return nil, errors.NewDimensionError("frame.Replace", f.nrows, col.Len(), 0)
	}
	cols := append([]*Column(nil), f.cols...)
	if i, ok := f.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Take returns the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), nrows: len(idx)}
	for i, c := range f.cols {
		out.index[c.Name] = i
		out.cols = append(out.cols, c.take(idx))
	}
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), nrows: f.nrows}
	for i, c := range f.cols {
		out.index[c.Name] = i
		out.cols = append(out.cols, c.Clone())
	}
	return out
}
