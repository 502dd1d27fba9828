package columnar

import (
	"fmt"
)

// Frame stores a batch of text rows column by column.
type Frame struct {
	names   []string
	columns [][]string
	rows    int
}

// Group is the subset of a frame sharing one key value.
type Group struct {
	Key   string
	Frame *Frame
}

// NewFrame creates an empty frame with the given column names.
func NewFrame(names []string) *Frame {
	f := &Frame{
		names:   append([]string(nil), names...),
		columns: make([][]string, len(names)),
	}
	return f
}

// FromRows builds a frame from row-major data. Every row must have exactly
// one value per column.
func FromRows(names []string, rows [][]string) (*Frame, error) {
	f := NewFrame(names)
	for i := range f.columns {
		f.columns[i] = make([]string, 0, len(rows))
	}
	for _, row := range rows {
		if err := f.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromColumns builds a frame from column-major data.
func FromColumns(names []string, columns [][]string) (*Frame, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("got %d columns for %d names", len(columns), len(names))
	}
	f := NewFrame(names)
	for i, col := range columns {
		if i > 0 && len(col) != len(columns[0]) {
			return nil, fmt.Errorf("column %q has %d values, expected %d", names[i], len(col), len(columns[0]))
		}
		f.columns[i] = col
	}
	if len(columns) > 0 {
		f.rows = len(columns[0])
	}
	return f, nil
}

// AppendRow adds a new row to the frame
func (f *Frame) AppendRow(row []string) error {
	if len(row) != len(f.names) {
		return fmt.Errorf("row has %d fields, expected %d", len(row), len(f.names))
	}
	for i, v := range row {
		f.columns[i] = append(f.columns[i], v)
	}
	f.rows++
	return nil
}

// Names returns the ordered column names.
func (f *Frame) Names() []string { return f.names }

// NumRows returns the number of rows
func (f *Frame) NumRows() int { return f.rows }

// NumColumns returns the number of columns
func (f *Frame) NumColumns() int { return len(f.names) }

// Column returns the values of column i.
func (f *Frame) Column(i int) []string { return f.columns[i] }

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, n := range f.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Row returns row i as a fresh slice.
func (f *Frame) Row(i int) []string {
	row := make([]string, len(f.columns))
	for c, col := range f.columns {
		row[c] = col[i]
	}
	return row
}

// Rows returns the frame in row-major order.
func (f *Frame) Rows() [][]string {
	out := make([][]string, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// GroupBy partitions the frame by the exact value of column col. Groups are
// returned in order of first occurrence and keep the frame's row order.
func (f *Frame) GroupBy(col int) []Group {
	if col < 0 || col >= len(f.columns) {
		return nil
	}

	index := make(map[string]int)
	var groups []Group
	for r, key := range f.columns[col] {
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, Group{Key: key, Frame: NewFrame(f.names)})
		}
		g := groups[gi].Frame
		for c := range f.columns {
			g.columns[c] = append(g.columns[c], f.columns[c][r])
		}
		g.rows++
	}
	return groups
}

// Project returns a frame holding only the named columns, in the given order.
// The column slices are shared with f.
func (f *Frame) Project(names []string) (*Frame, error) {
	if len(names) == 0 {
		return f, nil
	}
	out := &Frame{names: append([]string(nil), names...), columns: make([][]string, len(names)), rows: f.rows}
	for i, n := range names {
		idx := f.ColumnIndex(n)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found", n)
		}
		out.columns[i] = f.columns[idx]
	}
	return out, nil
}

// Filter returns the rows whose mask entry is true.
func (f *Frame) Filter(mask []bool) *Frame {
	out := NewFrame(f.names)
	for r := 0; r < f.rows && r < len(mask); r++ {
		if !mask[r] {
			continue
		}
		for c := range f.columns {
			out.columns[c] = append(out.columns[c], f.columns[c][r])
		}
		out.rows++
	}
	return out
}
