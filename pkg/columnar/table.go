package columnar

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Table is an ordered set of equal-length named columns.
type Table struct {
	columns  []Column
	index    map[string]int
	rowCount int
}

// NewTable creates a table from columns. All columns must have the same
// length and distinct names.
func NewTable(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if _, exists := t.index[col.Name()]; exists {
			return nil, fmt.Errorf("column %q already exists", col.Name())
		}
		if i > 0 && col.Len() != t.rowCount {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name(), col.Len(), t.rowCount)
		}
		t.rowCount = col.Len()
		t.index[col.Name()] = i
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// NumRows returns the number of rows
func (t *Table) NumRows() int { return t.rowCount }

// NumCols returns the number of columns
func (t *Table) NumCols() int { return len(t.columns) }

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) { return t.rowCount, len(t.columns) }

// ColumnNames returns all column names in table order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name()
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// Column retrieves a column by name
func (t *Table) Column(name string) (Column, bool) {
	i, exists := t.index[name]
	if !exists {
		return nil, false
	}
	return t.columns[i], true
}

// Row retrieves a row by index
func (t *Table) Row(index int) (map[string]interface{}, error) {
	if index < 0 || index >= t.rowCount {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, t.rowCount)
	}

	row := make(map[string]interface{}, len(t.columns))
	for _, col := range t.columns {
		row[col.Name()] = col.Get(index)
	}
	return row, nil
}

// Values returns row index as a slice in column order.
func (t *Table) Values(index int) []interface{} {
	out := make([]interface{}, len(t.columns))
	for j, col := range t.columns {
		out[j] = col.Get(index)
	}
	return out
}

// MemoryUsage returns total memory usage in bytes
func (t *Table) MemoryUsage() int64 {
	var total int64
	for _, col := range t.columns {
		total += int64(len(col.Name()))
		total += col.MemoryUsage()
	}
	return total
}

// Take returns a new table holding the rows at idx, in that order.
func (t *Table) Take(idx []int) *Table {
	out := &Table{
		columns:  make([]Column, len(t.columns)),
		index:    make(map[string]int, len(t.columns)),
		rowCount: len(idx),
	}
	for i, col := range t.columns {
		out.columns[i] = col.take(idx)
		out.index[col.Name()] = i
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		columns:  make([]Column, len(t.columns)),
		index:    make(map[string]int, len(t.columns)),
		rowCount: t.rowCount,
	}
	for i, col := range t.columns {
		out.columns[i] = col.Clone()
		out.index[col.Name()] = i
	}
	return out
}

// SortBy returns a copy of the table with rows stably ordered by keys.
// Missing values sort last; strings that both parse as numbers compare
// numerically.
func (t *Table) SortBy(keys ...string) (*Table, error) {
	cmps := make([]func(a, b int) int, 0, len(keys))
	for _, k := range keys {
		col, ok := t.Column(k)
		if !ok {
			return nil, fmt.Errorf("sort key %q is not a column", k)
		}
		cmps = append(cmps, comparator(col))
	}

	idx := make([]int, t.rowCount)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for _, cmp := range cmps {
			if c := cmp(idx[a], idx[b]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return t.Take(idx), nil
}

// comparator orders two rows of col by the rules of Compare without boxing
// float and dictionary values.
func comparator(col Column) func(a, b int) int {
	switch c := col.(type) {
	case *FloatColumn:
		return func(a, b int) int { return compareFloat(c.values[a], c.values[b]) }
	case *StringColumn:
		order := make([]int, len(c.words))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return CompareStrings(c.words[order[i]], c.words[order[j]]) < 0
		})
		rank := make([]int, len(c.words))
		for r, code := range order {
			rank[code] = r
		}
		return func(a, b int) int {
			ca, cb := c.codes[a], c.codes[b]
			switch {
			case ca == cb:
				return 0
			case ca == nullCode:
				return 1
			case cb == nullCode:
				return -1
			}
			return rank[ca] - rank[cb]
		}
	default:
		return func(a, b int) int { return Compare(col.Get(a), col.Get(b)) }
	}
}

// Equal reports whether both tables have the same columns in the same order
// with the same types and values. Missing values compare equal.
func (t *Table) Equal(other *Table) bool {
	if t.rowCount != other.rowCount || len(t.columns) != len(other.columns) {
		return false
	}
	for i, col := range t.columns {
		o := other.columns[i]
		if col.Name() != o.Name() || col.Type() != o.Type() {
			return false
		}
		for r := 0; r < t.rowCount; r++ {
			if Compare(col.Get(r), o.Get(r)) != 0 {
				return false
			}
		}
	}
	return true
}

// Concat stacks tables vertically. Columns are the union of all inputs in
// order of first appearance; rows of a table lacking a column get missing
// values. A column whose type differs between inputs becomes mixed unless
// one side is string and the other float, which is an error.
func Concat(tables ...*Table) (*Table, error) {
	var names []string
	types := make(map[string]ColumnType)
	total := 0
	for _, t := range tables {
		total += t.rowCount
		for _, col := range t.columns {
			prev, seen := types[col.Name()]
			if !seen {
				names = append(names, col.Name())
				types[col.Name()] = col.Type()
				continue
			}
			if prev == col.Type() {
				continue
			}
			if prev != ColumnTypeMixed && col.Type() != ColumnTypeMixed {
				return nil, fmt.Errorf("column %q is %s in one table and %s in another", col.Name(), prev, col.Type())
			}
			types[col.Name()] = ColumnTypeMixed
		}
	}

	out := make([]Column, len(names))
	for i, name := range names {
		out[i] = newColumnWithCapacity(name, types[name], total)
	}
	for _, t := range tables {
		for i, name := range names {
			src, ok := t.Column(name)
			for r := 0; r < t.rowCount; r++ {
				if !ok {
					out[i].AppendNull()
					continue
				}
				if err := out[i].Append(src.Get(r)); err != nil {
					return nil, err
				}
			}
		}
	}
	return NewTable(out...)
}

func newColumnWithCapacity(name string, colType ColumnType, capacity int) Column {
	switch colType {
	case ColumnTypeFloat:
		return NewFloatColumn(name, capacity)
	case ColumnTypeMixed:
		return NewMixedColumn(name, capacity)
	default:
		return NewStringColumn(name, capacity)
	}
}

// Compare orders two cell values: nil after everything, floats before
// strings, numeric strings numerically.
func Compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	switch {
	case aNum && bNum:
		return compareFloat(af, bf)
	case aNum:
		return -1
	case bNum:
		return 1
	}

	as, _ := a.(string)
	bs, _ := b.(string)
	return CompareStrings(as, bs)
}

// CompareStrings compares numerically when both strings parse as numbers,
// lexically otherwise.
func CompareStrings(a, b string) int {
	if a == b {
		return 0
	}
	af, aErr := strconv.ParseFloat(a, 64)
	bf, bErr := strconv.ParseFloat(b, 64)
	if aErr == nil && bErr == nil {
		if c := compareFloat(af, bf); c != 0 {
			return c
		}
	}
	if a < b {
		return -1
	}
	return 1
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case a == b:
		return 0
	}
	// NaNs last
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	default:
		return -1
	}
}

// Iterator provides sequential access to rows
type Iterator struct {
	table  *Table
	index  int
	buffer map[string]interface{}
}

// NewIterator creates a new iterator over the table
func (t *Table) NewIterator() *Iterator {
	return &Iterator{
		table:  t,
		index:  -1,
		buffer: make(map[string]interface{}, len(t.columns)),
	}
}

// Next advances to the next row
func (it *Iterator) Next() bool {
	it.index++
	return it.index < it.table.rowCount
}

// Row returns the current row. The map is reused between calls.
func (it *Iterator) Row() map[string]interface{} {
	for _, col := range it.table.columns {
		it.buffer[col.Name()] = col.Get(it.index)
	}
	return it.buffer
}
