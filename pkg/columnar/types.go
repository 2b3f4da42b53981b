// Package columnar provides the in-memory column table that the variable
// exporter renders collections into.
package columnar

import (
	"fmt"
	"math"
)

// ColumnType represents the data type of a column
type ColumnType int

const (
	ColumnTypeString ColumnType = iota
	ColumnTypeFloat
	// ColumnTypeMixed holds float64 and string values side by side. The long
	// export uses it for amplitudes of categorical variables.
	ColumnTypeMixed
)

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeString:
		return "string"
	case ColumnTypeFloat:
		return "float"
	case ColumnTypeMixed:
		return "mixed"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column is the base interface for all column types. Get returns nil for a
// missing value.
type Column interface {
	Name() string
	Type() ColumnType
	Len() int
	Get(i int) interface{}
	IsNull(i int) bool
	Append(value interface{}) error
	AppendNull()
	Clone() Column
	MemoryUsage() int64

	take(idx []int) Column
}

// NewColumn creates an empty column of the given type.
func NewColumn(name string, colType ColumnType) Column {
	switch colType {
	case ColumnTypeFloat:
		return NewFloatColumn(name, 0)
	case ColumnTypeMixed:
		return NewMixedColumn(name, 0)
	default:
		return NewStringColumn(name, 0)
	}
}

const nullCode = math.MaxUint32

// StringColumn stores string values dictionary encoded. Entity and label
// columns repeat a handful of values across many rows.
type StringColumn struct {
	name  string
	dict  map[string]uint32
	words []string
	codes []uint32
}

// NewStringColumn creates a new string column with room for capacity rows
func NewStringColumn(name string, capacity int) *StringColumn {
	return &StringColumn{
		name:  name,
		dict:  make(map[string]uint32),
		codes: make([]uint32, 0, capacity),
	}
}

func (c *StringColumn) Name() string     { return c.name }
func (c *StringColumn) Type() ColumnType { return ColumnTypeString }
func (c *StringColumn) Len() int         { return len(c.codes) }

func (c *StringColumn) Get(i int) interface{} {
	if c.codes[i] == nullCode {
		return nil
	}
	return c.words[c.codes[i]]
}

// Value returns the string at i and whether it is present.
func (c *StringColumn) Value(i int) (string, bool) {
	if c.codes[i] == nullCode {
		return "", false
	}
	return c.words[c.codes[i]], true
}

func (c *StringColumn) IsNull(i int) bool { return c.codes[i] == nullCode }

func (c *StringColumn) code(s string) uint32 {
	if code, exists := c.dict[s]; exists {
		return code
	}
	code := uint32(len(c.words))
	c.dict[s] = code
	c.words = append(c.words, s)
	return code
}

func (c *StringColumn) Append(value interface{}) error {
	switch v := value.(type) {
	case nil:
		c.AppendNull()
	case string:
		c.codes = append(c.codes, c.code(v))
	default:
		return fmt.Errorf("column %q: expected string, got %T", c.name, value)
	}
	return nil
}

// AppendString appends a present value.
func (c *StringColumn) AppendString(s string) {
	c.codes = append(c.codes, c.code(s))
}

// AppendRepeated appends s n times.
func (c *StringColumn) AppendRepeated(s string, n int) {
	code := c.code(s)
	for i := 0; i < n; i++ {
		c.codes = append(c.codes, code)
	}
}

// AppendNullRepeated appends n missing values.
func (c *StringColumn) AppendNullRepeated(n int) {
	for i := 0; i < n; i++ {
		c.codes = append(c.codes, nullCode)
	}
}

func (c *StringColumn) AppendNull() { c.codes = append(c.codes, nullCode) }

// Cardinality returns the number of distinct present values.
func (c *StringColumn) Cardinality() int { return len(c.words) }

func (c *StringColumn) Clone() Column {
	out := &StringColumn{
		name:  c.name,
		dict:  make(map[string]uint32, len(c.dict)),
		words: append([]string(nil), c.words...),
		codes: append([]uint32(nil), c.codes...),
	}
	for k, v := range c.dict {
		out.dict[k] = v
	}
	return out
}

func (c *StringColumn) take(idx []int) Column {
	out := NewStringColumn(c.name, len(idx))
	for _, i := range idx {
		if s, ok := c.Value(i); ok {
			out.AppendString(s)
		} else {
			out.AppendNull()
		}
	}
	return out
}

func (c *StringColumn) MemoryUsage() int64 {
	var total int64
	for _, w := range c.words {
		total += int64(len(w)) + 16 + 4
	}
	return total + int64(len(c.codes)*4)
}

// FloatColumn stores floating point values. NaN marks a missing value.
type FloatColumn struct {
	name   string
	values []float64
}

// NewFloatColumn creates a new float column with room for capacity rows
func NewFloatColumn(name string, capacity int) *FloatColumn {
	return &FloatColumn{
		name:   name,
		values: make([]float64, 0, capacity),
	}
}

// NewFloatColumnFrom wraps values without copying.
func NewFloatColumnFrom(name string, values []float64) *FloatColumn {
	return &FloatColumn{name: name, values: values}
}

func (c *FloatColumn) Name() string     { return c.name }
func (c *FloatColumn) Type() ColumnType { return ColumnTypeFloat }
func (c *FloatColumn) Len() int         { return len(c.values) }

func (c *FloatColumn) Get(i int) interface{} {
	if math.IsNaN(c.values[i]) {
		return nil
	}
	return c.values[i]
}

// Values exposes the backing slice. Callers must not modify it.
func (c *FloatColumn) Values() []float64 { return c.values }

// Value returns the float at i and whether it is present.
func (c *FloatColumn) Value(i int) (float64, bool) {
	return c.values[i], !math.IsNaN(c.values[i])
}

func (c *FloatColumn) IsNull(i int) bool { return math.IsNaN(c.values[i]) }

func (c *FloatColumn) Append(value interface{}) error {
	var floatVal float64
	switch v := value.(type) {
	case nil:
		floatVal = math.NaN()
	case float64:
		floatVal = v
	case float32:
		floatVal = float64(v)
	case int:
		floatVal = float64(v)
	case int64:
		floatVal = float64(v)
	default:
		return fmt.Errorf("column %q: expected float, got %T", c.name, value)
	}

	c.values = append(c.values, floatVal)
	return nil
}

// AppendFloat appends v.
func (c *FloatColumn) AppendFloat(v float64) { c.values = append(c.values, v) }

func (c *FloatColumn) AppendNull() { c.values = append(c.values, math.NaN()) }

func (c *FloatColumn) Clone() Column {
	return &FloatColumn{name: c.name, values: append([]float64(nil), c.values...)}
}

func (c *FloatColumn) take(idx []int) Column {
	out := make([]float64, len(idx))
	for j, i := range idx {
		out[j] = c.values[i]
	}
	return &FloatColumn{name: c.name, values: out}
}

func (c *FloatColumn) MemoryUsage() int64 {
	return int64(len(c.values) * 8)
}

// MixedColumn stores float64 and string values.
type MixedColumn struct {
	name   string
	values []interface{}
}

// NewMixedColumn creates a new mixed column with room for capacity rows
func NewMixedColumn(name string, capacity int) *MixedColumn {
	return &MixedColumn{
		name:   name,
		values: make([]interface{}, 0, capacity),
	}
}

func (c *MixedColumn) Name() string          { return c.name }
func (c *MixedColumn) Type() ColumnType      { return ColumnTypeMixed }
func (c *MixedColumn) Len() int              { return len(c.values) }
func (c *MixedColumn) Get(i int) interface{} { return c.values[i] }
func (c *MixedColumn) IsNull(i int) bool     { return c.values[i] == nil }

func (c *MixedColumn) Append(value interface{}) error {
	switch v := value.(type) {
	case nil, string:
		c.values = append(c.values, v)
	case float64:
		if math.IsNaN(v) {
			c.values = append(c.values, nil)
		} else {
			c.values = append(c.values, v)
		}
	case int:
		c.values = append(c.values, float64(v))
	default:
		return fmt.Errorf("column %q: expected float or string, got %T", c.name, value)
	}
	return nil
}

func (c *MixedColumn) AppendNull() { c.values = append(c.values, nil) }

func (c *MixedColumn) Clone() Column {
	return &MixedColumn{name: c.name, values: append([]interface{}(nil), c.values...)}
}

func (c *MixedColumn) take(idx []int) Column {
	out := make([]interface{}, len(idx))
	for j, i := range idx {
		out[j] = c.values[i]
	}
	return &MixedColumn{name: c.name, values: out}
}

func (c *MixedColumn) MemoryUsage() int64 {
	var total int64
	for _, v := range c.values {
		total += 16
		if s, ok := v.(string); ok {
			total += int64(len(s))
		}
	}
	return total
}
