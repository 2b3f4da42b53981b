package formats

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/json"
)

// arrowSchema maps table columns to nullable Arrow fields: floats to
// float64, strings and mixed columns to utf8. Mixed columns are listed in
// both field and schema metadata; Parquet keeps only the latter reliably.
func arrowSchema(t *columnar.Table) *arrow.Schema {
	fields := make([]arrow.Field, 0, t.NumCols())
	var mixed []string
	for _, col := range t.Columns() {
		field := arrow.Field{Name: col.Name(), Nullable: true}
		switch col.Type() {
		case columnar.ColumnTypeFloat:
			field.Type = arrow.PrimitiveTypes.Float64
		case columnar.ColumnTypeMixed:
			field.Type = arrow.BinaryTypes.String
			field.Metadata = arrow.NewMetadata([]string{mixedKey}, []string{columnar.ColumnTypeMixed.String()})
			mixed = append(mixed, col.Name())
		default:
			field.Type = arrow.BinaryTypes.String
		}
		fields = append(fields, field)
	}
	if len(mixed) == 0 {
		return arrow.NewSchema(fields, nil)
	}
	names, _ := json.Marshal(mixed)
	md := arrow.NewMetadata([]string{mixedKey}, []string{string(names)})
	return arrow.NewSchema(fields, &md)
}

// mixedColumns returns the names recorded in schema metadata.
func mixedColumns(schema *arrow.Schema) map[string]bool {
	out := make(map[string]bool)
	md := schema.Metadata()
	idx := md.FindKey(mixedKey)
	if idx < 0 {
		return out
	}
	var names []string
	if err := json.Unmarshal([]byte(md.Values()[idx]), &names); err != nil {
		return out
	}
	for _, name := range names {
		out[name] = true
	}
	return out
}

// recordBatches slices t into Arrow records of at most batchSize rows and
// hands each to fn. Records are released after fn returns.
func recordBatches(t *columnar.Table, schema *arrow.Schema, mem memory.Allocator, batchSize int, fn func(arrow.Record) error) error {
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	cols := t.Columns()
	for start := 0; start < t.NumRows(); start += batchSize {
		end := start + batchSize
		if end > t.NumRows() {
			end = t.NumRows()
		}
		for i, col := range cols {
			if err := appendArrow(builder.Field(i), col, start, end); err != nil {
				return err
			}
		}
		rec := builder.NewRecord()
		err := fn(rec)
		rec.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func appendArrow(b array.Builder, col columnar.Column, start, end int) error {
	b.Reserve(end - start)
	switch fb := b.(type) {
	case *array.Float64Builder:
		fc, ok := col.(*columnar.FloatColumn)
		if !ok {
			return fmt.Errorf("column %q: expected float column, got %s", col.Name(), col.Type())
		}
		for r := start; r < end; r++ {
			if v, ok := fc.Value(r); ok {
				fb.Append(v)
			} else {
				fb.AppendNull()
			}
		}
	case *array.StringBuilder:
		for r := start; r < end; r++ {
			if s, ok := cellText(col.Get(r)); ok {
				fb.Append(s)
			} else {
				fb.AppendNull()
			}
		}
	default:
		return fmt.Errorf("unsupported builder type: %T", b)
	}
	return nil
}

func writeArrow(w io.Writer, t *columnar.Table, config *WriterConfig) error {
	mem := memory.NewGoAllocator()
	schema := arrowSchema(t)

	fw, err := ipc.NewFileWriter(nopCloser{w}, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	if err := recordBatches(t, schema, mem, config.batchSize(), fw.Write); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

func readArrow(r io.Reader) (*columnar.Table, error) {
	// the IPC file footer needs random access
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Arrow data: %w", err)
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	defer fr.Close()

	cols := newColumns(fr.Schema())
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record batch %d: %w", i, err)
		}
		for c := range cols {
			if err := appendFromArrow(cols[c], rec.Column(c)); err != nil {
				return nil, err
			}
		}
	}
	return columnar.NewTable(cols...)
}

// newColumns creates empty table columns for an Arrow schema.
func newColumns(schema *arrow.Schema) []columnar.Column {
	cols := make([]columnar.Column, schema.NumFields())
	mixed := mixedColumns(schema)
	for i, f := range schema.Fields() {
		switch {
		case f.Type.ID() == arrow.FLOAT64:
			cols[i] = columnar.NewColumn(f.Name, columnar.ColumnTypeFloat)
		case mixed[f.Name] || f.Metadata.FindKey(mixedKey) >= 0:
			cols[i] = columnar.NewColumn(f.Name, columnar.ColumnTypeMixed)
		default:
			cols[i] = columnar.NewColumn(f.Name, columnar.ColumnTypeString)
		}
	}
	return cols
}

func appendFromArrow(col columnar.Column, arr arrow.Array) error {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			col.AppendNull()
			continue
		}
		var v interface{}
		switch a := arr.(type) {
		case *array.Float64:
			v = a.Value(i)
		case *array.String:
			v = a.Value(i)
			if col.Type() == columnar.ColumnTypeMixed {
				v = parseMixed(a.Value(i))
			}
		case *array.LargeString:
			v = a.Value(i)
			if col.Type() == columnar.ColumnTypeMixed {
				v = parseMixed(a.Value(i))
			}
		default:
			return fmt.Errorf("column %q: unsupported Arrow type %s", col.Name(), arr.DataType())
		}
		if err := col.Append(v); err != nil {
			return err
		}
	}
	return nil
}
