package formats

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/json"
)

// avroColumnsKey holds the original column names and types in the OCF
// header. Avro field names cannot carry spaces or dots.
const avroColumnsKey = "runvars.columns"

type avroColumn struct {
	Name  string `json:"name"`
	Field string `json:"field"`
	Type  string `json:"type"`
}

func avroCompression(name string) string {
	switch strings.ToLower(name) {
	case "snappy":
		return goavro.CompressionSnappyLabel
	case "deflate", "gzip":
		return goavro.CompressionDeflateLabel
	default:
		return goavro.CompressionNullLabel
	}
}

// avroFieldName maps a column name onto [A-Za-z_][A-Za-z0-9_]*.
func avroFieldName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func avroColumns(t *columnar.Table) []avroColumn {
	cols := make([]avroColumn, 0, t.NumCols())
	seen := make(map[string]bool)
	for i, col := range t.Columns() {
		field := avroFieldName(col.Name())
		if seen[field] {
			field += "_" + strconv.Itoa(i)
		}
		seen[field] = true
		cols = append(cols, avroColumn{Name: col.Name(), Field: field, Type: col.Type().String()})
	}
	return cols
}

func avroSchema(cols []avroColumn) (string, error) {
	fields := make([]map[string]interface{}, len(cols))
	for i, col := range cols {
		var typ []string
		switch col.Type {
		case columnar.ColumnTypeFloat.String():
			typ = []string{"null", "double"}
		case columnar.ColumnTypeMixed.String():
			typ = []string{"null", "double", "string"}
		default:
			typ = []string{"null", "string"}
		}
		fields[i] = map[string]interface{}{"name": col.Field, "type": typ, "default": nil}
	}
	schema, err := json.Marshal(map[string]interface{}{
		"type":      "record",
		"name":      "Row",
		"namespace": "runvars",
		"fields":    fields,
	})
	return string(schema), err
}

func avroValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return goavro.Union("double", x)
	case string:
		return goavro.Union("string", x)
	default:
		return goavro.Union("string", fmt.Sprint(x))
	}
}

func writeAvro(w io.Writer, t *columnar.Table, config *WriterConfig) error {
	cols := avroColumns(t)
	schema, err := avroSchema(cols)
	if err != nil {
		return fmt.Errorf("failed to build Avro schema: %w", err)
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return fmt.Errorf("failed to create Avro codec: %w", err)
	}
	meta, err := json.Marshal(cols)
	if err != nil {
		return err
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression(config.Compression),
		MetaData:        map[string][]byte{avroColumnsKey: meta},
	})
	if err != nil {
		return fmt.Errorf("failed to create Avro writer: %w", err)
	}

	columns := t.Columns()
	batch := make([]interface{}, 0, config.batchSize())
	for r := 0; r < t.NumRows(); r++ {
		datum := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			datum[cols[i].Field] = avroValue(col.Get(r))
		}
		batch = append(batch, datum)
		if len(batch) == cap(batch) || r == t.NumRows()-1 {
			if err := ocf.Append(batch); err != nil {
				return fmt.Errorf("failed to write Avro block: %w", err)
			}
			batch = batch[:0]
		}
	}
	return nil
}

func readAvro(r io.Reader) (*columnar.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Avro data: %w", err)
	}
	ocf, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro reader: %w", err)
	}

	var specs []avroColumn
	if err := json.Unmarshal(ocf.MetaData()[avroColumnsKey], &specs); err != nil {
		return nil, fmt.Errorf("missing %s header: %w", avroColumnsKey, err)
	}
	cols := make([]columnar.Column, len(specs))
	for i, spec := range specs {
		typ := columnar.ColumnTypeString
		switch spec.Type {
		case columnar.ColumnTypeFloat.String():
			typ = columnar.ColumnTypeFloat
		case columnar.ColumnTypeMixed.String():
			typ = columnar.ColumnTypeMixed
		}
		cols[i] = columnar.NewColumn(spec.Name, typ)
	}

	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read Avro record: %w", err)
		}
		record, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected Avro datum %T", datum)
		}
		for i, spec := range specs {
			if err := cols[i].Append(avroNative(record[spec.Field])); err != nil {
				return nil, err
			}
		}
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan Avro file: %w", err)
	}
	return columnar.NewTable(cols...)
}

// avroNative unwraps a decoded union value.
func avroNative(v interface{}) interface{} {
	u, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	for _, inner := range u {
		return inner
	}
	return nil
}
