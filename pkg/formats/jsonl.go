package formats

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/json"
)

// orderedRow marshals one table row as an object whose keys follow the
// column order.
type orderedRow struct {
	names  []string
	values []interface{}
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	buf := json.GetBuffer()
	defer json.PutBuffer(buf)

	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := r.values[i]
		if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
			v = nil
		}
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return bytes.Clone(buf.Bytes()), nil
}

func writeJSONLines(w io.Writer, t *columnar.Table) error {
	enc, err := json.NewStreamingEncoder(w, false)
	if err != nil {
		return err
	}
	row := orderedRow{names: t.ColumnNames()}
	for r := 0; r < t.NumRows(); r++ {
		row.values = t.Values(r)
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}
	return enc.Close()
}
