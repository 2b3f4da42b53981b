// Package formats serializes columnar tables to files.
//
// Supported formats are CSV, TSV (with BIDS "n/a" for missing values),
// JSON lines, Apache Arrow IPC, Apache Parquet and Apache Avro object
// container files. All formats except JSON lines can be read back into a
// columnar.Table.
//
// Mixed columns (long-format amplitudes holding both numbers and labels)
// are stored as strings. Arrow and Parquet tag them in field metadata so
// Read restores them; the text formats restore them by parsing each cell.
package formats

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ajitpratap0/runvars/pkg/columnar"
)

// Format represents a table serialization format
type Format string

const (
	// CSV is comma separated values
	CSV Format = "csv"
	// TSV is tab separated values, the BIDS convention for tabular files
	TSV Format = "tsv"
	// JSONL is one JSON object per row
	JSONL Format = "jsonl"
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
)

// Formats lists every supported format.
var Formats = []Format{CSV, TSV, JSONL, Arrow, Parquet, Avro}

// ParseFormat maps a name such as "parquet" to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	switch name {
	case "ndjson", "json":
		return JSONL, nil
	case "ipc", "feather":
		return Arrow, nil
	}
	return "", fmt.Errorf("unsupported table format %q", name)
}

// FromPath infers the format from a file name, ignoring a trailing
// compression suffix such as ".gz".
func FromPath(path string) (Format, error) {
	base := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".gz", ".zst", ".sz", ".s2", ".lz4"} {
		base = strings.TrimSuffix(base, suffix)
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer table format from %q", path)
	}
	return ParseFormat(ext)
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type used when uploading to object stores.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case TSV:
		return "text/tab-separated-values"
	case JSONL:
		return "application/x-ndjson"
	case Arrow:
		return "application/vnd.apache.arrow.file"
	case Parquet:
		return "application/vnd.apache.parquet"
	case Avro:
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}

// WriterConfig configures table writers
type WriterConfig struct {
	Format Format
	// BatchSize is the number of rows per Arrow record batch and Parquet
	// row group.
	BatchSize int
	// Compression is the codec applied inside Parquet and Avro files:
	// none, snappy, gzip, zstd (Parquet) or none, snappy, deflate (Avro).
	Compression string
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Format:      Parquet,
		BatchSize:   64 * 1024,
		Compression: "snappy",
	}
}

func (c *WriterConfig) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultWriterConfig().BatchSize
	}
	return c.BatchSize
}

// Write serializes t to w. It never closes w.
func Write(w io.Writer, t *columnar.Table, config *WriterConfig) error {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if t == nil {
		return fmt.Errorf("nil table")
	}

	switch config.Format {
	case CSV:
		return writeDelimited(w, t, ',', "")
	case TSV:
		return writeDelimited(w, t, '\t', "n/a")
	case JSONL:
		return writeJSONLines(w, t)
	case Arrow:
		return writeArrow(w, t, config)
	case Parquet:
		return writeParquet(w, t, config)
	case Avro:
		return writeAvro(w, t, config)
	default:
		return fmt.Errorf("unsupported table format: %s", config.Format)
	}
}

// Read parses a table written by Write.
func Read(r io.Reader, format Format) (*columnar.Table, error) {
	switch format {
	case CSV:
		return readDelimited(r, ',', "")
	case TSV:
		return readDelimited(r, '\t', "n/a")
	case Arrow:
		return readArrow(r)
	case Parquet:
		return readParquet(r)
	case Avro:
		return readAvro(r)
	default:
		return nil, fmt.Errorf("reading %s tables is not supported", format)
	}
}

// nopCloser hides the Close method of writers that libraries would
// otherwise close when they finish a file.
type nopCloser struct{ io.Writer }

// mixedKey marks string-encoded mixed columns in Arrow field metadata.
const mixedKey = "runvars.column_type"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// cellText renders a cell for a string-typed encoding; ok is false for
// missing values.
func cellText(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case float64:
		return formatFloat(x), true
	case string:
		return x, true
	default:
		return fmt.Sprint(x), true
	}
}

// parseMixed turns a stored mixed cell back into a float when it parses.
func parseMixed(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
