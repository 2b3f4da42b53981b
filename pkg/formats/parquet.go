package formats

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/runvars/pkg/columnar"
)

func parquetCompression(name string) compress.Compression {
	switch strings.ToLower(name) {
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "brotli":
		return compress.Codecs.Brotli
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

// writeParquet writes one row group per batch.
func writeParquet(w io.Writer, t *columnar.Table, config *WriterConfig) error {
	mem := memory.NewGoAllocator()
	schema := arrowSchema(t)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCompression(config.Compression)),
		parquet.WithDictionaryDefault(true),
		parquet.WithMaxRowGroupLength(int64(config.batchSize())),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(mem),
		pqarrow.WithStoreSchema(),
	)

	fw, err := pqarrow.NewFileWriter(schema, nopCloser{w}, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := recordBatches(t, schema, mem, config.batchSize(), fw.Write); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write row group: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func readParquet(r io.Reader) (*columnar.Table, error) {
	// Parquet metadata lives in the footer
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet data: %w", err)
	}
	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet reader: %w", err)
	}
	defer fr.Close()

	mem := memory.NewGoAllocator()
	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}
	tbl, err := ar.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet table: %w", err)
	}
	defer tbl.Release()

	cols := newColumns(tbl.Schema())
	for c := range cols {
		for _, chunk := range tbl.Column(c).Data().Chunks() {
			if err := appendFromArrow(cols[c], chunk); err != nil {
				return nil, err
			}
		}
	}
	return columnar.NewTable(cols...)
}
