// Package sink delivers exported tables to their destination.
//
// A destination is named by a URL:
//
//	out/variables.tsv                      local file ("-" is stdout)
//	s3://bucket/prefix/variables.parquet   Amazon S3 or an S3-compatible store
//	gs://bucket/prefix/variables.arrow     Google Cloud Storage
//	postgres://user@host/db?table=events   a PostgreSQL table, filled with COPY
//
// Object stores and files receive the serialized byte stream. PostgreSQL
// receives rows directly; such sinks implement TableSink.
package sink

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/ajitpratap0/runvars/pkg/columnar"
	"github.com/ajitpratap0/runvars/pkg/errors"
)

// Object carries the metadata of a serialized table.
type Object struct {
	ContentType     string
	ContentEncoding string
}

// Sink receives a serialized table.
type Sink interface {
	// Scheme names the destination kind: file, s3, gs or postgres
	Scheme() string
	// Put stores body and returns the number of bytes consumed
	Put(ctx context.Context, body io.Reader, obj Object) (int64, error)
	Close() error
}

// TableSink receives rows instead of a byte stream.
type TableSink interface {
	Sink
	// PutTable stores t and returns the number of rows written
	PutTable(ctx context.Context, t *columnar.Table) (int64, error)
}

// Open returns the sink for a destination URL.
func Open(ctx context.Context, destination string) (Sink, error) {
	if destination == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "empty destination")
	}
	if destination == "-" {
		return newStdout(), nil
	}

	scheme, rest, ok := strings.Cut(destination, "://")
	if !ok {
		return newFile(destination), nil
	}
	switch scheme {
	case "file":
		return newFile(rest), nil
	case "s3":
		u, err := parse(destination)
		if err != nil {
			return nil, err
		}
		return newS3(ctx, u)
	case "gs":
		u, err := parse(destination)
		if err != nil {
			return nil, err
		}
		return newGCS(ctx, u)
	case "postgres", "postgresql":
		u, err := parse(destination)
		if err != nil {
			return nil, err
		}
		return newPostgres(ctx, u)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported destination scheme %q", scheme)
	}
}

// location is a parsed object store URL.
type location struct {
	bucket string
	key    string
	query  url.Values
}

func parse(destination string) (*url.URL, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid destination URL")
	}
	return u, nil
}

func objectLocation(u *url.URL) (location, error) {
	loc := location{
		bucket: u.Host,
		key:    strings.TrimPrefix(u.Path, "/"),
		query:  u.Query(),
	}
	if loc.bucket == "" || loc.key == "" || strings.HasSuffix(loc.key, "/") {
		return loc, errors.Newf(errors.ErrorTypeConfig, "destination %s must name a bucket and an object key", u.Redacted())
	}
	return loc, nil
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
