package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// fileSink writes to a temporary file next to path and renames it into
// place, so readers never see a partial table.
type fileSink struct {
	path string
}

func newFile(path string) *fileSink {
	return &fileSink{path: path}
}

func (s *fileSink) Scheme() string { return "file" }

func (s *fileSink) Put(ctx context.Context, body io.Reader, _ Object) (int64, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	n, err := io.Copy(tmp, &contextReader{ctx: ctx, r: body})
	if err != nil {
		tmp.Close()
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write "+s.path)
	}
	if err := tmp.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to close "+s.path)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to move table into place")
	}
	return n, nil
}

func (s *fileSink) Close() error { return nil }

type stdoutSink struct {
	w io.Writer
}

func newStdout() *stdoutSink { return &stdoutSink{w: os.Stdout} }

func (s *stdoutSink) Scheme() string { return "stdout" }

func (s *stdoutSink) Put(ctx context.Context, body io.Reader, _ Object) (int64, error) {
	n, err := io.Copy(s.w, &contextReader{ctx: ctx, r: body})
	if err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeFile, "failed to write to stdout")
	}
	return n, nil
}

func (s *stdoutSink) Close() error { return nil }

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
