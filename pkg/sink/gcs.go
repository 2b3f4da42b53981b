package sink

import (
	"context"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// gcsSink streams into an object writer. Query parameters: credentials
// (service account file), endpoint (emulators; disables authentication).
type gcsSink struct {
	loc    location
	client *storage.Client
}

func newGCS(ctx context.Context, u *url.URL) (*gcsSink, error) {
	loc, err := objectLocation(u)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if creds := loc.query.Get("credentials"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	if endpoint := loc.query.Get("endpoint"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	return &gcsSink{loc: loc, client: client}, nil
}

func (s *gcsSink) Scheme() string { return "gs" }

func (s *gcsSink) Put(ctx context.Context, body io.Reader, obj Object) (int64, error) {
	// cancelling ctx aborts the upload instead of committing a partial object
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.loc.bucket).Object(s.loc.key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.ContentEncoding = obj.ContentEncoding

	n, err := io.Copy(w, body)
	if err != nil {
		cancel()
		w.Close()
		return n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload gs://"+s.loc.bucket+"/"+s.loc.key)
	}
	if err := w.Close(); err != nil {
		return n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to finalize gs://"+s.loc.bucket+"/"+s.loc.key)
	}
	return n, nil
}

func (s *gcsSink) Close() error { return s.client.Close() }
