package sink

import (
	"context"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajitpratap0/runvars/pkg/errors"
)

// s3Sink uploads with the multipart manager. Query parameters:
// region, endpoint (S3-compatible stores, implies path-style addressing).
type s3Sink struct {
	loc      location
	uploader *manager.Uploader
}

func newS3(ctx context.Context, u *url.URL) (*s3Sink, error) {
	loc, err := objectLocation(u)
	if err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := loc.query.Get("region"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := loc.query.Get("endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Sink{
		loc: loc,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 16 * 1024 * 1024
		}),
	}, nil
}

func (s *s3Sink) Scheme() string { return "s3" }

func (s *s3Sink) Put(ctx context.Context, body io.Reader, obj Object) (int64, error) {
	cr := &countingReader{r: body}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.loc.bucket),
		Key:    aws.String(s.loc.key),
		Body:   cr,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if obj.ContentEncoding != "" {
		input.ContentEncoding = aws.String(obj.ContentEncoding)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return cr.n, errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload s3://"+s.loc.bucket+"/"+s.loc.key)
	}
	return cr.n, nil
}

func (s *s3Sink) Close() error { return nil }
