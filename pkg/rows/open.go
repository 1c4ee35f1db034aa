package rows

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/pgzip"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

// S3Config configures access to s3:// inputs. Credentials come from the
// default AWS chain.
type S3Config struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// Opener resolves input locations to readers.
type Opener struct {
	s3cfg  S3Config
	client *s3.Client
}

func NewOpener(cfg S3Config) *Opener {
	return &Opener{s3cfg: cfg}
}

// Open returns a reader for a local path or an s3://bucket/key location.
// Inputs ending in .gz are decompressed.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	ctx, span := tracing.StartSpan(ctx, "rows.Opener.Open")
	defer span.End()

	var (
		rc  io.ReadCloser
		err error
	)
	if strings.HasPrefix(location, "s3://") {
		rc, err = o.openS3(ctx, location)
	} else {
		rc, err = os.Open(location)
	}
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(location, ".gz") {
		zr, err := pgzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", location, err)
		}
		return &gzipReadCloser{Reader: zr, underlying: rc}, nil
	}
	return rc, nil
}

func (o *Opener) openS3(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}

	if o.client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.s3cfg.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.s3cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		o.client = s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
			if o.s3cfg.PathStyle {
				opts.UsePathStyle = true
			}
			if o.s3cfg.Endpoint != "" {
				opts.BaseEndpoint = aws.String(o.s3cfg.Endpoint)
			}
		})
	}

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", location, err)
	}
	return out.Body, nil
}

// ParseS3Location splits s3://bucket/key.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location needs a bucket and a key: %s", location)
	}
	return bucket, key, nil
}

type gzipReadCloser struct {
	*pgzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return zerr
}
