package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

var _ driven.BinarySource = (*S3Source)(nil)

const s3Scheme = "s3://"

// defaultAWSRegion is used for AWS S3 when neither config nor environment sets one.
const defaultAWSRegion = "us-east-1"

// S3Config configures the S3 source. Empty fields fall back to the AWS SDK
// default credential chain and region resolution.
type S3Config struct {
	Region          string
	Endpoint        string // S3-compatible endpoint such as MinIO.
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// objectGetter is the subset of the S3 client the source needs.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads binaries from s3://bucket/key locations.
type S3Source struct {
	client objectGetter
}

// NewS3Source loads the AWS configuration and creates an S3Source.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if (cfg.AccessKeyID != "") != (cfg.SecretAccessKey != "") {
		return nil, errors.New("s3 config: access key ID and secret access key must be provided together")
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Source{client: client}, nil
}

func newS3SourceWithClient(client objectGetter) *S3Source {
	return &S3Source{client: client}
}

func loadAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	if awsCfg.Region == "" && cfg.Endpoint == "" {
		awsCfg.Region = defaultAWSRegion
	}
	return awsCfg, nil
}

// Supports reports whether location is an s3:// URI.
func (s *S3Source) Supports(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// Open starts reading the object named by location.
func (s *S3Source) Open(ctx context.Context, location string) (*driven.Binary, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, &SourceError{Source: "s3", Location: location, Err: err}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &SourceError{Source: "s3", Location: location, Err: classifyS3Error(err)}
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}

	return &driven.Binary{
		Filename: path.Base(key),
		Size:     size,
		Body:     out.Body,
	}, nil
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("expected s3://bucket/key, got %q", location)
	}
	return u.Host, key, nil
}

// classifyS3Error maps S3 failures onto the package sentinels, keeping the
// original error in the chain.
func classifyS3Error(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket

	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound), errors.As(err, &noSuchBucket):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}
	return err
}
