package taxonomy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config points at an S3-compatible bucket store. Endpoint is set for
// non-AWS stores such as Cloudflare R2 or MinIO. Empty keys fall back to the
// default AWS credential chain.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Location is an object in a bucket.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return s3Scheme + l.Bucket + "/" + l.Key
}

// ParseLocation parses "s3://bucket/key". The boolean is false when uri is not
// an s3 URI, in which case it is treated as a local path.
func ParseLocation(uri string) (Location, bool, error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return Location{}, false, nil
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(uri, s3Scheme), "/")
	if bucket == "" || key == "" {
		return Location{}, true, fmt.Errorf("invalid s3 location %q, expected s3://bucket/key", uri)
	}
	return Location{Bucket: bucket, Key: key}, true, nil
}

// S3Store reads and publishes index artifacts in object storage.
type S3Store struct {
	client objectAPI
}

// NewS3Store builds an S3 client from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Store{client: client}, nil
}

// Fetch downloads and decodes the index stored at loc.
func (s *S3Store) Fetch(ctx context.Context, loc Location) (*Index, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, &LoadError{Path: loc.String(), Message: "get object", Cause: err}
	}
	defer out.Body.Close()

	return Decode(out.Body, loc.String())
}

// Publish uploads the index to loc, compressed when the key ends in .gz.
func (s *S3Store) Publish(ctx context.Context, index *Index, loc Location) error {
	compress := strings.HasSuffix(loc.Key, gzipSuffix)

	var buf bytes.Buffer
	if err := index.Encode(&buf, compress); err != nil {
		return err
	}

	contentType := "application/json"
	if compress {
		contentType = "application/gzip"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"taxonomy-version": index.Version().String()},
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", loc, err)
	}
	return nil
}

// Open loads an index from a local path or, for s3:// locations, from store.
func Open(ctx context.Context, location string, store *S3Store) (*Index, error) {
	loc, remote, err := ParseLocation(location)
	if err != nil {
		return nil, &LoadError{Path: location, Message: "parse location", Cause: err}
	}

	if !remote {
		return Load(location)
	}

	if store == nil {
		return nil, &LoadError{Path: location, Message: "object storage is not configured", Cause: errors.New("missing storage.s3 settings")}
	}
	return store.Fetch(ctx, loc)
}
