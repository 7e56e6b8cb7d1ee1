package s3infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-marketplace-api/internal/config"
	"github.com/go-marketplace-api/internal/domain"
	"github.com/go-marketplace-api/internal/infrastructure/awsconf"
)

// API is the subset of *s3.Client the Store uses.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Presigner signs PUT requests on behalf of clients.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store maps logical buckets onto physical S3 buckets and wraps the object
// operations the upload broker needs.
type Store struct {
	client     API
	presigner  Presigner
	prefix     string
	publicBase string
}

// NewClient creates an S3 client. An endpoint override (LocalStack) also
// switches to path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	endpoint := awsconf.Endpoint(cfg)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	}), nil
}

// NewStore creates a Store backed by client. Physical bucket names are
// prefix + logical name; public URLs are rooted at publicBase.
func NewStore(client *s3.Client, prefix, publicBase string) *Store {
	return newStore(client, s3.NewPresignClient(client), prefix, publicBase)
}

func newStore(client API, presigner Presigner, prefix, publicBase string) *Store {
	return &Store{
		client:     client,
		presigner:  presigner,
		prefix:     prefix,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (s *Store) physical(bucket domain.Bucket) string {
	return s.prefix + string(bucket)
}

// PresignPut returns a URL that accepts exactly one PUT of key with the given
// content type and length until ttl elapses.
func (s *Store) PresignPut(ctx context.Context, bucket domain.Bucket, key, contentType string, size int64, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.physical(bucket)),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign put object: %w", err)
	}
	return req.URL, nil
}

// PublicURL is the address the object is served from once uploaded.
func (s *Store) PublicURL(bucket domain.Bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBase + "/" + s.physical(bucket) + "/" + strings.Join(segments, "/")
}

// Head reports the stored size and type of key, or an error wrapping
// domain.ErrNotFound if nothing was uploaded there.
func (s *Store) Head(ctx context.Context, bucket domain.Bucket, key string) (*domain.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.physical(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 head object: %w", err)
	}
	return &domain.ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// List returns up to limit keys under prefix starting after token, plus the
// token for the next page ("" when there is none).
func (s *Store) List(ctx context.Context, bucket domain.Bucket, prefix string, limit int, token string) ([]string, string, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.physical(bucket)),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}
	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, "", fmt.Errorf("s3 list objects: %w", err)
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	next := ""
	if aws.ToBool(out.IsTruncated) {
		next = aws.ToString(out.NextContinuationToken)
	}
	return keys, next, nil
}

// DeleteKeys removes keys in a single request. Callers keep batches at or
// below 1000 keys.
func (s *Store) DeleteKeys(ctx context.Context, bucket domain.Bucket, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.physical(bucket)),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("s3 delete objects: %w", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("s3 delete objects: %d of %d keys failed, first %s: %s",
			len(out.Errors), len(keys), aws.ToString(first.Key), aws.ToString(first.Code))
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
