package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"strategist/logger"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures the S3 client and request rate.
type S3Options struct {
	Region            string
	Endpoint          string
	PathStyle         bool
	AccessKeyID       string
	SecretAccessKey   string
	RequestsPerSecond float64
	Burst             int
}

// S3 serves dataset files from a bucket prefix. Every request waits on a
// shared limiter.
type S3 struct {
	client  S3API
	bucket  string
	prefix  string
	limiter *rate.Limiter
	log     *logger.Log
}

// NewS3 builds an S3 store for root (s3://bucket/prefix) using the default
// AWS credential chain unless static keys are given.
func NewS3(ctx context.Context, root string, opts S3Options) (*S3, error) {
	bucket, prefix, err := ParseS3URL(root)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	logger.GetLogger().WithComponent("s3_store").WithFields(logger.Fields{
		"bucket": bucket,
		"prefix": prefix,
		"region": awsCfg.Region,
	}).Debug("s3 store initialized")

	return NewS3WithClient(client, bucket, prefix, opts.RequestsPerSecond, opts.Burst), nil
}

// NewS3WithClient wires an existing client. rps <= 0 disables throttling.
func NewS3WithClient(client S3API, bucket, prefix string, rps float64, burst int) *S3 {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &S3{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.GetLogger(),
	}
}

func (s *S3) Root() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3) key(p string) string {
	p = strings.TrimLeft(p, "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *S3) rel(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func (s *S3) Stat(ctx context.Context, p string) (Info, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Info{}, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return Info{}, s.wrap(p, err)
	}
	return Info{
		Path:        p,
		Size:        aws.ToInt64(out.ContentLength),
		ModTime:     aws.ToTime(out.LastModified),
		Fingerprint: strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

func (s *S3) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, s.wrap(p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key(p), err)
	}
	s.log.WithComponent("s3_store").WithFields(logger.Fields{
		"key":   s.key(p),
		"bytes": len(data),
	}).Debug("fetched object")
	return data, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := s.key(prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if listPrefix != "" {
		in.Prefix = aws.String(listPrefix)
	}

	var out []string
	pager := s3.NewListObjectsV2Paginator(s.client, in)
	for pager.HasMorePages() {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, listPrefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, s.rel(key))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *S3) wrap(p string, err error) error {
	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: s3://%s/%s", ErrNotExist, s.bucket, s.key(p))
	}
	return fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key(p), err)
}
