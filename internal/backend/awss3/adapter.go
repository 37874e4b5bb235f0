// Package awss3 implements the storage adapter for Amazon S3 on top of
// aws-sdk-go-v2.
package awss3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/vpath"
)

// DefaultRegion is used when the credentials name none
const DefaultRegion = "us-east-1"

// API is the subset of *s3.Client the adapter uses
type API interface {
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// ClientFunc builds the S3 client for a set of credentials. endpoint is
// empty for AWS itself.
type ClientFunc func(ctx context.Context, creds credentials.Keyed, endpoint string) (API, error)

// Options configures an Adapter
type Options struct {
	Name string
	// Endpoint overrides the AWS endpoint, e.g. for S3-compatible gateways
	Endpoint     string
	UsePathStyle bool
	PartSize     int64
	Concurrency  int
	// Client replaces the SDK client constructor
	Client ClientFunc
}

// Adapter talks to S3 through the v2 SDK
type Adapter struct {
	name     string
	client   API
	uploader *manager.Uploader
	bucket   string
}

var _ backend.Adapter = (*Adapter)(nil)

// New builds an adapter from keyed credentials
func New(ctx context.Context, creds credentials.Keyed, opts Options) (*Adapter, error) {
	if opts.Name == "" {
		opts.Name = credentials.ServiceAWS
	}
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = opts.Endpoint
	}

	newClient := opts.Client
	if newClient == nil {
		newClient = func(ctx context.Context, creds credentials.Keyed, endpoint string) (API, error) {
			return newSDKClient(ctx, creds, endpoint, opts.UsePathStyle)
		}
	}
	client, err := newClient(ctx, creds, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	return NewWithClient(opts.Name, client, creds.Bucket, opts), nil
}

func newSDKClient(ctx context.Context, creds credentials.Keyed, endpoint string, usePathStyle bool) (*s3.Client, error) {
	region := creds.Region
	if region == "" {
		region = DefaultRegion
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			if !strings.Contains(endpoint, "://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			// Third-party gateways often reject the default trailing checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		if usePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// NewWithClient wraps an existing client. bucket may be empty.
func NewWithClient(name string, client API, bucket string, opts Options) *Adapter {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
		if opts.Concurrency > 0 {
			u.Concurrency = opts.Concurrency
		}
	})
	return &Adapter{name: name, client: client, uploader: uploader, bucket: bucket}
}

// DefaultContainer returns the bucket named in the credentials
func (a *Adapter) DefaultContainer() string {
	return a.bucket
}

func (a *Adapter) List(ctx context.Context, container, path string) (models.Listing, error) {
	c := backend.NewCollector(path)
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(container),
		Prefix:    aws.String(path),
		Delimiter: aws.String(vpath.Separator),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return models.Listing{}, a.classify("list", err)
		}
		for _, cp := range page.CommonPrefixes {
			c.AddPrefix(aws.ToString(cp.Prefix))
		}
		for _, obj := range page.Contents {
			c.AddObject(aws.ToString(obj.Key))
		}
	}
	l := c.Listing()
	logging.Debug("listed objects",
		logging.String("backend", a.name),
		logging.String("bucket", container),
		logging.String("prefix", path),
		logging.Int("entries", l.Len()),
	)
	return l, nil
}

func (a *Adapter) CreateFolder(ctx context.Context, container, path, name string) error {
	key, err := backend.FolderKey(path, name)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(key),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return a.classify("create folder", err)
	}
	return nil
}

func (a *Adapter) Upload(ctx context.Context, container, path string, files []models.File) error {
	return backend.UploadAll(ctx, path, files, func(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
		_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(container),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return a.classify("upload "+key, err)
		}
		return nil
	})
}

func (a *Adapter) ListContainers(ctx context.Context) ([]string, error) {
	out, err := a.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, a.classify("list buckets", err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

func (a *Adapter) classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		be := &fserrors.BackendError{
			Backend: a.name,
			Op:      op,
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
		if be.Message == "" {
			be.Message = apiErr.ErrorCode()
		}
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			be.StatusCode = respErr.HTTPStatusCode()
		}
		return be
	}
	return fserrors.Classify(a.name, op, err)
}
