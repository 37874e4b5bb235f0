// Package miniobackend implements the storage adapter for S3-compatible
// services (Wasabi, MinIO, generic S3) on top of minio-go.
package miniobackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/minio/minio-go/v7"
)

// WasabiEndpoint returns the regional Wasabi endpoint
func WasabiEndpoint(region string) string {
	if region == "" {
		return "s3.wasabisys.com"
	}
	return fmt.Sprintf("s3.%s.wasabisys.com", region)
}

// Options configures an Adapter
type Options struct {
	// Name labels errors and log lines, e.g. "wasabi"
	Name string
	// Endpoint is used when the credentials carry none
	Endpoint string
	Secure   *bool
	Factory  ClientFactory
}

// Adapter lists and writes objects through a MinioClient
type Adapter struct {
	name   string
	client MinioClient
	bucket string
}

var _ backend.Adapter = (*Adapter)(nil)

// New builds an adapter from keyed credentials
func New(creds credentials.Keyed, opts Options) (*Adapter, error) {
	if opts.Name == "" {
		opts.Name = credentials.ServiceMinio
	}
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = opts.Endpoint
	}
	if endpoint == "" && opts.Name == credentials.ServiceWasabi {
		endpoint = WasabiEndpoint(creds.Region)
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%s: no endpoint configured", opts.Name)
	}

	factory := opts.Factory
	if factory == nil {
		factory = &RealMinioFactory{}
	}
	client, err := factory.NewClient(ClientOptions{
		Endpoint:  endpoint,
		AccessKey: creds.AccessKey,
		SecretKey: creds.SecretKey,
		Region:    creds.Region,
		Secure:    opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", opts.Name, err)
	}
	return NewWithClient(opts.Name, client, creds.Bucket), nil
}

// NewWithClient wraps an existing client. bucket may be empty.
func NewWithClient(name string, client MinioClient, bucket string) *Adapter {
	return &Adapter{name: name, client: client, bucket: bucket}
}

// DefaultContainer returns the bucket named in the credentials
func (a *Adapter) DefaultContainer() string {
	return a.bucket
}

func (a *Adapter) List(ctx context.Context, container, path string) (models.Listing, error) {
	// Non-recursive to get folders
	objects, err := a.client.ListObjects(ctx, container, minio.ListObjectsOptions{
		Prefix:    path,
		Recursive: false,
	})
	if err != nil {
		return models.Listing{}, a.classify("list", err)
	}

	c := backend.NewCollector(path)
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			c.AddPrefix(obj.Key)
			continue
		}
		c.AddObject(obj.Key)
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
	// Create empty object with trailing slash to represent folder
	_, err = a.client.PutObject(ctx, container, key, strings.NewReader(""), 0, minio.PutObjectOptions{})
	if err != nil {
		return a.classify("create folder", err)
	}
	return nil
}

func (a *Adapter) Upload(ctx context.Context, container, path string, files []models.File) error {
	return backend.UploadAll(ctx, path, files, func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
		_, err := a.client.PutObject(ctx, container, key, body, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return a.classify("upload "+key, err)
		}
		return nil
	})
}

func (a *Adapter) ListContainers(ctx context.Context) ([]string, error) {
	buckets, err := a.client.ListBuckets(ctx)
	if err != nil {
		return nil, a.classify("list buckets", err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

func (a *Adapter) classify(op string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.StatusCode != 0 && resp.StatusCode != http.StatusRequestTimeout {
		msg := resp.Message
		if msg == "" {
			msg = resp.Code
		}
		return &fserrors.BackendError{
			Backend:    a.name,
			Op:         op,
			Message:    msg,
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return fserrors.Classify(a.name, op, err)
}
