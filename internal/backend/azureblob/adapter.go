// Package azureblob implements the storage adapter for Azure Blob Storage,
// authorized by a SAS URL.
package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/models"
)

const name = credentials.ServiceAzure

// Adapter lists and writes blobs through a BlobClient
type Adapter struct {
	client BlobClient
}

var _ backend.Adapter = (*Adapter)(nil)

// New builds an adapter from a SAS URL
func New(creds credentials.URL) (*Adapter, error) {
	client, err := NewWrappedBlobClient(creds.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client BlobClient) *Adapter {
	return &Adapter{client: client}
}

// DefaultContainer returns the container of a container-level SAS
func (a *Adapter) DefaultContainer() string {
	return a.client.Container()
}

func (a *Adapter) List(ctx context.Context, container, path string) (models.Listing, error) {
	prefixes, blobs, err := a.client.ListHierarchy(ctx, container, path)
	if err != nil {
		return models.Listing{}, classify("list", err)
	}
	c := backend.NewCollector(path)
	for _, p := range prefixes {
		c.AddPrefix(p)
	}
	for _, b := range blobs {
		c.AddObject(b)
	}
	l := c.Listing()
	logging.Debug("listed blobs",
		logging.String("container", container),
		logging.String("prefix", path),
		logging.Int("entries", l.Len()),
	)
	return l, nil
}

func (a *Adapter) CreateFolder(ctx context.Context, container, path, folder string) error {
	key, err := backend.FolderKey(path, folder)
	if err != nil {
		return err
	}
	if err := a.client.UploadStream(ctx, container, key, strings.NewReader(""), ""); err != nil {
		return classify("create folder", err)
	}
	return nil
}

func (a *Adapter) Upload(ctx context.Context, container, path string, files []models.File) error {
	return backend.UploadAll(ctx, path, files, func(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
		if err := a.client.UploadStream(ctx, container, key, body, contentType); err != nil {
			return classify("upload "+key, err)
		}
		return nil
	})
}

func (a *Adapter) ListContainers(ctx context.Context) ([]string, error) {
	names, err := a.client.ListContainers(ctx)
	if err != nil {
		return nil, classify("list containers", err)
	}
	return names, nil
}

func classify(op string, err error) error {
	var storageErr azblob.StorageError
	if errors.As(err, &storageErr) {
		be := &fserrors.BackendError{
			Backend: name,
			Op:      op,
			Message: string(storageErr.ServiceCode()),
			Err:     err,
		}
		if resp := storageErr.Response(); resp != nil {
			be.StatusCode = resp.StatusCode
		}
		return be
	}
	return fserrors.Classify(name, op, err)
}
