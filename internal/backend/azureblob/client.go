package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/Azure/azure-pipeline-go/pipeline"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/damacus/iron-folders/internal/vpath"
)

const (
	maxTryTimeout     = 5 * time.Minute
	uploadBufferSize  = 4 * 1024 * 1024
	uploadConcurrency = 4
)

// BlobClient is the subset of blob service operations the adapter uses.
// Paging is resolved inside the client.
type BlobClient interface {
	// Container returns the container pinned by a container-level SAS, or ""
	Container() string
	ListContainers(ctx context.Context) ([]string, error)
	ListHierarchy(ctx context.Context, container, prefix string) (prefixes, blobs []string, err error)
	UploadStream(ctx context.Context, container, name string, body io.Reader, contentType string) error
}

// WrappedBlobClient talks to Azure through azblob URLs authorized by a SAS token
type WrappedBlobClient struct {
	pipeline     pipeline.Pipeline
	serviceURL   *azblob.ServiceURL
	containerURL *azblob.ContainerURL
	container    string
}

// NewWrappedBlobClient parses a SAS URL. A URL naming a container pins the
// client to it; an account-level URL can reach every container.
func NewWrappedBlobClient(sasURL string) (*WrappedBlobClient, error) {
	u, err := url.Parse(sasURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SAS URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid SAS URL %q", sasURL)
	}

	// use anonymous credentials in case of sas url
	p := azblob.NewPipeline(azblob.NewAnonymousCredential(), azblob.PipelineOptions{
		Retry: azblob.RetryOptions{TryTimeout: maxTryTimeout},
	})
	c := &WrappedBlobClient{pipeline: p}

	// Check if we have container level SAS or account level sas
	parts := azblob.NewBlobURLParts(*u)
	if parts.ContainerName != "" {
		if parts.BlobName != "" {
			return nil, errors.New("SAS URL must point at an account or a container, not a blob")
		}
		containerURL := azblob.NewContainerURL(*u, p)
		c.containerURL = &containerURL
		c.container = parts.ContainerName
	} else {
		serviceURL := azblob.NewServiceURL(*u, p)
		c.serviceURL = &serviceURL
	}
	return c, nil
}

func (c *WrappedBlobClient) Container() string {
	return c.container
}

func (c *WrappedBlobClient) containerFor(name string) (azblob.ContainerURL, error) {
	if c.containerURL != nil {
		if name != c.container {
			return azblob.ContainerURL{}, fmt.Errorf("SAS URL is limited to container %q", c.container)
		}
		return *c.containerURL, nil
	}
	return c.serviceURL.NewContainerURL(name), nil
}

func (c *WrappedBlobClient) ListContainers(ctx context.Context) ([]string, error) {
	if c.serviceURL == nil {
		return []string{c.container}, nil
	}
	var names []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		response, err := c.serviceURL.ListContainersSegment(ctx, marker, azblob.ListContainersSegmentOptions{})
		if err != nil {
			return nil, err
		}
		for i := range response.ContainerItems {
			names = append(names, response.ContainerItems[i].Name)
		}
		marker = response.NextMarker
	}
	return names, nil
}

func (c *WrappedBlobClient) ListHierarchy(ctx context.Context, container, prefix string) ([]string, []string, error) {
	containerURL, err := c.containerFor(container)
	if err != nil {
		return nil, nil, err
	}
	var prefixes, blobs []string
	options := azblob.ListBlobsSegmentOptions{Prefix: prefix}
	for marker := (azblob.Marker{}); marker.NotDone(); {
		response, err := containerURL.ListBlobsHierarchySegment(ctx, marker, vpath.Separator, options)
		if err != nil {
			return nil, nil, err
		}
		for i := range response.Segment.BlobItems {
			blobs = append(blobs, response.Segment.BlobItems[i].Name)
		}
		for i := range response.Segment.BlobPrefixes {
			prefixes = append(prefixes, response.Segment.BlobPrefixes[i].Name)
		}
		marker = response.NextMarker
	}
	return prefixes, blobs, nil
}

func (c *WrappedBlobClient) UploadStream(ctx context.Context, container, name string, body io.Reader, contentType string) error {
	containerURL, err := c.containerFor(container)
	if err != nil {
		return err
	}
	_, err = azblob.UploadStreamToBlockBlob(ctx, body, containerURL.NewBlockBlobURL(name), azblob.UploadStreamToBlockBlobOptions{
		BufferSize:      uploadBufferSize,
		MaxBuffers:      uploadConcurrency,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: contentType},
	})
	return err
}
