// Package backend defines the contract every storage family implements and
// the pieces they share: the delimiter-listing collector that turns flat keys
// into one directory level, key construction and the concurrent upload
// fan-out.
package backend

import (
	"context"
	"strings"

	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/upload"
	"github.com/damacus/iron-folders/internal/vpath"
)

// DefaultContentType is used when a file declares no content type
const DefaultContentType = "application/octet-stream"

// Adapter is the capability set a Browser Session needs from a storage
// backend. Credentials are bound when the adapter is built.
type Adapter interface {
	// List returns the immediate children of path inside container
	List(ctx context.Context, container, path string) (models.Listing, error)
	// CreateFolder writes a zero-length marker object at path+name+"/"
	CreateFolder(ctx context.Context, container, path, name string) error
	// Upload writes every file under path, concurrently
	Upload(ctx context.Context, container, path string, files []models.File) error
	// ListContainers returns the bucket or container names visible to the credentials
	ListContainers(ctx context.Context) ([]string, error)
}

// ImplicitContainer is implemented by adapters whose credentials pin a
// single container, e.g. an S3 bucket named in the credentials or an Azure
// container-level SAS URL.
type ImplicitContainer interface {
	DefaultContainer() string
}

// Wrapper is implemented by decorators around an Adapter
type Wrapper interface {
	Unwrap() Adapter
}

// DefaultContainer reports the pinned container of a, looking through
// decorators.
func DefaultContainer(a Adapter) (string, bool) {
	for a != nil {
		if ic, ok := a.(ImplicitContainer); ok {
			if name := ic.DefaultContainer(); name != "" {
				return name, true
			}
			return "", false
		}
		w, ok := a.(Wrapper)
		if !ok {
			break
		}
		a = w.Unwrap()
	}
	return "", false
}

// Factory builds adapters for a service identity from its credentials
type Factory interface {
	NewAdapter(service string, creds credentials.Credentials) (Adapter, error)
}

// FactoryFunc adapts a function to the Factory interface
type FactoryFunc func(service string, creds credentials.Credentials) (Adapter, error)

func (f FactoryFunc) NewAdapter(service string, creds credentials.Credentials) (Adapter, error) {
	return f(service, creds)
}

// FolderName trims name and rejects it when nothing is left
func FolderName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fserrors.ErrEmptyName
	}
	return trimmed, nil
}

// FolderKey is the marker object key for a folder named name under path
func FolderKey(path, name string) (string, error) {
	trimmed, err := FolderName(name)
	if err != nil {
		return "", err
	}
	return vpath.Normalize(path) + trimmed + vpath.Separator, nil
}

// ObjectKey is the destination key of an uploaded file
func ObjectKey(path, name string) string {
	return vpath.Normalize(path) + upload.Sanitize(name)
}

// ContentType returns the declared type of f or DefaultContentType
func ContentType(f models.File) string {
	if f.ContentType == "" {
		return DefaultContentType
	}
	return f.ContentType
}
