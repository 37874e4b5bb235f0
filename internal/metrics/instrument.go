package metrics

import (
	"context"
	"time"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/models"
)

// Instrumented records duration and outcome of every adapter call
type Instrumented struct {
	name  string
	inner backend.Adapter
}

var (
	_ backend.Adapter = (*Instrumented)(nil)
	_ backend.Wrapper = (*Instrumented)(nil)
)

// Instrument wraps a with metrics labelled by name
func Instrument(name string, a backend.Adapter) *Instrumented {
	return &Instrumented{name: name, inner: a}
}

// Unwrap returns the wrapped adapter
func (i *Instrumented) Unwrap() backend.Adapter {
	return i.inner
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	RecordBackendOperation(i.name, op, time.Since(start), err == nil)
}

func (i *Instrumented) List(ctx context.Context, container, path string) (l models.Listing, err error) {
	defer func(start time.Time) { i.observe("list", start, err) }(time.Now())
	return i.inner.List(ctx, container, path)
}

func (i *Instrumented) CreateFolder(ctx context.Context, container, path, name string) (err error) {
	defer func(start time.Time) { i.observe("create_folder", start, err) }(time.Now())
	return i.inner.CreateFolder(ctx, container, path, name)
}

// Upload counts files and bytes only when every transfer succeeded
func (i *Instrumented) Upload(ctx context.Context, container, path string, files []models.File) (err error) {
	defer func(start time.Time) {
		i.observe("upload", start, err)
		if err != nil {
			return
		}
		var size int64
		for _, f := range files {
			if f.Size > 0 {
				size += f.Size
			}
		}
		RecordUpload(i.name, len(files), size)
	}(time.Now())
	return i.inner.Upload(ctx, container, path, files)
}

func (i *Instrumented) ListContainers(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { i.observe("list_containers", start, err) }(time.Now())
	return i.inner.ListContainers(ctx)
}
