package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/damacus/iron-folders/internal/models"
	"golang.org/x/sync/errgroup"
)

// PutFunc writes one object. size is -1 when unknown.
type PutFunc func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

// UploadAll writes every file under path using put, one goroutine per file.
// A failing transfer does not cancel its siblings; the first error is
// returned once all transfers have finished. Objects already written are
// left in place.
func UploadAll(ctx context.Context, path string, files []models.File, put PutFunc) error {
	var g errgroup.Group
	for _, f := range files {
		f := f
		g.Go(func() error {
			return putFile(ctx, path, f, put)
		})
	}
	return g.Wait()
}

func putFile(ctx context.Context, path string, f models.File, put PutFunc) error {
	if f.Open == nil {
		return fmt.Errorf("upload %s: no content", f.Name)
	}
	body, err := f.Open()
	if err != nil {
		return fmt.Errorf("upload %s: %w", f.Name, err)
	}
	defer func() { _ = body.Close() }()

	return put(ctx, ObjectKey(path, f.Name), body, f.Size, ContentType(f))
}
