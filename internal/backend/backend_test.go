package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(entries []models.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestCollector_DocsListing(t *testing.T) {
	c := NewCollector("docs/")
	c.AddObject("docs/")
	c.AddPrefix("docs/img/")
	c.AddObject("docs/img/a.png")
	c.AddObject("docs/report.pdf")

	l := c.Listing()
	assert.Equal(t, []string{"img"}, names(l.Folders))
	assert.Equal(t, []string{"report.pdf"}, names(l.Files))
	for _, f := range l.Folders {
		assert.True(t, f.IsFolder)
	}
	for _, f := range l.Files {
		assert.False(t, f.IsFolder)
	}
}

func TestCollector_MarkerObjectIsFolder(t *testing.T) {
	c := NewCollector("")
	c.AddObject("photos/")
	c.AddObject("notes.txt")

	l := c.Listing()
	assert.Equal(t, []string{"photos"}, names(l.Folders))
	assert.Equal(t, []string{"notes.txt"}, names(l.Files))
}

func TestCollector_DedupAndFolderWins(t *testing.T) {
	c := NewCollector("")
	c.AddPrefix("a/")
	c.AddPrefix("a/")
	c.AddObject("a/")
	c.AddObject("a")
	c.AddObject("b.txt")
	c.AddObject("b.txt")

	l := c.Listing()
	assert.Equal(t, []string{"a"}, names(l.Folders))
	assert.Equal(t, []string{"b.txt"}, names(l.Files))
}

func TestCollector_IgnoresForeignKeys(t *testing.T) {
	c := NewCollector("docs/")
	c.AddObject("other/x.txt")
	c.AddPrefix("other/")
	assert.Equal(t, 0, c.Listing().Len())
}

func TestCollector_RelativeNames(t *testing.T) {
	c := NewCollector("ignored/")
	c.AddFolderName("img/")
	c.AddFolderName("")
	c.AddFolderName("/")
	c.AddFileName("a.txt")
	c.AddFileName("")
	c.AddFileName("deep/b.txt")

	l := c.Listing()
	assert.Equal(t, []string{"deep", "img"}, names(l.Folders))
	assert.Equal(t, []string{"a.txt"}, names(l.Files))
}

func TestFolderKey(t *testing.T) {
	key, err := FolderKey("docs/", "  img ")
	require.NoError(t, err)
	assert.Equal(t, "docs/img/", key)

	key, err = FolderKey("", "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs/", key)

	for _, name := range []string{"", "   ", "\t"} {
		_, err := FolderKey("docs/", name)
		assert.ErrorIs(t, err, fserrors.ErrEmptyName)
	}
}

func TestObjectKeyAndContentType(t *testing.T) {
	assert.Equal(t, "docs/My_File__1__.pdf", ObjectKey("docs/", "My File (1)!.pdf"))
	assert.Equal(t, "a.txt", ObjectKey("", "a.txt"))
	assert.Equal(t, DefaultContentType, ContentType(models.File{}))
	assert.Equal(t, "image/png", ContentType(models.File{ContentType: "image/png"}))
}

func file(name, body string) models.File {
	return models.File{
		Name: name,
		Size: int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestUploadAll_WritesEveryFile(t *testing.T) {
	var mu sync.Mutex
	got := map[string]string{}

	err := UploadAll(context.Background(), "docs/", []models.File{
		file("a.txt", "alpha"),
		file("b c.pdf", "beta"),
	}, func(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
		data, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		mu.Lock()
		got[key] = string(data)
		mu.Unlock()
		assert.Equal(t, DefaultContentType, contentType)
		assert.Equal(t, int64(len(data)), size)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"docs/a.txt": "alpha", "docs/b_c.pdf": "beta"}, got)
}

func TestUploadAll_FailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("boom")
	var completed int32

	err := UploadAll(context.Background(), "", []models.File{
		file("bad.txt", "x"),
		file("good1.txt", "y"),
		file("good2.txt", "z"),
	}, func(ctx context.Context, key string, _ io.Reader, _ int64, _ string) error {
		if key == "bad.txt" {
			return boom
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		atomic.AddInt32(&completed, 1)
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&completed))
}

func TestUploadAll_OpenError(t *testing.T) {
	f := models.File{Name: "a.txt", Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") }}
	err := UploadAll(context.Background(), "", []models.File{f, {Name: "b.txt"}},
		func(context.Context, string, io.Reader, int64, string) error { return nil })
	assert.Error(t, err)
}

type stubAdapter struct {
	Adapter
	container string
}

func (s stubAdapter) DefaultContainer() string { return s.container }

type wrapped struct {
	Adapter
	inner Adapter
}

func (w wrapped) Unwrap() Adapter { return w.inner }

func TestDefaultContainer(t *testing.T) {
	name, ok := DefaultContainer(stubAdapter{container: "photos"})
	assert.True(t, ok)
	assert.Equal(t, "photos", name)

	_, ok = DefaultContainer(stubAdapter{})
	assert.False(t, ok)

	name, ok = DefaultContainer(wrapped{inner: stubAdapter{container: "media"}})
	assert.True(t, ok)
	assert.Equal(t, "media", name)

	_, ok = DefaultContainer(nil)
	assert.False(t, ok)
}

func TestFactoryFunc(t *testing.T) {
	var gotService string
	f := FactoryFunc(func(service string, _ credentials.Credentials) (Adapter, error) {
		gotService = service
		return stubAdapter{}, nil
	})
	_, err := f.NewAdapter("aws", credentials.Keyed{})
	require.NoError(t, err)
	assert.Equal(t, "aws", gotService)
}
