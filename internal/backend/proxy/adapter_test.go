package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = credentials.Keyed{AccessKey: "AK", SecretKey: "SK", Bucket: "media", Region: "eu-west-1"}

func newTestAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	a, err := New(ts.URL, credentials.ServiceAWS, testCreds, ts.Client())
	require.NoError(t, err)
	return a
}

func TestNew_Validation(t *testing.T) {
	_, err := New("ftp://x", "aws", testCreds, nil)
	assert.Error(t, err)

	_, err = New("", "aws", credentials.Keyed{AccessKey: "a", SecretKey: "b"}, nil)
	assert.Error(t, err)

	a, err := New("", "aws", testCreds, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultURL+"/aws/fetch-content", a.endpoint(EndpointFetchContent))

	name, ok := backend.DefaultContainer(a)
	assert.True(t, ok)
	assert.Equal(t, "media", name)
}

func TestList_StripsSuffixAndDropsEmpty(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aws/fetch-content", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		var req FetchContentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "docs/", req.CurrentPath)
		assert.Equal(t, "AK", req.AccessKeyID)
		assert.Equal(t, "SK", req.SecretAccessKey)
		assert.Equal(t, "media", req.BucketName)
		assert.Equal(t, "eu-west-1", req.Region)

		_ = json.NewEncoder(w).Encode(ListingResponse{
			Folders: []models.Entry{{Name: "img/", IsFolder: true}, {Name: "", IsFolder: true}},
			Files:   []models.Entry{{Name: "report.pdf"}, {Name: ""}},
		})
	})

	l, err := a.List(context.Background(), "media", "docs/")
	require.NoError(t, err)
	assert.Equal(t, []models.Entry{{Name: "img", IsFolder: true}}, l.Folders)
	assert.Equal(t, []models.Entry{{Name: "report.pdf"}}, l.Files)
}

func TestList_NonSuccessCarriesRemoteMessage(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Access Denied"}`))
	})

	_, err := a.List(context.Background(), "media", "")
	var be *fserrors.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusForbidden, be.StatusCode)
	assert.Equal(t, "Access Denied", be.Message)
}

func TestList_PlainTextError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := a.List(context.Background(), "media", "")
	var be *fserrors.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "upstream down", be.Message)
}

func TestList_Timeout(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := a.List(ctx, "media", "")
	assert.ErrorIs(t, err, fserrors.ErrTimeout)
}

func TestCreateFolder(t *testing.T) {
	var calls int
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/aws/create-folder", r.URL.Path)
		var req CreateFolderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "new", req.FolderName)
		assert.Equal(t, "docs/", req.CurrentPath)
		_ = json.NewEncoder(w).Encode(AckResponse{Message: "Folder created successfully"})
	})

	require.NoError(t, a.CreateFolder(context.Background(), "media", "docs/", " new "))
	assert.ErrorIs(t, a.CreateFolder(context.Background(), "media", "docs/", "  "), fserrors.ErrEmptyName)
	assert.Equal(t, 1, calls)
}

func TestUpload_OneRequestPerFile(t *testing.T) {
	var mu sync.Mutex
	got := map[string]string{}

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aws/upload-file", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "docs/", r.FormValue(FieldCurrentPath))
		assert.Equal(t, "media", r.FormValue(FieldBucketName))

		for _, fh := range r.MultipartForm.File[FieldFiles] {
			f, err := fh.Open()
			if !assert.NoError(t, err) {
				continue
			}
			data, _ := io.ReadAll(f)
			_ = f.Close()
			mu.Lock()
			got[fh.Filename] = string(data)
			mu.Unlock()
		}
		_ = json.NewEncoder(w).Encode(AckResponse{Message: "ok"})
	})

	open := func(s string) func() (io.ReadCloser, error) {
		return func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(s)), nil }
	}
	err := a.Upload(context.Background(), "media", "docs/", []models.File{
		{Name: "My File (1)!.pdf", Size: 4, Open: open("%PDF")},
		{Name: "a.txt", Size: 1, Open: open("a")},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"My_File__1__.pdf": "%PDF", "a.txt": "a"}, got)
}

func TestListContainers(t *testing.T) {
	a, err := New("http://localhost:1", "wasabi", testCreds, nil)
	require.NoError(t, err)
	names, err := a.ListContainers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"media"}, names)
}
