// Package proxy implements the storage adapter that delegates listing,
// folder creation and uploads to a remote HTTP proxy, and the wire types
// that proxy speaks.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/vpath"
	"github.com/google/uuid"
)

// DefaultURL is the public proxy the mobile client used
const DefaultURL = "https://filestoreserver.onrender.com"

// RequestIDHeader is propagated on every request
const RequestIDHeader = "X-Request-ID"

// Adapter calls a remote proxy that owns the storage credentials flow
type Adapter struct {
	baseURL string
	service string
	creds   credentials.Keyed
	http    *http.Client
}

var _ backend.Adapter = (*Adapter)(nil)

// New builds an adapter for service behind the proxy at baseURL
func New(baseURL, service string, creds credentials.Keyed, httpClient *http.Client) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("proxy url %q must be http or https", baseURL)
	}
	if creds.Bucket == "" {
		return nil, fmt.Errorf("%s via proxy: bucket name is required", service)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		service: service,
		creds:   creds,
		http:    httpClient,
	}, nil
}

// DefaultContainer returns the bucket named in the credentials
func (a *Adapter) DefaultContainer() string {
	return a.creds.Bucket
}

func (a *Adapter) auth(container string) Auth {
	bucket := container
	if bucket == "" {
		bucket = a.creds.Bucket
	}
	return Auth{
		AccessKeyID:     a.creds.AccessKey,
		SecretAccessKey: a.creds.SecretKey,
		Region:          a.creds.Region,
		BucketName:      bucket,
	}
}

func (a *Adapter) endpoint(name string) string {
	return a.baseURL + "/" + a.service + "/" + name
}

func (a *Adapter) List(ctx context.Context, container, path string) (models.Listing, error) {
	var resp ListingResponse
	err := a.postJSON(ctx, "list", EndpointFetchContent, FetchContentRequest{
		Auth:        a.auth(container),
		CurrentPath: path,
	}, &resp)
	if err != nil {
		return models.Listing{}, err
	}

	// The proxy classifies entries itself; names may still carry the
	// delimiter suffix.
	c := backend.NewCollector(path)
	for _, f := range resp.Folders {
		c.AddFolderName(f.Name)
	}
	for _, f := range resp.Files {
		if f.IsFolder {
			c.AddFolderName(f.Name)
			continue
		}
		c.AddFileName(f.Name)
	}
	return c.Listing(), nil
}

func (a *Adapter) CreateFolder(ctx context.Context, container, path, name string) error {
	trimmed, err := backend.FolderName(name)
	if err != nil {
		return err
	}
	return a.postJSON(ctx, "create folder", EndpointCreateFolder, CreateFolderRequest{
		Auth:        a.auth(container),
		CurrentPath: path,
		FolderName:  trimmed,
	}, &AckResponse{})
}

// Upload sends one multipart request per file, concurrently
func (a *Adapter) Upload(ctx context.Context, container, path string, files []models.File) error {
	return backend.UploadAll(ctx, path, files, func(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
		name := strings.TrimPrefix(key, vpath.Normalize(path))
		return a.uploadOne(ctx, container, path, name, body, contentType)
	})
}

func (a *Adapter) uploadOne(ctx context.Context, container, path, name string, body io.Reader, contentType string) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, a.auth(container), path, name, body, contentType))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(EndpointUploadFile), pr)
	if err != nil {
		_ = pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, "upload "+name, &AckResponse{})
}

func writeUploadForm(mw *multipart.Writer, auth Auth, path, name string, body io.Reader, contentType string) error {
	fields := [][2]string{
		{FieldAccessKeyID, auth.AccessKeyID},
		{FieldSecretAccessKey, auth.SecretAccessKey},
		{FieldRegion, auth.Region},
		{FieldBucketName, auth.BucketName},
		{FieldCurrentPath, path},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldFiles, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

// ListContainers reports the bucket from the credentials; the proxy has no
// bucket listing endpoint.
func (a *Adapter) ListContainers(context.Context) ([]string, error) {
	return []string{a.creds.Bucket}, nil
}

func (a *Adapter) postJSON(ctx context.Context, op, endpoint string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint(endpoint), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, op, out)
}

func (a *Adapter) do(req *http.Request, op string, out interface{}) error {
	requestID := logging.GetRequestID(req.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fserrors.Classify(a.service, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := remoteMessage(resp)
		logging.WithContext(req.Context()).Warn("proxy request failed",
			logging.String("op", op),
			logging.Int("status", resp.StatusCode),
			logging.String("request_id", requestID),
		)
		return &fserrors.BackendError{
			Backend:    a.service,
			Op:         op,
			Message:    msg,
			StatusCode: resp.StatusCode,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fserrors.NewBackendError(a.service, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func remoteMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
