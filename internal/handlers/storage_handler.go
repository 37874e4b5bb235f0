package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/backend/proxy"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/metrics"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/upload"
	"github.com/damacus/iron-folders/internal/vpath"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// StorageHandler serves the proxy contract: listing, folder creation and
// uploads on behalf of callers that post their own credentials.
type StorageHandler struct {
	factory   backend.Factory
	validator *upload.Validator
	adapters  *cache.Cache
	timeout   time.Duration
}

// NewStorageHandler creates the handler. Adapters are cached per credential
// set for adapterTTL; every storage call is bounded by timeout.
func NewStorageHandler(factory backend.Factory, validator *upload.Validator, adapterTTL, timeout time.Duration) *StorageHandler {
	if validator == nil {
		validator = upload.NewValidator(nil)
	}
	if adapterTTL <= 0 {
		adapterTTL = cache.NoExpiration
	}
	return &StorageHandler{
		factory:   factory,
		validator: validator,
		adapters:  cache.New(adapterTTL, 2*adapterTTL),
		timeout:   timeout,
	}
}

// FetchContent lists one level of the caller's bucket
func (h *StorageHandler) FetchContent(c echo.Context) error {
	var req proxy.FetchContentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	a, service, bucket, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	listing, err := a.List(ctx, bucket, vpath.Normalize(req.CurrentPath))
	if err != nil {
		return HTTPError(fserrors.Classify(service, "list", err))
	}

	return c.JSON(http.StatusOK, proxy.ListingResponse{
		Folders: nonNil(listing.Folders),
		Files:   nonNil(listing.Files),
	})
}

// CreateFolder writes a folder marker under currentPath
func (h *StorageHandler) CreateFolder(c echo.Context) error {
	var req proxy.CreateFolderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	path := vpath.Normalize(req.CurrentPath)
	key, err := backend.FolderKey(path, req.FolderName)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Folder name is required")
	}

	a, service, bucket, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	if err := a.CreateFolder(ctx, bucket, path, strings.TrimSpace(req.FolderName)); err != nil {
		return HTTPError(fserrors.Classify(service, "create folder", err))
	}

	return c.JSON(http.StatusOK, proxy.AckResponse{
		Message: "Folder created successfully",
		Keys:    []string{key},
	})
}

// UploadFile stores every allowed file under currentPath. Disallowed files
// are reported but never stop their siblings.
func (h *StorageHandler) UploadFile(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}
	headers := form.File[proxy.FieldFiles]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}

	files := make([]models.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, models.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	accepted, rejected := h.validator.Filter(files)
	notes := make([]string, 0, len(rejected))
	for _, r := range rejected {
		metrics.RecordRejectedUpload(rejectionReason(r))
		notes = append(notes, rejectionMessage(r))
	}
	if len(accepted) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, strings.Join(notes, "; "))
	}

	a, service, bucket, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.context(c)
	defer cancel()

	path := vpath.Normalize(c.FormValue(proxy.FieldCurrentPath))
	if err := a.Upload(ctx, bucket, path, accepted); err != nil {
		return HTTPError(fserrors.Classify(service, "upload", err))
	}

	keys := make([]string, 0, len(accepted))
	for _, f := range accepted {
		keys = append(keys, backend.ObjectKey(path, f.Name))
	}
	logging.WithContext(c.Request().Context()).Info("files uploaded",
		zap.String("service", service),
		zap.String("bucket", bucket),
		zap.Int("count", len(keys)),
		zap.Int("rejected", len(rejected)),
	)

	message := upload.SuccessMessage(len(accepted))
	if len(notes) > 0 {
		message += " " + strings.Join(notes, "; ")
	}
	return c.JSON(http.StatusOK, proxy.AckResponse{Message: message, Keys: keys})
}

// adapter returns the cached adapter for the request's credentials
func (h *StorageHandler) adapter(c echo.Context) (backend.Adapter, string, string, error) {
	creds, service, err := GetCredentials(c)
	if err != nil {
		return nil, "", "", err
	}

	key := adapterKey(service, creds.AccessKey, creds.SecretKey, creds.Region, creds.Bucket)
	if v, ok := h.adapters.Get(key); ok {
		metrics.RecordAdapterCache(true)
		return v.(backend.Adapter), service, creds.Bucket, nil
	}
	metrics.RecordAdapterCache(false)

	a, err := h.factory.NewAdapter(service, creds)
	if err != nil {
		logging.WithContext(c.Request().Context()).Warn("adapter creation failed",
			zap.String("service", service), zap.Error(err))
		return nil, "", "", echo.NewHTTPError(http.StatusInternalServerError, "Failed to connect to storage")
	}
	h.adapters.SetDefault(key, a)
	return a, service, creds.Bucket, nil
}

func (h *StorageHandler) context(c echo.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

// adapterKey never holds the secret in clear
func adapterKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

func rejectionReason(r upload.Rejection) string {
	if errors.Is(r.Err, fserrors.ErrEmptyName) {
		return "empty_name"
	}
	return "extension"
}

func rejectionMessage(r upload.Rejection) string {
	if errors.Is(r.Err, fserrors.ErrEmptyName) {
		return "File name is required"
	}
	return "File type not allowed: " + upload.Extension(r.Name)
}

func nonNil(entries []models.Entry) []models.Entry {
	if entries == nil {
		return []models.Entry{}
	}
	return entries
}
