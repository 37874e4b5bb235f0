package middleware

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/utils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captured records what the handler behind the middleware saw
type captured struct {
	called  bool
	creds   credentials.Keyed
	service string
	body    string
}

func newCredentialsServer(t *testing.T) (*echo.Echo, *captured) {
	t.Helper()
	got := &captured{}
	e := echo.New()
	g := e.Group("/:service", Credentials())
	g.POST("/fetch-content", func(c echo.Context) error {
		got.called = true
		got.creds, _ = c.Get(utils.ContextKeyCreds).(credentials.Keyed)
		got.service, _ = c.Get(utils.ContextKeyService).(string)
		if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
			data, _ := io.ReadAll(c.Request().Body)
			got.body = string(data)
		} else {
			got.body = c.FormValue("currentPath")
		}
		return c.NoContent(http.StatusOK)
	})
	return e, got
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCredentials_JSONBody(t *testing.T) {
	e, got := newCredentialsServer(t)
	body := `{"accessKeyId":"ak","secretAccessKey":"sk","region":"us-east-2","bucketName":"media","currentPath":"docs/"}`

	rec := postJSON(e, "/wasabi/fetch-content", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.called)
	assert.Equal(t, "wasabi", got.service)
	assert.Equal(t, credentials.Keyed{AccessKey: "ak", SecretKey: "sk", Bucket: "media", Region: "us-east-2"}, got.creds)
	assert.Equal(t, body, got.body, "body must stay readable")
}

func TestCredentials_MultipartBody(t *testing.T) {
	e, got := newCredentialsServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"accessKeyId":     "ak",
		"secretAccessKey": "sk",
		"bucketName":      "media",
		"currentPath":     "img/",
	} {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/aws/fetch-content", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ak", got.creds.AccessKey)
	assert.Equal(t, "media", got.creds.Bucket)
	assert.Equal(t, "img/", got.body)
}

func TestCredentials_Rejections(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown service", "/dropbox/fetch-content", `{"accessKeyId":"a","secretAccessKey":"b","bucketName":"m"}`, http.StatusNotFound},
		{"azure is not proxied", "/azure/fetch-content", `{"accessKeyId":"a","secretAccessKey":"b","bucketName":"m"}`, http.StatusNotFound},
		{"malformed json", "/aws/fetch-content", `{"accessKeyId":`, http.StatusBadRequest},
		{"missing secret", "/aws/fetch-content", `{"accessKeyId":"a","bucketName":"m"}`, http.StatusUnauthorized},
		{"empty body", "/aws/fetch-content", ``, http.StatusUnauthorized},
		{"missing bucket", "/aws/fetch-content", `{"accessKeyId":"a","secretAccessKey":"b"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, got := newCredentialsServer(t)
			rec := postJSON(e, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.False(t, got.called)
			assert.Contains(t, rec.Body.String(), `"message"`)
		})
	}
}

func TestCredentials_BodyLimit(t *testing.T) {
	prefix := `{"accessKeyId":"ak","secretAccessKey":"sk","bucketName":"media","currentPath":"`
	suffix := `"}`
	pad := func(total int) string {
		return prefix + strings.Repeat("a", total-len(prefix)-len(suffix)) + suffix
	}

	t.Run("at the limit", func(t *testing.T) {
		e, got := newCredentialsServer(t)
		body := pad(maxAuthBody)
		rec := postJSON(e, "/aws/fetch-content", body)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "media", got.creds.Bucket)
		assert.Len(t, got.body, maxAuthBody)
	})

	t.Run("over the limit", func(t *testing.T) {
		e, got := newCredentialsServer(t)
		rec := postJSON(e, "/aws/fetch-content", pad(maxAuthBody+1))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "Request body too large")
		assert.False(t, got.called)
	})
}
