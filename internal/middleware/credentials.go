package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/damacus/iron-folders/internal/backend/proxy"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/utils"
	"github.com/labstack/echo/v4"
)

// maxAuthBody caps how much of a JSON body is buffered to read credentials
const maxAuthBody = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// ProxiedServices are the service identities the proxy serves
var ProxiedServices = []string{credentials.ServiceAWS, credentials.ServiceWasabi}

// Credentials reads the caller's storage credentials from the request body
// and stores them in the context for handlers to use. The body stays
// readable for the handler.
func Credentials() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			service := c.Param("service")
			if !isProxied(service) {
				return echo.NewHTTPError(http.StatusNotFound, "Unknown service: "+service)
			}

			auth, err := readAuth(c)
			if errors.Is(err, errBodyTooLarge) {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
			}

			creds := credentials.Keyed{
				AccessKey: auth.AccessKeyID,
				SecretKey: auth.SecretAccessKey,
				Bucket:    auth.BucketName,
				Region:    auth.Region,
			}
			if err := credentials.Validate(service, creds); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
			}
			if creds.Bucket == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "Bucket name is required")
			}

			c.Set(utils.ContextKeyService, service)
			c.Set(utils.ContextKeyCreds, creds)

			return next(c)
		}
	}
}

func isProxied(service string) bool {
	for _, s := range ProxiedServices {
		if s == service {
			return true
		}
	}
	return false
}

func readAuth(c echo.Context) (proxy.Auth, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return proxy.Auth{
			AccessKeyID:     c.FormValue(proxy.FieldAccessKeyID),
			SecretAccessKey: c.FormValue(proxy.FieldSecretAccessKey),
			Region:          c.FormValue(proxy.FieldRegion),
			BucketName:      c.FormValue(proxy.FieldBucketName),
		}, nil
	}

	var auth proxy.Auth
	if req.Body == nil {
		return auth, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxAuthBody+1))
	if err != nil {
		return auth, err
	}
	if len(body) > maxAuthBody {
		return auth, errBodyTooLarge
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return auth, nil
	}
	err = json.Unmarshal(body, &auth)
	return auth, err
}
