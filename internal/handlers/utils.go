package handlers

import (
	"errors"
	"net/http"

	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/utils"
	"github.com/labstack/echo/v4"
)

// GetCredentials retrieves and validates credentials from the context
func GetCredentials(c echo.Context) (credentials.Keyed, string, error) {
	creds, ok := c.Get(utils.ContextKeyCreds).(credentials.Keyed)
	if !ok {
		return credentials.Keyed{}, "", echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	service, ok := c.Get(utils.ContextKeyService).(string)
	if !ok || service == "" {
		return credentials.Keyed{}, "", echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return creds, service, nil
}

// HTTPError maps a storage error onto an echo error with a client-facing
// message.
func HTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, fserrors.ErrMissingCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	case fserrors.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, fserrors.ErrTimeout):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "Storage request timed out")
	}

	var be *fserrors.BackendError
	if errors.As(err, &be) {
		code := http.StatusBadGateway
		switch be.StatusCode {
		case http.StatusForbidden, http.StatusNotFound, http.StatusUnauthorized:
			code = be.StatusCode
		}
		return echo.NewHTTPError(code, be.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
