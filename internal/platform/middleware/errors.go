package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carehub/carehub/internal/platform/validation"
)

// ValidationResponse is the 422 body.
type ValidationResponse struct {
	Message string            `json:"message"`
	Fields  validation.Errors `json:"fields"`
}

// ErrorHandler renders the two failure kinds the API knows about:
// field validation (422 with the field map) and everything else, which is
// logged and reported with a generic message. HTTP errors raised
// deliberately by handlers keep their status and message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid, _ := c.Get(RequestIDKey).(string)

		if ve, ok := validation.As(err); ok {
			_ = c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
				Message: "validation failed",
				Fields:  ve,
			})
			return
		}

		status := http.StatusInternalServerError
		message := "request failed"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok && status < 500 {
				message = m
			}
			if he.Internal != nil {
				err = he.Internal
			}
		}

		if status >= 500 {
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]string{"message": message})
	}
}
