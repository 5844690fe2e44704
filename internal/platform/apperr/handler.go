package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the JSON body written for every error.
type Response struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HTTPErrorHandler returns an echo.HTTPErrorHandler that renders *Error and
// *echo.HTTPError values. Anything else is treated as internal: it is logged
// with the request id and the client only sees a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", requestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}

func render(err error) (int, Response) {
	var ae *Error
	if errors.As(err, &ae) {
		status := ae.Status()
		if status >= http.StatusInternalServerError {
			return status, Response{Message: http.StatusText(status), Code: CodeInternal}
		}
		return status, Response{Message: ae.Message, Code: ae.Code(), Details: ae.Details}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, Response{Message: http.StatusText(he.Code)}
		}
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, Response{Message: msg}
	}

	return http.StatusInternalServerError, Response{
		Message: http.StatusText(http.StatusInternalServerError),
		Code:    CodeInternal,
	}
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
