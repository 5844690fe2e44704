package validate

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medibook/medibook/internal/platform/apperr"
)

// InvalidBodyMessage is returned when a request body cannot be decoded.
const InvalidBodyMessage = "Invalid request body"

// Bind decodes the request into dst, reporting decode failures as validation
// errors so they render with the standard error body.
func Bind(c echo.Context, dst interface{}) error {
	err := c.Bind(dst)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code != http.StatusBadRequest {
			return err
		}
		if he.Internal != nil {
			return apperr.Validation(InvalidBodyMessage, he.Internal.Error())
		}
	}
	return apperr.Validation(InvalidBodyMessage, nil)
}
