package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"eventpay/internal/services"
)

// CustomErrorHandler translates the service error taxonomy into HTTP
// responses. Unknown errors become 500s on purpose: for webhooks that is
// what tells the gateway to retry.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		}
	case errors.Is(err, services.ErrNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, services.ErrValidation):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, services.ErrSignature):
		code = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, services.ErrConflict):
		code = http.StatusConflict
		message = err.Error()
	}

	// Log the error
	c.Logger().Error(err)

	if jsonErr := c.JSON(code, map[string]interface{}{"error": message}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
