package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"eventpay/internal/services"
)

var validate = validator.New()

// bindAndValidate decodes the JSON body and runs struct validation,
// folding failures into the validation error class
func bindAndValidate(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	if err := validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: field %s failed on %s", services.ErrValidation, f.Field(), f.Tag())
		}
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return nil
}

// actorFrom returns the audit identity of the authenticated caller.
// Prefers the verified email, falls back to the UID.
func actorFrom(c echo.Context) string {
	if email, ok := c.Get("userEmail").(string); ok && email != "" {
		return email
	}
	if uid, ok := c.Get("userUID").(string); ok && uid != "" {
		return uid
	}
	return "unknown"
}
