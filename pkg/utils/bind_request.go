package utils

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindRequest decodes and validates a request body. Failures are 400s.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	if err := validate.Struct(v); err != nil {
		return v, httperror.NewHTTPError(http.StatusBadRequest, ValidationErrorToString(err))
	}

	return v, nil
}

// ValidationErrorToString renders validator failures as one line per field
func ValidationErrorToString(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s' (expected '%s', got '%v')", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
