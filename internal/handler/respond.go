package handler

import (
	"errors"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
)

// FieldError tags a validation failure with the offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// respondData writes the uniform success envelope.
func respondData(c echo.Context, status int, message string, data interface{}) error {
	body := echo.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

// respondList is respondData for collections, with a total count.
func respondList(c echo.Context, data interface{}, total int) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data, "total": total})
}

// respondError writes the uniform failure envelope.
func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

// respondFieldErrors writes a 400 failure carrying field-tagged errors.
func respondFieldErrors(c echo.Context, message string, errs []FieldError) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"success": false, "message": message, "errors": errs})
}

// respondValidation converts an ozzo validation result into the uniform
// field-tagged 400 response. Fields are sorted so the output is stable.
func respondValidation(c echo.Context, err error) error {
	var ve validation.Errors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for f := range ve {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		out := make([]FieldError, 0, len(fields))
		for _, f := range fields {
			out = append(out, FieldError{Field: f, Message: ve[f].Error()})
		}
		return respondFieldErrors(c, "validation failed", out)
	}
	return respondError(c, http.StatusBadRequest, err.Error())
}
