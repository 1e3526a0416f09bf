package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// maxBodyBytes bounds request bodies; every request body here is a few ids.
const maxBodyBytes = 1 << 16

// Global validator instance for reuse. Field errors use JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v. Malformed JSON, unknown
// fields and trailing data are reported as domain.ErrValidation.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "is required", domain.ErrValidation)
		}
		return domain.NewValidationError("body", fmt.Sprintf("is not valid JSON: %v", err), domain.ErrValidation)
	}
	if dec.More() {
		return domain.NewValidationError("body", "must contain a single JSON object", domain.ErrValidation)
	}
	return nil
}

// ValidateRequest validates v with its struct tags. Failures are reported
// as a domain.ValidationError naming the first offending field.
func ValidateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(fe.Field(), tagMessage(fe.Tag(), fe.Param()), domain.ErrValidation)
	}
	return domain.NewValidationError("body", "is invalid", domain.ErrValidation)
}

// DecodeAndValidate is DecodeJSON followed by ValidateRequest.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v any) error {
	if err := DecodeJSON(w, r, v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

func tagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + param
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	default:
		return "failed " + tag + " validation"
	}
}
