// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	apperrors "home-planner/internal/common/errors"
)

type ValidationResult struct {
	Valid  bool                   `json:"valid"`
	Errors []apperrors.FieldError `json:"errors,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names so the UI can highlight the right input.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs struct-tag validation and converts failures to field errors.
func ValidateStruct(v interface{}) *ValidationResult {
	err := validatorInstance().Struct(v)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationResult{
			Valid:  false,
			Errors: []apperrors.FieldError{{Field: "", Message: err.Error(), Code: "INVALID_INPUT"}},
		}
	}

	errors := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		errors = append(errors, apperrors.FieldError{
			Field:   fe.Field(),
			Message: describe(fe),
			Code:    codeFor(fe.Tag()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errors}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func codeFor(tag string) string {
	switch tag {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "gt", "lte", "eq":
		return "RANGE_VIOLATION"
	case "max":
		return "MAX_LENGTH_VIOLATION"
	case "oneof":
		return "INVALID_ENUM_VALUE"
	default:
		return "INVALID_VALUE"
	}
}

// ValidateDocument checks a raw JSON document against a JSON schema.
func ValidateDocument(schema string, document []byte) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errors := make([]apperrors.FieldError, len(result.Errors()))
	for i, desc := range result.Errors() {
		errors[i] = apperrors.FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		}
	}
	return &ValidationResult{Valid: false, Errors: errors}, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// AsError converts a failed result into a VALIDATION_ERROR, or nil when valid.
func (vr *ValidationResult) AsError() error {
	if vr.Valid {
		return nil
	}
	return apperrors.NewValidationError(vr.Errors)
}
