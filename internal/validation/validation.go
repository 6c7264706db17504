// Package validation provides struct validation and custom validators for interaction
// signals and ranking options.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/datatypes"
)

// validate is safe for concurrent use once init() has registered the custom validators.
// Do NOT register validators after init() completes.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	if err := validate.RegisterValidation("interaction_kind", validateInteractionKind); err != nil {
		slog.Error("Failed to register interaction_kind validator", "error", err)
	}

	if err := validate.RegisterValidation("no_null_bytes", validateNoNullBytes); err != nil {
		slog.Error("Failed to register no_null_bytes validator", "error", err)
	}
}

// ValidateStruct validates s and returns an *apperrors.ValidationError naming the first
// offending field, with all field messages joined.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, formatFieldError(fieldError))
		}

		return apperrors.NewValidationError(
			validationErrors[0].Field(),
			"validation failed: "+strings.Join(messages, "; "),
		)
	}

	return fmt.Errorf("validation: %w", err)
}

func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fieldError.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fieldError.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fieldError.Param())
	case "interaction_kind":
		return field + " must be one of: registration, bookmark, external_click, custom"
	case "no_null_bytes":
		return field + " must not contain NULL bytes"
	default:
		return field + " is invalid"
	}
}

func validateInteractionKind(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Type() == reflect.TypeFor[datatypes.InteractionKind]() {
		return datatypes.InteractionKind(field.Uint()).Valid()
	}

	if field.Kind() == reflect.String {
		_, err := datatypes.ParseInteractionKind(field.String())

		return err == nil
	}

	return false
}

// validateNoNullBytes checks that a string field does not contain NULL bytes.
// Handles both string and *string types.
func validateNoNullBytes(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return true
	}

	return !strings.Contains(field.String(), "\x00")
}
