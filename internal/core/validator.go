package core

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cityweather/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// the service's structured error taxonomy. Request payload structs declare
// rules with `validate` tags; field names in error details come from the
// struct's `json` tags so clients see wire names, not Go names.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with JSON tag name resolution.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates a request payload struct and returns a
// *types.AppError describing the first failed field, or nil when the struct
// is valid. Coordinate fields map to their dedicated error codes so clients
// can distinguish out-of-range latitude from longitude.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		// InvalidValidationError: the caller passed a non-struct.
		v.logger.Error("validator received invalid input", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid validation target", err)
	}

	fe := verrs[0]
	field := fe.Field()
	details := map[string]any{
		"field": field,
		"rule":  fe.Tag(),
	}

	switch {
	case field == "latitude":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidLat,
			"latitude must be between -90 and 90",
			err, details,
		)
	case field == "longitude":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidLon,
			"longitude must be between -180 and 180",
			err, details,
		)
	case field == "name" && fe.Tag() == "required":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingName,
			"name is required",
			err, details,
		)
	case fe.Tag() == "required":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"missing required field: "+field,
			err, details,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidField,
			"invalid value for field: "+field,
			err, details,
		)
	}
}
