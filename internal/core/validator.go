package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"skyline/internal/types"
)

// Validator wraps go-playground/validator for query parameter structs.
// Field names in errors come from the `query` struct tag so clients see the
// parameter they sent.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// fieldCodes maps a query parameter to the error code reported when it fails
// validation. Unlisted parameters report validation_missing_required_field
// for `required` and validation_invalid_format otherwise.
var fieldCodes = map[string]types.ErrorCode{
	"location": types.ErrCodeValidationInvalidLocation,
	"days":     types.ErrCodeValidationInvalidDays,
	"chart":    types.ErrCodeValidationInvalidChart,
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and converts the first failure into a 400
// AppError. Every failing field is listed in Details["fields"].
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", slog.String("error", err.Error()))
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeFieldError(fe)
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(
		fieldErrorCode(first),
		"invalid query parameter '"+first.Field()+"': "+describeFieldError(first),
		err,
		map[string]any{"fields": fields},
	)
}

func fieldErrorCode(fe validator.FieldError) types.ErrorCode {
	if code, ok := fieldCodes[fe.Field()]; ok {
		return code
	}
	if fe.Tag() == "required" {
		return types.ErrCodeValidationMissingField
	}
	return types.ErrCodeValidationInvalidFormat
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed the '" + fe.Tag() + "' check"
	}
}
