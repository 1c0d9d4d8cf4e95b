package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apperrors "github.com/target/jobrelay/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire names (jobId, systemMessage) rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validator: %v", err))
	}
	return v
}

// validateStruct runs tag validation and converts the first failure into a
// field-scoped validation AppError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation(err.Error())
	}
	fe := verrs[0]
	return apperrors.ValidationField(fe.Field(), fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "Missing required field: " + fe.Field()
	case "oneof":
		return fmt.Sprintf("Invalid %s. Must be %s.", fe.Field(), quoteOptions(fe.Param()))
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Invalid value for field: %s", fe.Field())
	}
}

// quoteOptions renders "a b c" as `"a", "b" or "c"`.
func quoteOptions(param string) string {
	opts := strings.Fields(param)
	for i, o := range opts {
		opts[i] = `"` + o + `"`
	}
	switch len(opts) {
	case 0:
		return ""
	case 1:
		return opts[0]
	default:
		return strings.Join(opts[:len(opts)-1], ", ") + " or " + opts[len(opts)-1]
	}
}
