// Package validate wraps go-playground/validator with JSON field names and
// maps failures onto apperr validation errors.
package validate

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/medibook/medibook/internal/platform/apperr"
)

// MissingFieldsMessage is the message returned when required input is absent.
const MissingFieldsMessage = "Missing Fields"

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return v
}

// Struct validates s. Missing required fields take precedence and are
// reported together as "Missing Fields" with the JSON names in details;
// other rule failures are reported as "Invalid Fields" keyed by field.
func Struct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal("validate input", err)
	}

	var missing []string
	invalid := make(map[string]string)
	for _, fe := range verrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = append(missing, fe.Field())
			continue
		}
		invalid[fe.Field()] = describe(fe)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return apperr.Validation(MissingFieldsMessage, missing)
	}
	return apperr.Validation("Invalid Fields", invalid)
}

// Email reports whether s is a well-formed email address.
func Email(s string) bool {
	return instance().Var(s, "required,email") == nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "isodate":
		return "must be a date (YYYY-MM-DD or RFC 3339)"
	case "clock":
		return "must be a time of day (HH:MM or H:MM AM/PM)"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// Validator adapts Struct to echo.Validator.
type Validator struct{}

func (Validator) Validate(i interface{}) error { return Struct(i) }
