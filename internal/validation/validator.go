// Package validation wraps go-playground/validator with the rules used by the
// request DTOs and translates failures into itemized field errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"go-freelance/internal/model"
	"go-freelance/pkg/apierror"
)

const (
	minPasswordLength = 8
	// bcrypt refuses to hash longer input.
	MaxPasswordBytes = 72
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		})
		_ = v.RegisterValidation("password_bytes", func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= MaxPasswordBytes
		})

		v.RegisterStructValidation(registerRoleFields, model.RegisterRequest{})

		validate = v
	})

	return validate
}

// IsStrongPassword requires at least 8 characters with upper, lower and digit.
func IsStrongPassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	return upper && lower && digit
}

func registerRoleFields(sl validator.StructLevel) {
	req := sl.Current().Interface().(model.RegisterRequest)

	switch model.Role(req.Role) {
	case model.RoleFreelancer:
		if req.HourlyRate == nil {
			sl.ReportError(req.HourlyRate, "hourlyRate", "HourlyRate", "required_for_freelancer", "")
		}
		if strings.TrimSpace(req.Bio) == "" {
			sl.ReportError(req.Bio, "bio", "Bio", "required_for_freelancer", "")
		}
	case model.RoleClient:
		if strings.TrimSpace(req.CompanyName) == "" {
			sl.ReportError(req.CompanyName, "companyName", "CompanyName", "required_for_client", "")
		}
	}
}

// Struct validates a request DTO. It returns nil or a validation APIError.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	fields := make([]apierror.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, apierror.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}

	return apierror.Validation(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "password":
		return "must be at least 8 characters and contain upper-case, lower-case and a digit"
	case "password_bytes":
		return fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "required_for_freelancer":
		return "is required for freelancers"
	case "required_for_client":
		return "is required for clients"
	default:
		return "is invalid"
	}
}
