package http

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

var (
	reHex32    = regexp.MustCompile(`^[a-f0-9]{32}$`)
	reDigits12 = regexp.MustCompile(`^[0-9]{12}$`)

	// amounts are stored as decimal(18,2)
	maxAmount = decimal.New(1, 16)
)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// report fields by their json name when they have one
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// amounts are validated in their exact string form; zero reads as missing
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok && !d.IsZero() {
			return d.String()
		}
		return ""
	}, decimal.Decimal{})

	// party / request ids = 32-char lowercase hex
	_ = v.RegisterValidation("hex32", func(fl validator.FieldLevel) bool {
		return reHex32.MatchString(fl.Field().String())
	})
	// access codes are exactly 12 digits
	_ = v.RegisterValidation("digits12", func(fl validator.FieldLevel) bool {
		return reDigits12.MatchString(fl.Field().String())
	})
	// max 2 decimal places
	_ = v.RegisterValidation("dec2", func(fl validator.FieldLevel) bool {
		d, ok := fieldDecimal(fl)
		return ok && d.Equal(d.Round(2))
	})
	_ = v.RegisterValidation("positive", func(fl validator.FieldLevel) bool {
		d, ok := fieldDecimal(fl)
		return ok && d.IsPositive()
	})
	_ = v.RegisterValidation("maxamount", func(fl validator.FieldLevel) bool {
		d, ok := fieldDecimal(fl)
		return ok && d.LessThan(maxAmount)
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		d, err := decimal.NewFromString(f.String())
		return d, err == nil
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(f.Float()), true
	}
	return decimal.Decimal{}, false
}

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "hex32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "digits12":
			out = append(out, FieldError{Field: field, Message: "must be exactly 12 digits"})
		case "dec2":
			out = append(out, FieldError{Field: field, Message: "must have at most 2 decimal places"})
		case "positive":
			out = append(out, FieldError{Field: field, Message: "must be greater than 0"})
		case "maxamount":
			out = append(out, FieldError{Field: field, Message: "must be less than " + maxAmount.String()})
		case "email":
			out = append(out, FieldError{Field: field, Message: "must be a valid email address"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		case "max":
			out = append(out, FieldError{Field: field, Message: "must be at most " + e.Param() + " characters"})
		case "len":
			out = append(out, FieldError{Field: field, Message: "must contain exactly " + e.Param() + " items"})
		case "unique":
			out = append(out, FieldError{Field: field, Message: "must not contain duplicates"})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}

func validationFailed(err error) ErrorResponse {
	return ErrorResponse{Error: "validation failed", Details: ToFieldErrors(err)}
}
