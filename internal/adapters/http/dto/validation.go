package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	// ErrValidation wraps validator failures on a bound request.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps malformed JSON bodies and unparseable query strings.
	ErrBinding = errors.New("binding failed")
)

var validatorOnce = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return v
})

// Validator returns the shared request validator. Quote text and author use
// "notblank" so whitespace-only input is rejected before reaching the store.
func Validator() *validator.Validate { return validatorOnce() }

// fieldName reports a field by the name the client used for it.
func fieldName(f reflect.StructField) string {
	for _, tag := range [...]string{"json", "form"} {
		switch name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}

	return f.Name
}

// Validate runs the struct tags of v.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v, then validates it.
func BindAndValidate(c *gin.Context, v any) error {
	return bind(c.ShouldBindJSON, v)
}

// BindQueryAndValidate decodes the query string into v, then validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	return bind(c.ShouldBindQuery, v)
}

func bind(decode func(any) error, v any) error {
	if err := decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// IsValidationError reports whether err carries validator field errors.
func IsValidationError(err error) bool {
	_, ok := fieldErrors(err)
	return ok
}

// ValidationErrors maps each rejected field to a readable message.
func ValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	fes, _ := fieldErrors(err)
	for _, fe := range fes {
		out[fe.Field()] = validationMessage(fe)
	}

	return out
}

func fieldErrors(err error) (validator.ValidationErrors, bool) {
	var fes validator.ValidationErrors
	ok := errors.As(err, &fes)

	return fes, ok
}

func validationMessage(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "required":
		return "this field is required"
	case "notblank":
		return "must not be blank"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "min", "max":
		return minMaxMessage(tag, fe.Param(), fe.Kind())
	default:
		return "failed validation: " + tag
	}
}

// minMaxMessage counts characters for strings and compares values otherwise.
func minMaxMessage(tag, param string, kind reflect.Kind) string {
	bound := "at least"
	if tag == "max" {
		bound = "at most"
	}

	msg := "must be " + bound + " " + param
	if kind == reflect.String {
		msg += " characters"
	}

	return msg
}
