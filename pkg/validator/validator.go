package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError is one failed rule, rendered for API clients.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects every failed rule of a payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "invalid request payload"
	}
	messages := make([]string, len(v))
	for i, failure := range v {
		messages[i] = failure.Message
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct runs the struct's validate tags. Rule failures come back as
// ValidationErrors keyed by json field name.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	failures := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		failures = append(failures, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: describe(fe.Field(), fe.Tag(), fe.Param()),
		})
	}
	return failures
}

// RegisterValidation adds a custom rule to the shared validator.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

func describe(field, tag, param string) string {
	name := strings.ToLower(strings.ReplaceAll(field, "_", " "))
	if name == "" {
		name = "field"
	}

	switch tag {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, param)
	case "notblank":
		return name + " must not be blank"
	}
	if param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", name, tag, param)
	}
	return fmt.Sprintf("%s failed validation: %s", name, tag)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		_ = validate.RegisterValidation("notblank", validators.NotBlank)
	})
	return validate
}
