package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"tasklist/internal/domain/errors"
	"tasklist/internal/service"

	"github.com/go-playground/validator"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return service.IsPersonName(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return service.IsStrongPassword(fl.Field().String())
	})
	return v
}

// bindingError reports a JSON value of the wrong type as a field error on
// that field; any other decoding failure is a plain bad request.
func bindingError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if !stderrors.As(err, &typeErr) || typeErr.Field == "" {
		return errors.ErrBadRequest
	}
	return errors.NewValidationError(errors.FieldError{
		Field:   typeErr.Field,
		Message: fmt.Sprintf("%s must be %s", typeErr.Field, jsonKind(typeErr.Type)),
	})
}

func jsonKind(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "valid"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "a boolean"
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "a number"
	default:
		return "valid"
	}
}

// validateRequest runs struct validation and converts failures into a
// field-level ValidationError.
func (api *TaskAPI) validateRequest(req any) error {
	err := api.validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrValidationFailed
	}

	out := errors.NewValidationError()
	for _, verr := range verrs {
		var value any
		if verr.Field() != "password" {
			value = verr.Value()
		}
		out.Add(verr.Field(), fieldMessage(verr), value)
	}
	return out
}

func fieldMessage(verr validator.FieldError) string {
	field := verr.Field()
	switch verr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, verr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, verr.Param())
	case "personname":
		return "name may only contain letters and spaces"
	case "strongpassword":
		return "password must contain a lowercase letter, an uppercase letter and a digit"
	}
	return fmt.Sprintf("%s is invalid", field)
}
