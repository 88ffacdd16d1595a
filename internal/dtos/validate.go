// File: internal/dtos/validate.go
package dtos

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the validate tags of a DTO. On failure it returns a message per
// JSON field; any other error is returned as err.
func Validate(dto interface{}) (map[string]string, error) {
	err := validate.Struct(dto)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return fields, nil
}

// fieldPath drops the struct name from the namespace: "images[2]" rather than "CreateDiagnosisRequestDTO.images[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_with":
		return "vehicle make, model and year must be given together"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must have at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
