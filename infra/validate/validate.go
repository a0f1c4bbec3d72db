// Package validate wraps go-playground/validator with the UPI-specific tags.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	vpaPattern   = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9]+$`)
	phonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)

	instance *validator.Validate
	once     sync.Once
)

// Get returns the shared validator with the "vpa" and "inphone" tags registered
func Get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())

		// Tag names come from the json tag so field lists read like the wire format
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = instance.RegisterValidation("vpa", func(fl validator.FieldLevel) bool {
			return IsValidVPA(fl.Field().String())
		})
		_ = instance.RegisterValidation("inphone", func(fl validator.FieldLevel) bool {
			return IsValidPhone(fl.Field().String())
		})
	})
	return instance
}

// IsValidVPA reports whether s looks like a UPI virtual payment address (handle@bank)
func IsValidVPA(s string) bool {
	return vpaPattern.MatchString(s)
}

// IsValidPhone reports whether s is a ten digit Indian mobile number
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// FieldError is a single failed rule
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Struct validates v and returns every failed rule. A nil slice means valid.
func Struct(v any) ([]FieldError, error) {
	err := Get().Struct(v)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: strings.TrimPrefix(fe.Namespace(), namespaceRoot(fe.Namespace())),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out, nil
}

func namespaceRoot(ns string) string {
	if idx := strings.Index(ns, "."); idx != -1 {
		return ns[:idx+1]
	}
	return ""
}
