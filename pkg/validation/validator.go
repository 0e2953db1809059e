package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/platinummonkey/campusgate/pkg/auth"
)

// FieldError is one failed constraint
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError aggregates every failed constraint of a body
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "Validation error: " + strings.Join(parts, "; ")
}

// NewFieldError returns a ValidationError for a single field
func NewFieldError(field, rule, message string) *ValidationError {
	out := &ValidationError{}
	out.add(field, rule, message)
	return out
}

func (e *ValidationError) add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// Schema checks a raw JSON body. On success it returns the normalized value,
// ready to be re-encoded for the handler.
type Schema interface {
	Name() string
	Validate(body []byte) (interface{}, error)
}

// Validator wraps go-playground/validator with the campusgate rules registered
type Validator struct {
	validate *validator.Validate
}

var (
	defaultValidator     *Validator
	defaultValidatorOnce sync.Once
)

// Default returns the shared validator
func Default() *Validator {
	defaultValidatorOnce.Do(func() {
		defaultValidator = NewValidator()
	})
	return defaultValidator
}

// NewValidator creates a validator with the custom tags registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// registration with constant tags cannot fail
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := auth.ParseRole(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, ok := ParseDate(fl.Field().String())
		return ok
	})
	v.RegisterStructValidation(eventDates, EventRequest{})

	return &Validator{validate: v}
}

// Struct validates one value and returns a *ValidationError, or nil. Field
// paths are prefixed with prefix when it is not empty.
func (v *Validator) Struct(value interface{}, prefix string) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range fieldErrs {
		out.add(fieldPath(prefix, fe.Namespace()), fe.Tag(), messageFor(fe))
	}
	return out
}

// fieldPath drops the struct type from the namespace and prepends prefix
func fieldPath(prefix, namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	if prefix == "" {
		return namespace
	}
	return prefix + "." + namespace
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "Invalid email"
	case "url":
		return "Invalid URL"
	case "role":
		return "must be one of: " + joinRoles()
	case "isodate":
		return "Invalid date format. Must be a valid ISO date string."
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "aftereq":
		return "must not be before " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func joinRoles() string {
	names := make([]string, 0, len(auth.AllRoles))
	for _, r := range auth.AllRoles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

// normalizer is implemented by request types that clean their fields before
// validation
type normalizer interface {
	normalize()
}

type objectSchema[T any] struct {
	name string
}

// Object returns a schema for a single JSON object decoded into T
func Object[T any](name string) Schema {
	return &objectSchema[T]{name: name}
}

func (s *objectSchema[T]) Name() string { return s.name }

func (s *objectSchema[T]) Validate(body []byte) (interface{}, error) {
	value := new(T)
	if err := decode(body, value); err != nil {
		return nil, err
	}
	if n, ok := interface{}(value).(normalizer); ok {
		n.normalize()
	}
	if err := Default().Struct(value, ""); err != nil {
		return nil, err
	}
	return value, nil
}

type listSchema[T any] struct {
	name string
}

// List returns a schema for a non-empty JSON array of T
func List[T any](name string) Schema {
	return &listSchema[T]{name: name}
}

func (s *listSchema[T]) Name() string { return s.name }

func (s *listSchema[T]) Validate(body []byte) (interface{}, error) {
	var items []T
	if err := decode(body, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		out := &ValidationError{}
		out.add("body", "min", "must contain at least one item")
		return nil, out
	}

	v := Default()
	agg := &ValidationError{}
	for i := range items {
		if n, ok := interface{}(&items[i]).(normalizer); ok {
			n.normalize()
		}
		err := v.Struct(&items[i], fmt.Sprint(i))
		if err == nil {
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		agg.Fields = append(agg.Fields, ve.Fields...)
	}
	if len(agg.Fields) > 0 {
		return nil, agg
	}
	return items, nil
}

// decode reads exactly one JSON value from body
func decode(body []byte, dest interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		out := &ValidationError{}
		out.add("body", "required", "is required")
		return out
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(dest); err != nil {
		return decodeError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		out := &ValidationError{}
		out.add("body", "json", "must contain a single JSON value")
		return out
	}
	return nil
}

func decodeError(err error) error {
	out := &ValidationError{}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		out.add(field, "type", "must be "+jsonKind(typeErr.Type))
		return out
	}
	out.add("body", "json", "invalid JSON")
	return out
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

// ParseDate accepts RFC3339 timestamps and plain dates
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
