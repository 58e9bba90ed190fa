package common

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidationError represents a single failed request check.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationRule checks one field value.
type ValidationRule func(fieldName string, value any) *ValidationError

// Validator collects failures across several fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// Field runs rules against value and records every failure.
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Err returns an INVALID_INPUT AppError joining all failures, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return NewAppError(CodeInvalidInput, strings.Join(messages, "; "), ErrInvalidInput)
}

// Required rejects empty strings, nil and empty slices.
func Required(fieldName string, value any) *ValidationError {
	switch v := value.(type) {
	case nil:
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case []byte:
		if len(v) == 0 {
			return &ValidationError{Field: fieldName, Value: "<empty>", Message: "is required"}
		}
	case []string:
		if len(v) == 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case []int:
		if len(v) == 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

var templateNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)

// TemplateName accepts bare template identifiers only.
func TemplateName(fieldName string, value any) *ValidationError {
	s, ok := value.(string)
	if !ok || s == "" {
		return nil
	}
	if !templateNameRe.MatchString(s) {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a bare template name"}
	}
	return nil
}

// FileExtension rejects file names that allowed does not accept.
func FileExtension(allowed func(name string) bool) ValidationRule {
	return func(fieldName string, value any) *ValidationError {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		if !allowed(s) {
			ext := strings.ToLower(filepath.Ext(s))
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("unsupported file type %q", ext)}
		}
		return nil
	}
}

// NonNegative rejects negative integers.
func NonNegative(fieldName string, value any) *ValidationError {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must not be negative"}
		}
	case []int:
		for _, n := range v {
			if n < 0 {
				return &ValidationError{Field: fieldName, Value: n, Message: "must not be negative"}
			}
		}
	}
	return nil
}
