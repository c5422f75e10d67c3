package common

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/form-extractor/constants"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects rule failures across fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs every rule against value and keeps the failures.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
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

// ErrorMessage joins all failures with "; ".
func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// AsAppError wraps collected validation failures as an input AppError.
func (v *Validator) AsAppError() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError(CodeInput, v.ErrorMessage(), ErrValidation)
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

func Required(fieldName string, value interface{}) *ValidationError {
	switch s := value.(type) {
	case nil:
	case string:
		if strings.TrimSpace(s) != "" {
			return nil
		}
	default:
		return nil
	}
	return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
}

// MaxLen rejects strings longer than max runes.
func MaxLen(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, ok := value.(string)
		if !ok || utf8.RuneCountInString(s) <= max {
			return nil
		}
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: fmt.Sprintf("must be at most %d characters", max),
		}
	}
}

func UUID(fieldName string, value interface{}) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if _, err := uuid.Parse(s); err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a valid UUID"}
	}
	return nil
}

// ImageExtension accepts filenames whose extension is an allowed image type.
func ImageExtension(fieldName string, value interface{}) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if constants.IsAllowedExt(filepath.Ext(s)) {
		return nil
	}
	exts := make([]string, 0, len(constants.AllowedExtensions))
	for e := range constants.AllowedExtensions {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return &ValidationError{
		Field:   fieldName,
		Value:   value,
		Message: "must have an image extension (" + strings.Join(exts, ", ") + ")",
	}
}

// MaxBytes returns a rule rejecting empty byte slices and ones larger than
// limit; a non-positive limit only rejects empty input.
func MaxBytes(limit int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		b, ok := value.([]byte)
		if !ok {
			return nil
		}
		if len(b) == 0 {
			return &ValidationError{Field: fieldName, Value: "<empty>", Message: "must not be empty"}
		}
		if limit > 0 && len(b) > limit {
			return &ValidationError{
				Field:   fieldName,
				Value:   len(b),
				Message: fmt.Sprintf("must be at most %d bytes", limit),
			}
		}
		return nil
	}
}
