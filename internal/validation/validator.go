// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the singleton validator instance.
// The validator caches struct reflection info, so reuse is important
// for performance. Thread-safe via sync.Once.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed (e.g. "required", "max").
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, if any (e.g. "255" for max=255).
func (e *ValidationError) Param() string { return e.param }

// Value returns the value that failed validation.
func (e *ValidationError) Value() interface{} { return e.value }

// Error returns the human-readable message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError aggregates the field failures of one event.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (e *RequestValidationError) Errors() []ValidationError { return e.errors }

// Error returns all field messages joined with "; ".
func (e *RequestValidationError) Error() string {
	if len(e.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.errors))
	for i, fieldErr := range e.errors {
		msgs[i] = fieldErr.message
	}
	return strings.Join(msgs, "; ")
}

// Issues returns the per-field messages as a slice, the shape the
// intake response embeds under "errors".
func (e *RequestValidationError) Issues() []string {
	issues := make([]string, len(e.errors))
	for i, fieldErr := range e.errors {
		issues[i] = fieldErr.message
	}
	return issues
}

// ValidateStruct validates a struct using its `validate` tags.
// Returns nil when the struct is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		requestErr := &RequestValidationError{
			errors: make([]ValidationError, 0, len(validationErrs)),
		}
		for _, fieldErr := range validationErrs {
			requestErr.errors = append(requestErr.errors, ValidationError{
				field:   fieldErr.Field(),
				tag:     fieldErr.Tag(),
				param:   fieldErr.Param(),
				value:   fieldErr.Value(),
				message: translateError(fieldErr),
			})
		}
		return requestErr
	}

	// Non-field error (e.g. passing a non-struct).
	return &RequestValidationError{
		errors: []ValidationError{{message: err.Error()}},
	}
}

// errorMessageTemplates maps validation tags to message templates.
// %s is replaced with the field name.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"url":      "%s must be a valid URL",
	"uri":      "%s must be a valid URI",
}

// errorMessageWithParam maps tags whose message includes the parameter.
// First %s is the field name, second is the parameter.
var errorMessageWithParam = map[string]string{
	"min":   "%s must be at least %s characters",
	"max":   "%s must be at most %s characters",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"oneof": "%s must be one of: %s",
}

// translateError converts a validator field error to a human-readable
// message.
func translateError(fieldErr validator.FieldError) string {
	field := fieldErr.Field()
	tag := fieldErr.Tag()

	if tmpl, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(tmpl, field, fieldErr.Param())
	}

	return fmt.Sprintf("%s failed validation on tag '%s'", field, tag)
}
