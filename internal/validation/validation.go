// Package validation provides request validation helpers for the decision API.
package validation

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// ExactLength checks an optional field has exactly n characters when set.
func ExactLength(field, value string, n int) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if len(value) != n {
			return &ValidationError{Field: field, Message: fmt.Sprintf("must be %d characters", n)}
		}
		return nil
	}
}

// NonNegative checks an integer field is >= 0.
func NonNegative(field string, value int) func() *ValidationError {
	return func() *ValidationError {
		if value < 0 {
			return &ValidationError{Field: field, Message: "must be >= 0"}
		}
		return nil
	}
}

// OneOf checks an integer field holds one of the allowed values.
func OneOf(field string, value int, allowed ...int) func() *ValidationError {
	return func() *ValidationError {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", allowed)}
	}
}

// InRange checks a float field lies within [lo, hi].
func InRange(field string, value, lo, hi float64) func() *ValidationError {
	return func() *ValidationError {
		// NaN fails both comparisons, so test the accepted range directly.
		if !(value >= lo && value <= hi) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("must be in [%v,%v]", lo, hi)}
		}
		return nil
	}
}

// AtMost checks a float field does not exceed max.
func AtMost(field string, value, max float64) func() *ValidationError {
	return func() *ValidationError {
		if !(value <= max) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %v", max)}
		}
		return nil
	}
}
