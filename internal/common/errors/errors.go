// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeTemplateDataEmpty  ErrorCode = "TEMPLATE_DATA_EMPTY"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeCancelled          ErrorCode = "DISPATCH_CANCELLED"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error. StatusCode follows
// HTTP semantics: 4xx for caller mistakes, 5xx for internal failures.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable 400 error for rejected requests.
func NewValidationError(message string) *StandardError {
	return &StandardError{
		Code:       ErrCodeValidationFailed,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable 400 error for malformed job variables.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid notification request",
		Details:    details,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
	}
}

// NewTemplateDataError creates a 500 error naming the template field that is empty.
func NewTemplateDataError(field, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeTemplateDataEmpty,
		Message:    fmt.Sprintf("Template Data (%s) is empty", field),
		Details:    details,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Metadata:   map[string]interface{}{"field": field},
		Timestamp:  time.Now().UTC(),
	}
}

// NewDatabaseQueryError creates a retryable error for lookup outages.
func NewDatabaseQueryError(entity string, err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeDatabaseQuery,
		Message:    fmt.Sprintf("Failed to load %s", entity),
		Details:    err.Error(),
		StatusCode: http.StatusInternalServerError,
		Retryable:  true,
		Metadata:   map[string]interface{}{"entity": entity},
		Timestamp:  time.Now().UTC(),
		cause:      err,
	}
}

// NewCancelledError wraps a context error raised before channel dispatch started.
func NewCancelledError(err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeCancelled,
		Message:    "Dispatch cancelled before channels were invoked",
		Details:    err.Error(),
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
		Timestamp:  time.Now().UTC(),
		cause:      err,
	}
}

// NewExternalServiceError wraps a transient failure of a dependency such as the broker.
func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeExternalService,
		Message:    fmt.Sprintf("%s is unavailable", service),
		Details:    err.Error(),
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Metadata:   map[string]interface{}{"service": service},
		Timestamp:  time.Now().UTC(),
		cause:      err,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:       ErrCodeInternal,
		Message:    "Unexpected error",
		Details:    err.Error(),
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Timestamp:  time.Now().UTC(),
		cause:      err,
	}
}

// ==========================
// 4. BPMN Mapping
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled in the process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:       "INVALID_INPUT",
	ErrCodeValidationFailed:   "NOTIFICATION_VALIDATION_FAILED",
	ErrCodeTemplateDataEmpty:  "NOTIFICATION_TEMPLATE_INCOMPLETE",
	ErrCodeDatabaseQuery:      "DATABASE_QUERY_FAILED",
	ErrCodeNotificationFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeCancelled:          "DISPATCH_CANCELLED",
	ErrCodeExternalService:    "EXTERNAL_SERVICE_ERROR",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQuery, ErrCodeNotificationFailed, ErrCodeExternalService:
		return 3
	case ErrCodeCancelled:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"statusCode":        stdErr.StatusCode,
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if field, ok := stdErr.Metadata["field"]; ok {
		vars["templateField"] = field
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err into a *StandardError when possible.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "EXTERNAL"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
