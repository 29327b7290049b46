package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Empty resellerId")

	assert.Equal(t, ErrCodeValidationFailed, err.Code)
	assert.Equal(t, "Empty resellerId", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "VALIDATION_FAILED")
}

func TestNewTemplateDataError(t *testing.T) {
	err := NewTemplateDataError("DIFFERENCES", "status change without differences")

	assert.Equal(t, ErrCodeTemplateDataEmpty, err.Code)
	assert.Equal(t, "Template Data (DIFFERENCES) is empty", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Equal(t, "DIFFERENCES", err.Metadata["field"])
	assert.False(t, err.Retryable)
}

func TestNewDatabaseQueryError_Unwraps(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDatabaseQueryError("seller", cause)

	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "seller", err.Metadata["entity"])
}

func TestAsStandardError(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", NewValidationError("Seller not found"))

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "Seller not found", stdErr.Message)
	assert.True(t, HasCode(wrapped, ErrCodeValidationFailed))
	assert.False(t, HasCode(wrapped, ErrCodeTemplateDataEmpty))

	_, ok = AsStandardError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "validation is terminal",
			err:         NewValidationError("Empty notificationType"),
			wantCode:    "NOTIFICATION_VALIDATION_FAILED",
			wantRetries: 0,
		},
		{
			name:        "template data is terminal",
			err:         NewTemplateDataError("EXPERT_NAME", ""),
			wantCode:    "NOTIFICATION_TEMPLATE_INCOMPLETE",
			wantRetries: 0,
		},
		{
			name:        "database failure retries",
			err:         NewDatabaseQueryError("client", stderrors.New("timeout")),
			wantCode:    "DATABASE_QUERY_FAILED",
			wantRetries: 3,
		},
		{
			name:        "cancellation retries once",
			err:         NewCancelledError(context.Canceled),
			wantCode:    "DISPATCH_CANCELLED",
			wantRetries: 1,
		},
		{
			name:        "unmapped code passes through",
			err:         NewInternalError(stderrors.New("boom")),
			wantCode:    "INTERNAL_ERROR",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)
			assert.Equal(t, tt.err.Message, bpmnErr.Message)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.err.StatusCode, vars["statusCode"])
		})
	}
}

func TestConvertToBPMNError_TemplateField(t *testing.T) {
	vars := ConvertToBPMNError(NewTemplateDataError("CLIENT_NAME", "")).ToErrorVariables()
	assert.Equal(t, "CLIENT_NAME", vars["templateField"])
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateDataEmpty))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseQuery))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeDatabaseQuery))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidationFailed))
}
