package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "row E1 missing strike",
			},
			wantMessage: "[VALIDATION] row E1 missing strike",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeNetwork,
				Message: "getIVol request failed",
				Cause:   fmt.Errorf("connection refused"),
			},
			wantMessage: "[NETWORK] getIVol request failed: connection refused",
		},
		{
			name: "export error",
			appError: &AppError{
				Type:    ErrTypeExport,
				Message: "cannot write results",
				Cause:   errors.New("permission denied"),
			},
			wantMessage: "[EXPORT] cannot write results: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewStorageError("query failed", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("stage align: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)

	assert.Nil(t, NewAppValidationError("bad").Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	appError := &AppError{Type: ErrTypeNetwork, Message: "price call failed"}

	result := appError.WithContext("exposure", "E1").WithContext("status", 500)

	assert.Same(t, appError, result)
	assert.Equal(t, "E1", result.Context["exposure"])
	assert.Equal(t, 500, result.Context["status"])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"network", NewNetworkError("request failed", cause), ErrTypeNetwork, "request failed"},
		{"parsing", NewParsingError("bad float", cause), ErrTypeParsing, "bad float"},
		{"storage", NewStorageError("query failed", cause), ErrTypeStorage, "query failed"},
		{"validation", NewAppValidationError("missing strike"), ErrTypeValidation, "missing strike"},
		{"not found", NewNotFoundError("mapping file"), ErrTypeNotFound, "mapping file not found"},
		{"config", NewConfigError("no DSN", nil), ErrTypeConfig, "no DSN"},
		{"export", NewExportError("write failed", cause), ErrTypeExport, "write failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("run: %w", NewExportError("write failed", nil))

	assert.True(t, IsType(err, ErrTypeExport))
	assert.False(t, IsType(err, ErrTypeStorage))
	assert.False(t, IsType(errors.New("plain"), ErrTypeExport))
	assert.False(t, IsType(nil, ErrTypeExport))
}
