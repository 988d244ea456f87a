package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies failures so callers can decide between surfacing,
// retrying, or treating the outcome as a normal negative result.
type ErrorCode string

const (
	// Device errors
	ErrorPermissionDenied ErrorCode = "PERMISSION_DENIED"
	ErrorDeviceNotFound   ErrorCode = "DEVICE_NOT_FOUND"
	ErrorDeviceBusy       ErrorCode = "DEVICE_BUSY"

	// Recognition errors
	ErrorOCRFailed ErrorCode = "OCR_FAILED"

	// Translation errors
	ErrorNetworkFailed    ErrorCode = "NETWORK_FAILED"
	ErrorTranslateTimeout ErrorCode = "TRANSLATE_TIMEOUT"
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"

	// Speech errors
	ErrorSpeechEngine ErrorCode = "SPEECH_ENGINE"
)

// AppError is the structured error carried across component boundaries.
type AppError struct {
	Code      ErrorCode
	Message   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Factory functions for common errors

func NewPermissionDeniedError(resource string) *AppError {
	return &AppError{
		Code:      ErrorPermissionDenied,
		Message:   fmt.Sprintf("Access to %s was denied", resource),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"resource": resource,
		},
	}
}

func NewDeviceNotFoundError(device string) *AppError {
	return &AppError{
		Code:      ErrorDeviceNotFound,
		Message:   fmt.Sprintf("No %s device available", device),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"device": device,
		},
	}
}

func NewDeviceBusyError(device string, cause error) *AppError {
	return &AppError{
		Code:      ErrorDeviceBusy,
		Message:   fmt.Sprintf("The %s device is in use by another process", device),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"device": device,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(engine string, cause error) *AppError {
	return &AppError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("Text recognition failed (engine: %s)", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewNetworkFailedError(provider string, cause error) *AppError {
	return &AppError{
		Code:      ErrorNetworkFailed,
		Message:   fmt.Sprintf("Translation provider %s unreachable", provider),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"provider": provider,
		},
		Cause: cause,
	}
}

func NewTranslateTimeoutError(provider string, timeout time.Duration, cause error) *AppError {
	return &AppError{
		Code:      ErrorTranslateTimeout,
		Message:   fmt.Sprintf("Translation attempt timed out after %v", timeout),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"provider":         provider,
			"timeout_duration": timeout.String(),
		},
		Cause: cause,
	}
}

func NewInvalidInputError(reason string) *AppError {
	return &AppError{
		Code:      ErrorInvalidInput,
		Message:   reason,
		Timestamp: time.Now(),
	}
}

func NewSpeechEngineError(engineCode string, cause error) *AppError {
	return &AppError{
		Code:      ErrorSpeechEngine,
		Message:   fmt.Sprintf("Speech engine reported %q", engineCode),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine_code": engineCode,
		},
		Cause: cause,
	}
}

// ToMap converts the error to a map for status records.
func (e *AppError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
