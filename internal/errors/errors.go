package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with additional context, preserving its code
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{Code: code, Message: appErr.Message, Cause: appErr.Cause}
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// GetCode returns the error code if it's an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Predefined error codes. Ingestion and schema errors are fatal to a
// request; statistical and enhancement errors are local and degrade output.
const (
	CodeIngestion     = "INGESTION_ERROR"
	CodeSchema        = "SCHEMA_ERROR"
	CodeStatistical   = "STATISTICAL_ERROR"
	CodeEnhancement   = "ENHANCEMENT_ERROR"
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeArchive       = "ARCHIVE_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
)

// Common error constructors
func Ingestion(message string) *AppError {
	return New(CodeIngestion, message)
}

func Ingestionf(format string, args ...interface{}) *AppError {
	return New(CodeIngestion, fmt.Sprintf(format, args...))
}

func Schema(message string) *AppError {
	return New(CodeSchema, message)
}

func Statistical(message string) *AppError {
	return New(CodeStatistical, message)
}

func Statisticalf(format string, args ...interface{}) *AppError {
	return New(CodeStatistical, fmt.Sprintf(format, args...))
}

func Enhancement(message string) *AppError {
	return New(CodeEnhancement, message)
}

func Enhancementf(format string, args ...interface{}) *AppError {
	return New(CodeEnhancement, fmt.Sprintf(format, args...))
}

func Archivef(format string, args ...interface{}) *AppError {
	return New(CodeArchive, fmt.Sprintf(format, args...))
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
