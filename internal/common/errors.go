package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrStorage      = errors.New("storage error")
	ErrValidation   = errors.New("validation failed")
)

// Extraction error kinds. Only ErrInvalidImage and ErrGeneration abort a
// pipeline run; the other two are absorbed and only lower confidence.
var (
	ErrInvalidImage      = errors.New("input is not a decodable image")
	ErrDetectionDegraded = errors.New("text detection degraded")
	ErrGeneration        = errors.New("generative step failed")
	ErrMalformedResponse = errors.New("model response is not valid JSON")
)

// Error codes carried by AppError.
const (
	CodeConfig     = "CONFIG_ERROR"
	CodeInput      = "INPUT_ERROR"
	CodeGeneration = "GENERATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeStorage    = "STORAGE_ERROR"
	CodeDatabase   = "DATABASE_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// kindError builds an AppError whose cause matches both kind and cause.
func kindError(code, message string, kind, cause error) *AppError {
	if cause == nil {
		cause = kind
	} else {
		cause = fmt.Errorf("%w: %w", kind, cause)
	}
	return NewAppError(code, message, cause)
}

// InputError reports bytes that could not be read as an image.
func InputError(message string, cause error) *AppError {
	return kindError(CodeInput, message, ErrInvalidImage, cause)
}

// GenerationError reports a failed call to the language model.
func GenerationError(message string, cause error) *AppError {
	return kindError(CodeGeneration, message, ErrGeneration, cause)
}

// NotFound reports a missing record; the message names it.
func NotFound(what, key string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s %s not found", what, key), ErrNotFound)
}

func DatabaseError(message string, cause error) *AppError {
	return kindError(CodeDatabase, message, ErrDatabase, cause)
}

func StorageError(message string, cause error) *AppError {
	return kindError(CodeStorage, message, ErrStorage, cause)
}

// Unexpected reports a failure the caller cannot act on.
func Unexpected(message string, cause error) *AppError {
	return kindError(CodeInternal, message, ErrInternal, cause)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}
