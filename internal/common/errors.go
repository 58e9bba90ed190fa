package common

import (
	"errors"
	"fmt"
	"net/http"

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

// Error codes surfaced to callers.
const (
	CodeConfig           = "CONFIG_ERROR"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeIndexNotFound    = "INDEX_NOT_FOUND"
	CodeOCRFailed        = "OCR_FAILED"
	CodeOCRTimeout       = "OCR_TIMEOUT"
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeTemplateInvalid  = "TEMPLATE_INVALID"
	CodeLLMUnavailable   = "LLM_UNAVAILABLE"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation failed")

	ErrUnsupportedBoxFormat = errors.New("unsupported bounding box format")
	ErrIndexNotFound        = errors.New("index not found")
	ErrOCRFailed            = errors.New("ocr provider reported failure")
	ErrOCRTimeout           = errors.New("timed out waiting for ocr provider")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplateInvalid      = errors.New("template is not valid json")
	ErrLLMUnavailable       = errors.New("llm unavailable")
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

// InvalidInput builds an INVALID_INPUT AppError.
func InvalidInput(format string, args ...any) *AppError {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

// CodeOf returns the AppError code carried by err, or "" if there is none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// ToStatus converts an application error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch CodeOf(err) {
	case CodeInvalidInput:
		return status.Error(codes.InvalidArgument, MessageOf(err))
	case CodeIndexNotFound:
		return status.Error(codes.NotFound, MessageOf(err))
	case CodeTemplateNotFound:
		return status.Error(codes.NotFound, MessageOf(err))
	case CodeTemplateInvalid, CodeOCRFailed:
		return status.Error(codes.FailedPrecondition, MessageOf(err))
	case CodeOCRTimeout:
		return status.Error(codes.DeadlineExceeded, MessageOf(err))
	case CodeLLMUnavailable:
		return status.Error(codes.Unavailable, MessageOf(err))
	}
	return status.Error(codes.Internal, err.Error())
}

// HTTPStatus maps an application error onto an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeIndexNotFound:
		return http.StatusUnprocessableEntity
	case CodeTemplateNotFound:
		return http.StatusNotFound
	case CodeOCRFailed:
		return http.StatusBadGateway
	case CodeOCRTimeout:
		return http.StatusGatewayTimeout
	case CodeLLMUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
