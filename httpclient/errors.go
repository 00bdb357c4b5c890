package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ClientError represents different types of REST client errors
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	NetworkError     ErrorType = "network"
	TimeoutError     ErrorType = "timeout"
	HTTPError        ErrorType = "http"
	APIError         ErrorType = "api"
	ValidationError  ErrorType = "validation"
	InterceptorError ErrorType = "interceptor"
)

// Machine codes carried by network and timeout errors
const (
	CodeConnReset      = "ECONNRESET"
	CodeNotFound       = "ENOTFOUND"
	CodeConnRefused    = "ECONNREFUSED"
	CodeTimedOut       = "ETIMEDOUT"
	CodeSocketTimedOut = "ESOCKETTIMEDOUT"
	CodeCanceled       = "ECANCELED"
	CodeUnknown        = "EUNKNOWN"
)

// RequestSummary identifies the request an error originated from
type RequestSummary struct {
	Method string
	URL    string
}

func (r RequestSummary) String() string {
	if r.Method == "" && r.URL == "" {
		return ""
	}
	return r.Method + " " + r.URL
}

func withSummary(msg string, req RequestSummary) string {
	if s := req.String(); s != "" {
		return fmt.Sprintf("%s (%s)", msg, s)
	}
	return msg
}

// networkError represents transport failures before any response was read
type networkError struct {
	message string
	code    string
	request RequestSummary
	wrapped error
}

func (e *networkError) Error() string {
	msg := withSummary(fmt.Sprintf("network error: %s [%s]", e.message, e.code), e.request)
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", msg, e.wrapped)
	}
	return msg
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) Code() string {
	return e.code
}

func (e *networkError) Request() RequestSummary {
	return e.request
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// timeoutError represents an attempt that exceeded its configured duration
type timeoutError struct {
	message string
	timeout time.Duration
	request RequestSummary
	wrapped error
}

func (e *timeoutError) Error() string {
	return withSummary(fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout), e.request)
}

func (e *timeoutError) Type() ErrorType {
	return TimeoutError
}

func (e *timeoutError) Code() string {
	return CodeTimedOut
}

func (e *timeoutError) Timeout() time.Duration {
	return e.timeout
}

func (e *timeoutError) Request() RequestSummary {
	return e.request
}

func (e *timeoutError) Unwrap() error {
	return e.wrapped
}

// httpError represents a well-formed response with status >= 400
type httpError struct {
	message    string
	statusCode int
	body       []byte
	request    RequestSummary
}

func (e *httpError) Error() string {
	return withSummary(e.message, e.request)
}

func (e *httpError) Type() ErrorType {
	return HTTPError
}

func (e *httpError) StatusCode() int {
	return e.statusCode
}

func (e *httpError) Body() []byte {
	return e.body
}

func (e *httpError) Message() string {
	return e.message
}

func (e *httpError) Request() RequestSummary {
	return e.request
}

// validationError represents request validation errors
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

// interceptorError represents interceptor-related errors
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorError
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// apiError is the terminal error returned to callers. It wraps the last
// classified error of the call.
type apiError struct {
	cause    ClientError
	request  RequestSummary
	attempts int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error: %s failed after %d attempt(s): %v", e.request, e.attempts, e.cause)
}

func (e *apiError) Type() ErrorType {
	return APIError
}

// Code returns the machine code of the wrapped error, if it has one
func (e *apiError) Code() string {
	return CodeOf(e.cause)
}

// StatusCode returns the HTTP status of the wrapped error, or 0
func (e *apiError) StatusCode() int {
	return StatusCodeOf(e.cause)
}

// Attempts returns how many attempts were made before giving up
func (e *apiError) Attempts() int {
	return e.attempts
}

func (e *apiError) Request() RequestSummary {
	return e.request
}

func (e *apiError) Unwrap() error {
	return e.cause
}

// NewNetworkError creates a new network error
func NewNetworkError(message, code string, req RequestSummary, wrapped error) ClientError {
	if code == "" {
		code = CodeUnknown
	}
	return &networkError{
		message: message,
		code:    code,
		request: req,
		wrapped: wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration, req RequestSummary, wrapped error) ClientError {
	return &timeoutError{
		message: message,
		timeout: timeout,
		request: req,
		wrapped: wrapped,
	}
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(message string, statusCode int, body []byte, req RequestSummary) ClientError {
	return &httpError{
		message:    message,
		statusCode: statusCode,
		body:       body,
		request:    req,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		wrapped: wrapped,
		stage:   stage,
	}
}

// NewAPIError wraps cause into a terminal error. An existing APIError is returned unchanged.
func NewAPIError(cause ClientError, req RequestSummary, attempts int) ClientError {
	var existing *apiError
	if errors.As(cause, &existing) {
		return existing
	}
	return &apiError{
		cause:    cause,
		request:  req,
		attempts: attempts,
	}
}

// IsErrorType checks if err, or any error it wraps, is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	for err != nil {
		if clientErr, ok := err.(ClientError); ok && clientErr.Type() == errorType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	return StatusCodeOf(err) == statusCode && statusCode != 0
}

// StatusCodeOf returns the HTTP status carried by err, or 0
func StatusCodeOf(err error) int {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return 0
}

// CodeOf returns the machine code carried by err, or ""
func CodeOf(err error) string {
	var netErr *networkError
	if errors.As(err, &netErr) {
		return netErr.Code()
	}
	var timeoutErr *timeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.Code()
	}
	return ""
}

// AttemptsOf returns the attempt count of a terminal APIError, or 0
func AttemptsOf(err error) int {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Attempts()
	}
	return 0
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
