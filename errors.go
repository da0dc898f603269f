package crudclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jperrors "github.com/JohnPlummer/jp-go-errors"
)

// Defaults applied when a non-success payload omits a field.
const (
	DefaultErrorCode        = "API_ERROR"
	DefaultUserMessage      = "An unexpected error occurred."
	defaultMessagePrefix    = "API Error: "
	timeoutUserMessage      = "The server took too long to respond. Please try again."
	networkUserMessage      = "Unable to reach the server. Please check your connection and try again."
	notFoundUserMessage     = "The requested item could not be found."
	canceledUserMessage     = "The request was canceled."
	invalidRespUserMessage  = "The server returned an unexpected response."
	internalControlUserMesg = "An unexpected error occurred."
)

// Error codes set by the executor itself.
const (
	CodeTimeout          = "REQUEST_TIMEOUT"
	CodeNetwork          = "NETWORK_ERROR"
	CodeFallbackNotFound = "FALLBACK_NOT_FOUND"
	CodeCanceled         = "REQUEST_CANCELED"
	CodeInvalidResponse  = "INVALID_RESPONSE"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeCircuitOpen      = "CIRCUIT_OPEN"
	CodeInternalControl  = "INTERNAL_CONTROL_ERROR"
)

// StatusClientClosedRequest is reported when the caller's context ends the call.
const StatusClientClosedRequest = 499

// Sentinels describing the kind of a NormalizedError. Match them with errors.Is.
var (
	ErrClient           = errors.New("client error")
	ErrServer           = errors.New("server error")
	ErrTimeout          = errors.New("request timeout")
	ErrNetwork          = errors.New("network error")
	ErrFallbackNotFound = errors.New("not found in fallback data")
	ErrCanceled         = errors.New("request canceled")
	ErrInvalidResponse  = errors.New("invalid response")
	ErrInternalControl  = errors.New("internal control error")
)

// NormalizedError is the single error shape returned by the executor and the CRUD
// services. Only UserMessage is safe to show to end users; the other fields are
// diagnostic.
type NormalizedError struct {
	// Message is a diagnostic description of the failure.
	Message string `json:"message"`

	// Code is a machine readable error code, from the payload or the executor.
	Code string `json:"code"`

	// UserMessage is a display-safe message.
	UserMessage string `json:"userMessage"`

	// Data carries context: the decoded error payload, raw text, or lookup details.
	Data any `json:"data,omitempty"`

	// Method and URL identify the request that failed.
	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`

	// Cause is the underlying error, if any.
	Cause error `json:"-"`

	// Status is the HTTP status, or the synthetic status chosen by the executor.
	Status int `json:"status"`

	// Attempts is the number of attempts made before the error was returned.
	Attempts int `json:"attempts,omitempty"`

	// IsNetworkError is true for transport failures, false for timeouts and
	// responses that arrived.
	IsNetworkError bool `json:"isNetworkError"`

	kind error
}

// Error implements the error interface.
func (e *NormalizedError) Error() string {
	var b strings.Builder
	b.WriteString("crudclient: ")
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.URL)
	}
	fmt.Fprintf(&b, "%s (status %d, code %s)", e.Message, e.Status, e.Code)
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *NormalizedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the kind sentinel of this error.
func (e *NormalizedError) Is(target error) bool {
	return e.kind != nil && e.kind == target
}

// StatusCode returns the status. This implements the HTTPError interface.
func (e *NormalizedError) StatusCode() int {
	return e.Status
}

// Kind returns the kind sentinel (ErrClient, ErrServer, ErrTimeout, ...).
func (e *NormalizedError) Kind() error {
	return e.kind
}

// IsClientError reports whether the error carries a 4xx status.
func (e *NormalizedError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// errorPayload is the optional structured body of a non-success response.
type errorPayload struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	UserMessage string `json:"userMessage"`
}

// newResponseError builds the error for a response outside the 2xx range.
// data is the decoded payload (or raw text) and payload its recognised fields.
func newResponseError(req *TransportRequest, resp *TransportResponse, payload errorPayload, data any) *NormalizedError {
	statusText := resp.Status
	if statusText == "" {
		statusText = http.StatusText(resp.StatusCode)
	} else if code := fmt.Sprintf("%d ", resp.StatusCode); strings.HasPrefix(statusText, code) {
		statusText = strings.TrimPrefix(statusText, code)
	}

	err := &NormalizedError{
		Message:     payload.Message,
		Code:        payload.Code,
		UserMessage: payload.UserMessage,
		Data:        data,
		Method:      req.Method,
		URL:         req.URL,
		Status:      resp.StatusCode,
		kind:        ErrServer,
	}
	if err.Message == "" {
		err.Message = defaultMessagePrefix + statusText
	}
	if err.Code == "" {
		err.Code = DefaultErrorCode
	}
	if err.UserMessage == "" {
		err.UserMessage = DefaultUserMessage
	}
	if err.IsClientError() {
		err.kind = ErrClient
	}
	return err
}

func newTimeoutError(req *TransportRequest, cause error) *NormalizedError {
	return &NormalizedError{
		Message:     "request timed out",
		Code:        CodeTimeout,
		UserMessage: timeoutUserMessage,
		Method:      req.Method,
		URL:         req.URL,
		Cause:       cause,
		Status:      http.StatusGatewayTimeout,
		kind:        ErrTimeout,
	}
}

func newNetworkError(req *TransportRequest, cause error) *NormalizedError {
	msg := "network request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &NormalizedError{
		Message:        msg,
		Code:           CodeNetwork,
		UserMessage:    networkUserMessage,
		Method:         req.Method,
		URL:            req.URL,
		Cause:          cause,
		Status:         http.StatusInternalServerError,
		IsNetworkError: true,
		kind:           ErrNetwork,
	}
}

func newCanceledError(req *TransportRequest, cause error) *NormalizedError {
	return &NormalizedError{
		Message:     "request canceled by caller",
		Code:        CodeCanceled,
		UserMessage: canceledUserMessage,
		Method:      req.Method,
		URL:         req.URL,
		Cause:       cause,
		Status:      StatusClientClosedRequest,
		kind:        ErrCanceled,
	}
}

func newInvalidResponseError(req *TransportRequest, status int, cause error) *NormalizedError {
	return &NormalizedError{
		Message:     "decode response body: " + cause.Error(),
		Code:        CodeInvalidResponse,
		UserMessage: invalidRespUserMessage,
		Method:      req.Method,
		URL:         req.URL,
		Cause:       cause,
		Status:      status,
		kind:        ErrInvalidResponse,
	}
}

func newInvalidRequestError(method, target string, cause error) *NormalizedError {
	return &NormalizedError{
		Message:     "build request: " + cause.Error(),
		Code:        CodeInvalidRequest,
		UserMessage: DefaultUserMessage,
		Method:      method,
		URL:         target,
		Cause:       cause,
		Status:      http.StatusBadRequest,
		kind:        ErrClient,
	}
}

func newInternalControlError(req *TransportRequest, attempts int) *NormalizedError {
	return &NormalizedError{
		Message:     "retry loop exited without a result",
		Code:        CodeInternalControl,
		UserMessage: internalControlUserMesg,
		Method:      req.Method,
		URL:         req.URL,
		Status:      http.StatusInternalServerError,
		Attempts:    attempts,
		kind:        ErrInternalControl,
	}
}

// NewFallbackNotFoundError reports that the fallback dataset holds no item with id.
// It matches ErrFallbackNotFound.
func NewFallbackNotFoundError(id string) *NormalizedError {
	return &NormalizedError{
		Message:     fmt.Sprintf("item %q not found in fallback data", id),
		Code:        CodeFallbackNotFound,
		UserMessage: notFoundUserMessage,
		Data:        map[string]any{"id": id},
		Status:      http.StatusNotFound,
		kind:        ErrFallbackNotFound,
	}
}

// terminalError converts the error of the final attempt into the error returned to
// the caller: 504 for timeouts, 500 with IsNetworkError for everything else.
func terminalError(req *TransportRequest, last error, attempts int) *NormalizedError {
	var out *NormalizedError
	if IsTimeout(last) {
		out = newTimeoutError(req, last)
	} else {
		out = newNetworkError(req, last)
	}

	var prev *NormalizedError
	if errors.As(last, &prev) {
		out.Message = prev.Message
		out.Data = prev.Data
		if prev.kind == ErrServer {
			out.Code = prev.Code
		}
	}
	out.Attempts = attempts
	return out
}

// IsTimeout reports whether err is an attempt timeout, either a NormalizedError
// of the timeout kind or a jp-go-errors timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || jperrors.IsTimeout(err)
}

// ErrorClassifier determines whether an error should trigger a retry.
// Implement this interface to customize retry behavior for your specific error types.
type ErrorClassifier interface {
	// IsRetryable returns true if the error represents a transient failure
	// that should be retried.
	IsRetryable(err error) bool
}

// CircuitBreakerErrorClassifier determines whether an error should trip the circuit breaker.
type CircuitBreakerErrorClassifier interface {
	// ShouldTripCircuit returns true if the error represents a failure serious enough
	// to open the circuit breaker and stop requests temporarily.
	ShouldTripCircuit(err error) bool
}

// HTTPError represents an error with an associated HTTP status code.
// NormalizedError implements it.
type HTTPError interface {
	error
	StatusCode() int
}

// HTTPStatusClassifier classifies errors by status code.
//
// Client errors (4xx) are never retried: they describe a defect in the request
// and repeating it cannot succeed. Server errors, timeouts and transport failures
// are retried.
type HTTPStatusClassifier struct {
	// CircuitTripStatuses lists HTTP status codes that should trip the circuit breaker.
	// Defaults to 500, 502, 503, 504 if nil.
	CircuitTripStatuses []int
}

// NewHTTPStatusClassifier creates a new HTTPStatusClassifier with default status code mappings.
func NewHTTPStatusClassifier() *HTTPStatusClassifier {
	return &HTTPStatusClassifier{
		CircuitTripStatuses: []int{500, 502, 503, 504},
	}
}

// IsRetryable implements ErrorClassifier.
func (c *HTTPStatusClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// The caller gave up; another attempt would fail the same way.
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrFallbackNotFound) {
		return false
	}

	if IsTimeout(err) || errors.Is(err, ErrNetwork) {
		return true
	}

	statusCode := extractStatusCode(err)
	switch {
	case statusCode == 0:
		// Unknown errors are most likely transport failures.
		return true
	case statusCode >= 400 && statusCode < 500:
		return false
	case statusCode >= 500:
		return true
	default:
		return false
	}
}

// ShouldTripCircuit implements CircuitBreakerErrorClassifier.
// Timeouts and client errors do not trip the circuit; transport failures and the
// configured server statuses do.
func (c *HTTPStatusClassifier) ShouldTripCircuit(err error) bool {
	if err == nil {
		return false
	}

	if IsTimeout(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}

	statusCode := extractStatusCode(err)
	if statusCode == 0 {
		return true
	}

	return containsStatus(c.getCircuitTripStatuses(), statusCode)
}

func (c *HTTPStatusClassifier) getCircuitTripStatuses() []int {
	if c.CircuitTripStatuses != nil {
		return c.CircuitTripStatuses
	}
	return []int{500, 502, 503, 504}
}

// extractStatusCode returns the status carried by err, or 0.
func extractStatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return 0
}

func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// DefaultErrorClassifier returns the classifier the executor uses unless configured otherwise.
func DefaultErrorClassifier() ErrorClassifier {
	return NewHTTPStatusClassifier()
}

// DefaultCircuitBreakerErrorClassifier returns the classifier used by the circuit breaker.
func DefaultCircuitBreakerErrorClassifier() CircuitBreakerErrorClassifier {
	return NewHTTPStatusClassifier()
}
