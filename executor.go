package crudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sethvargo/go-retry"
)

// FallbackFunc produces a locally held result when the remote call is unavailable.
// Its error is returned to the caller unchanged.
type FallbackFunc[T any] func(ctx context.Context) (T, error)

// RequestDescriptor describes one call to execute.
type RequestDescriptor[T any] struct {
	// Body is sent as JSON. []byte and json.RawMessage are sent as is.
	Body any

	// Headers are applied after the executor's defaults.
	Headers map[string]string

	// Query is merged into the resolved URL, preserving value order per key.
	Query url.Values

	// Fallback is consulted only after every attempt failed with a retryable
	// error and fallback mode is enabled.
	Fallback FallbackFunc[T]

	// URL is absolute or relative to the configured base URL.
	URL string

	// Method defaults to GET.
	Method string

	// RetryCount is the number of retries after the first attempt. Negative means 0.
	RetryCount int
}

// Executor runs request descriptors with per-attempt timeouts, retries with capped
// exponential backoff, error normalization and fallback substitution.
// It is safe for concurrent use; identical concurrent calls are not coalesced.
type Executor struct {
	client     Transport
	breaker    *CircuitBreakerWrapper[*TransportRequest, *TransportResponse]
	logger     *slog.Logger
	classifier ErrorClassifier
	stats      *executorStats
	config     Config
}

// NewExecutor creates an executor that issues requests through transport.
//
// Example:
//
//	exec := crudclient.NewExecutor(
//	    crudclient.NewHTTPTransport(nil),
//	    crudclient.WithBaseURL("https://api.example.com"),
//	    crudclient.WithFallbackEnabled(true),
//	)
func NewExecutor(transport Transport, opts ...Option) *Executor {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Classifier == nil {
		config.Classifier = DefaultErrorClassifier()
	}
	if config.IDGenerator == nil {
		config.IDGenerator = DefaultConfig().IDGenerator
	}
	if config.TransactionHeader == "" {
		config.TransactionHeader = DefaultTransactionHeader
	}

	e := &Executor{
		logger:     config.Logger,
		classifier: config.Classifier,
		stats:      &executorStats{},
		config:     config,
	}

	var client Transport = &statusTransport{next: transport}
	if config.CircuitBreaker != nil {
		cbConfig := *config.CircuitBreaker
		if cbConfig.Logger == nil {
			cbConfig.Logger = config.Logger
		}
		e.breaker = NewCircuitBreakerWrapper(client, func(c *CircuitBreakerConfig) {
			*c = cbConfig
		})
		client = e.breaker
	}
	e.client = client

	return e
}

// Config returns a copy of the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Do executes d and returns the decoded JSON payload (maps, slices, scalars) or the
// raw text of a non-JSON response.
func (e *Executor) Do(ctx context.Context, d RequestDescriptor[any]) (any, error) {
	return Execute(ctx, e, d)
}

// Execute runs d through e and decodes a successful response into T.
//
// The call makes at most d.RetryCount+1 attempts. Client errors (4xx) end the call
// immediately. Timeouts, transport failures and server errors are retried; when the
// last attempt fails the call returns a 504 (timeout) or 500 (IsNetworkError)
// NormalizedError, unless d.Fallback is set and fallback mode is enabled, in which
// case the fallback result is returned instead.
func Execute[T any](ctx context.Context, e *Executor, d RequestDescriptor[T]) (T, error) {
	var zero T

	req, err := e.buildRequest(d.Method, d.URL, d.Body, d.Headers, d.Query)
	if err != nil {
		e.stats.recordFailure(err)
		return zero, err
	}

	retries := d.RetryCount
	if retries < 0 {
		retries = 0
	}

	logger := e.logger.With(
		"transaction_id", req.Headers.Get(e.config.TransactionHeader),
		"method", req.Method,
		"url", req.URL)

	var (
		result    T
		lastErr   error
		attempts  int
		exhausted bool
	)

	err = retry.Do(ctx, newBackoff(e.config, retries), func(ctx context.Context) error {
		attempts++
		e.stats.recordAttempt(attempts)

		value, err := attemptOnce[T](ctx, e, req)
		if err == nil {
			if attempts > 1 {
				logger.Info("request succeeded after retry",
					"attempts", attempts)
			}
			result = value
			return nil
		}
		lastErr = err

		if !e.classifier.IsRetryable(err) {
			logger.Debug("non-retryable error, giving up",
				"error", err,
				"attempts", attempts)
			return err
		}

		if attempts > retries {
			exhausted = true
		} else {
			logger.Debug("retrying request after delay",
				"attempt", attempts,
				"error", err)
		}

		return retry.RetryableError(err)
	})
	if err == nil {
		e.stats.recordSuccess()
		return result, nil
	}

	switch {
	case exhausted:
		terminal := terminalError(req, lastErr, attempts)
		if d.Fallback == nil || !e.config.FallbackEnabled {
			logger.Warn("request failed after retries",
				"attempts", attempts,
				"error", terminal)
			e.stats.recordFailure(terminal)
			return zero, terminal
		}

		logger.Warn("request failed after retries, serving fallback data",
			"attempts", attempts,
			"error", terminal)
		e.stats.recordFallback()

		value, ferr := d.Fallback(ctx)
		if ferr != nil {
			e.stats.recordFailure(ferr)
			return zero, ferr
		}
		return value, nil

	case lastErr == nil && ctx.Err() != nil:
		// The caller's context ended before the first attempt.
		err = newCanceledError(req, ctx.Err())

	case ctx.Err() != nil && !errors.Is(err, ErrCanceled):
		// The caller's context ended during a backoff delay.
		canceled := newCanceledError(req, ctx.Err())
		canceled.Attempts = attempts
		canceled.Data = map[string]any{"lastError": lastErr.Error()}
		err = canceled

	case lastErr == nil:
		err = newInternalControlError(req, attempts)
	}

	var nerr *NormalizedError
	if errors.As(err, &nerr) && nerr.Attempts == 0 {
		nerr.Attempts = attempts
	}

	e.stats.recordFailure(err)
	return zero, err
}

// attemptOnce performs a single attempt bounded by the configured timeout.
func attemptOnce[T any](ctx context.Context, e *Executor, req *TransportRequest) (T, error) {
	var zero T

	attemptCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	resp, err := e.client.Execute(attemptCtx, req)
	if err != nil {
		return zero, e.classifyTransportError(ctx, attemptCtx, req, err)
	}

	return decodeBody[T](req, resp)
}

// classifyTransportError maps a failed transport call onto a NormalizedError.
// Errors that already are NormalizedErrors (status or breaker errors) pass through.
func (e *Executor) classifyTransportError(ctx, attemptCtx context.Context, req *TransportRequest, err error) error {
	if ctx.Err() != nil {
		return newCanceledError(req, ctx.Err())
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return newTimeoutError(req, jperrors.NewTimeoutError(
			"request timed out",
			req.Method+" "+req.URL,
			e.config.Timeout,
		))
	}

	var nerr *NormalizedError
	if errors.As(err, &nerr) {
		if nerr.Method == "" {
			nerr.Method, nerr.URL = req.Method, req.URL
		}
		return nerr
	}
	return newNetworkError(req, err)
}

// buildRequest resolves the URL, encodes the body and attaches the headers,
// including one transaction id shared by every attempt of the call.
func (e *Executor) buildRequest(method, target string, body any, headers map[string]string, query url.Values) (*TransportRequest, error) {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	resolved, err := resolveWithQuery(e.config.BaseURL, target, query)
	if err != nil {
		return nil, newInvalidRequestError(method, target, err)
	}

	raw, err := encodeBody(body)
	if err != nil {
		return nil, newInvalidRequestError(method, resolved, err)
	}

	h := make(http.Header)
	for k, v := range e.config.DefaultHeaders {
		h.Set(k, v)
	}
	h.Set("Accept", "application/json")
	if raw != nil {
		h.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		h.Set(k, v)
	}
	h.Set(e.config.TransactionHeader, e.config.IDGenerator())

	return &TransportRequest{
		Method:  method,
		URL:     resolved,
		Headers: h,
		Body:    raw,
	}, nil
}

// ResolveURL returns target unchanged when it is absolute, otherwise target joined
// to base with a single slash.
func ResolveURL(base, target string) string {
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target
	}
	if base == "" {
		return target
	}
	if target == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
}

func resolveWithQuery(base, target string, query url.Values) (string, error) {
	resolved := ResolveURL(base, target)
	u, err := url.Parse(resolved)
	if err != nil {
		return "", err
	}
	if len(query) == 0 {
		return resolved, nil
	}

	q := u.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

// isStructured reports whether the content type declares a JSON payload.
func isStructured(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// decodeBody parses a successful response: JSON when the content type says so,
// otherwise raw text into string, []byte or any targets.
func decodeBody[T any](req *TransportRequest, resp *TransportResponse) (T, error) {
	var out T
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return out, nil
	}

	if !isStructured(resp.Headers.Get("Content-Type")) {
		switch p := any(&out).(type) {
		case *string:
			*p = string(resp.Body)
			return out, nil
		case *[]byte:
			*p = bytes.Clone(resp.Body)
			return out, nil
		case *any:
			*p = string(resp.Body)
			return out, nil
		}
	}

	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, newInvalidResponseError(req, resp.StatusCode, err)
	}
	return out, nil
}

// statusTransport turns responses outside the 2xx range into NormalizedErrors so
// that the circuit breaker and the retry loop see them as failures.
type statusTransport struct {
	next Transport
}

func (t *statusTransport) Execute(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	resp, err := t.next.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("transport returned no response")
	}
	if resp.Headers == nil {
		resp.Headers = make(http.Header)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	payload, data := parseErrorBody(resp)
	return nil, newResponseError(req, resp, payload, data)
}

// parseErrorBody extracts the optional message, code and userMessage fields.
// Fields that are missing or not strings are left empty for the defaults to apply.
func parseErrorBody(resp *TransportResponse) (errorPayload, any) {
	var payload errorPayload
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return payload, nil
	}

	if !isStructured(resp.Headers.Get("Content-Type")) {
		return payload, string(resp.Body)
	}

	var data any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return payload, string(resp.Body)
	}
	if fields, ok := data.(map[string]any); ok {
		payload.Message, _ = fields["message"].(string)
		payload.Code, _ = fields["code"].(string)
		payload.UserMessage, _ = fields["userMessage"].(string)
	}
	return payload, data
}

// GetStats returns a snapshot of the executor statistics.
func (e *Executor) GetStats() ExecutorStats {
	return e.stats.snapshot()
}

// Health reports the executor health, including circuit breaker state when configured.
func (e *Executor) Health() HealthStatus {
	stats := e.GetStats()
	health := HealthStatus{
		Healthy:        true,
		Status:         "ok",
		TotalAttempts:  stats.TotalAttempts,
		TotalSuccesses: stats.TotalSuccesses,
		TotalFailures:  stats.TotalFailures,
		TotalFallbacks: stats.TotalFallbacks,
	}
	if !stats.LastAttemptTime.IsZero() {
		health.LastAttempt = stats.LastAttemptTime.UTC().Format(time.RFC3339)
	}
	if e.breaker != nil {
		cb := e.breaker.GetHealth()
		health.Healthy = cb.Healthy
		health.Status = cb.Status
		health.Breaker = &cb
	}
	return health
}
