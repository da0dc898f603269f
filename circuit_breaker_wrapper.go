package crudclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"
)

const circuitOpenUserMessage = "The service is temporarily unavailable. Please try again shortly."

// CircuitBreakerWrapper wraps a ResilientClient with circuit breaker functionality.
// While the circuit is open, calls are rejected without reaching the wrapped client
// with a retryable 503 NormalizedError, so the executor keeps its usual retry and
// fallback behaviour.
type CircuitBreakerWrapper[Req, Resp any] struct {
	client     ResilientClient[Req, Resp]
	cb         *gobreaker.CircuitBreaker[Resp]
	logger     *slog.Logger
	classifier CircuitBreakerErrorClassifier
	name       string
}

// NewCircuitBreakerWrapper creates a new circuit breaker wrapper around a ResilientClient.
//
// Example:
//
//	wrapper := crudclient.NewCircuitBreakerWrapper(
//	    transport,
//	    crudclient.WithMaxRequests(1),
//	    crudclient.WithOpenTimeout(30*time.Second),
//	)
func NewCircuitBreakerWrapper[Req, Resp any](
	client ResilientClient[Req, Resp],
	opts ...CircuitBreakerOption,
) *CircuitBreakerWrapper[Req, Resp] {
	config := DefaultCircuitBreakerConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultCircuitBreakerErrorClassifier()
	}
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = DefaultCircuitBreakerConfig().ReadyToTrip
	}

	classifier := config.ErrorClassifier

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.ReadyToTrip(convertGobreakerCounts(counts))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.Logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			if config.OnStateChange != nil {
				config.OnStateChange(name, convertGobreakerState(from), convertGobreakerState(to))
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Errors that shouldn't trip the circuit are not counted as failures.
			return !classifier.ShouldTripCircuit(err)
		},
	}

	return &CircuitBreakerWrapper[Req, Resp]{
		client:     client,
		cb:         gobreaker.NewCircuitBreaker[Resp](settings),
		logger:     config.Logger,
		classifier: classifier,
		name:       config.Name,
	}
}

// Execute executes the request through the circuit breaker.
// Rejections are returned as 503 NormalizedErrors with code CIRCUIT_OPEN whose cause
// is a jp-go-errors circuit breaker error.
func (w *CircuitBreakerWrapper[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	var zero Resp

	resp, err := w.cb.Execute(func() (Resp, error) {
		return w.client.Execute(ctx, req)
	})
	if err == nil {
		return resp, nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		w.logger.Warn("transport call short-circuited",
			"breaker", w.name)
		return zero, w.rejection("request rejected", "open", err)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		w.logger.Debug("half-open probe slots taken, call short-circuited",
			"breaker", w.name)
		return zero, w.rejection("too many requests in half-open state", "half-open", err)
	}

	if w.classifier.ShouldTripCircuit(err) {
		w.logger.Debug("transport failure counted against breaker",
			"breaker", w.name,
			"consecutive_failures", w.cb.Counts().ConsecutiveFailures)
	}
	return zero, err
}

func (w *CircuitBreakerWrapper[Req, Resp]) rejection(msg, state string, cause error) *NormalizedError {
	counts := w.cb.Counts()
	return &NormalizedError{
		Message:     "circuit breaker: " + msg,
		Code:        CodeCircuitOpen,
		UserMessage: circuitOpenUserMessage,
		Status:      http.StatusServiceUnavailable,
		Cause: jperrors.NewCircuitBreakerError(
			msg,
			"execute",
			state,
			jperrors.WithCause(cause),
			jperrors.WithCounts(jperrors.CircuitCounts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			}),
		),
		kind: ErrServer,
	}
}

// State returns the current state of the circuit breaker.
func (w *CircuitBreakerWrapper[Req, Resp]) State() CircuitBreakerState {
	return convertGobreakerState(w.cb.State())
}

// Counts returns the current counts of the circuit breaker.
func (w *CircuitBreakerWrapper[Req, Resp]) Counts() CircuitBreakerCounts {
	return convertGobreakerCounts(w.cb.Counts())
}

// GetHealth returns the health status of the circuit breaker.
func (w *CircuitBreakerWrapper[Req, Resp]) GetHealth() BreakerHealth {
	state := w.State()
	counts := w.Counts()

	return BreakerHealth{
		Healthy:              state != StateOpen,
		Status:               state.String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}

func convertGobreakerCounts(counts gobreaker.Counts) CircuitBreakerCounts {
	return CircuitBreakerCounts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

func convertGobreakerState(state gobreaker.State) CircuitBreakerState {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
