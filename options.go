package crudclient

import (
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Config is the process-wide executor configuration. It is copied into the executor
// at construction and never mutated afterwards, so one executor can be shared by
// every service and goroutine.
type Config struct {
	// Classifier determines which errors trigger retries.
	// Default: HTTPStatusClassifier
	Classifier ErrorClassifier

	// Logger for request execution.
	// Default: slog.Default()
	Logger *slog.Logger

	// IDGenerator produces the per-call transaction id.
	// Default: uuid.NewString
	IDGenerator func() string

	// DefaultHeaders are attached to every request before descriptor headers.
	DefaultHeaders map[string]string

	// CircuitBreaker, when set, guards the transport with a circuit breaker.
	// Default: nil (disabled)
	CircuitBreaker *CircuitBreakerConfig

	// BaseURL is joined with relative descriptor URLs.
	BaseURL string

	// TransactionHeader is the header carrying the transaction id.
	// Default: X-Transaction-ID
	TransactionHeader string

	// Timeout bounds each attempt. Zero or negative disables the timer.
	// Default: 10 seconds
	Timeout time.Duration

	// InitialDelay is the backoff before the first retry.
	// Default: 1 second
	InitialDelay time.Duration

	// MaxDelay caps every backoff delay.
	// Default: 10 seconds
	MaxDelay time.Duration

	// Multiplier is the growth factor between successive delays.
	// Values below 1 are treated as 2.0.
	// Default: 2.0
	Multiplier float64

	// FallbackEnabled allows descriptors with a fallback producer to be answered
	// from local data after all attempts fail.
	// Default: false
	FallbackEnabled bool
}

// Option is a functional option for configuring the executor.
type Option func(*Config)

// DefaultTransactionHeader carries the per-call transaction id.
const DefaultTransactionHeader = "X-Transaction-ID"

// DefaultConfig returns executor configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           10 * time.Second,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		Multiplier:        2.0,
		TransactionHeader: DefaultTransactionHeader,
		Classifier:        DefaultErrorClassifier(),
		IDGenerator:       uuid.NewString,
		Logger:            slog.Default(),
	}
}

// WithConfig replaces the whole configuration. Options applied after it still take effect.
//
// Example:
//
//	cfg, err := crudclient.LoadConfigFromEnv()
//	exec := crudclient.NewExecutor(transport, crudclient.WithConfig(cfg))
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithBaseURL sets the address relative descriptor URLs are joined with.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithFallbackEnabled turns fallback substitution on or off.
func WithFallbackEnabled(enabled bool) Option {
	return func(c *Config) {
		c.FallbackEnabled = enabled
	}
}

// WithExponentialBackoff configures the delay schedule between attempts.
//
// Example:
//
//	crudclient.WithExponentialBackoff(time.Second, 10*time.Second)
//	// With default multiplier 2.0: 1s, 2s, 4s, 8s, 10s (capped)
func WithExponentialBackoff(initialDelay, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = initialDelay
		c.MaxDelay = maxDelay
	}
}

// WithMultiplier sets the backoff growth factor.
//
// Example:
//
//	crudclient.WithMultiplier(1.5) // 1s, 1.5s, 2.25s, ...
func WithMultiplier(multiplier float64) Option {
	return func(c *Config) {
		c.Multiplier = multiplier
	}
}

// WithErrorClassifier sets a custom error classifier for retry decisions.
func WithErrorClassifier(classifier ErrorClassifier) Option {
	return func(c *Config) {
		c.Classifier = classifier
	}
}

// WithLogger sets the logger.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	crudclient.WithLogger(logger)
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithIDGenerator sets the transaction id generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *Config) {
		c.IDGenerator = gen
	}
}

// WithDefaultHeaders sets headers attached to every request.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Config) {
		c.DefaultHeaders = maps.Clone(headers)
	}
}

// WithCircuitBreaker guards the transport with a circuit breaker.
//
// Example:
//
//	crudclient.WithCircuitBreaker(
//	    crudclient.WithMaxRequests(1),
//	    crudclient.WithOpenTimeout(30*time.Second),
//	)
func WithCircuitBreaker(opts ...CircuitBreakerOption) Option {
	return func(c *Config) {
		cb := DefaultCircuitBreakerConfig()
		for _, opt := range opts {
			opt(cb)
		}
		c.CircuitBreaker = cb
	}
}

// CircuitBreakerConfig holds circuit breaker configuration options.
type CircuitBreakerConfig struct {
	// ReadyToTrip is called with a copy of counts whenever a request fails in the closed state.
	// Default: trips after 5 consecutive failures
	ReadyToTrip func(counts CircuitBreakerCounts) bool

	// ErrorClassifier determines which errors count as circuit failures.
	// Default: HTTPStatusClassifier
	ErrorClassifier CircuitBreakerErrorClassifier

	// OnStateChange is called whenever the circuit breaker changes state.
	OnStateChange func(name string, from, to CircuitBreakerState)

	// Logger for circuit breaker operations.
	// Default: the executor logger, or slog.Default() when used standalone
	Logger *slog.Logger

	// Name identifies the breaker in logs.
	// Default: "crudclient"
	Name string

	// Interval is the cyclic period of the closed state after which counts are cleared.
	// If 0, never clears.
	// Default: 60 seconds
	Interval time.Duration

	// Timeout is the period of the open state, after which the state becomes half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRequests is the number of requests allowed through in the half-open state.
	// Default: 1
	MaxRequests uint32
}

// CircuitBreakerOption is a functional option for configuring the circuit breaker.
type CircuitBreakerOption func(*CircuitBreakerConfig)

// CircuitBreakerCounts holds the internal counts of the circuit breaker.
type CircuitBreakerCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState int

const (
	// StateClosed means the circuit is closed and requests flow normally.
	StateClosed CircuitBreakerState = iota

	// StateHalfOpen means the circuit is testing if the service has recovered.
	StateHalfOpen

	// StateOpen means the circuit is open and requests are rejected immediately.
	StateOpen
)

// String returns the string representation of the circuit breaker state.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// WithMaxRequests sets the maximum number of requests in half-open state.
func WithMaxRequests(maxRequests uint32) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.MaxRequests = maxRequests
	}
}

// WithInterval sets the interval for clearing counts in closed state.
func WithInterval(interval time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.Interval = interval
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing again.
func WithOpenTimeout(timeout time.Duration) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.Timeout = timeout
	}
}

// WithReadyToTrip sets a custom function to determine when to trip the circuit.
//
// Example:
//
//	crudclient.WithReadyToTrip(func(counts crudclient.CircuitBreakerCounts) bool {
//	    return counts.ConsecutiveFailures >= 3
//	})
func WithReadyToTrip(fn func(counts CircuitBreakerCounts) bool) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.ReadyToTrip = fn
	}
}

// WithCircuitBreakerErrorClassifier sets a custom classifier for circuit breaker decisions.
func WithCircuitBreakerErrorClassifier(classifier CircuitBreakerErrorClassifier) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.ErrorClassifier = classifier
	}
}

// WithStateChangeHandler sets a callback for circuit breaker state changes.
func WithStateChangeHandler(fn func(name string, from, to CircuitBreakerState)) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.OnStateChange = fn
	}
}

// WithCircuitBreakerLogger sets a custom logger for circuit breaker operations.
func WithCircuitBreakerLogger(logger *slog.Logger) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.Logger = logger
	}
}

// WithBreakerName sets the breaker name used in logs and state callbacks.
func WithBreakerName(name string) CircuitBreakerOption {
	return func(c *CircuitBreakerConfig) {
		c.Name = name
	}
}

// DefaultCircuitBreakerConfig returns circuit breaker configuration with sensible defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:        "crudclient",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts CircuitBreakerCounts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		ErrorClassifier: DefaultCircuitBreakerErrorClassifier(),
	}
}
