package crudclient

// HealthStatus represents the health of an executor.
type HealthStatus struct {
	// Breaker is set when the executor guards its transport with a circuit breaker.
	Breaker *BreakerHealth `json:"breaker,omitempty"`

	// Status is "ok" without a circuit breaker, otherwise the breaker state.
	Status string `json:"status"`

	// LastAttempt is the RFC 3339 time of the last attempt, empty before the first.
	LastAttempt string `json:"last_attempt,omitempty"`

	TotalAttempts  int64 `json:"total_attempts"`
	TotalSuccesses int64 `json:"total_successes"`
	TotalFailures  int64 `json:"total_failures"`
	TotalFallbacks int64 `json:"total_fallbacks"`

	// Healthy is false only while the circuit breaker is open.
	Healthy bool `json:"healthy"`
}

// BreakerHealth represents the health status of a circuit breaker.
type BreakerHealth struct {
	// Status is the breaker state ("closed", "half-open", "open").
	Status string `json:"status"`

	// Requests is the total number of requests in the current interval.
	Requests uint32 `json:"requests"`

	// TotalSuccesses is the total number of successful requests.
	TotalSuccesses uint32 `json:"total_successes"`

	// TotalFailures is the total number of failed requests.
	TotalFailures uint32 `json:"total_failures"`

	// ConsecutiveFailures is the number of consecutive failures.
	ConsecutiveFailures uint32 `json:"consecutive_failures"`

	// ConsecutiveSuccesses is the number of consecutive successes.
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`

	// Healthy is true for closed and half-open states, false for open state.
	Healthy bool `json:"healthy"`
}
