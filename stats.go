package crudclient

import (
	"sync"
	"time"
)

// executorStats tracks request execution statistics.
type executorStats struct {
	mu              sync.RWMutex
	totalAttempts   int64
	totalRetries    int64
	totalSuccesses  int64
	totalFailures   int64
	totalFallbacks  int64
	lastAttemptTime time.Time
	lastError       error
}

// recordAttempt counts one attempt; attempt is 1-based within its call.
func (s *executorStats) recordAttempt(attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalAttempts++
	if attempt > 1 {
		s.totalRetries++
	}
	s.lastAttemptTime = time.Now()
}

func (s *executorStats) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSuccesses++
}

func (s *executorStats) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFailures++
	s.lastError = err
}

func (s *executorStats) recordFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFallbacks++
}

func (s *executorStats) snapshot() ExecutorStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ExecutorStats{
		TotalAttempts:   s.totalAttempts,
		TotalRetries:    s.totalRetries,
		TotalSuccesses:  s.totalSuccesses,
		TotalFailures:   s.totalFailures,
		TotalFallbacks:  s.totalFallbacks,
		LastAttemptTime: s.lastAttemptTime,
		LastError:       s.lastError,
	}
}

// ExecutorStats holds statistics about request execution.
type ExecutorStats struct {
	// LastAttemptTime is the time of the last attempt
	LastAttemptTime time.Time

	// LastError is the last error returned to a caller (if any)
	LastError error

	// TotalAttempts is the total number of attempts made (including initial and retries)
	TotalAttempts int64

	// TotalRetries is the number of retry attempts (not including initial attempts)
	TotalRetries int64

	// TotalSuccesses is the number of calls answered by the remote service
	TotalSuccesses int64

	// TotalFailures is the number of calls that returned an error
	TotalFailures int64

	// TotalFallbacks is the number of calls handed to a fallback producer
	TotalFallbacks int64
}
