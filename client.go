// Package crudclient provides a resilient request executor and a generic CRUD service
// factory built on top of it. The executor enforces per-attempt timeouts, retries
// transient failures with capped exponential backoff, normalizes every failure into a
// single NormalizedError shape, and can substitute a locally held dataset when the
// remote call stays unavailable after all attempts.
//
// Example:
//
//	exec := crudclient.NewExecutor(
//	    crudclient.NewHTTPTransport(http.DefaultClient),
//	    crudclient.WithBaseURL("https://api.example.com"),
//	    crudclient.WithTimeout(5*time.Second),
//	    crudclient.WithFallbackEnabled(true),
//	)
//
//	ideas := crudclient.NewCRUDService[Idea](
//	    exec,
//	    crudclient.RESTEndpoints("/ideas"),
//	    crudclient.WithFallbackData(seedIdeas),
//	)
//
//	page, err := ideas.GetAll(ctx, crudclient.PaginationParams{Page: 0, Size: 10})
package crudclient

import (
	"context"
	"net/http"
)

// ResilientClient defines a generic interface for executing requests.
// Type parameters Req and Resp can be any types; the executor consumes it with
// *TransportRequest and *TransportResponse, and the circuit breaker wraps any of them.
type ResilientClient[Req, Resp any] interface {
	// Execute performs a request and returns a response or error.
	// The context should be used to control timeouts and cancellation.
	Execute(ctx context.Context, req Req) (Resp, error)
}

// Transport is the primitive the executor issues requests through.
// Implementations must honour ctx cancellation; a non-2xx status is not an error
// at this level.
type Transport = ResilientClient[*TransportRequest, *TransportResponse]

// TransportRequest is a fully resolved outbound request.
type TransportRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// TransportResponse is a raw inbound response with its body fully read.
type TransportResponse struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// TransportFunc adapts a plain function to the Transport interface.
type TransportFunc func(ctx context.Context, req *TransportRequest) (*TransportResponse, error)

// Execute implements Transport.
func (f TransportFunc) Execute(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	return f(ctx, req)
}
