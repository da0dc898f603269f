package crudclient

import (
	"context"
	"errors"
	"slices"
)

// DefaultRetryCount is the number of retries CRUD services request by default.
const DefaultRetryCount = 3

// Identifiable is implemented by resources that expose their identity. It is used
// to look items up in the fallback dataset.
type Identifiable interface {
	GetID() string
}

// Service is the uniform CRUD surface generated for a resource type.
type Service[T any] interface {
	GetByID(ctx context.Context, id string) (T, error)
	GetAll(ctx context.Context, params PaginationParams) (PagedResult[T], error)
	SearchAndFilter(ctx context.Context, criteria any, params PaginationParams) (PagedResult[T], error)
	Create(ctx context.Context, payload T) (T, error)
	Update(ctx context.Context, id string, payload T) (T, error)
	Delete(ctx context.Context, id string) error
}

// ServiceConfig holds the per-resource options of a CRUD service.
type ServiceConfig[T any] struct {
	// IDFunc returns the identity of an item.
	// Default: Identifiable.GetID when T implements it
	IDFunc func(item T) string

	// FallbackFilter, when set, is applied to the fallback dataset by SearchAndFilter.
	// Default: nil (fallback searches page through the unfiltered dataset)
	FallbackFilter func(item T, criteria any) bool

	// Fallback is the locally held dataset used when the remote side is unavailable.
	Fallback []T

	// RetryCount is passed to every request the service builds.
	// Default: DefaultRetryCount
	RetryCount int
}

// ServiceOption is a functional option for configuring a CRUD service.
type ServiceOption[T any] func(*ServiceConfig[T])

// WithFallbackData sets the fallback dataset. The slice is copied.
func WithFallbackData[T any](items []T) ServiceOption[T] {
	return func(c *ServiceConfig[T]) {
		c.Fallback = slices.Clone(items)
	}
}

// WithIDFunc sets how item identity is read for fallback lookups.
func WithIDFunc[T any](fn func(item T) string) ServiceOption[T] {
	return func(c *ServiceConfig[T]) {
		c.IDFunc = fn
	}
}

// WithFallbackFilter enables client-side filtering of the fallback dataset in
// SearchAndFilter.
func WithFallbackFilter[T any](fn func(item T, criteria any) bool) ServiceOption[T] {
	return func(c *ServiceConfig[T]) {
		c.FallbackFilter = fn
	}
}

// WithRetryCount sets the retry count of every request the service builds.
func WithRetryCount[T any](n int) ServiceOption[T] {
	return func(c *ServiceConfig[T]) {
		c.RetryCount = n
	}
}

// CRUDService implements Service[T] on top of an Executor. It adds no resilience
// policy of its own: every operation is a single Execute call.
type CRUDService[T any] struct {
	exec      *Executor
	endpoints EndpointSet
	config    ServiceConfig[T]
}

// NewCRUDService builds the CRUD surface of one resource type.
//
// Example:
//
//	challenges := crudclient.NewCRUDService[Challenge](
//	    exec,
//	    crudclient.RESTEndpoints("/api/challenges"),
//	    crudclient.WithFallbackData(seedChallenges),
//	)
func NewCRUDService[T any](exec *Executor, endpoints EndpointSet, opts ...ServiceOption[T]) *CRUDService[T] {
	config := ServiceConfig[T]{RetryCount: DefaultRetryCount}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Fallback == nil {
		config.Fallback = []T{}
	}

	return &CRUDService[T]{
		exec:      exec,
		endpoints: endpoints,
		config:    config,
	}
}

// FallbackData returns a copy of the fallback dataset.
func (s *CRUDService[T]) FallbackData() []T {
	return slices.Clone(s.config.Fallback)
}

// GetByID fetches one item. In fallback mode the item is looked up in the dataset by
// identity; a missing item yields an error matching ErrFallbackNotFound.
func (s *CRUDService[T]) GetByID(ctx context.Context, id string) (T, error) {
	ep, err := itemEndpoint(s.endpoints.GetByID, id, "getById")
	if err != nil {
		var zero T
		return zero, err
	}

	return Execute(ctx, s.exec, RequestDescriptor[T]{
		URL:        ep.URL,
		Method:     ep.Method,
		RetryCount: s.config.RetryCount,
		Fallback: func(context.Context) (T, error) {
			return s.findFallback(id)
		},
	})
}

// GetAll fetches one page. In fallback mode the page is cut from the dataset.
func (s *CRUDService[T]) GetAll(ctx context.Context, params PaginationParams) (PagedResult[T], error) {
	return Execute(ctx, s.exec, RequestDescriptor[PagedResult[T]]{
		URL:        s.endpoints.GetAll.URL,
		Method:     s.endpoints.GetAll.Method,
		Query:      params.Query(),
		RetryCount: s.config.RetryCount,
		Fallback: func(context.Context) (PagedResult[T], error) {
			return Paginate(s.config.Fallback, params), nil
		},
	})
}

// SearchAndFilter sends criteria as the request body and fetches one page of matches.
// In fallback mode the dataset is paged without applying criteria unless a
// FallbackFilter was configured.
func (s *CRUDService[T]) SearchAndFilter(ctx context.Context, criteria any, params PaginationParams) (PagedResult[T], error) {
	return Execute(ctx, s.exec, RequestDescriptor[PagedResult[T]]{
		URL:        s.endpoints.SearchAndFilter.URL,
		Method:     s.endpoints.SearchAndFilter.Method,
		Query:      params.Query(),
		Body:       criteria,
		RetryCount: s.config.RetryCount,
		Fallback: func(context.Context) (PagedResult[T], error) {
			items := s.config.Fallback
			if s.config.FallbackFilter != nil {
				items = filter(items, func(item T) bool {
					return s.config.FallbackFilter(item, criteria)
				})
			}
			return Paginate(items, params), nil
		},
	})
}

// Create sends payload to the create endpoint. Mutations never use fallback data.
func (s *CRUDService[T]) Create(ctx context.Context, payload T) (T, error) {
	return Execute(ctx, s.exec, RequestDescriptor[T]{
		URL:        s.endpoints.Create.URL,
		Method:     s.endpoints.Create.Method,
		Body:       payload,
		RetryCount: s.config.RetryCount,
	})
}

// Update sends payload to the update endpoint of id. Mutations never use fallback data.
func (s *CRUDService[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	ep, err := itemEndpoint(s.endpoints.Update, id, "update")
	if err != nil {
		var zero T
		return zero, err
	}

	return Execute(ctx, s.exec, RequestDescriptor[T]{
		URL:        ep.URL,
		Method:     ep.Method,
		Body:       payload,
		RetryCount: s.config.RetryCount,
	})
}

// Delete removes id. Mutations never use fallback data.
func (s *CRUDService[T]) Delete(ctx context.Context, id string) error {
	ep, err := itemEndpoint(s.endpoints.Delete, id, "delete")
	if err != nil {
		return err
	}

	_, err = Execute(ctx, s.exec, RequestDescriptor[any]{
		URL:        ep.URL,
		Method:     ep.Method,
		RetryCount: s.config.RetryCount,
	})
	return err
}

func (s *CRUDService[T]) findFallback(id string) (T, error) {
	for _, item := range s.config.Fallback {
		if itemID, ok := s.identity(item); ok && itemID == id {
			return item, nil
		}
	}
	var zero T
	return zero, NewFallbackNotFoundError(id)
}

func (s *CRUDService[T]) identity(item T) (string, bool) {
	if s.config.IDFunc != nil {
		return s.config.IDFunc(item), true
	}
	if v, ok := any(item).(Identifiable); ok {
		return v.GetID(), true
	}
	if v, ok := any(&item).(Identifiable); ok {
		return v.GetID(), true
	}
	return "", false
}

func itemEndpoint(fn func(id string) Endpoint, id, operation string) (Endpoint, error) {
	if fn == nil {
		return Endpoint{}, newInvalidRequestError("", "", errors.New("no "+operation+" endpoint configured"))
	}
	return fn(escapeID(id)), nil
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
