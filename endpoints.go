package crudclient

import (
	"net/http"
	"net/url"
	"strings"
)

// Endpoint is a request target: a URL (absolute or relative to the base URL) and a method.
type Endpoint struct {
	URL    string
	Method string
}

// EndpointSet describes the six CRUD endpoints of one resource type.
// Functions receive the resource id already path-escaped.
type EndpointSet struct {
	GetByID         func(id string) Endpoint
	Update          func(id string) Endpoint
	Delete          func(id string) Endpoint
	GetAll          Endpoint
	SearchAndFilter Endpoint
	Create          Endpoint
}

// RESTEndpoints returns the conventional endpoint table for a collection path:
//
//	GET    {path}/{id}
//	GET    {path}
//	POST   {path}/search
//	POST   {path}
//	PUT    {path}/{id}
//	DELETE {path}/{id}
func RESTEndpoints(path string) EndpointSet {
	base := strings.TrimRight(path, "/")
	item := func(method string) func(id string) Endpoint {
		return func(id string) Endpoint {
			return Endpoint{URL: base + "/" + id, Method: method}
		}
	}

	return EndpointSet{
		GetByID:         item(http.MethodGet),
		GetAll:          Endpoint{URL: base, Method: http.MethodGet},
		SearchAndFilter: Endpoint{URL: base + "/search", Method: http.MethodPost},
		Create:          Endpoint{URL: base, Method: http.MethodPost},
		Update:          item(http.MethodPut),
		Delete:          item(http.MethodDelete),
	}
}

// escapeID makes an id safe to use as a single path segment.
func escapeID(id string) string {
	return url.PathEscape(id)
}
