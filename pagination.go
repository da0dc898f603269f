package crudclient

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortDirective orders a listing by one field.
type SortDirective struct {
	Field     string
	Direction Direction
}

// String encodes the directive as "field,dir", or "field" without a direction.
func (s SortDirective) String() string {
	if s.Direction == "" {
		return s.Field
	}
	return s.Field + "," + string(s.Direction)
}

// ParseSort parses "field" or "field,asc|desc" (direction is case-insensitive).
func ParseSort(raw string) (SortDirective, error) {
	field, dir, hasDir := strings.Cut(strings.TrimSpace(raw), ",")
	field = strings.TrimSpace(field)
	if field == "" {
		return SortDirective{}, fmt.Errorf("sort %q: missing field", raw)
	}
	if !hasDir {
		return SortDirective{Field: field}, nil
	}

	switch d := Direction(strings.ToLower(strings.TrimSpace(dir))); d {
	case Ascending, Descending:
		return SortDirective{Field: field, Direction: d}, nil
	default:
		return SortDirective{}, fmt.Errorf("sort %q: unknown direction %q", raw, dir)
	}
}

// PaginationParams selects one page of a listing. Page is zero-based.
type PaginationParams struct {
	Sort []SortDirective
	Page int
	Size int
}

// Query encodes the params as page, size and one sort entry per directive,
// keeping the caller's order. Negative page or size are sent as 0.
func (p PaginationParams) Query() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(p.Page, 0)))
	q.Set("size", strconv.Itoa(max(p.Size, 0)))
	for _, s := range p.Sort {
		if s.Field == "" {
			continue
		}
		q.Add("sort", s.String())
	}
	return q
}

// PagedResult is one page of a listing plus its position in the whole collection.
type PagedResult[T any] struct {
	Content          []T  `json:"content"`
	TotalElements    int  `json:"totalElements"`
	TotalPages       int  `json:"totalPages"`
	Size             int  `json:"size"`
	Number           int  `json:"number"`
	NumberOfElements int  `json:"numberOfElements"`
	First            bool `json:"first"`
	Last             bool `json:"last"`
	Empty            bool `json:"empty"`
}

// Paginate slices items the way a paginating server would. items is never modified
// and the returned content does not share its backing array.
//
// A size of 0 yields one page holding every item.
func Paginate[T any](items []T, p PaginationParams) PagedResult[T] {
	total := len(items)
	page := max(p.Page, 0)
	size := max(p.Size, 0)

	if size == 0 {
		content := slices.Clone(items)
		if content == nil {
			content = []T{}
		}
		return PagedResult[T]{
			Content:          content,
			TotalElements:    total,
			TotalPages:       1,
			Size:             0,
			Number:           0,
			NumberOfElements: len(content),
			First:            true,
			Last:             true,
			Empty:            len(content) == 0,
		}
	}

	start := total
	if page <= total/size {
		start = page * size
	}
	remaining := total - start
	last := size >= remaining

	content := []T{}
	if remaining > 0 {
		content = slices.Clone(items[start : start+min(size, remaining)])
	}

	totalPages := total / size
	if total%size != 0 {
		totalPages++
	}

	return PagedResult[T]{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Number:           page,
		NumberOfElements: len(content),
		First:            page == 0,
		Last:             last,
		Empty:            len(content) == 0,
	}
}
