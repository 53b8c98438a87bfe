package resource

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Direction of a sort order
type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// MaxPageSize caps the page size accepted by PageRequest.Validate.
const MaxPageSize = 100

var sortFieldRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// SortOrder is a single field,DIRECTION token.
type SortOrder struct {
	Field     string
	Direction Direction
}

// String renders the token as sent on the wire.
func (s SortOrder) String() string {
	dir := s.Direction
	if dir == "" {
		dir = ASC
	}
	return s.Field + "," + string(dir)
}

// ParseSort parses "field" or "field,asc|desc". Direction is case insensitive
// and defaults to ASC.
func ParseSort(token string) (SortOrder, error) {
	parts := strings.Split(strings.TrimSpace(token), ",")
	if len(parts) == 0 || len(parts) > 2 || !sortFieldRx.MatchString(strings.TrimSpace(parts[0])) {
		return SortOrder{}, fmt.Errorf("invalid sort token %q", token)
	}

	order := SortOrder{Field: strings.TrimSpace(parts[0]), Direction: ASC}
	if len(parts) == 2 {
		switch Direction(strings.ToUpper(strings.TrimSpace(parts[1]))) {
		case ASC:
		case DESC:
			order.Direction = DESC
		default:
			return SortOrder{}, fmt.Errorf("invalid sort direction in %q", token)
		}
	}
	return order, nil
}

// PageRequest is the pagination input of every list call. Page is zero based.
type PageRequest struct {
	Page   int
	Size   int
	Sort   []SortOrder
	Params map[string]string
}

// NewPageRequest builds a request, sort tokens use ParseSort syntax.
func NewPageRequest(page, size int, sort ...string) (PageRequest, error) {
	req := PageRequest{Page: page, Size: size}
	for _, token := range sort {
		if strings.TrimSpace(token) == "" {
			continue
		}
		order, err := ParseSort(token)
		if err != nil {
			return PageRequest{}, err
		}
		req.Sort = append(req.Sort, order)
	}
	return req, nil
}

// ParsePageRequest builds a request from raw query values. Empty values fall
// back to page 0 and defaultSize.
func ParsePageRequest(page, size string, sort []string, defaultSize int) (PageRequest, error) {
	p, s := 0, defaultSize
	var err error
	if strings.TrimSpace(page) != "" {
		if p, err = strconv.Atoi(strings.TrimSpace(page)); err != nil {
			return PageRequest{}, fmt.Errorf("invalid page %q", page)
		}
	}
	if strings.TrimSpace(size) != "" {
		if s, err = strconv.Atoi(strings.TrimSpace(size)); err != nil {
			return PageRequest{}, fmt.Errorf("invalid size %q", size)
		}
	}
	req, err := NewPageRequest(p, s, sort...)
	if err != nil {
		return PageRequest{}, err
	}
	return req, req.Validate()
}

// WithParam returns a copy with an extra query parameter.
func (r PageRequest) WithParam(key, value string) PageRequest {
	params := make(map[string]string, len(r.Params)+1)
	for k, v := range r.Params {
		params[k] = v
	}
	params[key] = value
	r.Params = params
	return r
}

// SortTokens renders the sort orders as field,DIRECTION tokens.
func (r PageRequest) SortTokens() []string {
	out := make([]string, 0, len(r.Sort))
	for _, s := range r.Sort {
		out = append(out, s.String())
	}
	return out
}

// Validate will run validation rules
func (r PageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Page, validation.Min(0)),
		validation.Field(&r.Size, validation.Required, validation.Min(1), validation.Max(MaxPageSize)),
		validation.Field(&r.Sort, validation.By(validSortOrders)),
	)
}

func validSortOrders(value interface{}) error {
	orders, _ := value.([]SortOrder)
	for _, o := range orders {
		if !sortFieldRx.MatchString(o.Field) {
			return fmt.Errorf("invalid sort field %q", o.Field)
		}
		if o.Direction != ASC && o.Direction != DESC {
			return fmt.Errorf("invalid sort direction %q", o.Direction)
		}
	}
	return nil
}

// Page is a server page of items.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize,omitempty"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// Pagination is the cursor state exposed by a store.
type Pagination struct {
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// PaginationOf derives the cursor of a page fetched with req.
func PaginationOf[T any](page Page[T], req PageRequest) *Pagination {
	size := page.PageSize
	if size == 0 {
		size = req.Size
	}
	return &Pagination{
		PageNumber:    page.PageNumber,
		PageSize:      size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		First:         page.First,
		Last:          page.Last,
	}
}

// Next returns the request for the following page, false on the last one.
func (p *Pagination) Next(req PageRequest) (PageRequest, bool) {
	if p == nil || p.Last {
		return req, false
	}
	req.Page = p.PageNumber + 1
	return req, true
}
