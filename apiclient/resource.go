package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-crowdfund/resource"
)

var _ resource.Fetcher[struct{}] = (*Resource[struct{}])(nil)

// Resource implements resource.Fetcher for a REST collection path.
type Resource[T any] struct {
	client *Client
	path   string
}

// NewResource binds a collection path, e.g. "/campaigns".
func NewResource[T any](client *Client, path string) *Resource[T] {
	return &Resource[T]{
		client: client,
		path:   "/" + strings.Trim(path, "/"),
	}
}

// Path returns the collection path.
func (r *Resource[T]) Path() string {
	return r.path
}

// List fetches one page. Sort orders are sent as repeated sort parameters.
func (r *Resource[T]) List(ctx context.Context, req resource.PageRequest) (resource.Page[T], error) {
	var page resource.Page[T]
	err := r.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   r.path,
		Query:  PageQuery(req),
	}, &page)
	if err != nil {
		return resource.Page[T]{}, err
	}
	if page.Content == nil {
		page.Content = []T{}
	}
	return page, nil
}

// Get fetches a single entity.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   r.itemPath(id),
	}, &out)
	return out, err
}

// Create posts input to the collection.
func (r *Resource[T]) Create(ctx context.Context, input any) (T, error) {
	var out T
	err := r.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   r.path,
		Body:   input,
	}, &out)
	return out, err
}

// Update replaces the entity with input.
func (r *Resource[T]) Update(ctx context.Context, id string, input any) (T, error) {
	var out T
	err := r.client.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   r.itemPath(id),
		Body:   input,
	}, &out)
	return out, err
}

// Delete removes the entity.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   r.itemPath(id),
	}, nil)
}

// Action posts to path/{id}/{action}.
func (r *Resource[T]) Action(ctx context.Context, id, action string, body any) (T, error) {
	var out T
	err := r.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   r.itemPath(id) + "/" + url.PathEscape(action),
		Body:   body,
	}, &out)
	return out, err
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// PageQuery encodes a page request as query parameters.
func PageQuery(req resource.PageRequest) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("size", strconv.Itoa(req.Size))
	for _, token := range req.SortTokens() {
		q.Add("sort", token)
	}
	for k, v := range req.Params {
		q.Set(k, v)
	}
	return q
}
