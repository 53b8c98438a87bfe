package resource_test

import (
	"testing"

	"github.com/goliatone/go-crowdfund/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		token   string
		want    string
		wantErr bool
	}{
		{token: "title", want: "title,ASC"},
		{token: "createdAt,desc", want: "createdAt,DESC"},
		{token: " goal.amount , Asc ", want: "goal.amount,ASC"},
		{token: "title,sideways", wantErr: true},
		{token: "a,b,c", wantErr: true},
		{token: "1title", wantErr: true},
		{token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := resource.ParseSort(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParsePageRequest(t *testing.T) {
	req, err := resource.ParsePageRequest("", "", nil, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, req.Page)
	assert.Equal(t, 20, req.Size)

	req, err = resource.ParsePageRequest("2", "5", []string{"title,asc", "", "id,desc"}, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, 5, req.Size)
	assert.Equal(t, []string{"title,ASC", "id,DESC"}, req.SortTokens())

	_, err = resource.ParsePageRequest("x", "", nil, 20)
	assert.Error(t, err)

	_, err = resource.ParsePageRequest("0", "500", nil, 20)
	assert.Error(t, err)

	_, err = resource.ParsePageRequest("0", "0", nil, 20)
	assert.Error(t, err)
}

func TestPageRequest_WithParamCopies(t *testing.T) {
	base := resource.PageRequest{Page: 0, Size: 5}
	filtered := base.WithParam("status", "ACTIVE")

	assert.Nil(t, base.Params)
	assert.Equal(t, map[string]string{"status": "ACTIVE"}, filtered.Params)
}

func TestPagination_Next(t *testing.T) {
	req := resource.PageRequest{Page: 0, Size: 5}
	p := resource.PaginationOf(resource.Page[int]{Content: []int{1, 2, 3, 4, 5}, PageNumber: 0, TotalPages: 2}, req)
	assert.Equal(t, 5, p.PageSize)

	next, ok := p.Next(req)
	assert.True(t, ok)
	assert.Equal(t, 1, next.Page)

	last := &resource.Pagination{Last: true}
	_, ok = last.Next(req)
	assert.False(t, ok)

	var none *resource.Pagination
	_, ok = none.Next(req)
	assert.False(t, ok)
}
