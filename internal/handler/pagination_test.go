package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse([]int{1, 2}, 21, 3, 10)
	assert.Equal(t, PaginationMeta{TotalItems: 21, TotalPages: 3, CurrentPage: 3, PageSize: 10}, resp.Meta)

	empty := NewPaginatedResponse([]int{}, 0, 1, 10)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		page  int
		limit int
	}{
		{"", 1, 10},
		{"?page=4&limit=25", 4, 25},
		{"?page=0&limit=-1", 1, 10},
		{"?page=abc&limit=500", 1, 100},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/games"+tt.query, nil)

		page, limit := parsePagination(c)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
}
