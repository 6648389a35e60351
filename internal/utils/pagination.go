package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/todo-api/internal/constants"
)

// PaginationParams holds the pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// PaginationResponse represents the pagination metadata in API responses
type PaginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// GetPaginationParams reads the page and limit query parameters
func GetPaginationParams(c *gin.Context) PaginationParams {
	return NewPaginationParams(c.Query("page"), c.Query("limit"))
}

// NewPaginationParams parses raw page/limit values. Missing or malformed
// values fall back to the defaults and limit is capped at MaxPageSize.
func NewPaginationParams(rawPage, rawLimit string) PaginationParams {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < constants.MinPageSize {
		page = constants.MinPageSize
	}

	limit, err := strconv.Atoi(rawLimit)
	switch {
	case err != nil || limit < constants.MinPageSize:
		limit = constants.DefaultPageSize
	case limit > constants.MaxPageSize:
		limit = constants.MaxPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Response builds the pagination metadata for a result of total items
func (p PaginationParams) Response(total int64) PaginationResponse {
	return PaginationResponse{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
	}
}
