package handler

import (
	"strconv"

	"roomchat/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// PaginationMeta defines the structure for pagination metadata.
type PaginationMeta struct {
	Page    int   `json:"page" example:"1"`
	PerPage int   `json:"per_page" example:"50"`
	Total   int64 `json:"total" example:"120"`
	Pages   int   `json:"pages" example:"3"`
}

func newPaginationMeta(p *service.Pagination) PaginationMeta {
	return PaginationMeta{
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   p.Total,
		Pages:   p.Pages,
	}
}

// pageParams reads page and per_page from the query string. Missing or
// malformed values fall back to the defaults.
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(service.DefaultPerPage)))
	if err != nil {
		perPage = service.DefaultPerPage
	}
	return service.NormalizePage(page, perPage)
}
