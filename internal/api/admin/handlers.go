// Package admin implements the operator-facing control-plane API: signup
// review, tenant lifecycle management, deployment inspection, and audit log
// queries. Every route in this package sits behind the admin JWT middleware.
package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// parsePagination reads page/per_page query parameters with sane clamping.
// Defaults: page 1, per_page 20, capped at 100.
func parsePagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// paginationMeta builds the pagination envelope included in list responses.
func paginationMeta(page, perPage, total int) gin.H {
	return gin.H{
		"page":     page,
		"per_page": perPage,
		"total":    total,
	}
}
