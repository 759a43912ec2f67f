package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/middleware"
	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// parseMonth accepts a YYYY-MM string and returns the first of that month in
// UTC.
func parseMonth(value string) (time.Time, error) {
	month, err := time.Parse("2006-01", value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "month must be in YYYY-MM format")
	}
	return month.UTC(), nil
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return nil, nil
	}
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be in YYYY-MM-DD format")
	}
	date = date.UTC()
	return &date, nil
}

func boolQuery(c *gin.Context, key string) *bool {
	switch c.Query(key) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func pageQuery(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || size < 1 {
		size = 20
	}
	return page, size
}

func paginationMeta(page, size, total int) *models.Pagination {
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
