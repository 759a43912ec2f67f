package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// DiscountHandler exposes student discount endpoints.
type DiscountHandler struct {
	discounts *service.DiscountService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// List godoc
// @Summary List discounts
// @Tags Discounts
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /discounts [get]
func (h *DiscountHandler) List(c *gin.Context) {
	var filter models.DiscountFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.Page, filter.PageSize = pageQuery(c)

	discounts, total, err := h.discounts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discounts, paginationMeta(filter.Page, filter.PageSize, total))
}

// Set godoc
// @Summary Set a student's discount for a class
// @Description Creates or replaces the discount; applies to vouchers generated afterwards
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body service.SetDiscountRequest true "Discount payload"
// @Success 201 {object} response.Envelope
// @Router /discounts [post]
func (h *DiscountHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SetDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discount, err := h.discounts.Set(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, discount)
}

// Remove godoc
// @Summary Remove a discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 204
// @Router /discounts/{id} [delete]
func (h *DiscountHandler) Remove(c *gin.Context) {
	if err := h.discounts.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
