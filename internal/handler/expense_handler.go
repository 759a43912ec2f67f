package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// ExpenseHandler exposes operating expense endpoints.
type ExpenseHandler struct {
	expenses *service.ExpenseService
}

// NewExpenseHandler constructs ExpenseHandler.
func NewExpenseHandler(expenses *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

func expenseFilterFromQuery(c *gin.Context) (models.ExpenseFilter, error) {
	var filter models.ExpenseFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	fromDate, err := parseDateQuery(c, "from")
	if err != nil {
		return filter, err
	}
	toDate, err := parseDateQuery(c, "to")
	if err != nil {
		return filter, err
	}
	filter.FromDate = fromDate
	filter.ToDate = toDate
	filter.Page, filter.PageSize = pageQuery(c)
	return filter, nil
}

// List godoc
// @Summary List expenses
// @Tags Expenses
// @Produce json
// @Param search query string false "Search by title"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	filter, err := expenseFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	expenses, total, err := h.expenses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, expenses, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get expense
// @Tags Expenses
// @Produce json
// @Param id path string true "Expense ID"
// @Success 200 {object} response.Envelope
// @Router /expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	expense, err := h.expenses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, expense, nil)
}

// Create godoc
// @Summary Record expense
// @Tags Expenses
// @Accept json
// @Produce json
// @Param payload body service.ExpenseRequest true "Expense payload"
// @Success 201 {object} response.Envelope
// @Router /expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req service.ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	expense, err := h.expenses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, expense)
}

// Update godoc
// @Summary Update expense
// @Tags Expenses
// @Accept json
// @Produce json
// @Param id path string true "Expense ID"
// @Param payload body service.ExpenseRequest true "Expense payload"
// @Success 200 {object} response.Envelope
// @Router /expenses/{id} [put]
func (h *ExpenseHandler) Update(c *gin.Context) {
	var req service.ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	expense, err := h.expenses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, expense, nil)
}

// Delete godoc
// @Summary Delete expense
// @Tags Expenses
// @Produce json
// @Param id path string true "Expense ID"
// @Success 204
// @Router /expenses/{id} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	if err := h.expenses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Expense rollup for a date range
// @Tags Expenses
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /expenses/summary [get]
func (h *ExpenseHandler) Summary(c *gin.Context) {
	filter, err := expenseFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.expenses.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
