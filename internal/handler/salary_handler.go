package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// SalaryHandler exposes salary voucher endpoints.
type SalaryHandler struct {
	salaries *service.SalaryService
	metrics  *service.MetricsService
}

// NewSalaryHandler constructs SalaryHandler.
func NewSalaryHandler(salaries *service.SalaryService, metrics *service.MetricsService) *SalaryHandler {
	return &SalaryHandler{salaries: salaries, metrics: metrics}
}

// Generate godoc
// @Summary Generate a salary voucher
// @Description Generates the voucher snapshotting the base salary in force for the month
// @Tags Salaries
// @Accept json
// @Produce json
// @Param payload body service.GenerateSalaryRequest true "Salary voucher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /salaries/generate [post]
func (h *SalaryHandler) Generate(c *gin.Context) {
	var payload struct {
		service.GenerateSalaryRequest
		Month string `json:"month"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	month, err := parseMonth(payload.Month)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := payload.GenerateSalaryRequest
	req.Month = month
	voucher, err := h.salaries.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordVoucherGenerated("salary")
	response.Created(c, voucher)
}

// GenerateBulk godoc
// @Summary Generate salary vouchers for all active faculty
// @Tags Salaries
// @Accept json
// @Produce json
// @Param payload body service.GenerateSalaryBulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /salaries/generate-bulk [post]
func (h *SalaryHandler) GenerateBulk(c *gin.Context) {
	var payload struct {
		Month string `json:"month"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	month, err := parseMonth(payload.Month)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.salaries.GenerateBulk(c.Request.Context(), service.GenerateSalaryBulkRequest{Month: month})
	if err != nil {
		response.Error(c, err)
		return
	}
	for range result.Generated {
		h.metrics.RecordVoucherGenerated("salary")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get salary voucher detail
// @Tags Salaries
// @Produce json
// @Param id path string true "Salary voucher ID"
// @Success 200 {object} response.Envelope
// @Router /salaries/{id} [get]
func (h *SalaryHandler) Get(c *gin.Context) {
	voucher, err := h.salaries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// List godoc
// @Summary List salary vouchers
// @Tags Salaries
// @Produce json
// @Param facultyId query string false "Filter by faculty member"
// @Param month query string false "Filter by month (YYYY-MM)"
// @Param from query string false "Generated from date (YYYY-MM-DD)"
// @Param to query string false "Generated to date (YYYY-MM-DD)"
// @Param status query string false "Filter by derived status (PAID, PARTIAL, UNPAID)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /salaries [get]
func (h *SalaryHandler) List(c *gin.Context) {
	var filter models.SalaryVoucherFilter
	filter.FacultyID = c.Query("facultyId")
	filter.Status = models.VoucherStatus(c.Query("status"))
	if value := c.Query("month"); value != "" {
		month, err := parseMonth(value)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Month = &month
	}
	fromDate, err := parseDateQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	toDate, err := parseDateQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.FromDate = fromDate
	filter.ToDate = toDate
	filter.Page, filter.PageSize = pageQuery(c)

	vouchers, total, err := h.salaries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vouchers, paginationMeta(filter.Page, filter.PageSize, total))
}

// AddAdjustment godoc
// @Summary Add a bonus or advance to a salary voucher
// @Tags Salaries
// @Accept json
// @Produce json
// @Param id path string true "Salary voucher ID"
// @Param payload body models.AdjustmentInput true "Adjustment payload"
// @Success 200 {object} response.Envelope
// @Router /salaries/{id}/adjustments [post]
func (h *SalaryHandler) AddAdjustment(c *gin.Context) {
	var input models.AdjustmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	voucher, err := h.salaries.AddAdjustment(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// RecordPayment godoc
// @Summary Record a payment against a salary voucher
// @Description Appends a payment; the amount may not exceed the remaining net salary
// @Tags Salaries
// @Accept json
// @Produce json
// @Param id path string true "Salary voucher ID"
// @Param payload body service.RecordSalaryPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /salaries/{id}/payments [post]
func (h *SalaryHandler) RecordPayment(c *gin.Context) {
	var req service.RecordSalaryPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	voucher, err := h.salaries.RecordPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment("salary", req.Amount)
	response.JSON(c, http.StatusOK, voucher, nil)
}

// DownloadPDF godoc
// @Summary Download a salary voucher as PDF
// @Tags Salaries
// @Produce application/pdf
// @Param id path string true "Salary voucher ID"
// @Success 200 {file} binary
// @Router /salaries/{id}/pdf [get]
func (h *SalaryHandler) DownloadPDF(c *gin.Context) {
	data, fileName, err := h.salaries.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Delete godoc
// @Summary Delete a salary voucher
// @Description Deletes a voucher with no recorded payments
// @Tags Salaries
// @Produce json
// @Param id path string true "Salary voucher ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /salaries/{id} [delete]
func (h *SalaryHandler) Delete(c *gin.Context) {
	if err := h.salaries.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
