package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// VoucherHandler exposes fee voucher endpoints.
type VoucherHandler struct {
	vouchers *service.VoucherService
	metrics  *service.MetricsService
}

// NewVoucherHandler constructs VoucherHandler.
func NewVoucherHandler(vouchers *service.VoucherService, metrics *service.MetricsService) *VoucherHandler {
	return &VoucherHandler{vouchers: vouchers, metrics: metrics}
}

// Generate godoc
// @Summary Generate a fee voucher
// @Description Generates the voucher for a student's open enrollment and month
// @Tags Vouchers
// @Accept json
// @Produce json
// @Param payload body service.GenerateVoucherRequest true "Voucher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vouchers/generate [post]
func (h *VoucherHandler) Generate(c *gin.Context) {
	var payload struct {
		service.GenerateVoucherRequest
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

	req := payload.GenerateVoucherRequest
	req.Month = month
	voucher, err := h.vouchers.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordVoucherGenerated("fee")
	response.Created(c, voucher)
}

// GenerateBulk godoc
// @Summary Generate fee vouchers for a class
// @Description Generates vouchers for every eligible student in the class or section
// @Tags Vouchers
// @Accept json
// @Produce json
// @Param payload body service.GenerateBulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /vouchers/generate-bulk [post]
func (h *VoucherHandler) GenerateBulk(c *gin.Context) {
	var payload struct {
		service.GenerateBulkRequest
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

	req := payload.GenerateBulkRequest
	req.Month = month
	result, err := h.vouchers.GenerateBulk(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	for range result.Generated {
		h.metrics.RecordVoucherGenerated("fee")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get voucher detail
// @Tags Vouchers
// @Produce json
// @Param id path string true "Voucher ID"
// @Success 200 {object} response.Envelope
// @Router /vouchers/{id} [get]
func (h *VoucherHandler) Get(c *gin.Context) {
	voucher, err := h.vouchers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// List godoc
// @Summary List vouchers
// @Tags Vouchers
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param sectionId query string false "Filter by section"
// @Param month query string false "Filter by month (YYYY-MM)"
// @Param status query string false "Filter by derived status"
// @Param from query string false "Issued from date (YYYY-MM-DD)"
// @Param to query string false "Issued to date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /vouchers [get]
func (h *VoucherHandler) List(c *gin.Context) {
	var filter models.VoucherFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.SectionID = c.Query("sectionId")
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

	vouchers, total, err := h.vouchers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vouchers, paginationMeta(filter.Page, filter.PageSize, total))
}

// StudentHistory godoc
// @Summary List all vouchers of a student
// @Tags Vouchers
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/vouchers [get]
func (h *VoucherHandler) StudentHistory(c *gin.Context) {
	vouchers, err := h.vouchers.StudentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vouchers, nil)
}

// AppendItems godoc
// @Summary Append custom items to a voucher
// @Description Adds items to a voucher that has no payments yet
// @Tags Vouchers
// @Accept json
// @Produce json
// @Param id path string true "Voucher ID"
// @Param payload body service.UpdateVoucherItemsRequest true "Items payload"
// @Success 200 {object} response.Envelope
// @Router /vouchers/{id}/items [post]
func (h *VoucherHandler) AppendItems(c *gin.Context) {
	var req service.UpdateVoucherItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	voucher, err := h.vouchers.AppendItems(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// Delete godoc
// @Summary Delete a voucher
// @Description Deletes a voucher with no recorded payments
// @Tags Vouchers
// @Produce json
// @Param id path string true "Voucher ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /vouchers/{id} [delete]
func (h *VoucherHandler) Delete(c *gin.Context) {
	if err := h.vouchers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadPDF godoc
// @Summary Download a voucher as PDF
// @Tags Vouchers
// @Produce application/pdf
// @Param id path string true "Voucher ID"
// @Success 200 {file} binary
// @Router /vouchers/{id}/pdf [get]
func (h *VoucherHandler) DownloadPDF(c *gin.Context) {
	data, fileName, err := h.vouchers.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
