package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// FeePaymentHandler exposes fee payment endpoints.
type FeePaymentHandler struct {
	payments *service.FeePaymentService
	metrics  *service.MetricsService
}

// NewFeePaymentHandler constructs FeePaymentHandler.
func NewFeePaymentHandler(payments *service.FeePaymentService, metrics *service.MetricsService) *FeePaymentHandler {
	return &FeePaymentHandler{payments: payments, metrics: metrics}
}

// Record godoc
// @Summary Record a payment against a voucher
// @Description Appends a payment; the amount may not exceed the remaining due
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Voucher ID"
// @Param payload body service.RecordFeePaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /vouchers/{id}/payments [post]
func (h *FeePaymentHandler) Record(c *gin.Context) {
	var req service.RecordFeePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	voucher, err := h.payments.Record(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment("fee", req.Amount)
	response.JSON(c, http.StatusOK, voucher, nil)
}

// ListByVoucher godoc
// @Summary List payments of a voucher
// @Tags Payments
// @Produce json
// @Param id path string true "Voucher ID"
// @Success 200 {object} response.Envelope
// @Router /vouchers/{id}/payments [get]
func (h *FeePaymentHandler) ListByVoucher(c *gin.Context) {
	payments, err := h.payments.ListByVoucher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Receipt godoc
// @Summary Download a payment receipt as PDF
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Router /payments/{id}/receipt [get]
func (h *FeePaymentHandler) Receipt(c *gin.Context) {
	data, fileName, err := h.payments.RenderReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Delete godoc
// @Summary Delete a payment
// @Description Removes a payment as an explicit admin correction
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *FeePaymentHandler) Delete(c *gin.Context) {
	if err := h.payments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param sectionId query string false "Filter by section"
// @Param from query string false "Paid from date (YYYY-MM-DD)"
// @Param to query string false "Paid to date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *FeePaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.SectionID = c.Query("sectionId")
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

	payments, total, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, paginationMeta(filter.Page, filter.PageSize, total))
}
