package handler

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// ReportHandler exposes financial report endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// monthQuery parses the month query param, defaulting to the current month.
func monthQuery(c *gin.Context) (time.Time, error) {
	value := c.Query("month")
	if value == "" {
		return service.NormalizeMonth(time.Now().UTC()), nil
	}
	return parseMonth(value)
}

func rangeQuery(c *gin.Context) (time.Time, time.Time, error) {
	now := service.NormalizeMonth(time.Now().UTC())
	from := now.AddDate(0, -11, 0)
	to := now

	if value := c.Query("from"); value != "" {
		parsed, err := parseMonth(value)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if value := c.Query("to"); value != "" {
		parsed, err := parseMonth(value)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}

// Defaulters godoc
// @Summary List students with outstanding dues
// @Tags Reports
// @Produce json
// @Param classId query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Router /reports/defaulters [get]
func (h *ReportHandler) Defaulters(c *gin.Context) {
	defaulters, err := h.reports.Defaulters(c.Request.Context(), c.Query("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, defaulters, nil)
}

// FeeSummary godoc
// @Summary Fee collection rollup for a month
// @Tags Reports
// @Produce json
// @Param month query string false "Month (YYYY-MM), defaults to current"
// @Success 200 {object} response.Envelope
// @Router /reports/fees [get]
func (h *ReportHandler) FeeSummary(c *gin.Context) {
	month, err := monthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.reports.FeeSummary(c.Request.Context(), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// SalarySummary godoc
// @Summary Payroll rollup for a month
// @Tags Reports
// @Produce json
// @Param month query string false "Month (YYYY-MM), defaults to current"
// @Success 200 {object} response.Envelope
// @Router /reports/salaries [get]
func (h *ReportHandler) SalarySummary(c *gin.Context) {
	month, err := monthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.reports.SalarySummary(c.Request.Context(), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ClassCollection godoc
// @Summary Per-class fee collection for a month
// @Tags Reports
// @Produce json
// @Param month query string false "Month (YYYY-MM), defaults to current"
// @Success 200 {object} response.Envelope
// @Router /reports/classes [get]
func (h *ReportHandler) ClassCollection(c *gin.Context) {
	month, err := monthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	collection, err := h.reports.ClassCollection(c.Request.Context(), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// MonthlyFinance godoc
// @Summary Month-by-month income and expense series
// @Tags Reports
// @Produce json
// @Param from query string false "Start month (YYYY-MM)"
// @Param to query string false "End month (YYYY-MM), inclusive"
// @Success 200 {object} response.Envelope
// @Router /reports/finance [get]
func (h *ReportHandler) MonthlyFinance(c *gin.Context) {
	from, to, err := rangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	series, err := h.reports.MonthlyFinance(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}

// StudentDue godoc
// @Summary Outstanding dues of a single student
// @Tags Reports
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/due [get]
func (h *ReportHandler) StudentDue(c *gin.Context) {
	due, err := h.reports.StudentDue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, due, nil)
}

// ExportDefaulters godoc
// @Summary Export the defaulters report
// @Tags Reports
// @Produce json
// @Param classId query string false "Filter by class"
// @Param format query string false "Export format: csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/defaulters/export [get]
func (h *ReportHandler) ExportDefaulters(c *gin.Context) {
	export, err := h.reports.ExportDefaulters(c.Request.Context(), c.Query("classId"), c.DefaultQuery("format", service.ExportCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, export, nil)
}

// ExportMonthlyFinance godoc
// @Summary Export the monthly finance report
// @Tags Reports
// @Produce json
// @Param from query string false "Start month (YYYY-MM)"
// @Param to query string false "End month (YYYY-MM), inclusive"
// @Param format query string false "Export format: csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/finance/export [get]
func (h *ReportHandler) ExportMonthlyFinance(c *gin.Context) {
	from, to, err := rangeQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	export, err := h.reports.ExportMonthlyFinance(c.Request.Context(), from, to, c.DefaultQuery("format", service.ExportCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, export, nil)
}

// Download godoc
// @Summary Download a previously exported report
// @Description Serves the file behind a signed, expiring download token
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/exports/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	path, err := h.reports.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
