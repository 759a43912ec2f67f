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

// ClassHandler exposes class, section and fee structure endpoints.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param search query string false "Search by name"
// @Param type query string false "Filter by class type"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ClassType = c.Query("type")
	filter.Active = boolQuery(c, "active")
	filter.Page, filter.PageSize = pageQuery(c)

	classes, total, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Deactivate godoc
// @Summary Deactivate class
// @Description Deactivates a class without open enrollments
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Deactivate(c *gin.Context) {
	if err := h.classes.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Sections godoc
// @Summary List sections of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/sections [get]
func (h *ClassHandler) Sections(c *gin.Context) {
	sections, err := h.classes.Sections(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// AddSection godoc
// @Summary Add a section to a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.SectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/sections [post]
func (h *ClassHandler) AddSection(c *gin.Context) {
	var req service.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	section, err := h.classes.AddSection(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// DeleteSection godoc
// @Summary Delete a section
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param sectionId path string true "Section ID"
// @Success 204
// @Router /classes/{id}/sections/{sectionId} [delete]
func (h *ClassHandler) DeleteSection(c *gin.Context) {
	if err := h.classes.DeleteSection(c.Request.Context(), c.Param("sectionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// FeeStructures godoc
// @Summary List fee structure versions of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/fee-structures [get]
func (h *ClassHandler) FeeStructures(c *gin.Context) {
	versions, err := h.classes.FeeStructures(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// AddFeeStructure godoc
// @Summary Append a fee structure version
// @Description Adds an effective-dated fee structure version; existing versions are never edited
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.FeeStructureRequest true "Fee structure payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/fee-structures [post]
func (h *ClassHandler) AddFeeStructure(c *gin.Context) {
	var payload struct {
		service.FeeStructureRequest
		EffectiveFrom string `json:"effective_from"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	month, err := parseMonth(payload.EffectiveFrom)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := payload.FeeStructureRequest
	req.EffectiveFrom = month
	version, err := h.classes.AddFeeStructure(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}
