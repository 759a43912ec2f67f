package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	"github.com/Mahad-Ghauri/School-Backend/internal/service"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/response"
)

// StudentHandler exposes student and enrollment endpoints.
type StudentHandler struct {
	students *service.StudentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

type enrollmentDateRequest struct {
	Date *time.Time `json:"date"`
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or roll number"
// @Param classId query string false "Filter by class"
// @Param sectionId query string false "Filter by section"
// @Param active query bool false "Filter by active state"
// @Param expelled query bool false "Filter by expulsion state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ClassID = c.Query("classId")
	filter.SectionID = c.Query("sectionId")
	filter.Active = boolQuery(c, "active")
	filter.Expelled = boolQuery(c, "expelled")
	filter.Page, filter.PageSize = pageQuery(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, total, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register student
// @Description Registers a student, optionally enrolling into a class and section
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Enroll godoc
// @Summary Enroll student into a class
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/enroll [post]
func (h *StudentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.students.Enroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw student from current class
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id}/withdraw [post]
func (h *StudentHandler) Withdraw(c *gin.Context) {
	var req enrollmentDateRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.students.Withdraw(c.Request.Context(), c.Param("id"), req.Date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Transfer godoc
// @Summary Transfer student to another class or section
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.TransferRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transfer [post]
func (h *StudentHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.students.Transfer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Promote godoc
// @Summary Promote student to the next class
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.PromoteRequest true "Promotion payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/promote [post]
func (h *StudentHandler) Promote(c *gin.Context) {
	var req service.PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.students.Promote(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// History godoc
// @Summary Get student enrollment history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/history [get]
func (h *StudentHandler) History(c *gin.Context) {
	history, err := h.students.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Activate godoc
// @Summary Reactivate student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id}/activate [post]
func (h *StudentHandler) Activate(c *gin.Context) {
	if err := h.students.Activate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Deactivate godoc
// @Summary Deactivate student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Deactivate(c *gin.Context) {
	if err := h.students.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Expel godoc
// @Summary Expel student
// @Description Closes the open enrollment and marks the student expelled
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id}/expel [post]
func (h *StudentHandler) Expel(c *gin.Context) {
	var req enrollmentDateRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.students.Expel(c.Request.Context(), c.Param("id"), req.Date); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearExpulsion godoc
// @Summary Clear a student's expulsion flag
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id}/clear-expulsion [post]
func (h *StudentHandler) ClearExpulsion(c *gin.Context) {
	if err := h.students.ClearExpulsion(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Guardians godoc
// @Summary List a student's guardians
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/guardians [get]
func (h *StudentHandler) Guardians(c *gin.Context) {
	guardians, err := h.students.Guardians(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guardians, nil)
}

// LinkGuardian godoc
// @Summary Link a guardian to a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.LinkGuardianRequest true "Link payload"
// @Success 204
// @Router /students/{id}/guardians [post]
func (h *StudentHandler) LinkGuardian(c *gin.Context) {
	var req service.LinkGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.students.LinkGuardian(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnlinkGuardian godoc
// @Summary Unlink a guardian from a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param guardianId path string true "Guardian ID"
// @Success 204
// @Router /students/{id}/guardians/{guardianId} [delete]
func (h *StudentHandler) UnlinkGuardian(c *gin.Context) {
	if err := h.students.UnlinkGuardian(c.Request.Context(), c.Param("id"), c.Param("guardianId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
