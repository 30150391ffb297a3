package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

type gradeService interface {
	List(ctx context.Context, p models.Principal, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error)
	Get(ctx context.Context, p models.Principal, id string) (*models.GradeDetail, error)
	Add(ctx context.Context, p models.Principal, req service.AddGradeRequest) (*models.GradeEntry, error)
	Update(ctx context.Context, p models.Principal, id string, req service.UpdateGradeRequest) (*models.GradeEntry, error)
	Delete(ctx context.Context, p models.Principal, id string) error
	Bulk(ctx context.Context, p models.Principal, req service.BulkGradeRequest) (*models.BatchResult, error)
	ByOffering(ctx context.Context, p models.Principal, offeringID string) ([]dto.EnrollmentGrades, error)
	ByStudentOffering(ctx context.Context, p models.Principal, studentID, offeringID string) (*dto.EnrollmentGrades, error)
	Average(ctx context.Context, p models.Principal, enrollmentID string) (*dto.EnrollmentAverage, error)
}

type statusService interface {
	EnrollmentStatus(ctx context.Context, p models.Principal, enrollmentID string) (*dto.EnrollmentGrades, error)
}

// GradeHandler exposes the grade ledger.
type GradeHandler struct {
	grades gradeService
	status statusService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService, status statusService) *GradeHandler {
	return &GradeHandler{grades: grades, status: status}
}

// List godoc
// @Summary List grade entries
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param offering_id query string false "Offering"
// @Param student_id query string false "Student"
// @Param enrollment_id query string false "Enrollment"
// @Param from query string false "Graded on or after (YYYY-MM-DD)"
// @Param to query string false "Graded on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	filter := models.GradeFilter{
		OfferingID:   c.Query("offering_id"),
		StudentID:    c.Query("student_id"),
		EnrollmentID: c.Query("enrollment_id"),
		SortBy:       c.Query("sort"),
		SortOrder:    c.Query("order"),
	}
	if filter.From, ok = dateQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = dateQuery(c, "to"); !ok {
		return
	}
	filter.Page, filter.PageSize = page(c)

	grades, pagination, err := h.grades.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Get godoc
// @Summary Get grade entry
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	grade, err := h.grades.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// Add godoc
// @Summary Record a grade
// @Description Score must lie within the configured scale; teachers may only grade their offerings
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AddGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Add(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.AddGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.grades.Add(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Update godoc
// @Summary Update a grade
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.UpdateGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.grades.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// Delete godoc
// @Summary Delete a grade
// @Tags Grades
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.grades.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bulk godoc
// @Summary Record grades for many enrollments of one offering
// @Description Valid rows are stored; invalid rows are reported with their error kind
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkGradeRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) Bulk(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.BulkGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.grades.Bulk(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Batch(c, result)
}

// ByOffering godoc
// @Summary Grades of an offering per student
// @Description Entries, average and academic status per enrollment
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/grades [get]
func (h *GradeHandler) ByOffering(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	rows, err := h.grades.ByOffering(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// ByStudentOffering godoc
// @Summary Grades of one student in one offering
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param offeringId path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/offerings/{offeringId}/grades [get]
func (h *GradeHandler) ByStudentOffering(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	row, err := h.grades.ByStudentOffering(c.Request.Context(), p, c.Param("id"), c.Param("offeringId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, row)
}

// Average godoc
// @Summary Grade average of an enrollment
// @Description Mean rounded to one decimal, 0 without grades
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/average [get]
func (h *GradeHandler) Average(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	avg, err := h.grades.Average(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, avg)
}

// Status godoc
// @Summary Academic status of an enrollment
// @Description APPROVED, FAILED_BY_GRADES, FAILED_BY_ATTENDANCE or IN_PROGRESS
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/academic-status [get]
func (h *GradeHandler) Status(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	row, err := h.status.EnrollmentStatus(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, row)
}
