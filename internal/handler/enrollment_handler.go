package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, p models.Principal, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, p models.Principal, id string) (*models.EnrollmentDetail, error)
	Enroll(ctx context.Context, p models.Principal, req service.EnrollRequest) (*dto.EnrollResult, error)
	EnrollInCourse(ctx context.Context, p models.Principal, req service.EnrollInCourseRequest) (*models.BatchResult, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error)
	Withdraw(ctx context.Context, p models.Principal, id string) (*models.Enrollment, error)
	WithdrawAllForCourse(ctx context.Context, p models.Principal, req service.WithdrawCourseRequest) (*dto.WithdrawCount, error)
}

// EnrollmentHandler exposes the enrollment ledger.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List enrollments
// @Description Teachers are limited to their offerings, students to themselves
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student"
// @Param offering_id query string false "Offering"
// @Param course_id query string false "Course"
// @Param period_id query string false "Academic period"
// @Param status query string false "ENROLLED, WITHDRAWN or FROZEN"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		StudentID:  c.Query("student_id"),
		OfferingID: c.Query("offering_id"),
		CourseID:   c.Query("course_id"),
		PeriodID:   c.Query("period_id"),
		Status:     models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		SortBy:     c.Query("sort"),
		SortOrder:  c.Query("order"),
	}
	filter.Page, filter.PageSize = page(c)

	rows, pagination, err := h.service.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Enroll godoc
// @Summary Enroll a student in an offering
// @Description Takes one seat in the same transaction as the enrollment row
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Enroll(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// EnrollInCourse godoc
// @Summary Enroll a student in every offering of a course
// @Description Each offering is attempted independently; failures are reported per offering
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollInCourseRequest true "Course enrollment payload"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /enrollments/course [post]
func (h *EnrollmentHandler) EnrollInCourse(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.EnrollInCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.EnrollInCourse(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Batch(c, result)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Description Does not change offering capacity
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateEnrollmentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Description Releases the seat in the same transaction
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Withdraw(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// WithdrawCourse godoc
// @Summary Withdraw a student from a course
// @Description Withdraws every enrollment of the student in the course for the period, all or nothing
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.WithdrawCourseRequest true "Withdraw payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/withdraw-course [post]
func (h *EnrollmentHandler) WithdrawCourse(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.WithdrawCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	count, err := h.service.WithdrawAllForCourse(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, count)
}
