package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

type attendanceService interface {
	List(ctx context.Context, p models.Principal, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error)
	Get(ctx context.Context, p models.Principal, id string) (*models.AttendanceDetail, error)
	Take(ctx context.Context, p models.Principal, req service.TakeAttendanceRequest) (*models.AttendanceRecord, error)
	Update(ctx context.Context, p models.Principal, id string, req service.UpdateAttendanceRequest) (*models.AttendanceRecord, error)
	Bulk(ctx context.Context, p models.Principal, req service.BulkAttendanceRequest) (*models.BatchResult, error)
	DeleteByDate(ctx context.Context, p models.Principal, offeringID, rawDate string) (*dto.DeleteCount, error)
	ByOffering(ctx context.Context, p models.Principal, offeringID string) ([]dto.EnrollmentAttendance, error)
	Percentage(ctx context.Context, p models.Principal, enrollmentID string) (*dto.EnrollmentAttendance, error)
	Roster(ctx context.Context, p models.Principal, offeringID, rawDate string) (*dto.RosterAttendance, error)
	Statistics(ctx context.Context, p models.Principal, offeringID string) (*dto.OfferingAttendanceStats, error)
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param offering_id query string false "Offering"
// @Param student_id query string false "Student"
// @Param enrollment_id query string false "Enrollment"
// @Param present query bool false "Filter by presence"
// @Param from query string false "On or after (YYYY-MM-DD)"
// @Param to query string false "On or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	filter := models.AttendanceFilter{
		OfferingID:   c.Query("offering_id"),
		StudentID:    c.Query("student_id"),
		EnrollmentID: c.Query("enrollment_id"),
		SortBy:       c.Query("sort"),
		SortOrder:    c.Query("order"),
	}
	if raw := c.Query("present"); raw != "" {
		if present, err := strconv.ParseBool(raw); err == nil {
			filter.Present = &present
		}
	}
	if filter.From, ok = dateQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = dateQuery(c, "to"); !ok {
		return
	}
	filter.Page, filter.PageSize = page(c)

	records, pagination, err := h.service.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get attendance record
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	record, err := h.service.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Take godoc
// @Summary Take attendance for one enrollment
// @Description One record per enrollment and date
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.TakeAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Take(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.TakeAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.Take(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Update godoc
// @Summary Update attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.UpdateAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Bulk godoc
// @Summary Take attendance for a whole offering
// @Description Refused with 409 when the offering already has attendance for the date; otherwise rows fail independently
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkAttendanceRequest true "Attendance sheet"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) Bulk(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.BulkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Bulk(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Batch(c, result)
}

// DeleteByDate godoc
// @Summary Delete the attendance of an offering for a date
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/attendance [delete]
func (h *AttendanceHandler) DeleteByDate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	count, err := h.service.DeleteByDate(c.Request.Context(), p, c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, count)
}

// ByOffering godoc
// @Summary Attendance of an offering per student
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/attendance [get]
func (h *AttendanceHandler) ByOffering(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	rows, err := h.service.ByOffering(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// Roster godoc
// @Summary Attendance sheet of an offering for a date
// @Description Every enrolled student with the record already taken, or null
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/attendance/roster [get]
func (h *AttendanceHandler) Roster(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sheet, err := h.service.Roster(c.Request.Context(), p, c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sheet)
}

// Statistics godoc
// @Summary Offering-wide attendance statistics
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/attendance/statistics [get]
func (h *AttendanceHandler) Statistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	stats, err := h.service.Statistics(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Percentage godoc
// @Summary Attendance percentage of an enrollment
// @Description Present over total, rounded to two decimals; 0 without records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *AttendanceHandler) Percentage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	summary, err := h.service.Percentage(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
