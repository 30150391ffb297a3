package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

type reportService interface {
	General(ctx context.Context) (*dto.GeneralReport, error)
	Grades(ctx context.Context, p models.Principal, req service.GradeReportRequest) (*dto.GradeReport, error)
	OfferingGrades(ctx context.Context, p models.Principal, offeringID string) (*dto.OfferingGradeReport, error)
	OfferingAttendance(ctx context.Context, p models.Principal, offeringID string) (*dto.OfferingAttendanceReport, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// General godoc
// @Summary Institution-wide report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/general [get]
func (h *ReportHandler) General(c *gin.Context) {
	report, err := h.reports.General(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Grades godoc
// @Summary Grade statistics
// @Description Count, average, max, min, approved and failed, optionally by offering and date range
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param offering_id query string false "Offering"
// @Param from query string false "From (YYYY-MM-DD)"
// @Param to query string false "To (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/grades [get]
func (h *ReportHandler) Grades(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	req := service.GradeReportRequest{OfferingID: c.Query("offering_id")}
	if from := strings.TrimSpace(c.Query("from")); from != "" {
		req.From = &from
	}
	if to := strings.TrimSpace(c.Query("to")); to != "" {
		req.To = &to
	}
	report, err := h.reports.Grades(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// OfferingGrades godoc
// @Summary Grade report of an offering
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /reports/offerings/{id}/grades [get]
func (h *ReportHandler) OfferingGrades(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	report, err := h.reports.OfferingGrades(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// OfferingAttendance godoc
// @Summary Attendance report of an offering
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /reports/offerings/{id}/attendance [get]
func (h *ReportHandler) OfferingAttendance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	report, err := h.reports.OfferingAttendance(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
