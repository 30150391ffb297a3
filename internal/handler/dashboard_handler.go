package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/dto"
	"github.com/noah-isme/casa-azul-api/internal/middleware"
	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error)
	Teacher(ctx context.Context, p models.Principal, teacherID string, date time.Time) (*dto.TeacherDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Description Totals, enrollments by status, global average and attendance, recent enrollments
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	summary, cacheHit, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.Meta(c))
}

// Teacher godoc
// @Summary Teacher dashboard
// @Description Offerings of the active period with counts and attendance still pending for the date
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param teacher_id query string false "Teacher ID, required for admins"
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	date := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	summary, cacheHit, err := h.service.Teacher(c.Request.Context(), p, strings.TrimSpace(c.Query("teacher_id")), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.Meta(c))
}
