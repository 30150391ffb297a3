package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/models"
	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

// OfferingHandler exposes course offerings.
type OfferingHandler struct {
	offerings *service.OfferingService
}

// NewOfferingHandler constructs OfferingHandler.
func NewOfferingHandler(offerings *service.OfferingService) *OfferingHandler {
	return &OfferingHandler{offerings: offerings}
}

// List godoc
// @Summary List course offerings
// @Description Teachers only see offerings they own
// @Tags Offerings
// @Produce json
// @Security BearerAuth
// @Param course_id query string false "Course"
// @Param period_id query string false "Academic period"
// @Param teacher_id query string false "Teacher"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /offerings [get]
func (h *OfferingHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	filter := models.OfferingFilter{
		CourseID:  c.Query("course_id"),
		PeriodID:  c.Query("period_id"),
		TeacherID: c.Query("teacher_id"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = page(c)

	offerings, pagination, err := h.offerings.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, pagination)
}

// Available godoc
// @Summary Offerings open for enrollment
// @Description Open offerings of a course in a period with seats left
// @Tags Offerings
// @Produce json
// @Security BearerAuth
// @Param course_id query string true "Course"
// @Param period_id query string true "Academic period"
// @Success 200 {object} response.Envelope
// @Router /offerings/available [get]
func (h *OfferingHandler) Available(c *gin.Context) {
	offerings, err := h.offerings.Available(c.Request.Context(), c.Query("course_id"), c.Query("period_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offerings)
}

// Get godoc
// @Summary Get course offering
// @Tags Offerings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	offering, err := h.offerings.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offering)
}

// Create godoc
// @Summary Create course offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateOfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req service.CreateOfferingRequest
	if !bindJSON(c, &req) {
		return
	}
	offering, err := h.offerings.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// Update godoc
// @Summary Update course offering
// @Description Capacity changes keep the seats already taken
// @Tags Offerings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Param payload body service.UpdateOfferingRequest true "Offering payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /offerings/{id} [patch]
func (h *OfferingHandler) Update(c *gin.Context) {
	var req service.UpdateOfferingRequest
	if !bindJSON(c, &req) {
		return
	}
	offering, err := h.offerings.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offering)
}

// AssignTeacher godoc
// @Summary Assign or clear the offering teacher
// @Tags Offerings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Param payload body service.AssignTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/teacher [put]
func (h *OfferingHandler) AssignTeacher(c *gin.Context) {
	var req service.AssignTeacherRequest
	if !bindJSON(c, &req) {
		return
	}
	offering, err := h.offerings.AssignTeacher(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offering)
}

// Delete godoc
// @Summary Delete course offering
// @Tags Offerings
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /offerings/{id} [delete]
func (h *OfferingHandler) Delete(c *gin.Context) {
	if err := h.offerings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Students godoc
// @Summary Offering roster
// @Tags Offerings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/students [get]
func (h *OfferingHandler) Students(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	roster, err := h.offerings.Roster(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, roster)
}
