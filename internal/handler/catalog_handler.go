package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/service"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

// CatalogHandler serves reference lookups.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Roles godoc
// @Summary List roles
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /catalog/roles [get]
func (h *CatalogHandler) Roles(c *gin.Context) {
	roles, err := h.catalog.Roles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, roles)
}

// Permissions godoc
// @Summary List permissions
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /catalog/permissions [get]
func (h *CatalogHandler) Permissions(c *gin.Context) {
	permissions, err := h.catalog.Permissions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, permissions)
}

// Periods godoc
// @Summary List academic periods
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /catalog/periods [get]
func (h *CatalogHandler) Periods(c *gin.Context) {
	periods, err := h.catalog.Periods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, periods)
}
