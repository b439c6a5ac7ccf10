package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	mappingapp "github.com/synchub/backend/internal/application/mapping"
)

// MappingHandler handles data mapping API endpoints
type MappingHandler struct {
	BaseHandler
	mappingService *mappingapp.MappingService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mappingService *mappingapp.MappingService) *MappingHandler {
	return &MappingHandler{
		mappingService: mappingService,
	}
}

// Transforms godoc
// @Summary      List available field transforms
// @Description  Retrieve the names of the transforms a field mapping may reference
// @Tags         mappings
// @Produce      json
// @Success      200 {object} dto.Response{data=[]string}
// @Security     BearerAuth
// @Router       /mappings/transforms [get]
func (h *MappingHandler) Transforms(c *gin.Context) {
	h.Success(c, h.mappingService.Transforms())
}

// Create godoc
// @Summary      Create a data mapping
// @Description  Define how records of one entity translate between a connection and the hub
// @Tags         mappings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body mappingapp.CreateMappingRequest true "Mapping creation request"
// @Success      201 {object} dto.Response{data=mappingapp.MappingResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings [post]
func (h *MappingHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req mappingapp.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	m, err := h.mappingService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, m)
}

// List godoc
// @Summary      List data mappings
// @Description  Retrieve a paginated list of data mappings
// @Tags         mappings
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        connection_id query string false "Connection filter" format(uuid)
// @Param        direction query string false "Direction filter" Enums(inbound, outbound, bidirectional)
// @Param        source_entity query string false "Source entity filter"
// @Param        is_active query bool false "Active flag filter"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]mappingapp.MappingResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings [get]
func (h *MappingHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter mappingapp.MappingListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	// Set default pagination
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	mappings, total, err := h.mappingService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, mappings, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Summary      Get mapping by ID
// @Description  Retrieve a data mapping by its ID
// @Tags         mappings
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Mapping ID" format(uuid)
// @Success      200 {object} dto.Response{data=mappingapp.MappingResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings/{id} [get]
func (h *MappingHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	m, err := h.mappingService.GetByID(c.Request.Context(), tenantID, mappingID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, m)
}

// Update godoc
// @Summary      Update a data mapping
// @Description  Update field rules, filters, or conflict policy of a mapping
// @Tags         mappings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Mapping ID" format(uuid)
// @Param        request body mappingapp.UpdateMappingRequest true "Mapping update request"
// @Success      200 {object} dto.Response{data=mappingapp.MappingResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings/{id} [put]
func (h *MappingHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	var req mappingapp.UpdateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	m, err := h.mappingService.Update(c.Request.Context(), tenantID, mappingID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, m)
}

// Delete godoc
// @Summary      Delete a data mapping
// @Description  Delete a mapping that no active sync configuration references
// @Tags         mappings
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Mapping ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings/{id} [delete]
func (h *MappingHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	if err := h.mappingService.Delete(c.Request.Context(), tenantID, mappingID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Preview godoc
// @Summary      Preview a mapping against a sample record
// @Description  Apply the mapping's field rules and filters to a caller-supplied record without writing anything
// @Tags         mappings
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Mapping ID" format(uuid)
// @Param        request body mappingapp.PreviewMappingRequest true "Sample source record"
// @Success      200 {object} dto.Response{data=mappingapp.PreviewMappingResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings/{id}/preview [post]
func (h *MappingHandler) Preview(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	mappingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID format")
		return
	}

	var req mappingapp.PreviewMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	preview, err := h.mappingService.Preview(c.Request.Context(), tenantID, mappingID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, preview)
}
