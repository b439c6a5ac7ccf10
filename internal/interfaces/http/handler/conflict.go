package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	conflictapp "github.com/synchub/backend/internal/application/conflict"
	"github.com/synchub/backend/internal/interfaces/http/middleware"
)

// ConflictHandler handles sync conflict API endpoints
type ConflictHandler struct {
	BaseHandler
	conflictService *conflictapp.ConflictService
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflictService *conflictapp.ConflictService) *ConflictHandler {
	return &ConflictHandler{
		conflictService: conflictService,
	}
}

// resolvedBy identifies the caller for the conflict audit trail. Username
// when the JWT carries one, user ID otherwise.
func resolvedBy(c *gin.Context) string {
	if username := middleware.GetJWTUsername(c); username != "" {
		return username
	}
	if userID, err := getUserID(c); err == nil {
		return userID.String()
	}
	return "api"
}

// List godoc
// @Summary      List sync conflicts
// @Description  Retrieve a paginated list of conflicts, unresolved first
// @Tags         conflicts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        execution_id query string false "Execution filter" format(uuid)
// @Param        mapping_id query string false "Mapping filter" format(uuid)
// @Param        connection_id query string false "Connection filter" format(uuid)
// @Param        entity query string false "Entity filter"
// @Param        is_resolved query bool false "Resolved flag filter"
// @Param        is_ignored query bool false "Ignored flag filter"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]conflictapp.ConflictResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter conflictapp.ConflictListFilter
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

	conflicts, total, err := h.conflictService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, conflicts, total, filter.Page, filter.PageSize)
}

// Summary godoc
// @Summary      Unresolved conflict counts per mapping
// @Description  Aggregate the open conflicts by mapping for dashboard use
// @Tags         conflicts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Success      200 {object} dto.Response{data=[]conflictapp.MappingConflictCount}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /conflicts/summary [get]
func (h *ConflictHandler) Summary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	summary, err := h.conflictService.Summary(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// GetByID godoc
// @Summary      Get conflict by ID
// @Description  Retrieve a conflict with both record snapshots and the differing fields
// @Tags         conflicts
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Conflict ID" format(uuid)
// @Success      200 {object} dto.Response{data=conflictapp.ConflictResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /conflicts/{id} [get]
func (h *ConflictHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	conflictID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid conflict ID format")
		return
	}

	conflict, err := h.conflictService.GetByID(c.Request.Context(), tenantID, conflictID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conflict)
}

// Resolve godoc
// @Summary      Resolve a conflict
// @Description  Apply a resolution strategy to a manual conflict. The merge strategy requires the resolved record.
// @Tags         conflicts
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Conflict ID" format(uuid)
// @Param        request body conflictapp.ResolveConflictRequest true "Resolution request"
// @Success      200 {object} dto.Response{data=conflictapp.ConflictResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	conflictID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid conflict ID format")
		return
	}

	var req conflictapp.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conflict, err := h.conflictService.Resolve(c.Request.Context(), tenantID, conflictID, resolvedBy(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conflict)
}

// Ignore godoc
// @Summary      Ignore a conflict
// @Description  Dismiss a conflict without writing either side
// @Tags         conflicts
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Conflict ID" format(uuid)
// @Param        request body conflictapp.IgnoreConflictRequest false "Ignore options"
// @Success      200 {object} dto.Response{data=conflictapp.ConflictResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /conflicts/{id}/ignore [post]
func (h *ConflictHandler) Ignore(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	conflictID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid conflict ID format")
		return
	}

	var req conflictapp.IgnoreConflictRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	conflict, err := h.conflictService.Ignore(c.Request.Context(), tenantID, conflictID, resolvedBy(c), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conflict)
}
