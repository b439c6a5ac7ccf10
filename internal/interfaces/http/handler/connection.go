package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	connectionapp "github.com/synchub/backend/internal/application/connection"
)

// ConnectionHandler handles connection-related API endpoints
type ConnectionHandler struct {
	BaseHandler
	connectionService *connectionapp.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connectionService *connectionapp.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
	}
}

// Connectors godoc
// @Summary      List available connector types
// @Description  Retrieve the catalog of registered connector types with their supported entities and directions
// @Tags         connections
// @Produce      json
// @Success      200 {object} dto.Response
// @Security     BearerAuth
// @Router       /connections/connectors [get]
func (h *ConnectionHandler) Connectors(c *gin.Context) {
	h.Success(c, h.connectionService.Connectors())
}

// Create godoc
// @Summary      Register a new connection
// @Description  Register an external system connection. Credentials are stored encrypted and never returned.
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body connectionapp.CreateConnectionRequest true "Connection creation request"
// @Success      201 {object} dto.Response{data=connectionapp.ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections [post]
func (h *ConnectionHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req connectionapp.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connectionService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, conn)
}

// List godoc
// @Summary      List connections
// @Description  Retrieve a paginated list of connections
// @Tags         connections
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        connector_type query string false "Connector type filter"
// @Param        status query string false "Status filter"
// @Param        health_status query string false "Health status filter"
// @Param        is_active query bool false "Active flag filter"
// @Param        search query string false "Search keyword"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]connectionapp.ConnectionResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter connectionapp.ConnectionListFilter
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

	connections, total, err := h.connectionService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, connections, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Summary      Get connection by ID
// @Description  Retrieve a connection by its ID
// @Tags         connections
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} dto.Response{data=connectionapp.ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id} [get]
func (h *ConnectionHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connectionService.GetByID(c.Request.Context(), tenantID, connectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conn)
}

// Update godoc
// @Summary      Update a connection
// @Description  Update connection settings. Credential changes go through the reauthorize endpoint instead.
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body connectionapp.UpdateConnectionRequest true "Connection update request"
// @Success      200 {object} dto.Response{data=connectionapp.ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id} [put]
func (h *ConnectionHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req connectionapp.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connectionService.Update(c.Request.Context(), tenantID, connectionID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conn)
}

// Test godoc
// @Summary      Test a connection
// @Description  Probe the external system with the stored credentials and record the health outcome
// @Tags         connections
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} dto.Response{data=connectionapp.TestConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id}/test [post]
func (h *ConnectionHandler) Test(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	result, err := h.connectionService.Test(c.Request.Context(), tenantID, connectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reauthorize godoc
// @Summary      Reauthorize a connection
// @Description  Replace the stored credentials and clear the reauthorization-required state
// @Tags         connections
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Param        request body connectionapp.ReauthorizeRequest true "New credentials"
// @Success      200 {object} dto.Response{data=connectionapp.ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id}/reauthorize [post]
func (h *ConnectionHandler) Reauthorize(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	var req connectionapp.ReauthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connectionService.Reauthorize(c.Request.Context(), tenantID, connectionID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conn)
}

// EnterMaintenance godoc
// @Summary      Put a connection into maintenance
// @Description  Suspend scheduled syncs for the connection until maintenance ends
// @Tags         connections
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} dto.Response{data=connectionapp.ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id}/maintenance [post]
func (h *ConnectionHandler) EnterMaintenance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connectionService.EnterMaintenance(c.Request.Context(), tenantID, connectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conn)
}

// EndMaintenance godoc
// @Summary      Take a connection out of maintenance
// @Description  Resume normal operation after maintenance
// @Tags         connections
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Success      200 {object} dto.Response{data=connectionapp.ConnectionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id}/maintenance [delete]
func (h *ConnectionHandler) EndMaintenance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	conn, err := h.connectionService.EndMaintenance(c.Request.Context(), tenantID, connectionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, conn)
}

// Deactivate godoc
// @Summary      Deactivate a connection
// @Description  Soft-delete a connection. Its mappings and configurations stop running.
// @Tags         connections
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Connection ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /connections/{id} [delete]
func (h *ConnectionHandler) Deactivate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	connectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID format")
		return
	}

	if _, err := h.connectionService.Deactivate(c.Request.Context(), tenantID, connectionID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
