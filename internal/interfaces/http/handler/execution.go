package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/synchub/backend/internal/application/sync"
)

// ExecutionHandler handles sync execution API endpoints
type ExecutionHandler struct {
	BaseHandler
	syncService *syncapp.SyncService
}

// NewExecutionHandler creates a new ExecutionHandler
func NewExecutionHandler(syncService *syncapp.SyncService) *ExecutionHandler {
	return &ExecutionHandler{
		syncService: syncService,
	}
}

// List godoc
// @Summary      List sync executions
// @Description  Retrieve a paginated execution history, newest first
// @Tags         executions
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        config_id query string false "Configuration filter" format(uuid)
// @Param        mapping_id query string false "Mapping filter" format(uuid)
// @Param        connection_id query string false "Connection filter" format(uuid)
// @Param        status query string false "Status filter"
// @Param        entity_type query string false "Entity type filter"
// @Param        is_retry query bool false "Retry flag filter"
// @Param        since query string false "Created-after filter (RFC3339)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]syncapp.ExecutionResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/executions [get]
func (h *ExecutionHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter syncapp.ExecutionListFilter
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

	executions, total, err := h.syncService.ListExecutions(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, executions, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Summary      Get execution by ID
// @Description  Retrieve a sync execution by its ID
// @Tags         executions
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Execution ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.ExecutionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/executions/{id} [get]
func (h *ExecutionHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	executionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid execution ID format")
		return
	}

	execution, err := h.syncService.GetExecution(c.Request.Context(), tenantID, executionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, execution)
}

// Progress godoc
// @Summary      Get execution progress
// @Description  Retrieve the record counters and completion percentage of a running execution
// @Tags         executions
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Execution ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.ExecutionProgressResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/executions/{id}/progress [get]
func (h *ExecutionHandler) Progress(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	executionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid execution ID format")
		return
	}

	progress, err := h.syncService.GetProgress(c.Request.Context(), tenantID, executionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, progress)
}

// Cancel godoc
// @Summary      Cancel an execution
// @Description  Cancel a queued execution immediately, or request a running one to stop at the next batch boundary
// @Tags         executions
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Execution ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.ExecutionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/executions/{id}/cancel [post]
func (h *ExecutionHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	executionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid execution ID format")
		return
	}

	execution, err := h.syncService.CancelExecution(c.Request.Context(), tenantID, executionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, execution)
}

// Retry godoc
// @Summary      Retry a failed execution
// @Description  Enqueue a new execution linked to the failed one, while the retry budget allows
// @Tags         executions
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Execution ID" format(uuid)
// @Success      201 {object} dto.Response{data=syncapp.ExecutionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/executions/{id}/retry [post]
func (h *ExecutionHandler) Retry(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	executionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid execution ID format")
		return
	}

	execution, err := h.syncService.RetryExecution(c.Request.Context(), tenantID, executionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, execution)
}

// Logs godoc
// @Summary      Get execution logs
// @Description  Retrieve the log entries recorded during an execution
// @Tags         executions
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Execution ID" format(uuid)
// @Param        level query string false "Minimum level filter" Enums(debug, info, warn, error)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(50)
// @Success      200 {object} dto.Response{data=[]syncapp.ExecutionLogResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/executions/{id}/logs [get]
func (h *ExecutionHandler) Logs(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	executionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid execution ID format")
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		h.BadRequest(c, "page must be a positive integer")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if err != nil || pageSize < 1 || pageSize > 500 {
		h.BadRequest(c, "page_size must be between 1 and 500")
		return
	}

	logs, err := h.syncService.GetExecutionLogs(c.Request.Context(), tenantID, executionID, c.Query("level"), page, pageSize)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, logs)
}
