package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/synchub/backend/internal/application/sync"
)

// SyncHandler handles sync configuration and trigger API endpoints
type SyncHandler struct {
	BaseHandler
	syncService *syncapp.SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncService *syncapp.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// CreateConfig godoc
// @Summary      Create a sync configuration
// @Description  Attach a schedule and retry policy to a mapping
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body syncapp.CreateConfigRequest true "Configuration creation request"
// @Success      201 {object} dto.Response{data=syncapp.ConfigResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs [post]
func (h *SyncHandler) CreateConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req syncapp.CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.syncService.CreateConfig(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, cfg)
}

// ListConfigs godoc
// @Summary      List sync configurations
// @Description  Retrieve a paginated list of sync configurations
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        mapping_id query string false "Mapping filter" format(uuid)
// @Param        connection_id query string false "Connection filter" format(uuid)
// @Param        sync_mode query string false "Mode filter" Enums(realtime, scheduled, manual, on_demand)
// @Param        is_paused query bool false "Paused flag filter"
// @Param        is_active query bool false "Active flag filter"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]syncapp.ConfigResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs [get]
func (h *SyncHandler) ListConfigs(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter syncapp.ConfigListFilter
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

	configs, total, err := h.syncService.ListConfigs(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, configs, total, filter.Page, filter.PageSize)
}

// GetConfig godoc
// @Summary      Get sync configuration by ID
// @Description  Retrieve a sync configuration by its ID
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.ConfigResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id} [get]
func (h *SyncHandler) GetConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	cfg, err := h.syncService.GetConfig(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, cfg)
}

// UpdateConfig godoc
// @Summary      Update a sync configuration
// @Description  Update schedule, delta, retry, or notification settings. A schedule change recomputes the next run.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Param        request body syncapp.UpdateConfigRequest true "Configuration update request"
// @Success      200 {object} dto.Response{data=syncapp.ConfigResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id} [put]
func (h *SyncHandler) UpdateConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	var req syncapp.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.syncService.UpdateConfig(c.Request.Context(), tenantID, configID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, cfg)
}

// PauseConfig godoc
// @Summary      Pause a sync configuration
// @Description  Stop scheduled runs until the configuration is resumed. Running executions are not affected.
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.ConfigResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id}/pause [post]
func (h *SyncHandler) PauseConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	cfg, err := h.syncService.PauseConfig(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, cfg)
}

// ResumeConfig godoc
// @Summary      Resume a paused sync configuration
// @Description  Recompute the next run from now and resume scheduled runs
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Success      200 {object} dto.Response{data=syncapp.ConfigResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id}/resume [post]
func (h *SyncHandler) ResumeConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	cfg, err := h.syncService.ResumeConfig(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, cfg)
}

// DeleteConfig godoc
// @Summary      Delete a sync configuration
// @Description  Soft-delete a configuration. Past executions remain queryable.
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id} [delete]
func (h *SyncHandler) DeleteConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	if err := h.syncService.DeleteConfig(c.Request.Context(), tenantID, configID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// NextRuns godoc
// @Summary      Preview upcoming runs
// @Description  Compute the next fire times of the configuration's schedule without side effects
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Param        count query int false "Number of runs to preview" default(5)
// @Success      200 {object} dto.Response{data=syncapp.NextRunsResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id}/next-runs [get]
func (h *SyncHandler) NextRuns(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	count, err := strconv.Atoi(c.DefaultQuery("count", "5"))
	if err != nil || count < 1 || count > 50 {
		h.BadRequest(c, "count must be between 1 and 50")
		return
	}

	runs, err := h.syncService.NextRuns(c.Request.Context(), tenantID, configID, count)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, runs)
}

// TriggerConfig godoc
// @Summary      Trigger a configuration now
// @Description  Enqueue an immediate run of the configuration. Fails with a conflict when a run for the mapping is already live.
// @Tags         sync
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Configuration ID" format(uuid)
// @Success      201 {object} dto.Response{data=syncapp.ExecutionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/configs/{id}/trigger [post]
func (h *SyncHandler) TriggerConfig(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	configID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid configuration ID format")
		return
	}

	execution, err := h.syncService.TriggerConfig(c.Request.Context(), tenantID, configID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, execution)
}

// TriggerMapping godoc
// @Summary      Trigger an ad-hoc sync for a mapping
// @Description  Enqueue a one-off run for a mapping without a configuration. The direction defaults to the mapping's own.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Mapping ID" format(uuid)
// @Param        request body syncapp.TriggerMappingRequest false "Trigger options"
// @Success      201 {object} dto.Response{data=syncapp.ExecutionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /mappings/{id}/trigger [post]
func (h *SyncHandler) TriggerMapping(c *gin.Context) {
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

	var req syncapp.TriggerMappingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	execution, err := h.syncService.TriggerMapping(c.Request.Context(), tenantID, mappingID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, execution)
}

// SchedulerStatus godoc
// @Summary      Scheduler status
// @Description  Report the scheduler's queue depth, in-flight runs, and recent history
// @Tags         sync
// @Produce      json
// @Param        history query int false "History entries to include" default(20)
// @Success      200 {object} dto.Response{data=scheduler.Status}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sync/scheduler/status [get]
func (h *SyncHandler) SchedulerStatus(c *gin.Context) {
	historyLimit, err := strconv.Atoi(c.DefaultQuery("history", "20"))
	if err != nil || historyLimit < 0 || historyLimit > 200 {
		h.BadRequest(c, "history must be between 0 and 200")
		return
	}

	h.Success(c, h.syncService.SchedulerStatus(historyLimit))
}
