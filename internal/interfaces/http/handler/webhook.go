package handler

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	webhookapp "github.com/synchub/backend/internal/application/webhook"
	webhookdomain "github.com/synchub/backend/internal/domain/webhook"
)

// maxInboundBodySize caps the raw payload accepted on the inbound webhook
// endpoint, which sits outside the authenticated body-limit middleware.
const maxInboundBodySize = 64 << 10

// WebhookHandler handles webhook channel API endpoints, including the
// unauthenticated inbound ingest route.
type WebhookHandler struct {
	BaseHandler
	webhookService *webhookapp.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookService *webhookapp.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// Create godoc
// @Summary      Create a webhook channel
// @Description  Register an outbound or inbound webhook, selected by the direction field. Secrets are stored encrypted and never returned.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        request body webhookapp.CreateOutboundWebhookRequest true "Webhook creation request (plus a direction field: outbound or inbound)"
// @Success      201 {object} dto.Response{data=webhookapp.WebhookResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks [post]
func (h *WebhookHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	// The direction field picks the request shape; the body is bound twice
	// because the two shapes validate differently.
	var envelope struct {
		Direction string `json:"direction"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.BadRequest(c, "Invalid JSON body")
		return
	}

	var created *webhookapp.WebhookResponse
	switch envelope.Direction {
	case string(webhookdomain.DirectionInbound):
		var req webhookapp.CreateInboundWebhookRequest
		if err := binding.JSON.BindBody(body, &req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		created, err = h.webhookService.CreateInbound(c.Request.Context(), tenantID, req)
	case "", string(webhookdomain.DirectionOutbound):
		var req webhookapp.CreateOutboundWebhookRequest
		if err := binding.JSON.BindBody(body, &req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		created, err = h.webhookService.CreateOutbound(c.Request.Context(), tenantID, req)
	default:
		h.BadRequest(c, "direction must be inbound or outbound")
		return
	}
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, created)
}

// List godoc
// @Summary      List webhook channels
// @Description  Retrieve a paginated list of webhooks
// @Tags         webhooks
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        connection_id query string false "Connection filter" format(uuid)
// @Param        direction query string false "Direction filter" Enums(inbound, outbound)
// @Param        status query string false "Status filter" Enums(active, paused, error)
// @Param        is_active query bool false "Active flag filter"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]webhookapp.WebhookResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks [get]
func (h *WebhookHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter webhookapp.WebhookListFilter
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

	webhooks, total, err := h.webhookService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, webhooks, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Summary      Get webhook by ID
// @Description  Retrieve a webhook channel by its ID
// @Tags         webhooks
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Webhook ID" format(uuid)
// @Success      200 {object} dto.Response{data=webhookapp.WebhookResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks/{id} [get]
func (h *WebhookHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	w, err := h.webhookService.GetByID(c.Request.Context(), tenantID, webhookID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, w)
}

// Update godoc
// @Summary      Update a webhook channel
// @Description  Update target, events, or retry settings. Secret rotation recreates the channel instead.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Webhook ID" format(uuid)
// @Param        request body webhookapp.UpdateWebhookRequest true "Webhook update request"
// @Success      200 {object} dto.Response{data=webhookapp.WebhookResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks/{id} [put]
func (h *WebhookHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	var req webhookapp.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	w, err := h.webhookService.Update(c.Request.Context(), tenantID, webhookID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, w)
}

// Pause godoc
// @Summary      Pause a webhook channel
// @Description  Stop deliveries (or inbound processing) until the channel is resumed
// @Tags         webhooks
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Webhook ID" format(uuid)
// @Success      200 {object} dto.Response{data=webhookapp.WebhookResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks/{id}/pause [post]
func (h *WebhookHandler) Pause(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	w, err := h.webhookService.Pause(c.Request.Context(), tenantID, webhookID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, w)
}

// Resume godoc
// @Summary      Resume a paused webhook channel
// @Description  Resume deliveries and reset the error state
// @Tags         webhooks
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Webhook ID" format(uuid)
// @Success      200 {object} dto.Response{data=webhookapp.WebhookResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks/{id}/resume [post]
func (h *WebhookHandler) Resume(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	w, err := h.webhookService.Resume(c.Request.Context(), tenantID, webhookID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, w)
}

// Deactivate godoc
// @Summary      Deactivate a webhook channel
// @Description  Soft-delete a webhook and purge its stored secret
// @Tags         webhooks
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Webhook ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks/{id} [delete]
func (h *WebhookHandler) Deactivate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	if err := h.webhookService.Deactivate(c.Request.Context(), tenantID, webhookID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Deliveries godoc
// @Summary      Get webhook delivery history
// @Description  Retrieve the delivery attempts of a webhook, newest first
// @Tags         webhooks
// @Produce      json
// @Param        X-Tenant-ID header string false "Tenant ID (optional for dev)"
// @Param        id path string true "Webhook ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} dto.Response{data=[]webhookapp.DeliveryLogResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /webhooks/{id}/deliveries [get]
func (h *WebhookHandler) Deliveries(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		h.BadRequest(c, "page must be a positive integer")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		h.BadRequest(c, "page_size must be between 1 and 100")
		return
	}

	deliveries, total, err := h.webhookService.Deliveries(c.Request.Context(), tenantID, webhookID, page, pageSize)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, deliveries, total, page, pageSize)
}

// Ingest godoc
// @Summary      Inbound webhook endpoint
// @Description  Receive an event from an external system. Unauthenticated; the HMAC signature header is verified instead.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        id path string true "Webhook ID" format(uuid)
// @Param        X-SyncHub-Signature header string true "HMAC signature of the raw body"
// @Success      200 {object} dto.Response{data=webhookapp.IngestResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /webhooks/inbound/{id} [post]
func (h *WebhookHandler) Ingest(c *gin.Context) {
	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboundBodySize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(body) > maxInboundBodySize {
		h.Error(c, 413, "ERR_PAYLOAD_TOO_LARGE", "Payload exceeds the inbound size limit")
		return
	}

	signature := c.GetHeader(webhookdomain.DefaultSignatureHeader)

	result, err := h.webhookService.Ingest(c.Request.Context(), webhookID, signature, body)
	if err != nil {
		// A replayed event is acknowledged, not failed: the remote already
		// delivered it once and must not keep retrying.
		if errors.Is(err, webhookdomain.ErrDuplicateEvent) {
			h.Success(c, webhookapp.IngestResult{WebhookID: webhookID})
			return
		}
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
