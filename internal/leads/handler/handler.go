package handler

import (
	"net/http"
	"strconv"

	"fleetcrm_backend/internal/leads/domain"
	"fleetcrm_backend/internal/leads/service"
	"fleetcrm_backend/internal/leads/transport"
	"fleetcrm_backend/platform/httpkit"
	"fleetcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterStaffRoutes mounts the authenticated CRM routes.
func (h *Handler) RegisterStaffRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/activity", h.ListActivity)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// RegisterPublicRoutes mounts the unauthenticated wizard routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.Create)
	rg.POST("/leads/:id/profile", h.CompleteProfileStep)
	rg.POST("/leads/:id/callback", h.RequestCallback)
}

// RegisterWebhookRoutes mounts the scheduling-provider webhook.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/booking", h.BookingWebhook)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) List(c *gin.Context) {
	var statusFilter *domain.Status
	if raw := c.Query("status"); raw != "" {
		status, ok := transport.ParseStatus(raw)
		if !ok {
			httpkit.Error(c, http.StatusBadRequest, "unknown status filter")
			return
		}
		statusFilter = &status
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	leads, err := h.svc.List(c.Request.Context(), statusFilter, limit, offset)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"items": leads})
}

func (h *Handler) ListActivity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	items, err := h.svc.ListActivity(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	target, ok := transport.ParseStatus(req.Status)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, "unknown target status")
		return
	}

	actor := "staff:unknown"
	if userID := httpkit.ActorID(c); userID != nil {
		actor = "staff:" + userID.String()
	}

	lead, err := h.svc.Transition(c.Request.Context(), id, target, domain.TransitionContext{
		Reason:  req.Reason,
		Comment: req.Comment,
		Actor:   actor,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) CompleteProfileStep(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var req transport.ProfileStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed)
		return
	}

	lead, err := h.svc.CompleteProfileStep(c.Request.Context(), id, req, c.ClientIP())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) RequestCallback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	lead, err := h.svc.RequestCallback(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) BookingWebhook(c *gin.Context) {
	var req transport.BookingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	lead, err := h.svc.ApplyBookingWebhook(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, lead)
}
