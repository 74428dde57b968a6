package handler

import (
	"net/http"
	"strconv"

	"fleetcrm_backend/internal/blacklist/service"
	"fleetcrm_backend/internal/blacklist/transport"
	"fleetcrm_backend/platform/httpkit"
	"fleetcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterStaffRoutes mounts the authenticated admin routes.
func (h *Handler) RegisterStaffRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Add)
	rg.DELETE("/:email", h.Remove)
}

func (h *Handler) List(c *gin.Context) {
	includeRemoved := c.Query("includeRemoved") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.svc.List(c.Request.Context(), includeRemoved, limit, offset)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"items": transport.ToEntryResponses(entries)})
}

func (h *Handler) Add(c *gin.Context) {
	var req transport.AddEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	entry, err := h.svc.Add(c.Request.Context(), req.Email, req.Reason, staffActor(c))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.ToEntryResponse(entry))
}

func (h *Handler) Remove(c *gin.Context) {
	email := c.Param("email")
	if email == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if err := h.svc.Remove(c.Request.Context(), email, staffActor(c)); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func staffActor(c *gin.Context) string {
	if userID := httpkit.ActorID(c); userID != nil {
		return "staff:" + userID.String()
	}
	return "staff:unknown"
}
