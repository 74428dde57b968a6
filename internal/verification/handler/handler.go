package handler

import (
	"net/http"

	"fleetcrm_backend/internal/verification/service"
	"fleetcrm_backend/internal/verification/transport"
	"fleetcrm_backend/platform/httpkit"
	"fleetcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPublicRoutes mounts the unauthenticated verification routes used by
// the signup wizard.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/verification/resend", h.Resend)
	rg.POST("/leads/:id/verification/verify", h.Verify)
}

func (h *Handler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if err := h.svc.IssueCode(c.Request.Context(), id); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.StatusResponse{Status: "sent"})
}

func (h *Handler) Verify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var req transport.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	if err := h.svc.VerifyCode(c.Request.Context(), id, req.Code); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, transport.StatusResponse{Status: "verified"})
}
