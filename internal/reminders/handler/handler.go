package handler

import (
	"net/http"

	"fleetcrm_backend/internal/reminders/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	clk clock.Clock
}

func New(svc *service.Service, clk clock.Clock) *Handler {
	return &Handler{svc: svc, clk: clk}
}

// RegisterCronRoutes mounts the sweep trigger for external schedulers.
func (h *Handler) RegisterCronRoutes(rg *gin.RouterGroup) {
	rg.POST("/reminders/sweep", h.RunSweep)
}

// RegisterPublicRoutes mounts confirm-link resolution.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/booking/confirm/:token", h.ResolveConfirm)
}

func (h *Handler) RunSweep(c *gin.Context) {
	summary := h.svc.RunSweep(c.Request.Context(), h.clk.Now())
	httpkit.OK(c, summary)
}

func (h *Handler) ResolveConfirm(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		httpkit.Error(c, http.StatusBadRequest, "invalid request")
		return
	}

	confirmation, err := h.svc.ResolveConfirmToken(c.Request.Context(), token)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, confirmation)
}
