package handler

import (
	"net/http"

	"fleetcrm_backend/internal/nurturing/service"
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
	rg.POST("/nurturing/sweep", h.RunSweep)
}

// RegisterPublicRoutes mounts resume-link resolution.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/resume/:token", h.ResolveResume)
}

func (h *Handler) RunSweep(c *gin.Context) {
	summary := h.svc.RunSweep(c.Request.Context(), h.clk.Now())
	httpkit.OK(c, summary)
}

func (h *Handler) ResolveResume(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		httpkit.Error(c, http.StatusBadRequest, "invalid request")
		return
	}

	target, err := h.svc.ResolveResumeToken(c.Request.Context(), token, h.clk.Now())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, target)
}
