package session

import (
	"net/http"

	"promowheel/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	store Store
}

type HandlerParams struct {
	fx.In
	Store Store
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{store: p.Store}
}

func (h *Handler) Register(r gin.IRouter) {
	r.DELETE("/v1/manager/session", middleware.ManagerAuth(h.store), h.logout)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.store.Invalidate(c.Request.Context(), middleware.TokenFrom(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
