package spin

import (
	"net/http"

	"promowheel/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	svc *Service
}

type HandlerParams struct {
	fx.In
	Service *Service
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{svc: p.Service}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/v1/spins", h.spin)
}

func (h *Handler) spin(c *gin.Context) {
	var req SpinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid request body", err, errutil.WithReason(errutil.ReasonInvalidRequest)))
		return
	}

	resp, err := h.svc.Spin(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
