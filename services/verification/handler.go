package verification

import (
	"context"
	"net/http"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/errutil"
	"promowheel/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	svc   *Service
	auth  middleware.IdentityValidator
	authz accesscontrol.Authorizer
}

type HandlerParams struct {
	fx.In
	Service    *Service
	Validator  middleware.IdentityValidator
	Authorizer accesscontrol.Authorizer
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{svc: p.Service, auth: p.Validator, authz: p.Authorizer}
}

func (h *Handler) Register(r gin.IRouter) {
	read := middleware.Authorize(h.authz, accesscontrol.ObjTask, accesscontrol.ActRead)
	verify := middleware.Authorize(h.authz, accesscontrol.ObjTask, accesscontrol.ActVerify)

	g := r.Group("/v1/manager/tasks", middleware.ManagerAuth(h.auth))
	g.GET("", read, h.list)
	g.GET("/:taskId", read, h.detail)
	g.POST("/:taskId/approve", verify, h.approve)
	g.POST("/:taskId/reject", verify, h.reject)
}

type decisionRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) list(c *gin.Context) {
	var f TaskFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid query", err, errutil.WithReason(errutil.ReasonInvalidRequest)))
		return
	}

	resp, err := h.svc.GetPendingTasks(c.Request.Context(), middleware.IdentityFrom(c).ManagerID, f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) detail(c *gin.Context) {
	resp, err := h.svc.GetTaskDetail(c.Request.Context(), middleware.IdentityFrom(c).ManagerID, c.Param("taskId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) approve(c *gin.Context) {
	h.decide(c, h.svc.ApproveTask)
}

func (h *Handler) reject(c *gin.Context) {
	h.decide(c, h.svc.RejectTask)
}

func (h *Handler) decide(c *gin.Context, fn func(ctx context.Context, managerID, completionID, comment string) (*Decision, error)) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid request body", err, errutil.WithReason(errutil.ReasonInvalidRequest)))
		return
	}

	resp, err := fn(c.Request.Context(), middleware.IdentityFrom(c).ManagerID, c.Param("taskId"), req.Comment)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
