package tenant

import (
	"net/http"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/db/pagination"
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
	g := r.Group("/v1/admin/tenants/:tenantId/overrides", middleware.ManagerAuth(h.auth))
	g.GET("", middleware.Authorize(h.authz, accesscontrol.ObjOverride, accesscontrol.ActRead), h.listOverrides)
	g.POST("", middleware.Authorize(h.authz, accesscontrol.ObjOverride, accesscontrol.ActGrant), h.grantOverride)
	g.DELETE("/:overrideId", middleware.Authorize(h.authz, accesscontrol.ObjOverride, accesscontrol.ActGrant), h.deactivateOverride)
}

func (h *Handler) grantOverride(c *gin.Context) {
	var req GrantOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid request body", err, errutil.WithReason(errutil.ReasonInvalidOverride)))
		return
	}
	req.TenantID = c.Param("tenantId")
	req.GrantedBy = middleware.IdentityFrom(c).ManagerID

	o, err := h.svc.GrantOverride(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "override": o})
}

func (h *Handler) listOverrides(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid query", err))
		return
	}

	resp, err := h.svc.ListOverrides(c.Request.Context(), ListOverridesRequest{
		TenantID:   c.Param("tenantId"),
		ActiveOnly: c.Query("active") == "true",
		Pagination: p,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deactivateOverride(c *gin.Context) {
	if err := h.svc.DeactivateOverride(c.Request.Context(), c.Param("tenantId"), c.Param("overrideId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
