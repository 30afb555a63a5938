package quota

import (
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
	r.GET("/v1/admin/tenants/:tenantId/usage",
		middleware.ManagerAuth(h.auth),
		middleware.Authorize(h.authz, accesscontrol.ObjUsage, accesscontrol.ActRead),
		h.summary,
	)
}

func (h *Handler) summary(c *gin.Context) {
	tenantID := c.Param("tenantId")
	identity := middleware.IdentityFrom(c)
	// tenant admins only see their own tenant
	if identity.Role != accesscontrol.RoleSuperAdmin && identity.TenantID != tenantID {
		_ = c.Error(errutil.Forbidden("Access denied", nil, errutil.WithReason(errutil.ReasonCrossTenantAccess)))
		return
	}

	out, err := h.svc.Summary(c.Request.Context(), tenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
