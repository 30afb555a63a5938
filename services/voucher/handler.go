package voucher

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
	read := middleware.Authorize(h.authz, accesscontrol.ObjVoucher, accesscontrol.ActRead)
	redeem := middleware.Authorize(h.authz, accesscontrol.ObjVoucher, accesscontrol.ActRedeem)

	g := r.Group("/v1/vouchers", middleware.ManagerAuth(h.auth))
	g.GET("", read, h.list)
	g.GET("/stats", read, h.stats)
	g.GET("/phone/:phone", read, h.byPhone)
	g.POST("/:code/validate", read, h.validate)
	g.POST("/:code/redeem", redeem, h.redeem)
}

func (h *Handler) list(c *gin.Context) {
	var f VoucherFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid query", err, errutil.WithReason(errutil.ReasonInvalidRequest)))
		return
	}

	resp, err := h.svc.GetVouchers(c.Request.Context(), middleware.IdentityFrom(c).TenantID, f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) stats(c *gin.Context) {
	resp, err := h.svc.GetVoucherStats(c.Request.Context(), middleware.IdentityFrom(c).TenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) byPhone(c *gin.Context) {
	vouchers, err := h.svc.GetVouchersByPhone(c.Request.Context(), c.Param("phone"), middleware.IdentityFrom(c).TenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": vouchers})
}

func (h *Handler) validate(c *gin.Context) {
	resp, err := h.svc.ValidateVoucher(c.Request.Context(), c.Param("code"), middleware.IdentityFrom(c).TenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) redeem(c *gin.Context) {
	identity := middleware.IdentityFrom(c)
	v, err := h.svc.RedeemVoucher(c.Request.Context(), c.Param("code"), identity.ManagerID, identity.TenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "voucher": v})
}
