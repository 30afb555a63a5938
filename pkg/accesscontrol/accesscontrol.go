package accesscontrol

import (
	"promowheel/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accesscontrol", fx.Provide(New))

// Roles carried by authenticated actors.
const (
	RoleManager    = "manager"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Objects and actions checked by the HTTP layer.
const (
	ObjVoucher  = "voucher"
	ObjTask     = "task"
	ObjUsage    = "usage"
	ObjOverride = "override"

	ActRead   = "read"
	ActRedeem = "redeem"
	ActVerify = "verify"
	ActGrant  = "grant"
)

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var defaultPolicies = [][]string{
	{RoleManager, ObjVoucher, ActRead},
	{RoleManager, ObjVoucher, ActRedeem},
	{RoleManager, ObjTask, ActRead},
	{RoleManager, ObjTask, ActVerify},
	{RoleAdmin, ObjUsage, ActRead},
	{RoleSuperAdmin, ObjUsage, ActRead},
	{RoleSuperAdmin, ObjOverride, ActRead},
	{RoleSuperAdmin, ObjOverride, ActGrant},
}

var defaultGroupings = [][]string{
	{RoleAdmin, RoleManager},
}

type Authorizer interface {
	Allowed(role, obj, act string) bool
}

type enforcer struct {
	e *casbin.Enforcer
}

// New loads ACCESS_CONTROL.MODEL / ACCESS_CONTROL.POLICY files when both are
// set, otherwise the built-in role table.
func New(cfg *config.Config) (Authorizer, error) {
	if cfg != nil && cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		e, err := casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
		if err != nil {
			zap.L().Error("failed to load access control files", zap.Error(err))
			return nil, err
		}
		return &enforcer{e: e}, nil
	}
	return NewDefault()
}

func NewDefault() (Authorizer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicies(defaultGroupings); err != nil {
		return nil, err
	}

	return &enforcer{e: e}, nil
}

func (a *enforcer) Allowed(role, obj, act string) bool {
	ok, err := a.e.Enforce(role, obj, act)
	if err != nil {
		zap.L().Error("access control evaluation failed", zap.String("role", role), zap.String("obj", obj), zap.String("act", act), zap.Error(err))
		return false
	}
	return ok
}

// Identity is the resolved actor behind a session token.
type Identity struct {
	ManagerID string `json:"managerId"`
	TenantID  string `json:"tenantId"`
	Role      string `json:"role"`
}
