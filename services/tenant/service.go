package tenant

import (
	"context"
	"strings"
	"time"

	"promowheel/pkg/db/option"
	"promowheel/pkg/db/pagination"
	"promowheel/pkg/errutil"
	"promowheel/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	now       func() time.Time
	repo      repository.Repository[Tenant]
	overrides repository.Repository[TenantLimitOverride]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		now:       func() time.Time { return time.Now().UTC() },
		repo:      repository.ProvideStore[Tenant](p.DB),
		overrides: repository.ProvideStore[TenantLimitOverride](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// GetTenant returns the tenant with both plan sources preloaded.
func (s *Service) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	t, err := s.repo.FindOne(ctx, nil,
		option.WithWhere("id = ?", tenantID),
		option.WithPreload("Plan"),
		option.WithPreload("SubscriptionPlan"),
	)
	if err != nil {
		logger(ctx).Error("failed to get tenant", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, errutil.Internal("Failed to get tenant", err)
	}
	if t == nil {
		return nil, errutil.NotFound("Tenant not found", nil, errutil.WithReason(errutil.ReasonTenantNotFound))
	}
	return t, nil
}

// ActiveOverrides lists overrides that contribute to the tenant's limits at now.
func (s *Service) ActiveOverrides(ctx context.Context, tenantID string, now time.Time) ([]*TenantLimitOverride, error) {
	return s.overrides.Find(ctx, nil,
		option.WithWhere("tenant_id = ? AND is_active = ?", tenantID, true),
		option.WithWhere("expires_at IS NULL OR expires_at > ?", now.UTC()),
	)
}

type GrantOverrideRequest struct {
	TenantID      string     `json:"-"`
	BonusSpins    int64      `json:"bonusSpins"`
	BonusVouchers int64      `json:"bonusVouchers"`
	Reason        string     `json:"reason"`
	GrantedBy     string     `json:"-"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

func (r GrantOverrideRequest) validate(now time.Time) error {
	var details []errutil.Detail
	if r.BonusSpins < 0 {
		details = append(details, errutil.Detail{Field: "bonusSpins", Message: "must not be negative"})
	}
	if r.BonusVouchers < 0 {
		details = append(details, errutil.Detail{Field: "bonusVouchers", Message: "must not be negative"})
	}
	if r.BonusSpins <= 0 && r.BonusVouchers <= 0 {
		details = append(details, errutil.Detail{Field: "bonusSpins", Message: "at least one bonus must be positive"})
	}
	if strings.TrimSpace(r.Reason) == "" {
		details = append(details, errutil.Detail{Field: "reason", Message: "is required"})
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		details = append(details, errutil.Detail{Field: "expiresAt", Message: "must be in the future"})
	}
	if len(details) > 0 {
		return errutil.BadRequest("Invalid override", nil,
			errutil.WithReason(errutil.ReasonInvalidOverride),
			errutil.WithDetails(details...),
		)
	}
	return nil
}

// GrantOverride adds an additive bonus allowance to a tenant. It takes effect
// on the next quota check.
func (s *Service) GrantOverride(ctx context.Context, req GrantOverrideRequest) (*TenantLimitOverride, error) {
	zapLog := logger(ctx).With(zap.String("tenant_id", req.TenantID), zap.String("granted_by", req.GrantedBy))

	now := s.now()
	if err := req.validate(now); err != nil {
		return nil, err
	}

	t, err := s.repo.FindOne(ctx, nil, option.WithWhere("id = ?", req.TenantID))
	if err != nil {
		zapLog.Error("failed to get tenant", zap.Error(err))
		return nil, errutil.Internal("Failed to grant override", err)
	}
	if t == nil {
		return nil, errutil.NotFound("Tenant not found", nil, errutil.WithReason(errutil.ReasonTenantNotFound))
	}

	if req.ExpiresAt != nil {
		exp := req.ExpiresAt.UTC()
		req.ExpiresAt = &exp
	}

	o := &TenantLimitOverride{
		ID:            s.node.Generate().String(),
		TenantID:      req.TenantID,
		BonusSpins:    req.BonusSpins,
		BonusVouchers: req.BonusVouchers,
		Reason:        strings.TrimSpace(req.Reason),
		GrantedBy:     req.GrantedBy,
		ExpiresAt:     req.ExpiresAt,
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.overrides.Create(ctx, o); err != nil {
		zapLog.Error("failed to create override", zap.Error(err))
		return nil, errutil.Internal("Failed to grant override", err)
	}

	zapLog.Info("override granted",
		zap.String("override_id", o.ID),
		zap.Int64("bonus_spins", o.BonusSpins),
		zap.Int64("bonus_vouchers", o.BonusVouchers),
	)
	return o, nil
}

type ListOverridesRequest struct {
	TenantID   string
	ActiveOnly bool
	pagination.Pagination
}

type ListOverridesResponse struct {
	Overrides []*TenantLimitOverride `json:"overrides"`
	PageInfo  *pagination.PageInfo   `json:"pageInfo"`
}

func (s *Service) ListOverrides(ctx context.Context, req ListOverridesRequest) (*ListOverridesResponse, error) {
	limit := pagination.Page{Limit: req.Limit}.Normalize().Limit
	req.Limit = limit

	opts := []option.QueryOption{
		option.WithWhere("tenant_id = ?", req.TenantID),
		option.ApplyPagination(req.Pagination),
	}
	if req.ActiveOnly {
		opts = append(opts, option.WithWhere("is_active = ? AND (expires_at IS NULL OR expires_at > ?)", true, s.now()))
	}

	rows, err := s.overrides.Find(ctx, nil, opts...)
	if err != nil {
		logger(ctx).Error("failed to list overrides", zap.String("tenant_id", req.TenantID), zap.Error(err))
		return nil, errutil.Internal("Failed to list overrides", err)
	}

	rows, pageInfo := pagination.BuildCursorPageInfo(rows, limit, func(o *TenantLimitOverride) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt.Format(time.RFC3339Nano), ID: o.ID}
	})

	return &ListOverridesResponse{Overrides: rows, PageInfo: pageInfo}, nil
}

// DeactivateOverride stops an override from contributing. Overrides of
// another tenant are reported as not found.
func (s *Service) DeactivateOverride(ctx context.Context, tenantID, overrideID string) error {
	res := s.db.WithContext(ctx).
		Model(&TenantLimitOverride{}).
		Where("id = ? AND tenant_id = ?", overrideID, tenantID).
		Update("is_active", false)
	if res.Error != nil {
		logger(ctx).Error("failed to deactivate override", zap.String("override_id", overrideID), zap.Error(res.Error))
		return errutil.Internal("Failed to deactivate override", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("Override not found", nil)
	}
	return nil
}

// DeactivateExpired flips is_active on every override whose expiry passed.
func (s *Service) DeactivateExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&TenantLimitOverride{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, s.now()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
