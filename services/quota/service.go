package quota

import (
	"context"
	"time"

	"promowheel/pkg/config"
	"promowheel/pkg/errutil"
	"promowheel/pkg/repository"
	"promowheel/services/tenant"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultUnlimitedSentinel int64 = 999999

var rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "promowheel_quota_rejections_total",
	Help: "Consumption requests refused by the monthly quota.",
}, []string{"kind"})

// Tenants is the slice of the tenant service the ledger reads.
type Tenants interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
	ActiveOverrides(ctx context.Context, tenantID string, now time.Time) ([]*tenant.TenantLimitOverride, error)
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	tenants   Tenants
	policy    Policy
	now       func() time.Time
	sentinel  int64
	usageRepo repository.Repository[MonthlyUsage]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Tenants Tenants
	Policy  Policy
	Config  *config.Config
	Clock   func() time.Time `name:"clock" optional:"true"`
}

func NewService(p ServiceParams) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	sentinel := defaultUnlimitedSentinel
	if p.Config != nil && p.Config.Quota.UnlimitedSentinel > 0 {
		sentinel = p.Config.Quota.UnlimitedSentinel
	}
	return &Service{
		db:        p.DB,
		node:      p.Node,
		tenants:   p.Tenants,
		policy:    p.Policy,
		now:       now,
		sentinel:  sentinel,
		usageRepo: repository.ProvideStore[MonthlyUsage](p.DB),
	}
}

func logger(ctx context.Context, tenantID string) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.String("tenant_id", tenantID),
	)
}

// period returns the billing month in UTC.
func (s *Service) period() (month, year int) {
	now := s.now().UTC()
	return int(now.Month()), now.Year()
}

// Strict reports whether the tenant runs the atomic Reserve/Release path.
func (s *Service) Strict(ctx context.Context, tenantID string) bool {
	if s.policy == nil {
		return false
	}
	return s.policy.StrictConsume(ctx, tenantID)
}

func (s *Service) resolve(v *int64) (int64, bool) {
	if v == nil || *v >= s.sentinel {
		return 0, true
	}
	return *v, false
}

// EffectiveLimits resolves the plan allowance plus every contributing
// override. A tenant with no plan at all gets a zero base allowance.
func (s *Service) EffectiveLimits(ctx context.Context, tenantID string) (EffectiveLimits, error) {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return EffectiveLimits{}, err
	}

	var out EffectiveLimits
	switch {
	case t.SubscriptionPlan != nil:
		out.Source = "subscription"
		out.Spins.Base, out.Spins.Unlimited = s.resolve(t.SubscriptionPlan.SpinsPerMonth)
		out.Vouchers.Base, out.Vouchers.Unlimited = s.resolve(t.SubscriptionPlan.VouchersPerMonth)
	case t.Plan != nil:
		out.Source = "plan"
		out.Spins.Base, out.Spins.Unlimited = s.resolve(t.Plan.SpinsPerMonth)
		out.Vouchers.Base, out.Vouchers.Unlimited = s.resolve(t.Plan.VouchersPerMonth)
	default:
		out.Source = "none"
	}

	overrides, err := s.tenants.ActiveOverrides(ctx, tenantID, s.now())
	if err != nil {
		logger(ctx, tenantID).Error("failed to load overrides", zap.Error(err))
		return EffectiveLimits{}, errutil.Internal("Failed to resolve quota", err)
	}
	for _, o := range overrides {
		out.Spins.Bonus += o.BonusSpins
		out.Vouchers.Bonus += o.BonusVouchers
	}

	return out, nil
}

func (s *Service) usage(ctx context.Context, tx *gorm.DB, tenantID string) (*MonthlyUsage, error) {
	month, year := s.period()
	return s.usageRepo.WithTrx(tx).FindOne(ctx, &MonthlyUsage{TenantID: tenantID, Month: month, Year: year})
}

// CurrentUsage returns the counters of the current month, zero when no
// consumption happened yet.
func (s *Service) CurrentUsage(ctx context.Context, tenantID string) (Usage, error) {
	month, year := s.period()
	u, err := s.usage(ctx, nil, tenantID)
	if err != nil {
		logger(ctx, tenantID).Error("failed to read monthly usage", zap.Error(err))
		return Usage{}, errutil.Internal("Failed to read usage", err)
	}
	out := Usage{Month: month, Year: year}
	if u != nil {
		out.SpinsUsed = u.SpinsUsed
		out.VouchersUsed = u.VouchersUsed
	}
	return out, nil
}

// CanConsume reports whether one more unit of kind fits under the tenant's
// effective limit.
func (s *Service) CanConsume(ctx context.Context, tenantID string, kind Kind) (bool, error) {
	limits, err := s.EffectiveLimits(ctx, tenantID)
	if err != nil {
		return false, err
	}
	limit := limits.For(kind)
	if limit.Unlimited {
		return true, nil
	}

	u, err := s.usage(ctx, nil, tenantID)
	if err != nil {
		logger(ctx, tenantID).Error("failed to read monthly usage", zap.Error(err))
		return false, errutil.Internal("Failed to read usage", err)
	}

	ok := limit.Allows(u.used(kind))
	if !ok {
		rejections.WithLabelValues(string(kind)).Inc()
	}
	return ok, nil
}

// Consume increments the current month's counter for kind, creating the
// row on first use. Callers check CanConsume first.
func (s *Service) Consume(ctx context.Context, tenantID string, kind Kind) (*MonthlyUsage, error) {
	if err := s.increment(ctx, s.db, tenantID, kind); err != nil {
		logger(ctx, tenantID).Error("failed to consume quota", zap.String("kind", string(kind)), zap.Error(err))
		return nil, errutil.Internal("Failed to consume quota", err)
	}

	u, err := s.usage(ctx, nil, tenantID)
	if err != nil {
		return nil, errutil.Internal("Failed to read usage", err)
	}
	return u, nil
}

func (s *Service) increment(ctx context.Context, tx *gorm.DB, tenantID string, kind Kind) error {
	month, year := s.period()
	now := s.now()

	row := &MonthlyUsage{
		ID:        s.node.Generate().String(),
		TenantID:  tenantID,
		Month:     month,
		Year:      year,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == KindVoucher {
		row.VouchersUsed = 1
	} else {
		row.SpinsUsed = 1
	}

	col := kind.column()
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "month"}, {Name: "year"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			col:          gorm.Expr("monthly_usages."+col+" + ?", 1),
			"updated_at": now,
		}),
	}).Create(row).Error
}

func (s *Service) ensureRow(ctx context.Context, tenantID string) error {
	month, year := s.period()
	now := s.now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "month"}, {Name: "year"}},
		DoNothing: true,
	}).Create(&MonthlyUsage{
		ID:        s.node.Generate().String(),
		TenantID:  tenantID,
		Month:     month,
		Year:      year,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

// Reserve checks and consumes one unit in a single conditional write, so
// concurrent callers can never push usage past the limit. It returns false
// when the limit is reached.
func (s *Service) Reserve(ctx context.Context, tenantID string, kind Kind) (bool, error) {
	zapLog := logger(ctx, tenantID).With(zap.String("kind", string(kind)))

	limits, err := s.EffectiveLimits(ctx, tenantID)
	if err != nil {
		return false, err
	}
	limit := limits.For(kind)
	if limit.Unlimited {
		if err := s.increment(ctx, s.db, tenantID, kind); err != nil {
			zapLog.Error("failed to consume quota", zap.Error(err))
			return false, errutil.Internal("Failed to reserve quota", err)
		}
		return true, nil
	}

	if err := s.ensureRow(ctx, tenantID); err != nil {
		zapLog.Error("failed to create usage row", zap.Error(err))
		return false, errutil.Internal("Failed to reserve quota", err)
	}

	month, year := s.period()
	col := kind.column()
	res := s.db.WithContext(ctx).
		Model(&MonthlyUsage{}).
		Where("tenant_id = ? AND month = ? AND year = ? AND "+col+" < ?", tenantID, month, year, limit.Total()).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col+" + ?", 1),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		zapLog.Error("failed to reserve quota", zap.Error(res.Error))
		return false, errutil.Internal("Failed to reserve quota", res.Error)
	}
	if res.RowsAffected == 0 {
		rejections.WithLabelValues(string(kind)).Inc()
		return false, nil
	}
	return true, nil
}

// Release gives back a unit taken by Reserve. It never drops below zero.
func (s *Service) Release(ctx context.Context, tenantID string, kind Kind) error {
	month, year := s.period()
	col := kind.column()
	res := s.db.WithContext(ctx).
		Model(&MonthlyUsage{}).
		Where("tenant_id = ? AND month = ? AND year = ? AND "+col+" > 0", tenantID, month, year).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col+" - ?", 1),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		logger(ctx, tenantID).Error("failed to release quota", zap.String("kind", string(kind)), zap.Error(res.Error))
		return errutil.Internal("Failed to release quota", res.Error)
	}
	return nil
}

func (s *Service) Summary(ctx context.Context, tenantID string) (*Summary, error) {
	limits, err := s.EffectiveLimits(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	usage, err := s.CurrentUsage(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := &Summary{TenantID: tenantID, Usage: usage, Limits: limits}
	out.Remaining.Spins = limits.Spins.Remaining(usage.SpinsUsed)
	out.Remaining.Vouchers = limits.Vouchers.Remaining(usage.VouchersUsed)
	return out, nil
}
