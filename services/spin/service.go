package spin

import (
	"context"
	"fmt"
	"time"

	"promowheel/pkg/errutil"
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/notification"
	"promowheel/services/quota"
	"promowheel/services/tenant"
	"promowheel/services/voucher"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	spinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promowheel_spins_total",
		Help: "Completed spins by outcome.",
	}, []string{"outcome"})
	spinRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promowheel_spin_rejections_total",
		Help: "Spin requests refused before a spin was recorded, by reason.",
	}, []string{"reason"})
)

type Users interface {
	Get(ctx context.Context, userID string) (*customer.EndUser, error)
	GetInTenant(ctx context.Context, tenantID, userID string) (*customer.EndUser, error)
	IncrementReferrals(ctx context.Context, tenantID, userID string) (int, error)
}

type Catalog interface {
	GetCampaign(ctx context.Context, campaignID string) (*campaign.Campaign, error)
	CountSpins(ctx context.Context, userID, campaignID string, bonus bool, since *time.Time) (int64, error)
	DecrementStock(ctx context.Context, prizeID string) (bool, error)
	CreateSpin(ctx context.Context, spin *campaign.Spin) error
}

type Tenants interface {
	GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error)
}

type Selector interface {
	SelectPrize(ctx context.Context, c *campaign.Campaign, loc *time.Location, requestedPrizeID *string) (*campaign.Prize, error)
}

type Quota interface {
	Strict(ctx context.Context, tenantID string) bool
	CanConsume(ctx context.Context, tenantID string, kind quota.Kind) (bool, error)
	Consume(ctx context.Context, tenantID string, kind quota.Kind) (*quota.MonthlyUsage, error)
	Reserve(ctx context.Context, tenantID string, kind quota.Kind) (bool, error)
	Release(ctx context.Context, tenantID string, kind quota.Kind) error
}

type Vouchers interface {
	CreateVoucher(ctx context.Context, req voucher.CreateVoucherRequest) (*voucher.Voucher, error)
}

type Service struct {
	node     *snowflake.Node
	users    Users
	catalog  Catalog
	tenants  Tenants
	selector Selector
	quota    Quota
	vouchers Vouchers
	notifier notification.Notifier
	now      func() time.Time
}

type ServiceParams struct {
	fx.In
	Node     *snowflake.Node
	Users    Users
	Catalog  Catalog
	Tenants  Tenants
	Selector Selector
	Quota    Quota
	Vouchers Vouchers
	Notifier notification.Notifier `optional:"true"`
	Clock    func() time.Time      `name:"clock" optional:"true"`
}

func NewService(p ServiceParams) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		node:     p.Node,
		users:    p.Users,
		catalog:  p.Catalog,
		tenants:  p.Tenants,
		selector: p.Selector,
		quota:    p.Quota,
		vouchers: p.Vouchers,
		notifier: p.Notifier,
		now:      now,
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

func reject(err error) error {
	spinRejections.WithLabelValues(errutil.ReasonOf(err)).Inc()
	return err
}

// admit runs the preconditions that do not touch the quota, in order.
func (s *Service) admit(ctx context.Context, req SpinRequest) (*customer.EndUser, *campaign.Campaign, error) {
	if req.UserID == "" || req.CampaignID == "" {
		return nil, nil, errutil.BadRequest("userId and campaignId are required", nil, errutil.WithReason(errutil.ReasonInvalidRequest))
	}

	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, nil, errutil.Internal("Failed to load user", err)
	}
	if user == nil {
		return nil, nil, errutil.NotFound("User not found", nil, errutil.WithReason(errutil.ReasonUserNotFound))
	}

	c, err := s.catalog.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, nil, errutil.Internal("Failed to load campaign", err)
	}
	if c == nil {
		return nil, nil, errutil.NotFound("Campaign not found", nil, errutil.WithReason(errutil.ReasonCampaignNotFound))
	}
	if c.TenantID != user.TenantID {
		logger(ctx, user.TenantID).Warn("cross-tenant spin attempt",
			zap.String("user_id", user.ID),
			zap.String("campaign_id", c.ID),
		)
		return nil, nil, errutil.Forbidden("Campaign does not belong to the user's tenant", nil, errutil.WithReason(errutil.ReasonCrossTenantViolation))
	}
	if !c.IsRunning(s.now()) {
		return nil, nil, errutil.BadRequest("Campaign is not active", nil, errutil.WithReason(errutil.ReasonCampaignInactive))
	}

	if req.IsReferralBonus {
		used, err := s.catalog.CountSpins(ctx, user.ID, c.ID, true, nil)
		if err != nil {
			return nil, nil, errutil.Internal("Failed to count spins", err)
		}
		if used >= BonusSpinsEarned(user, c) {
			return nil, nil, errutil.TooManyRequest("No bonus spins available", nil, errutil.WithReason(errutil.ReasonNoBonusSpinsAvailable))
		}
		return user, c, nil
	}

	if c.SpinLimit > 0 {
		used, err := s.catalog.CountSpins(ctx, user.ID, c.ID, false, CooldownStart(c, s.now()))
		if err != nil {
			return nil, nil, errutil.Internal("Failed to count spins", err)
		}
		if used >= int64(c.SpinLimit) {
			msg := fmt.Sprintf("Spin limit of %d reached", c.SpinLimit)
			if c.SpinCooldownHours > 0 {
				msg = fmt.Sprintf("Spin limit of %d per %d hours reached", c.SpinLimit, c.SpinCooldownHours)
			}
			return nil, nil, errutil.TooManyRequest(msg, nil, errutil.WithReason(errutil.ReasonCooldownLimitReached))
		}
	}
	return user, c, nil
}

func quotaExceeded() error {
	return errutil.TooManyRequest("Monthly spin quota exceeded", nil, errutil.WithReason(errutil.ReasonMonthlyQuotaExceeded))
}

// Spin resolves one wheel turn. Only the spin record is mandatory once a
// prize is selected; stock, notification, voucher and referral effects are
// best effort.
func (s *Service) Spin(ctx context.Context, req SpinRequest) (*SpinResult, error) {
	user, c, err := s.admit(ctx, req)
	if err != nil {
		return nil, reject(err)
	}

	zapLog := logger(ctx, c.TenantID).With(
		zap.String("user_id", user.ID),
		zap.String("campaign_id", c.ID),
		zap.Bool("referral_bonus", req.IsReferralBonus),
	)

	t, err := s.tenants.GetTenant(ctx, c.TenantID)
	if err != nil {
		zapLog.Error("failed to load tenant", zap.Error(err))
		return nil, reject(err)
	}

	strict := s.quota.Strict(ctx, c.TenantID)
	var ok bool
	if strict {
		ok, err = s.quota.Reserve(ctx, c.TenantID, quota.KindSpin)
	} else {
		ok, err = s.quota.CanConsume(ctx, c.TenantID, quota.KindSpin)
	}
	if err != nil {
		zapLog.Error("failed to check spin quota", zap.Error(err))
		return nil, reject(errutil.Internal("Failed to check quota", err))
	}
	if !ok {
		return nil, reject(quotaExceeded())
	}

	// a reservation is returned unless the spin row gets written
	recorded := false
	if strict {
		defer func() {
			if recorded {
				return
			}
			if err := s.quota.Release(context.WithoutCancel(ctx), c.TenantID, quota.KindSpin); err != nil {
				zapLog.Error("failed to release spin reservation", zap.Error(err))
			}
		}()
	}

	prize, err := s.selector.SelectPrize(ctx, c, t.Location(), req.RequestedPrizeID)
	if err != nil {
		return nil, reject(err)
	}

	tryAgain := prize.ShowTryAgainMessage
	won := prize.IsWinning()

	if won && prize.CurrentStock != nil {
		taken, err := s.catalog.DecrementStock(ctx, prize.ID)
		switch {
		case err != nil:
			zapLog.Error("failed to decrement stock", zap.String("prize_id", prize.ID), zap.Error(err))
		case !taken:
			zapLog.Info("prize stock taken by a concurrent spin", zap.String("prize_id", prize.ID))
		}
	}

	record := &campaign.Spin{
		ID:              s.node.Generate().String(),
		UserID:          user.ID,
		CampaignID:      c.ID,
		PrizeID:         prize.ID,
		WonPrize:        won,
		IsReferralBonus: req.IsReferralBonus,
		SpinDate:        s.now().UTC(),
	}
	if err := s.catalog.CreateSpin(ctx, record); err != nil {
		zapLog.Error("failed to record spin", zap.String("prize_id", prize.ID), zap.Error(err))
		return nil, reject(errutil.Internal("Failed to record spin", err))
	}
	recorded = true

	if !strict {
		if _, err := s.quota.Consume(ctx, c.TenantID, quota.KindSpin); err != nil {
			zapLog.Error("failed to consume spin quota", zap.String("spin_id", record.ID), zap.Error(err))
		}
	}

	result := &SpinResult{
		Success:  true,
		SpinID:   record.ID,
		WonPrize: won,
		TryAgain: tryAgain,
		Prize:    summarize(prize),
	}

	switch {
	case tryAgain:
		spinsTotal.WithLabelValues("try_again").Inc()
		zapLog.Info("spin resolved", zap.String("spin_id", record.ID), zap.String("outcome", "try_again"))
		return result, nil
	case won:
		spinsTotal.WithLabelValues("won").Inc()
		result.VoucherCode = s.issueVoucher(ctx, zapLog, t, user, prize, record)
		s.notifyWin(ctx, zapLog, user, prize, result.VoucherCode)
	default:
		spinsTotal.WithLabelValues("lost").Inc()
	}

	if !req.IsReferralBonus {
		result.ReferrerBonusAwarded, result.ReferrerID = s.creditReferrer(ctx, zapLog, user, c)
	}

	zapLog.Info("spin resolved",
		zap.String("spin_id", record.ID),
		zap.String("prize_id", prize.ID),
		zap.Bool("won", won),
	)
	return result, nil
}

// issueVoucher returns the new voucher code, or "" when no voucher could be
// issued. The spin stands either way.
func (s *Service) issueVoucher(ctx context.Context, zapLog *zap.Logger, t *tenant.Tenant, user *customer.EndUser, prize *campaign.Prize, record *campaign.Spin) string {
	if s.vouchers == nil {
		return ""
	}
	v, err := s.vouchers.CreateVoucher(ctx, voucher.CreateVoucherRequest{
		SpinID:          record.ID,
		PrizeID:         prize.ID,
		CampaignID:      record.CampaignID,
		UserID:          user.ID,
		TenantID:        t.ID,
		TenantSlug:      t.Slug,
		ValidityDays:    prize.VoucherValidityDays,
		RedemptionLimit: prize.VoucherRedemptionLimit,
		GenerateQR:      prize.SendQRCode,
	})
	if err != nil {
		zapLog.Warn("voucher not issued for winning spin",
			zap.String("spin_id", record.ID),
			zap.String("reason", errutil.ReasonOf(err)),
			zap.Error(err),
		)
		return ""
	}
	return v.Code
}

func (s *Service) notifyWin(ctx context.Context, zapLog *zap.Logger, user *customer.EndUser, prize *campaign.Prize, voucherCode string) {
	if s.notifier == nil {
		return
	}
	code := voucherCode
	if code == "" {
		code = prize.CouponCode
	}
	err := s.notifier.SendPrizeNotification(ctx, notification.PrizeNotification{
		TenantID:   user.TenantID,
		UserID:     user.ID,
		Phone:      user.Phone,
		UserName:   user.Name,
		PrizeName:  prize.Name,
		CouponCode: code,
	})
	if err != nil {
		zapLog.Warn("failed to send prize notification", zap.Error(err))
	}
}

// creditReferrer counts this spin towards the user's referrer. It reports
// whether the referrer just completed a referral batch.
func (s *Service) creditReferrer(ctx context.Context, zapLog *zap.Logger, user *customer.EndUser, c *campaign.Campaign) (bool, string) {
	if user.ReferredByID == nil || *user.ReferredByID == "" || c.ReferralsRequiredForSpin <= 0 {
		return false, ""
	}
	referrerID := *user.ReferredByID

	referrer, err := s.users.GetInTenant(ctx, user.TenantID, referrerID)
	if err != nil {
		zapLog.Error("failed to load referrer", zap.String("referrer_id", referrerID), zap.Error(err))
		return false, ""
	}
	if referrer == nil {
		zapLog.Warn("referrer not found in tenant", zap.String("referrer_id", referrerID))
		return false, ""
	}

	count, err := s.users.IncrementReferrals(ctx, user.TenantID, referrer.ID)
	if err != nil {
		zapLog.Error("failed to credit referral", zap.String("referrer_id", referrer.ID), zap.Error(err))
		return false, ""
	}
	if !referralMilestone(count, c.ReferralsRequiredForSpin) {
		return false, ""
	}

	zapLog.Info("referrer earned a bonus spin", zap.String("referrer_id", referrer.ID), zap.Int("successful_referrals", count))
	return true, referrer.ID
}
