package spin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"promowheel/pkg/config"
	"promowheel/pkg/errutil"
	"promowheel/pkg/sequence"
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/manager"
	"promowheel/services/notification"
	"promowheel/services/prize"
	"promowheel/services/quota"
	"promowheel/services/tenant"
	"promowheel/services/testutil"
	"promowheel/services/voucher"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixedRand always lands at the start of the wheel.
type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

type recordingNotifier struct {
	mu     sync.Mutex
	prizes []notification.PrizeNotification
	err    error
}

func (n *recordingNotifier) SendPrizeNotification(_ context.Context, p notification.PrizeNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prizes = append(n.prizes, p)
	return n.err
}

func (n *recordingNotifier) SendApprovalNotification(context.Context, string, string, string) error {
	return nil
}

func (n *recordingNotifier) SendRejectionNotification(context.Context, string, string, string) error {
	return nil
}

func (n *recordingNotifier) sent() []notification.PrizeNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.PrizeNotification(nil), n.prizes...)
}

type plan struct {
	spins, vouchers *int64
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	quota    *quota.Service
	notifier *recordingNotifier
	clock    *fakeClock
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func newFixture(t *testing.T, p plan, strict bool) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t,
		&tenant.Plan{}, &tenant.SubscriptionPlan{}, &tenant.Tenant{}, &tenant.TenantLimitOverride{},
		&quota.MonthlyUsage{},
		&campaign.Campaign{}, &campaign.Prize{}, &campaign.Spin{},
		&customer.EndUser{}, &manager.Manager{}, &voucher.Voucher{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	cfg := &config.Config{}

	for _, id := range []string{"acme", "beta"} {
		planID := "plan-" + id
		require.NoError(t, db.Create(&tenant.Plan{ID: planID, Name: "base", SpinsPerMonth: p.spins, VouchersPerMonth: p.vouchers}).Error)
		require.NoError(t, db.Create(&tenant.Tenant{ID: id, Name: id, Slug: id, IsActive: true, PlanID: &planID}).Error)
	}

	tenants := tenant.NewService(tenant.ServiceParams{DB: db, Node: node})
	quotas := quota.NewService(quota.ServiceParams{
		DB: db, Node: node, Tenants: tenants, Policy: quota.StaticPolicy(strict), Config: cfg, Clock: clock.Now,
	})
	catalog := campaign.NewStore(campaign.StoreParams{DB: db})
	users := customer.NewStore(customer.StoreParams{DB: db})
	vouchers := voucher.NewService(voucher.ServiceParams{
		DB:     db,
		Node:   node,
		Seq:    sequence.NewSnowflakeGenerator(node),
		Quota:  quotas,
		Actors: manager.NewStore(manager.StoreParams{DB: db}),
		Config: cfg,
		Clock:  clock.Now,
	})
	n := &recordingNotifier{}

	svc := NewService(ServiceParams{
		Node:     node,
		Users:    users,
		Catalog:  catalog,
		Tenants:  tenants,
		Selector: prize.NewSelector(prize.SelectorParams{Catalog: catalog, Rand: fixedRand(0), Clock: clock.Now}),
		Quota:    quotas,
		Vouchers: vouchers,
		Notifier: n,
		Clock:    clock.Now,
	})
	return &fixture{db: db, svc: svc, quota: quotas, notifier: n, clock: clock}
}

func (f *fixture) create(t *testing.T, rows ...any) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, f.db.Create(r).Error)
	}
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) acmeCampaign(t *testing.T, c campaign.Campaign) {
	t.Helper()
	if c.ID == "" {
		c.ID = "ca"
	}
	c.TenantID = "acme"
	c.Name = "Acme Wheel"
	c.IsActive = true
	f.create(t, &c)
}

func winner(id, campaignID string) *campaign.Prize {
	return &campaign.Prize{ID: id, CampaignID: campaignID, Name: "Free Coffee", CouponCode: "COFFEE", Probability: 100, IsActive: true, VoucherRedemptionLimit: 1}
}

var unlimited = plan{}

func TestAcmeEndToEnd(t *testing.T) {
	f := newFixture(t, plan{spins: int64Ptr(2), vouchers: int64Ptr(2)}, false)
	f.acmeCampaign(t, campaign.Campaign{})
	f.create(t, winner("p", "ca"), &customer.EndUser{ID: "u", TenantID: "acme", Name: "Ana", Phone: "+628111000111"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
		require.NoError(t, err)
		require.True(t, res.Success)
		require.True(t, res.WonPrize)
		require.False(t, res.TryAgain)
		require.Equal(t, "p", res.Prize.ID)
		require.True(t, strings.HasPrefix(res.VoucherCode, "ACME-"), res.VoucherCode)
	}

	usage, err := f.quota.CurrentUsage(ctx, "acme")
	require.NoError(t, err)
	require.EqualValues(t, 2, usage.SpinsUsed)
	require.EqualValues(t, 2, usage.VouchersUsed)

	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonMonthlyQuotaExceeded, errutil.ReasonOf(err))
	require.Equal(t, errutil.StatusTooManyRequests, errutil.StatusOf(err))

	require.EqualValues(t, 2, f.count(t, &campaign.Spin{}, ""))
	require.EqualValues(t, 2, f.count(t, &voucher.Voucher{}, ""))

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	require.Equal(t, "+628111000111", sent[0].Phone)
	require.True(t, strings.HasPrefix(sent[0].CouponCode, "ACME-"))
}

func TestStockNeverGoesNegative(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{})
	limited := winner("rare", "ca")
	limited.CurrentStock = intPtr(1)
	f.create(t, limited,
		&campaign.Prize{ID: "none", CampaignID: "ca", Name: "No Prize", Probability: 1, Position: 1, IsActive: true},
	)
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5", "u6"} {
		f.create(t, &customer.EndUser{ID: id, TenantID: "acme", Phone: "+62" + id})
	}

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5", "u6"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Spin(context.Background(), SpinRequest{UserID: id, CampaignID: "ca"})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var p campaign.Prize
	require.NoError(t, f.db.First(&p, "id = ?", "rare").Error)
	require.NotNil(t, p.CurrentStock)
	require.Equal(t, 0, *p.CurrentStock)
	require.EqualValues(t, 6, f.count(t, &campaign.Spin{}, ""))
}

func TestReferralCascadeSignalsEveryBatch(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{ReferralsRequiredForSpin: 5})
	referrer := "r"
	f.create(t,
		&campaign.Prize{ID: "none", CampaignID: "ca", Name: "No Prize", Probability: 1, IsActive: true},
		&customer.EndUser{ID: "r", TenantID: "acme", Phone: "+62811"},
		&customer.EndUser{ID: "u", TenantID: "acme", Phone: "+62822", ReferredByID: &referrer},
	)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
		require.NoError(t, err)
		require.False(t, res.WonPrize)
		if i < 5 {
			require.False(t, res.ReferrerBonusAwarded)
			continue
		}
		require.True(t, res.ReferrerBonusAwarded)
		require.Equal(t, "r", res.ReferrerID)
	}

	var r customer.EndUser
	require.NoError(t, f.db.First(&r, "id = ?", "r").Error)
	require.Equal(t, 5, r.SuccessfulReferrals)

	// the batch is redeemable as one referral-bonus spin
	_, err := f.svc.Spin(ctx, SpinRequest{UserID: "r", CampaignID: "ca", IsReferralBonus: true})
	require.NoError(t, err)
	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "r", CampaignID: "ca", IsReferralBonus: true})
	require.Equal(t, errutil.ReasonNoBonusSpinsAvailable, errutil.ReasonOf(err))
}

func TestReferrerInAnotherTenantIsIgnored(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{ReferralsRequiredForSpin: 1})
	referrer := "rb"
	f.create(t,
		winner("p", "ca"),
		&customer.EndUser{ID: "rb", TenantID: "beta", Phone: "+62833"},
		&customer.EndUser{ID: "u", TenantID: "acme", Phone: "+62822", ReferredByID: &referrer},
	)

	res, err := f.svc.Spin(context.Background(), SpinRequest{UserID: "u", CampaignID: "ca"})
	require.NoError(t, err)
	require.False(t, res.ReferrerBonusAwarded)

	var r customer.EndUser
	require.NoError(t, f.db.First(&r, "id = ?", "rb").Error)
	require.Zero(t, r.SuccessfulReferrals)
}

func TestCooldownWindow(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{SpinLimit: 2, SpinCooldownHours: 24})
	f.create(t, winner("p", "ca"), &customer.EndUser{ID: "u", TenantID: "acme"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
		require.NoError(t, err)
	}
	_, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonCooldownLimitReached, errutil.ReasonOf(err))
	require.Contains(t, err.Error(), "2 per 24 hours")

	f.clock.Advance(25 * time.Hour)
	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.NoError(t, err)
}

func TestBonusSpinsFollowGrants(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{SpinLimit: 1, SpinCooldownHours: 24})
	f.create(t, winner("p", "ca"), &customer.EndUser{ID: "u", TenantID: "acme"})
	ctx := context.Background()

	_, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca", IsReferralBonus: true})
	require.Equal(t, errutil.ReasonNoBonusSpinsAvailable, errutil.ReasonOf(err))

	require.NoError(t, f.db.Model(&customer.EndUser{}).Where("id = ?", "u").Update("bonus_spins_earned", 1).Error)

	// bonus spins do not count against the regular limit
	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca", IsReferralBonus: true})
	require.NoError(t, err)
	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.NoError(t, err)

	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca", IsReferralBonus: true})
	require.Equal(t, errutil.StatusTooManyRequests, errutil.StatusOf(err))
}

func TestPreconditions(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{})
	f.create(t,
		winner("p", "ca"),
		&customer.EndUser{ID: "u", TenantID: "acme"},
		&customer.EndUser{ID: "ub", TenantID: "beta"},
		&campaign.Campaign{ID: "old", TenantID: "acme", Name: "Old", IsActive: true, EndDate: timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))},
	)
	ctx := context.Background()

	_, err := f.svc.Spin(ctx, SpinRequest{UserID: "ghost", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonUserNotFound, errutil.ReasonOf(err))

	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "nope"})
	require.Equal(t, errutil.ReasonCampaignNotFound, errutil.ReasonOf(err))

	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "ub", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonCrossTenantViolation, errutil.ReasonOf(err))
	require.Equal(t, errutil.StatusForbidden, errutil.StatusOf(err))

	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "old"})
	require.Equal(t, errutil.ReasonCampaignInactive, errutil.ReasonOf(err))

	_, err = f.svc.Spin(ctx, SpinRequest{CampaignID: "ca"})
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))

	require.Zero(t, f.count(t, &campaign.Spin{}, ""))
}

func timePtr(t time.Time) *time.Time { return &t }

func TestTryAgainConsumesAttempt(t *testing.T) {
	f := newFixture(t, plan{spins: int64Ptr(5), vouchers: int64Ptr(5)}, false)
	f.acmeCampaign(t, campaign.Campaign{SpinLimit: 1, SpinCooldownHours: 24})
	f.create(t,
		&campaign.Prize{ID: "again", CampaignID: "ca", Name: "Try Again", Probability: 1, IsActive: true, ShowTryAgainMessage: true},
		&customer.EndUser{ID: "u", TenantID: "acme"},
	)
	ctx := context.Background()

	res, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.NoError(t, err)
	require.True(t, res.TryAgain)
	require.False(t, res.WonPrize)
	require.Empty(t, res.VoucherCode)
	require.Empty(t, f.notifier.sent())
	require.EqualValues(t, 1, f.count(t, &campaign.Spin{}, "won_prize = ?", false))

	usage, err := f.quota.CurrentUsage(ctx, "acme")
	require.NoError(t, err)
	require.EqualValues(t, 1, usage.SpinsUsed)
	require.Zero(t, usage.VouchersUsed)

	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonCooldownLimitReached, errutil.ReasonOf(err))
}

func TestSideEffectFailuresKeepTheSpin(t *testing.T) {
	f := newFixture(t, plan{spins: int64Ptr(5), vouchers: int64Ptr(0)}, false)
	f.acmeCampaign(t, campaign.Campaign{})
	f.create(t, winner("p", "ca"), &customer.EndUser{ID: "u", TenantID: "acme", Phone: "+62811"})
	f.notifier.err = errors.New("broker down")

	res, err := f.svc.Spin(context.Background(), SpinRequest{UserID: "u", CampaignID: "ca"})
	require.NoError(t, err)
	require.True(t, res.WonPrize)
	require.Empty(t, res.VoucherCode)
	require.Zero(t, f.count(t, &voucher.Voucher{}, ""))

	// without a voucher the prize coupon is sent
	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, "COFFEE", sent[0].CouponCode)
}

func TestRequestedPrizeIsHonoured(t *testing.T) {
	f := newFixture(t, unlimited, false)
	f.acmeCampaign(t, campaign.Campaign{})
	f.create(t,
		winner("p", "ca"),
		&campaign.Prize{ID: "none", CampaignID: "ca", Name: "No Prize", Probability: 1, Position: 1, IsActive: true},
		&customer.EndUser{ID: "u", TenantID: "acme"},
	)
	requested := "none"

	res, err := f.svc.Spin(context.Background(), SpinRequest{UserID: "u", CampaignID: "ca", RequestedPrizeID: &requested})
	require.NoError(t, err)
	require.Equal(t, "none", res.Prize.ID)
	require.False(t, res.WonPrize)
}

func TestStrictModeReleasesReservation(t *testing.T) {
	f := newFixture(t, plan{spins: int64Ptr(1), vouchers: int64Ptr(1)}, true)
	f.acmeCampaign(t, campaign.Campaign{})
	f.create(t, &customer.EndUser{ID: "u", TenantID: "acme"})
	ctx := context.Background()

	_, err := f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonNoPrizesAvailable, errutil.ReasonOf(err))

	usage, err := f.quota.CurrentUsage(ctx, "acme")
	require.NoError(t, err)
	require.Zero(t, usage.SpinsUsed)

	f.create(t, winner("p", "ca"))
	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.NoError(t, err)
	_, err = f.svc.Spin(ctx, SpinRequest{UserID: "u", CampaignID: "ca"})
	require.Equal(t, errutil.ReasonMonthlyQuotaExceeded, errutil.ReasonOf(err))

	usage, err = f.quota.CurrentUsage(ctx, "acme")
	require.NoError(t, err)
	require.EqualValues(t, 1, usage.SpinsUsed)
	require.EqualValues(t, 1, usage.VouchersUsed)
}

func TestBonusSpinsEarned(t *testing.T) {
	u := &customer.EndUser{SuccessfulReferrals: 11, BonusSpinsEarned: 3}
	require.EqualValues(t, 5, BonusSpinsEarned(u, &campaign.Campaign{ReferralsRequiredForSpin: 5}))
	require.EqualValues(t, 3, BonusSpinsEarned(u, &campaign.Campaign{}))
	require.True(t, referralMilestone(10, 5))
	require.False(t, referralMilestone(0, 5))
	require.False(t, referralMilestone(3, 0))
}
