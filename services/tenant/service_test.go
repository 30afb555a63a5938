package tenant

import (
	"context"
	"testing"
	"time"

	"promowheel/pkg/errutil"
	"promowheel/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Plan{}, &SubscriptionPlan{}, &Tenant{}, &TenantLimitOverride{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node})
	require.NoError(t, db.Create(&Tenant{ID: "t1", Name: "Acme", Slug: "acme", IsActive: true}).Error)
	require.NoError(t, db.Create(&Tenant{ID: "t2", Name: "Other", Slug: "other", IsActive: true}).Error)
	return svc
}

func TestGrantOverrideValidation(t *testing.T) {
	svc := newTestService(t)
	past := time.Now().Add(-time.Minute)

	cases := map[string]GrantOverrideRequest{
		"no bonus":       {TenantID: "t1", Reason: "x"},
		"negative spins": {TenantID: "t1", BonusSpins: -1, BonusVouchers: 2, Reason: "x"},
		"missing reason": {TenantID: "t1", BonusSpins: 1, Reason: "   "},
		"past expiry":    {TenantID: "t1", BonusSpins: 1, Reason: "x", ExpiresAt: &past},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GrantOverride(context.Background(), req)
			require.Error(t, err)
			require.Equal(t, errutil.ReasonInvalidOverride, errutil.ReasonOf(err))
			require.Equal(t, 400, errutil.StatusOf(err).HTTPStatus())
		})
	}

	var count int64
	require.NoError(t, svc.db.Model(&TenantLimitOverride{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGrantOverrideUnknownTenant(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GrantOverride(context.Background(), GrantOverrideRequest{TenantID: "nope", BonusSpins: 1, Reason: "x"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestGrantOverrideAndList(t *testing.T) {
	svc := newTestService(t)
	future := time.Now().Add(24 * time.Hour)

	o, err := svc.GrantOverride(context.Background(), GrantOverrideRequest{
		TenantID: "t1", BonusVouchers: 5, Reason: " promo ", GrantedBy: "admin", ExpiresAt: &future,
	})
	require.NoError(t, err)
	require.True(t, o.IsActive)
	require.Equal(t, "promo", o.Reason)

	_, err = svc.GrantOverride(context.Background(), GrantOverrideRequest{TenantID: "t2", BonusSpins: 1, Reason: "x"})
	require.NoError(t, err)

	resp, err := svc.ListOverrides(context.Background(), ListOverridesRequest{TenantID: "t1", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, resp.Overrides, 1)
	require.Equal(t, o.ID, resp.Overrides[0].ID)
	require.False(t, resp.PageInfo.HasMore)

	active, err := svc.ActiveOverrides(context.Background(), "t1", time.Now())
	require.NoError(t, err)
	require.Len(t, active, 1)

	active, err = svc.ActiveOverrides(context.Background(), "t1", future.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestListOverridesPaginates(t *testing.T) {
	svc := newTestService(t)
	for i := 0; i < 3; i++ {
		_, err := svc.GrantOverride(context.Background(), GrantOverrideRequest{TenantID: "t1", BonusSpins: 1, Reason: "x"})
		require.NoError(t, err)
	}

	first, err := svc.ListOverrides(context.Background(), ListOverridesRequest{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, first.Overrides, 3)

	req := ListOverridesRequest{TenantID: "t1"}
	req.Limit = 2
	page, err := svc.ListOverrides(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page.Overrides, 2)
	require.True(t, page.PageInfo.HasMore)
	require.NotEmpty(t, page.PageInfo.NextCursor)
}

func TestDeactivateOverrideIsTenantScoped(t *testing.T) {
	svc := newTestService(t)
	o, err := svc.GrantOverride(context.Background(), GrantOverrideRequest{TenantID: "t1", BonusSpins: 2, Reason: "x"})
	require.NoError(t, err)

	err = svc.DeactivateOverride(context.Background(), "t2", o.ID)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))

	require.NoError(t, svc.DeactivateOverride(context.Background(), "t1", o.ID))
	active, err := svc.ActiveOverrides(context.Background(), "t1", time.Now())
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestDeactivateExpired(t *testing.T) {
	svc := newTestService(t)
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, svc.db.Create(&TenantLimitOverride{ID: "old", TenantID: "t1", BonusSpins: 1, Reason: "x", IsActive: true, ExpiresAt: &past}).Error)
	require.NoError(t, svc.db.Create(&TenantLimitOverride{ID: "new", TenantID: "t1", BonusSpins: 1, Reason: "x", IsActive: true, ExpiresAt: &future}).Error)

	n, err := svc.DeactivateExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	var old TenantLimitOverride
	require.NoError(t, svc.db.First(&old, "id = ?", "old").Error)
	require.False(t, old.IsActive)
}

func TestGetTenantPreloadsPlansAndConfig(t *testing.T) {
	svc := newTestService(t)
	spins := int64(10)
	require.NoError(t, svc.db.Create(&Plan{ID: "p1", Name: "base", SpinsPerMonth: &spins}).Error)
	require.NoError(t, svc.db.Create(&Tenant{
		ID: "t3", Name: "Cafe", Slug: "cafe", IsActive: true, PlanID: strPtr("p1"), Timezone: "Asia/Jakarta",
		WhatsAppConfig: datatypes.NewJSONType(WhatsAppConfig{Enabled: true, APIToken: "tok"}),
	}).Error)

	got, err := svc.GetTenant(context.Background(), "t3")
	require.NoError(t, err)
	require.NotNil(t, got.Plan)
	require.Equal(t, int64(10), *got.Plan.SpinsPerMonth)
	require.True(t, got.WhatsAppConfig.Data().Usable())
	require.Equal(t, "Asia/Jakarta", got.Location().String())

	_, err = svc.GetTenant(context.Background(), "missing")
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestLocationFallsBackToUTC(t *testing.T) {
	require.Equal(t, time.UTC, (&Tenant{}).Location())
	require.Equal(t, time.UTC, (&Tenant{Timezone: "Mars/Olympus"}).Location())
}

func TestNextRunTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC), nextRunTime(now, 1, 0))

	now = time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), nextRunTime(now, 1, 0))
}

func strPtr(s string) *string { return &s }
