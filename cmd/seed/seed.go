package main

import (
	"context"
	"errors"

	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/manager"
	"promowheel/services/tenant"
	"promowheel/services/verification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const demoSlug = "acme"

var errAlreadySeeded = errors.New("demo tenant already seeded")

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

// seedDemo creates the "acme" demo tenant with a running campaign, a few
// customers, a pending social task and one manager. It returns the manager.
func seedDemo(ctx context.Context, db *gorm.DB, node *snowflake.Node) (*manager.Manager, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&tenant.Tenant{}).Where("slug = ?", demoSlug).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errAlreadySeeded
	}

	id := func() string { return node.Generate().String() }

	planID := id()
	t := &tenant.Tenant{
		ID:                 id(),
		Name:               "Acme Coffee",
		Slug:               demoSlug,
		Timezone:           "Asia/Jakarta",
		IsActive:           true,
		SubscriptionPlanID: &planID,
		SubscriptionStatus: tenant.SubscriptionActive,
		WhatsAppConfig: datatypes.NewJSONType(tenant.WhatsAppConfig{
			Enabled:       false,
			PrizeTemplate: "Hi {name}, you won {prize}! Show code {code} at {tenant}.",
		}),
	}
	c := &campaign.Campaign{
		ID:                       id(),
		TenantID:                 t.ID,
		Name:                     "Grand Opening Wheel",
		IsActive:                 true,
		SpinLimit:                3,
		SpinCooldownHours:        24,
		ReferralsRequiredForSpin: 5,
	}
	referrer := &customer.EndUser{ID: id(), TenantID: t.ID, Name: "Rina", Phone: "+628111000001"}
	referred := &customer.EndUser{ID: id(), TenantID: t.ID, Name: "Dodi", Phone: "+628111000002", ReferredByID: &referrer.ID}
	task := &campaign.SocialMediaTask{
		ID:          id(),
		CampaignID:  c.ID,
		Type:        campaign.TaskInstagramFollow,
		TargetURL:   "https://instagram.com/acmecoffee",
		SpinsReward: 2,
		IsActive:    true,
	}
	m := &manager.Manager{
		ID:                       id(),
		TenantID:                 t.ID,
		Name:                     "Store Manager",
		Email:                    "manager@acme.example",
		Role:                     "manager",
		MaxBonusSpinsPerApproval: 3,
		IsActive:                 true,
	}

	rows := []any{
		&tenant.SubscriptionPlan{ID: planID, Name: "Growth", Price: 49, SpinsPerMonth: int64Ptr(1000), VouchersPerMonth: int64Ptr(500), IsActive: true},
		t,
		c,
		&campaign.Prize{ID: id(), CampaignID: c.ID, Name: "Free Coffee", CouponCode: "FREECOFFEE", Probability: 40, DailyLimit: intPtr(20), Position: 0, IsActive: true, VoucherValidityDays: 14, VoucherRedemptionLimit: 1, SendQRCode: true},
		&campaign.Prize{ID: id(), CampaignID: c.ID, Name: "10% Discount", CouponCode: "DISC10", Probability: 10, CurrentStock: intPtr(100), Position: 1, IsActive: true, VoucherValidityDays: 30, VoucherRedemptionLimit: 3},
		&campaign.Prize{ID: id(), CampaignID: c.ID, Name: "Try Again", Probability: 50, Position: 2, IsActive: true, ShowTryAgainMessage: true},
		referrer,
		referred,
		task,
		m,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			if err := tx.Create(r).Error; err != nil {
				return err
			}
		}
		// the referred customer has already played, so the completion is
		// visible to the manager
		if err := tx.Create(&campaign.Spin{ID: id(), UserID: referred.ID, CampaignID: c.ID, SpinDate: nowUTC()}).Error; err != nil {
			return err
		}
		return tx.Create(&verification.SocialTaskCompletion{
			ID:          id(),
			TaskID:      task.ID,
			UserID:      referred.ID,
			Status:      verification.StatusPending,
			SubmittedAt: nowUTC(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("demo tenant seeded",
		zap.String("tenant_id", t.ID),
		zap.String("campaign_id", c.ID),
		zap.String("manager_id", m.ID),
	)
	return m, nil
}
