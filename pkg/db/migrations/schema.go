package migrations

import (
	"promowheel/services/campaign"
	"promowheel/services/customer"
	"promowheel/services/manager"
	"promowheel/services/quota"
	"promowheel/services/session"
	"promowheel/services/tenant"
	"promowheel/services/verification"
	"promowheel/services/voucher"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func tables(id string, models ...any) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(models...)
		},
		Rollback: func(tx *gorm.DB) error {
			// reverse order so dependents go first
			for i := len(models) - 1; i >= 0; i-- {
				if err := tx.Migrator().DropTable(models[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func createTenantTables() *gormigrate.Migration {
	return tables("000001_create_tenant_tables",
		&tenant.Plan{},
		&tenant.SubscriptionPlan{},
		&tenant.Tenant{},
		&tenant.TenantLimitOverride{},
	)
}

func createCampaignTables() *gormigrate.Migration {
	return tables("000002_create_campaign_tables",
		&customer.EndUser{},
		&campaign.Campaign{},
		&campaign.Prize{},
		&campaign.Spin{},
		&campaign.SocialMediaTask{},
	)
}

func createUsageTables() *gormigrate.Migration {
	return tables("000003_create_usage_tables", &quota.MonthlyUsage{})
}

func createVoucherTables() *gormigrate.Migration {
	return tables("000004_create_voucher_tables", &voucher.Voucher{})
}

func createManagerTables() *gormigrate.Migration {
	return tables("000005_create_manager_tables",
		&manager.Manager{},
		&session.ManagerSession{},
	)
}

func createVerificationTables() *gormigrate.Migration {
	return tables("000006_create_verification_tables",
		&verification.SocialTaskCompletion{},
		&verification.ManagerAuditLog{},
	)
}
