package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationsList is applied in order; IDs are never reused.
var migrationsList = []*gormigrate.Migration{
	createTenantTables(),
	createCampaignTables(),
	createUsageTables(),
	createVoucherTables(),
	createManagerTables(),
	createVerificationTables(),
}

func New(db *gorm.DB) *gormigrate.Gormigrate {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)
}

// Run applies every pending migration.
func Run(db *gorm.DB) error {
	if err := New(db).Migrate(); err != nil {
		zap.L().Error("could not migrate", zap.Error(err))
		return err
	}
	zap.L().Info("migrations ran successfully", zap.Int("count", len(migrationsList)))
	return nil
}

// RollbackLast undoes the most recent migration.
func RollbackLast(db *gorm.DB) error {
	return New(db).RollbackLast()
}
