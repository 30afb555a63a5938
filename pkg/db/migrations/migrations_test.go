package migrations

import (
	"testing"

	"promowheel/services/testutil"
	"promowheel/services/verification"
	"promowheel/services/voucher"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestMigrateAndRollback(t *testing.T) {
	db := testutil.NewTestDB(t)

	require.NoError(t, Run(db))
	require.True(t, db.Migrator().HasTable(&voucher.Voucher{}))
	require.True(t, db.Migrator().HasTable(&verification.ManagerAuditLog{}))

	// a second run is a no-op
	require.NoError(t, Run(db))

	require.NoError(t, RollbackLast(db))
	require.False(t, db.Migrator().HasTable(&verification.ManagerAuditLog{}))
	require.True(t, db.Migrator().HasTable(&voucher.Voucher{}))
}
