package main

import (
	"context"
	"testing"

	"promowheel/pkg/db/migrations"
	"promowheel/services/campaign"
	"promowheel/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestSeedDemoOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, migrations.Run(db))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	m, err := seedDemo(ctx, db, node)
	require.NoError(t, err)
	require.Equal(t, 3, m.MaxBonusSpinsPerApproval)

	var prizes int64
	require.NoError(t, db.Model(&campaign.Prize{}).Count(&prizes).Error)
	require.EqualValues(t, 3, prizes)

	_, err = seedDemo(ctx, db, node)
	require.ErrorIs(t, err, errAlreadySeeded)
}
