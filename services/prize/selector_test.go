package prize

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"promowheel/pkg/errutil"
	"promowheel/services/campaign"
	"promowheel/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func intPtr(v int) *int { return &v }

func prizes(weights ...float64) []*campaign.Prize {
	out := make([]*campaign.Prize, 0, len(weights))
	for i, w := range weights {
		out = append(out, &campaign.Prize{
			ID:          string(rune('a' + i)),
			Name:        "Prize " + string(rune('A'+i)),
			Probability: w,
			Position:    i,
			IsActive:    true,
		})
	}
	return out
}

func TestDrawBoundaryIsStrict(t *testing.T) {
	ps := prizes(40, 10, 50)

	require.Equal(t, "a", Draw(ps, 0).ID)
	require.Equal(t, "a", Draw(ps, 0.3999).ID)
	// r*total == 40 exactly lands on the second prize
	require.Equal(t, "b", Draw(ps, 0.4).ID)
	require.Equal(t, "c", Draw(ps, 0.5).ID)
	require.Equal(t, "c", Draw(ps, 0.999999).ID)
}

func TestDrawZeroTotalFallsBackToFirst(t *testing.T) {
	ps := prizes(0, 0, 0)
	require.Equal(t, "a", Draw(ps, 0.7).ID)
	require.Nil(t, Draw(nil, 0.5))
}

func TestDrawConvergesToWeights(t *testing.T) {
	ps := prizes(40, 10, 50)
	rng := rand.New(rand.NewPCG(7, 11))

	const trials = 200000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		counts[Draw(ps, rng.Float64()).ID]++
	}

	require.InDelta(t, 0.40, float64(counts["a"])/trials, 0.01)
	require.InDelta(t, 0.10, float64(counts["b"])/trials, 0.01)
	require.InDelta(t, 0.50, float64(counts["c"])/trials, 0.01)
}

func TestCandidatesFilterLimitAndStock(t *testing.T) {
	ps := prizes(10, 10, 10, 10)
	ps[0].DailyLimit = intPtr(2)
	ps[1].CurrentStock = intPtr(0)
	ps[2].CurrentStock = intPtr(3)
	ps[3].DailyLimit = intPtr(5)

	got := Candidates(ps, map[string]int64{"a": 2, "d": 4})
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].ID)
	require.Equal(t, "d", got[1].ID)
}

type selectorFixture struct {
	store    *campaign.Store
	campaign *campaign.Campaign
}

func newSelectorFixture(t *testing.T) *selectorFixture {
	t.Helper()
	db := testutil.NewTestDB(t, &campaign.Campaign{}, &campaign.Prize{}, &campaign.Spin{})
	c := &campaign.Campaign{ID: "c1", TenantID: "t1", Name: "Wheel", IsActive: true}
	require.NoError(t, db.Create(c).Error)
	return &selectorFixture{store: campaign.NewStore(campaign.StoreParams{DB: db}), campaign: c}
}

func (f *selectorFixture) addPrize(t *testing.T, p *campaign.Prize) {
	t.Helper()
	p.CampaignID = f.campaign.ID
	p.IsActive = true
	require.NoError(t, f.store.CreatePrize(context.Background(), p))
}

func TestSelectPrizeNeverReturnsExhaustedPrize(t *testing.T) {
	f := newSelectorFixture(t)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	f.addPrize(t, &campaign.Prize{ID: "limited", Name: "Coffee", Probability: 90, DailyLimit: intPtr(1), Position: 1})
	f.addPrize(t, &campaign.Prize{ID: "empty", Name: "Tote", Probability: 90, CurrentStock: intPtr(0), Position: 2})
	f.addPrize(t, &campaign.Prize{ID: "open", Name: "Sticker", Probability: 10, Position: 3})

	require.NoError(t, f.store.CreateSpin(context.Background(), &campaign.Spin{
		ID: "s1", UserID: "u1", CampaignID: "c1", PrizeID: "limited", WonPrize: true, SpinDate: now.Add(-time.Hour),
	}))

	sel := NewSelector(SelectorParams{Catalog: f.store, Rand: fixedRand(0), Clock: func() time.Time { return now }})
	for i := 0; i < 20; i++ {
		p, err := sel.SelectPrize(context.Background(), f.campaign, time.UTC, nil)
		require.NoError(t, err)
		require.Equal(t, "open", p.ID)
	}

	// yesterday's wins do not count against today's limit
	sel.now = func() time.Time { return now.AddDate(0, 0, 1) }
	p, err := sel.SelectPrize(context.Background(), f.campaign, time.UTC, nil)
	require.NoError(t, err)
	require.Equal(t, "limited", p.ID)
}

func TestSelectPrizeUsesTenantLocalDay(t *testing.T) {
	f := newSelectorFixture(t)
	jakarta := time.FixedZone("WIB", 7*3600)
	// 2026-05-10 01:00 in Jakarta is 2026-05-09 18:00 UTC
	now := time.Date(2026, 5, 10, 1, 0, 0, 0, jakarta)

	f.addPrize(t, &campaign.Prize{ID: "limited", Name: "Coffee", Probability: 100, DailyLimit: intPtr(1), Position: 1})
	f.addPrize(t, &campaign.Prize{ID: "other", Name: "Sticker", Probability: 1, Position: 2})

	// won at 23:30 Jakarta time on the previous local day
	require.NoError(t, f.store.CreateSpin(context.Background(), &campaign.Spin{
		ID: "s1", UserID: "u1", CampaignID: "c1", PrizeID: "limited", WonPrize: true,
		SpinDate: time.Date(2026, 5, 9, 23, 30, 0, 0, jakarta).UTC(),
	}))

	sel := NewSelector(SelectorParams{Catalog: f.store, Rand: fixedRand(0), Clock: func() time.Time { return now }})
	p, err := sel.SelectPrize(context.Background(), f.campaign, jakarta, nil)
	require.NoError(t, err)
	require.Equal(t, "limited", p.ID)
}

func TestSelectPrizeNoCandidates(t *testing.T) {
	f := newSelectorFixture(t)
	f.addPrize(t, &campaign.Prize{ID: "empty", Name: "Tote", Probability: 100, CurrentStock: intPtr(0), Position: 1})

	sel := NewSelector(SelectorParams{Catalog: f.store, Rand: fixedRand(0.5)})
	_, err := sel.SelectPrize(context.Background(), f.campaign, nil, nil)
	require.Error(t, err)
	require.Equal(t, errutil.ReasonNoPrizesAvailable, errutil.ReasonOf(err))
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestSelectPrizeHonoursRequestedCandidate(t *testing.T) {
	f := newSelectorFixture(t)
	f.addPrize(t, &campaign.Prize{ID: "big", Name: "Big", Probability: 99, Position: 1})
	f.addPrize(t, &campaign.Prize{ID: "small", Name: "Small", Probability: 1, Position: 2})
	f.addPrize(t, &campaign.Prize{ID: "gone", Name: "Gone", Probability: 1, CurrentStock: intPtr(0), Position: 3})

	sel := NewSelector(SelectorParams{Catalog: f.store, Rand: fixedRand(0)})

	requested := "small"
	p, err := sel.SelectPrize(context.Background(), f.campaign, nil, &requested)
	require.NoError(t, err)
	require.Equal(t, "small", p.ID)

	// a requested prize that is not a candidate falls back to the draw
	requested = "gone"
	p, err = sel.SelectPrize(context.Background(), f.campaign, nil, &requested)
	require.NoError(t, err)
	require.Equal(t, "big", p.ID)
}

func TestSelectPrizeReturnsTryAgainOutcome(t *testing.T) {
	f := newSelectorFixture(t)
	f.addPrize(t, &campaign.Prize{ID: "again", Name: "Try again", Probability: 100, ShowTryAgainMessage: true, Position: 1})

	sel := NewSelector(SelectorParams{Catalog: f.store, Rand: fixedRand(0.3)})
	p, err := sel.SelectPrize(context.Background(), f.campaign, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "again", p.ID)
	require.False(t, p.IsWinning())
}
