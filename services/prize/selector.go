package prize

import (
	"context"
	"math/rand/v2"
	"time"

	"promowheel/pkg/errutil"
	"promowheel/services/campaign"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Rand is the randomness source of the weighted draw.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Catalog is the storage the selector reads.
type Catalog interface {
	ActivePrizes(ctx context.Context, campaignID string) ([]*campaign.Prize, error)
	WinCounts(ctx context.Context, prizeIDs []string, from, to time.Time) (map[string]int64, error)
}

type Selector struct {
	catalog Catalog
	rng     Rand
	now     func() time.Time
}

type SelectorParams struct {
	fx.In
	Catalog Catalog
	Rand    Rand             `optional:"true"`
	Clock   func() time.Time `name:"clock" optional:"true"`
}

func NewSelector(p SelectorParams) *Selector {
	s := &Selector{catalog: p.Catalog, rng: p.Rand, now: p.Clock}
	if s.rng == nil {
		s.rng = globalRand{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// DayBounds returns the start and end of the calendar day containing now in loc.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Candidates drops prizes whose daily limit is reached or whose tracked
// stock is exhausted. Order is preserved.
func Candidates(prizes []*campaign.Prize, wins map[string]int64) []*campaign.Prize {
	out := make([]*campaign.Prize, 0, len(prizes))
	for _, p := range prizes {
		if p.DailyLimit != nil && wins[p.ID] >= int64(*p.DailyLimit) {
			continue
		}
		if p.CurrentStock != nil && *p.CurrentStock <= 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

func weight(p *campaign.Prize) float64 {
	if p.Probability < 0 {
		return 0
	}
	return p.Probability
}

// Draw picks from candidates (already in position order) with r in [0,1).
// With no positive weight the first candidate wins.
func Draw(candidates []*campaign.Prize, r float64) *campaign.Prize {
	if len(candidates) == 0 {
		return nil
	}

	var total float64
	for _, p := range candidates {
		total += weight(p)
	}
	if total <= 0 {
		return candidates[0]
	}

	remaining := r * total
	var last *campaign.Prize
	for _, p := range candidates {
		w := weight(p)
		if w == 0 {
			continue
		}
		last = p
		remaining -= w
		if remaining < 0 {
			return p
		}
	}
	// rounding left a non-negative remainder
	return last
}

// SelectPrize resolves the outcome of one spin. loc is the tenant's
// timezone used for daily limits.
func (s *Selector) SelectPrize(ctx context.Context, c *campaign.Campaign, loc *time.Location, requestedPrizeID *string) (*campaign.Prize, error) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	zapLog := zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.String("tenant_id", c.TenantID),
		zap.String("campaign_id", c.ID),
	)

	prizes, err := s.catalog.ActivePrizes(ctx, c.ID)
	if err != nil {
		zapLog.Error("failed to load prizes", zap.Error(err))
		return nil, errutil.Internal("Failed to load prizes", err)
	}

	ids := make([]string, 0, len(prizes))
	for _, p := range prizes {
		if p.DailyLimit != nil {
			ids = append(ids, p.ID)
		}
	}

	from, to := DayBounds(s.now(), loc)
	wins, err := s.catalog.WinCounts(ctx, ids, from, to)
	if err != nil {
		zapLog.Error("failed to count daily wins", zap.Error(err))
		return nil, errutil.Internal("Failed to load prizes", err)
	}

	candidates := Candidates(prizes, wins)
	if len(candidates) == 0 {
		zapLog.Info("no prizes available", zap.Int("active_prizes", len(prizes)))
		return nil, errutil.BadRequest("No prizes available", nil, errutil.WithReason(errutil.ReasonNoPrizesAvailable))
	}

	if requestedPrizeID != nil && *requestedPrizeID != "" {
		for _, p := range candidates {
			if p.ID == *requestedPrizeID {
				return p, nil
			}
		}
	}

	return Draw(candidates, s.rng.Float64()), nil
}
