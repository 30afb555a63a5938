package campaign

import (
	"context"
	"time"

	"promowheel/pkg/db/option"
	"promowheel/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Store is the catalog and spin storage used by selection and spinning.
type Store struct {
	db        *gorm.DB
	campaigns repository.Repository[Campaign]
	prizes    repository.Repository[Prize]
	spins     repository.Repository[Spin]
}

type StoreParams struct {
	fx.In
	DB *gorm.DB
}

func NewStore(p StoreParams) *Store {
	return &Store{
		db:        p.DB,
		campaigns: repository.ProvideStore[Campaign](p.DB),
		prizes:    repository.ProvideStore[Prize](p.DB),
		spins:     repository.ProvideStore[Spin](p.DB),
	}
}

// GetCampaign returns nil when the campaign does not exist.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	if campaignID == "" {
		return nil, nil
	}
	return s.campaigns.FindOne(ctx, &Campaign{ID: campaignID})
}

// ActivePrizes returns the campaign's active prizes ordered by position.
func (s *Store) ActivePrizes(ctx context.Context, campaignID string) ([]*Prize, error) {
	return s.prizes.Find(ctx, &Prize{CampaignID: campaignID, IsActive: true},
		option.WithOrder("position ASC"),
		option.WithOrder("id ASC"),
	)
}

type winCount struct {
	PrizeID string
	Wins    int64
}

// WinCounts counts winning spins per prize in [from, to) with one grouped query.
func (s *Store) WinCounts(ctx context.Context, prizeIDs []string, from, to time.Time) (map[string]int64, error) {
	out := make(map[string]int64, len(prizeIDs))
	if len(prizeIDs) == 0 {
		return out, nil
	}

	var rows []winCount
	err := s.db.WithContext(ctx).
		Model(&Spin{}).
		Select("prize_id, COUNT(*) AS wins").
		Where("prize_id IN ? AND won_prize = ? AND spin_date >= ? AND spin_date < ?", prizeIDs, true, from.UTC(), to.UTC()).
		Group("prize_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.PrizeID] = r.Wins
	}
	return out, nil
}

// DecrementStock takes one unit of tracked stock. It reports false when the
// stock was already exhausted by a concurrent spin.
func (s *Store) DecrementStock(ctx context.Context, prizeID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&Prize{}).
		Where("id = ? AND current_stock IS NOT NULL AND current_stock > 0", prizeID).
		Update("current_stock", gorm.Expr("current_stock - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) CreateSpin(ctx context.Context, spin *Spin) error {
	return s.spins.Create(ctx, spin)
}

func (s *Store) CreateCampaign(ctx context.Context, c *Campaign) error {
	return s.campaigns.Create(ctx, c)
}

func (s *Store) CreatePrize(ctx context.Context, p *Prize) error {
	return s.prizes.Create(ctx, p)
}

func (s *Store) GetPrize(ctx context.Context, prizeID string) (*Prize, error) {
	if prizeID == "" {
		return nil, nil
	}
	return s.prizes.FindOne(ctx, &Prize{ID: prizeID})
}

// CountSpins counts the user's spins on a campaign of one kind (bonus or
// regular), optionally only those at or after since.
func (s *Store) CountSpins(ctx context.Context, userID, campaignID string, bonus bool, since *time.Time) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&Spin{}).
		Where("user_id = ? AND campaign_id = ? AND is_referral_bonus = ?", userID, campaignID, bonus)
	if since != nil {
		q = q.Where("spin_date >= ?", since.UTC())
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
