package customer

import (
	"context"

	"promowheel/pkg/db/option"
	"promowheel/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Store struct {
	db    *gorm.DB
	users repository.Repository[EndUser]
}

type StoreParams struct {
	fx.In
	DB *gorm.DB
}

func NewStore(p StoreParams) *Store {
	return &Store{db: p.DB, users: repository.ProvideStore[EndUser](p.DB)}
}

// Get returns nil when the user does not exist.
func (s *Store) Get(ctx context.Context, userID string) (*EndUser, error) {
	if userID == "" {
		return nil, nil
	}
	return s.users.FindOne(ctx, &EndUser{ID: userID})
}

// GetInTenant returns nil unless the user exists inside tenantID.
func (s *Store) GetInTenant(ctx context.Context, tenantID, userID string) (*EndUser, error) {
	return s.users.FindOne(ctx, nil, option.WithWhere("id = ? AND tenant_id = ?", userID, tenantID))
}

// IncrementReferrals atomically adds one successful referral and returns
// the counter after the increment.
func (s *Store) IncrementReferrals(ctx context.Context, tenantID, userID string) (int, error) {
	var after int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&EndUser{}).
			Where("id = ? AND tenant_id = ?", userID, tenantID).
			Update("successful_referrals", gorm.Expr("successful_referrals + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&EndUser{}).Select("successful_referrals").Where("id = ?", userID).Scan(&after).Error
	})
	return after, err
}

// AddBonusSpins atomically grants n bonus spins. Pass a transaction to make
// the grant part of a larger write.
func (s *Store) AddBonusSpins(ctx context.Context, tx *gorm.DB, tenantID, userID string, n int) error {
	if tx == nil {
		tx = s.db
	}
	res := tx.WithContext(ctx).
		Model(&EndUser{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Update("bonus_spins_earned", gorm.Expr("bonus_spins_earned + ?", n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
