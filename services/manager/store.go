package manager

import (
	"context"

	"promowheel/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Store struct {
	db       *gorm.DB
	managers repository.Repository[Manager]
}

type StoreParams struct {
	fx.In
	DB *gorm.DB
}

func NewStore(p StoreParams) *Store {
	return &Store{db: p.DB, managers: repository.ProvideStore[Manager](p.DB)}
}

// Get returns nil when the manager does not exist.
func (s *Store) Get(ctx context.Context, managerID string) (*Manager, error) {
	if managerID == "" {
		return nil, nil
	}
	return s.managers.FindOne(ctx, &Manager{ID: managerID})
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Manager, error) {
	if email == "" {
		return nil, nil
	}
	return s.managers.FindOne(ctx, &Manager{Email: email})
}

func (s *Store) Create(ctx context.Context, m *Manager) error {
	return s.managers.Create(ctx, m)
}

// BelongsTo reports whether managerID is an active manager of tenantID.
func (s *Store) BelongsTo(ctx context.Context, managerID, tenantID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Manager{}).
		Where("id = ? AND tenant_id = ? AND is_active = ?", managerID, tenantID, true).
		Count(&n).Error
	return n > 0, err
}
