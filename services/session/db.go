package session

import (
	"context"
	"time"

	"promowheel/pkg/accesscontrol"
	"promowheel/pkg/db/option"
	"promowheel/pkg/errutil"
	"promowheel/pkg/repository"
	"promowheel/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ManagerSession is the database form of a session. Only the token hash
// is stored.
type ManagerSession struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	ManagerID string    `gorm:"column:manager_id;index;not null"`
	TenantID  string    `gorm:"column:tenant_id;index;not null"`
	Role      string    `gorm:"column:role;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

type DBStore struct {
	db       *gorm.DB
	now      func() time.Time
	sessions repository.Repository[ManagerSession]
}

func NewDBStore(db *gorm.DB, now func() time.Time) *DBStore {
	if now == nil {
		now = time.Now
	}
	return &DBStore{db: db, now: now, sessions: repository.ProvideStore[ManagerSession](db)}
}

func (s *DBStore) Create(ctx context.Context, identity accesscontrol.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, hash, err := newToken()
	if err != nil {
		return "", errutil.Internal("Failed to create session", err)
	}

	now := s.now().UTC()
	err = s.sessions.Create(ctx, &ManagerSession{
		TokenHash: hash,
		ManagerID: identity.ManagerID,
		TenantID:  identity.TenantID,
		Role:      identity.Role,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		zap.L().Error("failed to store session", zap.String("manager_id", identity.ManagerID), zap.Error(err))
		return "", errutil.Internal("Failed to create session", err)
	}
	return token, nil
}

func (s *DBStore) ValidateIdentity(ctx context.Context, token string) (*accesscontrol.Identity, error) {
	sess, err := s.sessions.FindOne(ctx, nil,
		option.WithWhere("token_hash = ? AND expires_at > ?", util.HashToken(token), s.now().UTC()),
	)
	if err != nil {
		zap.L().Error("failed to read session", zap.Error(err))
		return nil, errutil.Internal("Failed to validate session", err)
	}
	if sess == nil {
		return nil, errInvalidSession()
	}
	return &accesscontrol.Identity{ManagerID: sess.ManagerID, TenantID: sess.TenantID, Role: sess.Role}, nil
}

func (s *DBStore) Invalidate(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", util.HashToken(token)).
		Delete(&ManagerSession{}).Error
	if err != nil {
		return errutil.Internal("Failed to invalidate session", err)
	}
	return nil
}
