package manager

import "time"

// Manager is a tenant-scoped staff account that redeems vouchers and
// verifies social tasks.
type Manager struct {
	ID                       string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID                 string    `gorm:"column:tenant_id;index;not null" json:"tenantId"`
	Name                     string    `gorm:"column:name" json:"name"`
	Email                    string    `gorm:"column:email;uniqueIndex" json:"email"`
	Role                     string    `gorm:"column:role;not null;default:'manager'" json:"role"`
	MaxBonusSpinsPerApproval int       `gorm:"column:max_bonus_spins_per_approval;not null;default:0" json:"maxBonusSpinsPerApproval"`
	IsActive                 bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt                time.Time `gorm:"column:created_at" json:"createdAt"`
}

// CapSpins bounds a task reward by the manager's per-approval allowance.
func (m *Manager) CapSpins(reward int) int {
	if reward < 0 {
		return 0
	}
	if reward > m.MaxBonusSpinsPerApproval {
		return m.MaxBonusSpinsPerApproval
	}
	return reward
}
