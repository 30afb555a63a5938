package customer

import "time"

// EndUser is a wheel player scoped to one tenant.
type EndUser struct {
	ID                  string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID            string    `gorm:"column:tenant_id;index;not null" json:"tenantId"`
	Name                string    `gorm:"column:name" json:"name"`
	Phone               string    `gorm:"column:phone;index" json:"phone"`
	SuccessfulReferrals int       `gorm:"column:successful_referrals;not null;default:0" json:"successfulReferrals"`
	BonusSpinsEarned    int       `gorm:"column:bonus_spins_earned;not null;default:0" json:"bonusSpinsEarned"`
	ReferredByID        *string   `gorm:"column:referred_by_id" json:"referredById,omitempty"`
	CreatedAt           time.Time `gorm:"column:created_at" json:"createdAt"`
}

// PhoneLast4 is the only part of the phone number shown to managers.
func (u *EndUser) PhoneLast4() string {
	return Last4(u.Phone)
}

func Last4(phone string) string {
	r := []rune(phone)
	if len(r) <= 4 {
		return string(r)
	}
	return string(r[len(r)-4:])
}
