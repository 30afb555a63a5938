package campaign

import (
	"strings"
	"time"
)

type Campaign struct {
	ID                       string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID                 string     `gorm:"column:tenant_id;index;not null" json:"tenantId"`
	Name                     string     `gorm:"column:name" json:"name"`
	IsActive                 bool       `gorm:"column:is_active;default:true" json:"isActive"`
	StartDate                *time.Time `gorm:"column:start_date" json:"startDate,omitempty"`
	EndDate                  *time.Time `gorm:"column:end_date" json:"endDate,omitempty"`
	SpinLimit                int        `gorm:"column:spin_limit" json:"spinLimit"`
	SpinCooldownHours        int        `gorm:"column:spin_cooldown_hours" json:"spinCooldownHours"`
	ReferralsRequiredForSpin int        `gorm:"column:referrals_required_for_spin" json:"referralsRequiredForSpin"`
	CreatedAt                time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt                time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// IsRunning checks the active flag and the optional date range.
func (c *Campaign) IsRunning(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	return true
}

type Prize struct {
	ID                     string    `gorm:"column:id;primaryKey" json:"id"`
	CampaignID             string    `gorm:"column:campaign_id;index;not null" json:"campaignId"`
	Name                   string    `gorm:"column:name" json:"name"`
	Description            string    `gorm:"column:description" json:"description"`
	CouponCode             string    `gorm:"column:coupon_code" json:"couponCode"`
	ImageURL               string    `gorm:"column:image_url" json:"imageUrl"`
	Probability            float64   `gorm:"column:probability" json:"probability"`
	DailyLimit             *int      `gorm:"column:daily_limit" json:"dailyLimit"`
	CurrentStock           *int      `gorm:"column:current_stock" json:"currentStock"`
	Position               int       `gorm:"column:position" json:"position"`
	IsActive               bool      `gorm:"column:is_active;default:true" json:"isActive"`
	ShowTryAgainMessage    bool      `gorm:"column:show_try_again_message" json:"showTryAgainMessage"`
	VoucherValidityDays    int       `gorm:"column:voucher_validity_days" json:"voucherValidityDays"`
	VoucherRedemptionLimit int       `gorm:"column:voucher_redemption_limit;default:1" json:"voucherRedemptionLimit"`
	SendQRCode             bool      `gorm:"column:send_qr_code" json:"sendQrCode"`
	CreatedAt              time.Time `gorm:"column:created_at" json:"createdAt"`
}

// IsWinning reports whether landing on the prize grants something. "No
// prize" style slots and try-again slots do not.
func (p *Prize) IsWinning() bool {
	if p.ShowTryAgainMessage {
		return false
	}
	name := strings.ToLower(p.Name)
	return !strings.Contains(name, "no prize") && !strings.Contains(name, "no offer")
}

// Spin is an immutable record of one wheel turn.
type Spin struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	UserID          string    `gorm:"column:user_id;index:idx_spins_user_campaign;not null" json:"userId"`
	CampaignID      string    `gorm:"column:campaign_id;index:idx_spins_user_campaign;not null" json:"campaignId"`
	PrizeID         string    `gorm:"column:prize_id;index" json:"prizeId"`
	WonPrize        bool      `gorm:"column:won_prize" json:"wonPrize"`
	IsReferralBonus bool      `gorm:"column:is_referral_bonus" json:"isReferralBonus"`
	SpinDate        time.Time `gorm:"column:spin_date;index" json:"spinDate"`
}

type TaskType string

const (
	TaskInstagramFollow TaskType = "INSTAGRAM_FOLLOW"
	TaskFacebookLike    TaskType = "FACEBOOK_LIKE"
	TaskTikTokFollow    TaskType = "TIKTOK_FOLLOW"
	TaskGoogleReview    TaskType = "GOOGLE_REVIEW"
	TaskShare           TaskType = "SHARE"
)

type SocialMediaTask struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	CampaignID  string    `gorm:"column:campaign_id;index;not null" json:"campaignId"`
	Type        TaskType  `gorm:"column:type" json:"type"`
	TargetURL   string    `gorm:"column:target_url" json:"targetUrl"`
	SpinsReward int       `gorm:"column:spins_reward" json:"spinsReward"`
	IsActive    bool      `gorm:"column:is_active;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
}
