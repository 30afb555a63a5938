package voucher

import (
	"time"

	"promowheel/pkg/db/pagination"
	"promowheel/services/customer"
)

// Voucher is the redeemable proof of a won prize. Codes are unique across
// all tenants.
type Voucher struct {
	ID              string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID        string     `gorm:"column:tenant_id;index;not null" json:"tenantId"`
	CampaignID      string     `gorm:"column:campaign_id;index" json:"campaignId"`
	PrizeID         string     `gorm:"column:prize_id;index" json:"prizeId"`
	UserID          string     `gorm:"column:user_id;index" json:"userId"`
	SpinID          string     `gorm:"column:spin_id;index" json:"spinId"`
	Code            string     `gorm:"column:code;uniqueIndex;not null" json:"code"`
	QRCodeURL       string     `gorm:"column:qr_code_url" json:"qrCodeUrl,omitempty"`
	IsRedeemed      bool       `gorm:"column:is_redeemed;not null;default:false" json:"isRedeemed"`
	RedeemedBy      *string    `gorm:"column:redeemed_by" json:"redeemedBy,omitempty"`
	RedeemedAt      *time.Time `gorm:"column:redeemed_at" json:"redeemedAt,omitempty"`
	RedemptionCount int        `gorm:"column:redemption_count;not null;default:0" json:"redemptionCount"`
	RedemptionLimit int        `gorm:"column:redemption_limit;not null;default:1" json:"redemptionLimit"`
	ExpiresAt       *time.Time `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"createdAt"`

	User *customer.EndUser `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
}

func (v *Voucher) Exhausted() bool {
	return v.RedemptionCount >= v.RedemptionLimit
}

func (v *Voucher) Expired(now time.Time) bool {
	return v.ExpiresAt != nil && !now.Before(*v.ExpiresAt)
}

type Status string

const (
	StatusActive   Status = "active"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

type CreateVoucherRequest struct {
	SpinID          string
	PrizeID         string
	CampaignID      string
	UserID          string
	TenantID        string
	TenantSlug      string
	ValidityDays    int
	RedemptionLimit int
	GenerateQR      bool
}

type VoucherFilter struct {
	CampaignID string `form:"campaignId"`
	Status     Status `form:"status"`
	Search     string `form:"search"`
	pagination.Page
}

type VoucherList struct {
	Vouchers []*Voucher `json:"vouchers"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
}

// Validation is the answer to "can this code be redeemed here". Reason
// never tells a missing code apart from one owned by another tenant.
type Validation struct {
	Valid   bool     `json:"valid"`
	Voucher *Voucher `json:"voucher,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

type Stats struct {
	Total          int64   `json:"total"`
	Active         int64   `json:"active"`
	Redeemed       int64   `json:"redeemed"`
	Expired        int64   `json:"expired"`
	RedemptionRate float64 `json:"redemptionRate"`
}
