package tenant

import (
	"time"

	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionTrial    SubscriptionStatus = "TRIAL"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Plan is the legacy base plan. A nil allowance is unlimited.
type Plan struct {
	ID               string    `gorm:"column:id;primaryKey" json:"id"`
	Name             string    `gorm:"column:name" json:"name"`
	SpinsPerMonth    *int64    `gorm:"column:spins_per_month" json:"spinsPerMonth"`
	VouchersPerMonth *int64    `gorm:"column:vouchers_per_month" json:"vouchersPerMonth"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"createdAt"`
}

type SubscriptionPlan struct {
	ID               string    `gorm:"column:id;primaryKey" json:"id"`
	Name             string    `gorm:"column:name" json:"name"`
	Price            float64   `gorm:"column:price" json:"price"`
	SpinsPerMonth    *int64    `gorm:"column:spins_per_month" json:"spinsPerMonth"`
	VouchersPerMonth *int64    `gorm:"column:vouchers_per_month" json:"vouchersPerMonth"`
	IsActive         bool      `gorm:"column:is_active;default:true" json:"isActive"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"createdAt"`
}

// WhatsAppConfig is the per-tenant delivery setting. A disabled or empty
// config means no WhatsApp messages are sent for the tenant.
type WhatsAppConfig struct {
	Enabled           bool   `json:"enabled"`
	APIURL            string `json:"apiUrl,omitempty"`
	APIToken          string `json:"apiToken,omitempty"`
	SenderID          string `json:"senderId,omitempty"`
	PrizeTemplate     string `json:"prizeTemplate,omitempty"`
	ApprovalTemplate  string `json:"approvalTemplate,omitempty"`
	RejectionTemplate string `json:"rejectionTemplate,omitempty"`
}

func (c WhatsAppConfig) Usable() bool {
	return c.Enabled && c.APIToken != ""
}

type Tenant struct {
	ID                 string                             `gorm:"column:id;primaryKey" json:"id"`
	Name               string                             `gorm:"column:name" json:"name"`
	Slug               string                             `gorm:"column:slug;uniqueIndex" json:"slug"`
	Timezone           string                             `gorm:"column:timezone" json:"timezone"`
	IsActive           bool                               `gorm:"column:is_active;default:true" json:"isActive"`
	PlanID             *string                            `gorm:"column:plan_id" json:"planId,omitempty"`
	Plan               *Plan                              `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	SubscriptionPlanID *string                            `gorm:"column:subscription_plan_id" json:"subscriptionPlanId,omitempty"`
	SubscriptionPlan   *SubscriptionPlan                  `gorm:"foreignKey:SubscriptionPlanID" json:"subscriptionPlan,omitempty"`
	SubscriptionStatus SubscriptionStatus                 `gorm:"column:subscription_status;default:ACTIVE" json:"subscriptionStatus"`
	WhatsAppConfig     datatypes.JSONType[WhatsAppConfig] `gorm:"column:whatsapp_config" json:"-"`
	CreatedAt          time.Time                          `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt          time.Time                          `gorm:"column:updated_at" json:"updatedAt"`
}

// Location returns the tenant's calendar timezone, UTC when unset or unknown.
func (t *Tenant) Location() *time.Location {
	if t == nil || t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type TenantLimitOverride struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	TenantID      string     `gorm:"column:tenant_id;index" json:"tenantId"`
	BonusSpins    int64      `gorm:"column:bonus_spins" json:"bonusSpins"`
	BonusVouchers int64      `gorm:"column:bonus_vouchers" json:"bonusVouchers"`
	Reason        string     `gorm:"column:reason" json:"reason"`
	GrantedBy     string     `gorm:"column:granted_by" json:"grantedBy"`
	ExpiresAt     *time.Time `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	IsActive      bool       `gorm:"column:is_active;default:true" json:"isActive"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"createdAt"`
}

// Contributes reports whether the override still adds to the limit at now.
func (o *TenantLimitOverride) Contributes(now time.Time) bool {
	if !o.IsActive {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}
