package quota

import "time"

type Kind string

const (
	KindSpin    Kind = "SPIN"
	KindVoucher Kind = "VOUCHER"
)

func (k Kind) column() string {
	if k == KindVoucher {
		return "vouchers_used"
	}
	return "spins_used"
}

func (k Kind) Valid() bool {
	return k == KindSpin || k == KindVoucher
}

// MonthlyUsage is created lazily on the first consumption of a month and
// only ever changed through atomic increments.
type MonthlyUsage struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	TenantID     string    `gorm:"column:tenant_id;uniqueIndex:idx_monthly_usage_period" json:"tenantId"`
	Month        int       `gorm:"column:month;uniqueIndex:idx_monthly_usage_period" json:"month"`
	Year         int       `gorm:"column:year;uniqueIndex:idx_monthly_usage_period" json:"year"`
	SpinsUsed    int64     `gorm:"column:spins_used;not null;default:0" json:"spinsUsed"`
	VouchersUsed int64     `gorm:"column:vouchers_used;not null;default:0" json:"vouchersUsed"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (u *MonthlyUsage) used(kind Kind) int64 {
	if u == nil {
		return 0
	}
	if kind == KindVoucher {
		return u.VouchersUsed
	}
	return u.SpinsUsed
}

type Usage struct {
	SpinsUsed    int64 `json:"spinsUsed"`
	VouchersUsed int64 `json:"vouchersUsed"`
	Month        int   `json:"month"`
	Year         int   `json:"year"`
}

// Limit is one resolved allowance. Base is ignored when Unlimited is set.
type Limit struct {
	Base      int64 `json:"base"`
	Bonus     int64 `json:"bonus"`
	Unlimited bool  `json:"unlimited"`
}

func (l Limit) Total() int64 {
	return l.Base + l.Bonus
}

// Allows reports whether one more unit fits: used < limit.
func (l Limit) Allows(used int64) bool {
	return l.Unlimited || used < l.Total()
}

// Remaining is -1 for unlimited allowances.
func (l Limit) Remaining(used int64) int64 {
	if l.Unlimited {
		return -1
	}
	if r := l.Total() - used; r > 0 {
		return r
	}
	return 0
}

// EffectiveLimits hides whether the allowance came from the legacy plan or
// the subscription plan.
type EffectiveLimits struct {
	Source   string `json:"source"`
	Spins    Limit  `json:"spins"`
	Vouchers Limit  `json:"vouchers"`
}

func (e EffectiveLimits) For(kind Kind) Limit {
	if kind == KindVoucher {
		return e.Vouchers
	}
	return e.Spins
}

type Remaining struct {
	Spins    int64 `json:"spins"`
	Vouchers int64 `json:"vouchers"`
}

type Summary struct {
	TenantID  string          `json:"tenantId"`
	Usage     Usage           `json:"usage"`
	Limits    EffectiveLimits `json:"limits"`
	Remaining Remaining       `json:"remaining"`
}
