package spin

import "promowheel/services/campaign"

type SpinRequest struct {
	UserID           string  `json:"userId"`
	CampaignID       string  `json:"campaignId"`
	IsReferralBonus  bool    `json:"isReferralBonus"`
	RequestedPrizeID *string `json:"requestedPrizeId,omitempty"`
}

type PrizeSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CouponCode  string `json:"couponCode,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func summarize(p *campaign.Prize) *PrizeSummary {
	return &PrizeSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CouponCode:  p.CouponCode,
		ImageURL:    p.ImageURL,
	}
}

type SpinResult struct {
	Success              bool          `json:"success"`
	SpinID               string        `json:"spinId"`
	WonPrize             bool          `json:"wonPrize"`
	TryAgain             bool          `json:"tryAgain"`
	Prize                *PrizeSummary `json:"prize"`
	VoucherCode          string        `json:"voucherCode,omitempty"`
	ReferrerBonusAwarded bool          `json:"referrerBonusAwarded"`
	ReferrerID           string        `json:"referrerId,omitempty"`
}
