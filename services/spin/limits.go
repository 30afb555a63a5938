package spin

import (
	"time"

	"promowheel/services/campaign"
	"promowheel/services/customer"
)

// BonusSpinsEarned is the number of referral-bonus spins a user may take on
// a campaign: one per completed referral batch plus every granted bonus.
func BonusSpinsEarned(u *customer.EndUser, c *campaign.Campaign) int64 {
	earned := int64(u.BonusSpinsEarned)
	if c.ReferralsRequiredForSpin > 0 {
		earned += int64(u.SuccessfulReferrals / c.ReferralsRequiredForSpin)
	}
	return earned
}

// CooldownStart is the beginning of the window in which regular spins count
// against the campaign's spin limit. A nil start counts every spin.
func CooldownStart(c *campaign.Campaign, now time.Time) *time.Time {
	if c.SpinCooldownHours <= 0 {
		return nil
	}
	since := now.Add(-time.Duration(c.SpinCooldownHours) * time.Hour)
	return &since
}

// referralMilestone reports whether a referrer's new referral count
// completes a batch.
func referralMilestone(count, required int) bool {
	return required > 0 && count > 0 && count%required == 0
}
