package errutil

// Machine-readable failure reasons carried in BaseError.Reason.
const (
	ReasonCrossTenantViolation  = "CrossTenantViolation"
	ReasonCampaignNotFound      = "CampaignNotFound"
	ReasonCampaignInactive      = "CampaignInactive"
	ReasonUserNotFound          = "UserNotFound"
	ReasonNoBonusSpinsAvailable = "NoBonusSpinsAvailable"
	ReasonCooldownLimitReached  = "CooldownLimitReached"
	ReasonMonthlyQuotaExceeded  = "MonthlyQuotaExceeded"
	ReasonNoPrizesAvailable     = "NoPrizesAvailable"
	ReasonVoucherLimitExceeded  = "VoucherLimitExceeded"
	ReasonVoucherNotFound       = "VoucherNotFound"
	ReasonVoucherExhausted      = "VoucherExhausted"
	ReasonVoucherExpired        = "VoucherExpired"
	ReasonActorNotAllowed       = "ActorNotAllowed"
	ReasonCommentRequired       = "CommentRequired"
	ReasonCrossTenantAccess     = "CrossTenantAccess"
	ReasonAlreadyVerified       = "AlreadyVerified"
	ReasonTaskNotFound          = "TaskNotFound"
	ReasonManagerNotFound       = "ManagerNotFound"
	ReasonManagerInactive       = "ManagerInactive"
	ReasonInvalidOverride       = "InvalidOverride"
	ReasonTenantNotFound        = "TenantNotFound"
	ReasonUnauthorized          = "Unauthorized"
	ReasonInvalidRequest        = "InvalidRequest"
)
