package taskname

const (
	// Notification tasks
	NotificationPrize     = "notification:prize"
	NotificationApproval  = "notification:approval"
	NotificationRejection = "notification:rejection"
)
