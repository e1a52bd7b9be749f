package constants

import "time"

// Session and context keys
const (
	SessionCookieName = "task_session"
	ContextKeyUserID  = "user_id"
	ContextKeyActor   = "actor"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Escalation thresholds. GlobalSettings carries columns for these but the
// scanner has always used the fixed values.
const (
	StaffDelayThreshold   = 30 * time.Minute
	ManagerDelayThreshold = 15 * time.Minute
	ReminderThrottle      = 60 * time.Minute
)

// Cron trigger authentication
const (
	CronSecretHeader = "X-Cron-Secret"
	CronSecretQuery  = "secret"
)

// Message texts
const (
	DefaultRejectMessage = "Göreviniz reddedildi. Lütfen düzenleyip tekrar gönderin."
	FallbackAlertMessage = "Sayın {fullName}, \"{taskTitle}\" görevi {delayMinutes} dakikadır gecikmede."
	ManagerAlertMessage  = "%d görev onayınızı bekliyor. En eski bekleyen %d dakikadır beklemede."
	ApprovedTitle        = "Görev onaylandı"
	ApprovedBody         = "\"%s\" göreviniz onaylandı. Kazanılan puan: %d"
	RejectedTitle        = "Görev reddedildi"
)

// MaxCompetitorPrices is the number of competitor price columns on a price log entry.
const MaxCompetitorPrices = 5
