package models

import "time"

// GlobalSettings is a singleton; the row with the latest UpdatedAt wins.
type GlobalSettings struct {
	ID                   uint64    `gorm:"primarykey" json:"id"`
	AlertEnabled         bool      `gorm:"not null;default:false" json:"alert_enabled"`
	AlertMessageTemplate string    `gorm:"type:text" json:"alert_message_template"`
	OTPEnabled           bool      `gorm:"not null;default:false" json:"otp_enabled"`
	StaffDelayMinutes    int       `gorm:"not null;default:30" json:"staff_delay_minutes"`
	ManagerDelayMinutes  int       `gorm:"not null;default:15" json:"manager_delay_minutes"`
	UpdatedAt            time.Time `gorm:"index" json:"updated_at"`
}

// DefaultSettings applies when no settings row exists: alerts stay off.
func DefaultSettings() GlobalSettings {
	return GlobalSettings{
		AlertEnabled:        false,
		StaffDelayMinutes:   30,
		ManagerDelayMinutes: 15,
	}
}
