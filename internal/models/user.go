package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleSupervisor Role = "SUPERVISOR"
	RoleManager    Role = "MANAGER"
	RoleStaff      Role = "STAFF"
	RoleDeveloper  Role = "DEVELOPER"
	RoleCashier    Role = "CASHIER"
)

// User is the read model of an account. Accounts are managed elsewhere; the
// engine only needs identity, role and a phone number for alerts.
type User struct {
	ID        uint64         `gorm:"primarykey" json:"id"`
	FullName  string         `gorm:"type:varchar(255);not null" json:"full_name"`
	Phone     string         `gorm:"type:varchar(32)" json:"phone"`
	Role      Role           `gorm:"type:varchar(20);not null;index" json:"role"`
	BranchID  *uint64        `json:"branch_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasPhone reports whether alerts can be delivered to the user.
func (u User) HasPhone() bool {
	return strings.TrimSpace(u.Phone) != ""
}
