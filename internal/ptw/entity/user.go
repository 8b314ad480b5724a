package entity

import "time"

// User account with role-based access
type User struct {
	ID           string      `json:"id" gorm:"primaryKey;size:32"`
	Username     string      `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string      `json:"name" gorm:"size:128;not null"`
	Email        string      `json:"email" gorm:"size:128;not null;uniqueIndex"`
	PasswordHash string      `json:"-" gorm:"size:128;not null"`
	Phone        string      `json:"phone" gorm:"size:32"`
	Roles        StringArray `json:"roles" gorm:"type:jsonb"`
	Status       string      `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Roles
const (
	RoleAdmin     = "admin"
	RoleApprover  = "approver"
	RoleRequester = "requester"
)

// User statuses
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// HasRole reports whether the user carries the role. Admin implies every
// other role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}
