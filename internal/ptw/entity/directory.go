package entity

import "time"

// Location work area in the site directory
type Location struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Zone        string    `json:"zone" gorm:"size:64"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Location) TableName() string {
	return "locations"
}

// Contractor company in the contractor directory
type Contractor struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	Code          string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name          string    `json:"name" gorm:"size:200;not null"`
	ContactPerson string    `json:"contact_person" gorm:"size:128"`
	ContactPhone  string    `json:"contact_phone" gorm:"size:32"`
	Email         string    `json:"email" gorm:"size:128"`
	Status        string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Contractor) TableName() string {
	return "contractors"
}
