package models

import "time"

// User represents a registered account.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(20);not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(120);not null"`
	Password  string    `json:"-" gorm:"type:varchar(60);not null"` // bcrypt hash, never plaintext
	Tasks     []Task    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Sessions  []Session `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
