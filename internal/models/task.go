package models

import "time"

// Task is a text item owned by exactly one user.
type Task struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title     string    `json:"title" gorm:"type:varchar(100);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedBy reports whether the task belongs to the given user.
func (t *Task) OwnedBy(userID string) bool {
	return t.UserID == userID
}
