package repositories

import "tasker/internal/models"

// TaskRepository defines the interface for task data access.
type TaskRepository interface {
	GetByUser(userID string) ([]models.Task, error)
	GetByID(id string) (*models.Task, error)
	Create(task *models.Task) error
	Update(task *models.Task) error
	Delete(id string) error
}
