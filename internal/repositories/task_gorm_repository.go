package repositories

import (
	"fmt"

	"tasker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMTaskRepository is a GORM implementation of TaskRepository.
type GORMTaskRepository struct {
	db *gorm.DB
}

// NewGORMTaskRepository creates a new instance of GORMTaskRepository.
func NewGORMTaskRepository(db *gorm.DB) *GORMTaskRepository {
	return &GORMTaskRepository{
		db: db,
	}
}

// GetByUser returns the user's tasks in insertion order.
func (r *GORMTaskRepository) GetByUser(userID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.Where("user_id = ?", userID).Order("created_at, id").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for user %s: %w", userID, err)
	}
	return tasks, nil
}

// GetByID retrieves a single task by its ID from the database.
func (r *GORMTaskRepository) GetByID(id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.First(&task, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get task by ID %s: %w", id, translate(err))
	}
	return &task, nil
}

// Create creates a new task in the database.
func (r *GORMTaskRepository) Create(task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if err := r.db.Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", translate(err))
	}
	return nil
}

// Update overwrites the title and content of an existing task.
func (r *GORMTaskRepository) Update(task *models.Task) error {
	res := r.db.Model(task).Select("title", "content").Updates(models.Task{
		Title:   task.Title,
		Content: task.Content,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task with ID %s not found for update: %w", task.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a task by its ID from the database.
func (r *GORMTaskRepository) Delete(id string) error {
	res := r.db.Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}
