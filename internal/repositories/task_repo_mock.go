package repositories

import (
	"fmt"
	"sync"
	"time"

	"tasker/internal/models"

	"github.com/google/uuid"
)

// MockTaskRepository is an in-memory implementation of TaskRepository.
type MockTaskRepository struct {
	tasks map[string]models.Task
	order []string
	mu    sync.RWMutex
}

// NewMockTaskRepository creates a new instance of MockTaskRepository.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{
		tasks: make(map[string]models.Task),
	}
}

// GetByUser returns the user's tasks in insertion order.
func (r *MockTaskRepository) GetByUser(userID string) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	taskList := make([]models.Task, 0)
	for _, id := range r.order {
		if task := r.tasks[id]; task.UserID == userID {
			taskList = append(taskList, task)
		}
	}
	return taskList, nil
}

// GetByID returns a task by its ID.
func (r *MockTaskRepository) GetByID(id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task with ID %s: %w", id, ErrNotFound)
	}
	return &task, nil
}

// Create adds a new task.
func (r *MockTaskRepository) Create(task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if _, ok := r.tasks[task.ID]; ok {
		return fmt.Errorf("task with ID %s: %w", task.ID, ErrDuplicate)
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = *task
	r.order = append(r.order, task.ID)
	return nil
}

// Update overwrites the title and content of an existing task.
func (r *MockTaskRepository) Update(task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task with ID %s not found for update: %w", task.ID, ErrNotFound)
	}
	stored.Title = task.Title
	stored.Content = task.Content
	stored.UpdatedAt = time.Now()
	r.tasks[task.ID] = stored
	return nil
}

// Delete removes a task by its ID.
func (r *MockTaskRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("task with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
