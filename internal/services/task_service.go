package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasker/internal/models"
	"tasker/internal/repositories"

	"github.com/sirupsen/logrus"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrForbidden    = errors.New("task belongs to another user")
	ErrEmptyField   = errors.New("title and content must not be empty")
)

// Task lifecycle events published after each committed write.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
)

// EventPublisher delivers task lifecycle events to a broker.
type EventPublisher interface {
	Publish(eventType string, body []byte) error
}

// TaskEvent is the JSON body of a published task event.
type TaskEvent struct {
	Event  string    `json:"event"`
	TaskID string    `json:"task_id"`
	UserID string    `json:"user_id"`
	Time   time.Time `json:"time"`
}

// TaskService handles business logic related to tasks and enforces ownership.
type TaskService struct {
	repo      repositories.TaskRepository
	publisher EventPublisher // nil disables events
	log       *logrus.Logger
}

// NewTaskService creates a new TaskService. publisher may be nil.
func NewTaskService(repo repositories.TaskRepository, publisher EventPublisher, log *logrus.Logger) *TaskService {
	return &TaskService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// ListTasks returns exactly the tasks owned by userID.
func (s *TaskService) ListTasks(userID string) ([]models.Task, error) {
	tasks, err := s.repo.GetByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask creates a task owned by userID.
func (s *TaskService) CreateTask(userID, title, content string) (*models.Task, error) {
	title, content, err := cleanFields(title, content)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:   title,
		Content: content,
		UserID:  userID,
	}
	if err := s.repo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.publish(EventTaskCreated, task)
	return task, nil
}

// GetOwnedTask returns the task if userID owns it. A missing task yields
// ErrTaskNotFound, somebody else's task yields ErrForbidden.
func (s *TaskService) GetOwnedTask(userID, taskID string) (*models.Task, error) {
	task, err := s.repo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if !task.OwnedBy(userID) {
		s.log.WithFields(logrus.Fields{"user_id": userID, "task_id": taskID}).Warn("rejected access to foreign task")
		return nil, ErrForbidden
	}
	return task, nil
}

// UpdateTask overwrites title and content of a task owned by userID.
func (s *TaskService) UpdateTask(userID, taskID, title, content string) (*models.Task, error) {
	task, err := s.GetOwnedTask(userID, taskID)
	if err != nil {
		return nil, err
	}
	title, content, err = cleanFields(title, content)
	if err != nil {
		return nil, err
	}

	task.Title = title
	task.Content = content
	if err := s.repo.Update(task); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.publish(EventTaskUpdated, task)
	return task, nil
}

// DeleteTask removes a task owned by userID.
func (s *TaskService) DeleteTask(userID, taskID string) error {
	task, err := s.GetOwnedTask(userID, taskID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(task.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.publish(EventTaskDeleted, task)
	return nil
}

func cleanFields(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return "", "", ErrEmptyField
	}
	return title, content, nil
}

// publish sends a task event. Failures are logged and never surface to the caller.
func (s *TaskService) publish(event string, task *models.Task) {
	if s.publisher == nil {
		return
	}

	body, err := json.Marshal(TaskEvent{
		Event:  event,
		TaskID: task.ID,
		UserID: task.UserID,
		Time:   time.Now().UTC(),
	})
	if err != nil {
		s.log.WithError(err).Error("failed to marshal task event")
		return
	}
	if err := s.publisher.Publish(event, body); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": event, "task_id": task.ID}).Warn("failed to publish task event")
	}
}
