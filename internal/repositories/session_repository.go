package repositories

import (
	"fmt"

	"tasker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionRepository defines the interface for session data access.
type SessionRepository interface {
	Create(session *models.Session) error
	GetByID(id string) (*models.Session, error)
	Delete(id string) error
}

// GORMSessionRepository is a GORM implementation of SessionRepository.
type GORMSessionRepository struct {
	db *gorm.DB
}

// NewGORMSessionRepository creates a new instance of GORMSessionRepository.
func NewGORMSessionRepository(db *gorm.DB) *GORMSessionRepository {
	return &GORMSessionRepository{db: db}
}

func (r *GORMSessionRepository) Create(session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", translate(err))
	}
	return nil
}

func (r *GORMSessionRepository) GetByID(id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.First(&session, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, translate(err))
	}
	return &session, nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (r *GORMSessionRepository) Delete(id string) error {
	if err := r.db.Delete(&models.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
