package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PageHandler serves the landing page and the health check.
type PageHandler struct {
	db *gorm.DB
}

func NewPageHandler(db *gorm.DB) *PageHandler {
	return &PageHandler{db: db}
}

func (h *PageHandler) RegisterRoutes(router fiber.Router) {
	for _, path := range []string{"/", "/home"} {
		router.Get(path, h.HandleHome)
		router.Post(path, h.HandleHome)
	}
	router.Get("/health", h.HandleHealth)
}

func (h *PageHandler) HandleHome(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "home", fiber.Map{"Title": "Home"})
}

// HandleHealth reports whether the database answers a ping.
func (h *PageHandler) HandleHealth(c *fiber.Ctx) error {
	code, status, database := fiber.StatusOK, "healthy", "up"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		code, status, database = fiber.StatusServiceUnavailable, "unhealthy", "down"
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"database": database,
		"time":     time.Now().Format(time.RFC3339),
	})
}
