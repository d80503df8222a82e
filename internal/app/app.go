package app

import (
	"time"

	"tasker/internal/config"
	"tasker/internal/forms"
	"tasker/internal/handlers"
	"tasker/internal/middleware"
	"tasker/internal/repositories"
	"tasker/internal/services"
	"tasker/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the process-wide resources the application is built from.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Publisher services.EventPublisher // nil disables task events
	Log       *logrus.Logger
}

// App bundles the HTTP application with the services behind it.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService
	Tasks *services.TaskService
}

// New wires repositories, services, handlers and middleware into a fiber app.
func New(deps Deps) *App {
	cfg := deps.Config

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	sessionRepo := repositories.NewGORMSessionRepository(deps.DB)
	taskRepo := repositories.NewGORMTaskRepository(deps.DB)

	// --- Services ---
	authService := services.NewAuthService(userRepo, sessionRepo, cfg.SecretKey, deps.Log,
		services.WithSessionTTL(cfg.SessionTTL),
		services.WithBcryptCost(cfg.BcryptCost),
	)
	taskService := services.NewTaskService(taskRepo, deps.Publisher, deps.Log)

	// --- Handlers ---
	validator := forms.NewValidator()
	cookies := middleware.CookieOptions{Secure: cfg.CookieSecure}
	pageHandler := handlers.NewPageHandler(deps.DB)
	authHandler := handlers.NewAuthHandler(authService, validator, cookies, deps.Log)
	taskHandler := handlers.NewTaskHandler(taskService, validator)

	app := fiber.New(fiber.Config{
		Views:                 web.Views(),
		ErrorHandler:          handlers.ErrorHandler(deps.Log),
		DisableStartupMessage: true,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: deps.Log.Writer()}))
	if cfg.CSRFEnabled {
		app.Use(csrf.New(csrf.Config{
			KeyLookup:      "form:csrf_token",
			CookieName:     "csrf_",
			CookieSameSite: "Lax",
			CookieSecure:   cfg.CookieSecure,
			CookieHTTPOnly: true,
			Expiration:     time.Hour,
			ContextKey:     middleware.CSRFContextKey,
		}))
	}
	app.Use(middleware.LoadIdentity(authService, cookies, deps.Log))

	// --- Routes ---
	pageHandler.RegisterRoutes(app)
	authHandler.RegisterRoutes(app)
	taskHandler.RegisterRoutes(app)

	return &App{
		Fiber: app,
		Auth:  authService,
		Tasks: taskService,
	}
}
