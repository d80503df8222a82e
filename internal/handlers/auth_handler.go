package handlers

import (
	"errors"

	"tasker/internal/forms"
	"tasker/internal/middleware"
	"tasker/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LoginFailedMessage is shown for every rejected login, whatever the cause.
const LoginFailedMessage = "Login Unsuccessful. Please check email and password"

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	authService *services.AuthService
	validator   *forms.Validator
	cookies     middleware.CookieOptions
	log         *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, validator *forms.Validator, cookies middleware.CookieOptions, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
		cookies:     cookies,
		log:         log,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/register", h.HandleRegister)
	router.Post("/register", h.HandleRegister)
	router.Get("/login", h.HandleLogin)
	router.Post("/login", h.HandleLogin)
	router.Get("/logout", h.HandleLogout)
}

// HandleRegister shows the sign-up form and creates the account on submission.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	if middleware.CurrentUser(c) != nil {
		return c.Redirect("/tasks", fiber.StatusFound)
	}

	var form forms.RegisterForm
	if !isSubmission(c) {
		return renderRegister(c, fiber.StatusOK, form, nil)
	}
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}
	if errs := h.validator.Validate(&form); errs != nil {
		return renderRegister(c, fiber.StatusUnprocessableEntity, form, errs)
	}

	_, err := h.authService.RegisterUser(form.Username, form.Email, form.Password)
	switch {
	case errors.Is(err, services.ErrUsernameTaken):
		return renderRegister(c, fiber.StatusUnprocessableEntity, form, forms.Errors{"username": "That username is taken."})
	case errors.Is(err, services.ErrEmailTaken):
		return renderRegister(c, fiber.StatusUnprocessableEntity, form, forms.Errors{"email": "That email is already registered."})
	case errors.Is(err, services.ErrPasswordTooLong):
		return renderRegister(c, fiber.StatusUnprocessableEntity, form, forms.Errors{"password": "Field cannot be longer than 72 bytes."})
	case err != nil:
		return err
	}
	return c.Redirect("/login?notice=registered", fiber.StatusFound)
}

func renderRegister(c *fiber.Ctx, status int, form forms.RegisterForm, errs forms.Errors) error {
	form.Password, form.ConfirmPassword = "", ""
	return render(c, status, "register", fiber.Map{
		"Title":  "Register",
		"Form":   form,
		"Errors": errs,
	})
}

// HandleLogin shows the login form and starts a session on valid credentials.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	next := middleware.SafeRedirect(c.Query("next"), "")
	if middleware.CurrentUser(c) != nil {
		return c.Redirect("/tasks", fiber.StatusFound)
	}

	var form forms.LoginForm
	if !isSubmission(c) {
		return renderLogin(c, fiber.StatusOK, form, nil, "", next)
	}
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}
	if errs := h.validator.Validate(&form); errs != nil {
		return renderLogin(c, fiber.StatusUnprocessableEntity, form, errs, "", next)
	}

	user, err := h.authService.Authenticate(form.Email, form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.log.WithField("ip", c.IP()).Info("login rejected")
		return renderLogin(c, fiber.StatusUnauthorized, form, nil, LoginFailedMessage, next)
	}
	if err != nil {
		return err
	}

	token, expires, err := h.authService.StartSession(user)
	if err != nil {
		return err
	}
	middleware.SetSessionCookie(c, token, expires, h.cookies)
	return c.Redirect(middleware.SafeRedirect(next, "/tasks"), fiber.StatusFound)
}

func renderLogin(c *fiber.Ctx, status int, form forms.LoginForm, errs forms.Errors, failure, next string) error {
	form.Password = ""
	return render(c, status, "login", fiber.Map{
		"Title":   "Login",
		"Form":    form,
		"Errors":  errs,
		"Failure": failure,
		"Next":    next,
	})
}

// HandleLogout revokes the current session and returns to the home page.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if token := c.Cookies(middleware.SessionCookie); token != "" {
		if err := h.authService.EndSession(token); err != nil {
			return err
		}
	}
	middleware.ClearSessionCookie(c, h.cookies)
	return c.Redirect("/", fiber.StatusFound)
}
