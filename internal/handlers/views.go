package handlers

import (
	"errors"

	"tasker/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const layout = "layouts/main"

// notices maps the notice query parameter set on redirects to its text.
var notices = map[string]string{
	"registered": "Your account has been created!",
	"created":    "Task created!",
	"updated":    "Your task has been updated!",
	"deleted":    "Your task has been deleted!",
}

// render executes view inside the main layout with the per-request values
// every page needs.
func render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["User"] = middleware.CurrentUser(c)
	data["CSRF"] = middleware.CSRFToken(c)
	data["Notice"] = notices[c.Query("notice")]
	return c.Status(status).Render(view, data, layout)
}

func isSubmission(c *fiber.Ctx) bool {
	return c.Method() == fiber.MethodPost
}

// ErrorHandler renders every error as the error page. fiber errors keep their
// status and message; anything else is logged and reported as a bare 500.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("request failed")
		}

		renderErr := c.Status(code).Render("error", fiber.Map{
			"User":    middleware.CurrentUser(c),
			"Status":  code,
			"Message": message,
		}, layout)
		if renderErr != nil {
			log.WithError(renderErr).Error("failed to render error page")
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.Status(code).SendString(message)
		}
		return nil
	}
}
