package handlers

import (
	"errors"

	"tasker/internal/forms"
	"tasker/internal/middleware"
	"tasker/internal/models"
	"tasker/internal/services"

	"github.com/gofiber/fiber/v2"
)

// TaskHandler handles HTTP requests for a user's tasks.
type TaskHandler struct {
	service   *services.TaskService
	validator *forms.Validator
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service *services.TaskService, validator *forms.Validator) *TaskHandler {
	return &TaskHandler{
		service:   service,
		validator: validator,
	}
}

// RegisterRoutes registers the task routes. All of them require a logged-in user.
func (h *TaskHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/tasks", middleware.RequireUser(h.HandleTasks))
	router.Post("/tasks", middleware.RequireUser(h.HandleTasks))
	router.Get("/task/:id/update", middleware.RequireUser(h.HandleUpdateTask))
	router.Post("/task/:id/update", middleware.RequireUser(h.HandleUpdateTask))
	router.Post("/task/:id/delete", middleware.RequireUser(h.HandleDeleteTask))
}

// HandleTasks lists the user's tasks and creates a new one on submission.
func (h *TaskHandler) HandleTasks(c *fiber.Ctx, user *models.User) error {
	var form forms.TaskForm
	var errs forms.Errors
	status := fiber.StatusOK

	if isSubmission(c) {
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
		}
		if errs = h.validator.Validate(&form); errs == nil {
			if _, err := h.service.CreateTask(user.ID, form.Title, form.Content); err != nil {
				return taskError(err)
			}
			return c.Redirect("/tasks?notice=created", fiber.StatusFound)
		}
		status = fiber.StatusUnprocessableEntity
	}

	tasks, err := h.service.ListTasks(user.ID)
	if err != nil {
		return err
	}
	return render(c, status, "tasks", fiber.Map{
		"Title":  "Tasks",
		"Tasks":  tasks,
		"Form":   form,
		"Errors": errs,
	})
}

// HandleUpdateTask shows the pre-filled edit form and applies it on submission.
func (h *TaskHandler) HandleUpdateTask(c *fiber.Ctx, user *models.User) error {
	task, err := h.service.GetOwnedTask(user.ID, c.Params("id"))
	if err != nil {
		return taskError(err)
	}

	form := forms.TaskForm{Title: task.Title, Content: task.Content}
	var errs forms.Errors
	status := fiber.StatusOK

	if isSubmission(c) {
		form = forms.TaskForm{}
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
		}
		if errs = h.validator.Validate(&form); errs == nil {
			if _, err := h.service.UpdateTask(user.ID, task.ID, form.Title, form.Content); err != nil {
				return taskError(err)
			}
			return c.Redirect("/tasks?notice=updated", fiber.StatusFound)
		}
		status = fiber.StatusUnprocessableEntity
	}

	return render(c, status, "update_task", fiber.Map{
		"Title":  "Update Task",
		"Task":   task,
		"Form":   form,
		"Errors": errs,
	})
}

// HandleDeleteTask deletes a task owned by the user.
func (h *TaskHandler) HandleDeleteTask(c *fiber.Ctx, user *models.User) error {
	if err := h.service.DeleteTask(user.ID, c.Params("id")); err != nil {
		return taskError(err)
	}
	return c.Redirect("/tasks?notice=deleted", fiber.StatusFound)
}

// taskError maps task service errors onto HTTP errors. The messages never
// mention the task itself.
func taskError(err error) error {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, services.ErrForbidden):
		return fiber.ErrForbidden
	case errors.Is(err, services.ErrEmptyField):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Title and content are required")
	}
	return err
}
