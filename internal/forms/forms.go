// Package forms holds the typed form submissions and their validation rules.
//
// Rules are validator tags evaluated left to right. Only the first failing
// rule of a field is reported, and every field is checked before returning.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterForm is the body of POST /register.
type RegisterForm struct {
	Username        string `form:"username" validate:"required,min=2,max=20"`
	Email           string `form:"email" validate:"required,email,max=120"`
	Password        string `form:"password" validate:"required,maxbytes=72"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// Normalize trims the free-text fields. Passwords are kept as typed.
func (f *RegisterForm) Normalize() {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
}

// LoginForm is the body of POST /login.
type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

func (f *LoginForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
}

// TaskForm is the body of POST /tasks and POST /task/:id/update.
type TaskForm struct {
	Title   string `form:"title" validate:"required,max=100"`
	Content string `form:"content" validate:"required"`
}

func (f *TaskForm) Normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Content = strings.TrimSpace(f.Content)
}

// Errors maps a form field name to its error message.
type Errors map[string]string

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Validator checks forms against their rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports fields by their form name.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// bcrypt only accepts passwords up to 72 bytes, while max counts runes.
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// Validate normalizes and checks the form. It returns nil when the form is valid.
func (v *Validator) Validate(form any) Errors {
	if n, ok := form.(interface{ Normalize() }); ok {
		n.Normalize()
	}

	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Errors{"": err.Error()}
	}
	rt := reflect.Indirect(reflect.ValueOf(form)).Type()
	errs := make(Errors, len(validationErrors))
	for _, e := range validationErrors {
		errs.Add(e.Field(), message(rt, e))
	}
	return errs
}

func message(rt reflect.Type, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "maxbytes":
		return fmt.Sprintf("Field cannot be longer than %s bytes.", e.Param())
	case "eqfield":
		return fmt.Sprintf("Field must be equal to %s.", formName(rt, e.Param()))
	case "min", "max":
		min, max := lengthBounds(rt, e.StructField())
		switch {
		case min != "" && max != "":
			return fmt.Sprintf("Field must be between %s and %s characters long.", min, max)
		case min != "":
			return fmt.Sprintf("Field must be at least %s characters long.", min)
		default:
			return fmt.Sprintf("Field cannot be longer than %s characters.", max)
		}
	}
	return fmt.Sprintf("Field failed the %q rule.", e.Tag())
}

// lengthBounds returns the min and max params declared on a struct field.
func lengthBounds(rt reflect.Type, field string) (min, max string) {
	sf, ok := rt.FieldByName(field)
	if !ok {
		return "", ""
	}
	for _, rule := range strings.Split(sf.Tag.Get("validate"), ",") {
		name, param, _ := strings.Cut(rule, "=")
		switch name {
		case "min":
			min = param
		case "max":
			max = param
		}
	}
	return min, max
}

func formName(rt reflect.Type, field string) string {
	if sf, ok := rt.FieldByName(field); ok {
		if name := strings.SplitN(sf.Tag.Get("form"), ",", 2)[0]; name != "" {
			return name
		}
	}
	return strings.ToLower(field)
}
