package session

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// ValidationError is raised before any request leaves the process.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthError is a login, registration or token validation rejected by the
// backend. Message is fit for showing to the user.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsAuthError(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

type Registration struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// ValidateRegistration applies the sign-up form rules in order, the first
// violation wins.
func ValidateRegistration(r Registration) error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Username)) < minUsernameLen {
		return &ValidationError{Field: "username", Message: "Username must be at least 3 characters"}
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLen {
		return &ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return nil
}

func validateLogin(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return &ValidationError{Field: "password", Message: "Password is required"}
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "email", Message: "Email is invalid"}
	}
	return nil
}
