package validator

import (
	"errors"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyEmail indicates email is empty
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates email is not a valid address
	ErrInvalidEmail = errors.New("email must be a valid address")
)

// ContactValidator validates the contact details of a passenger
type ContactValidator struct {
	phone    *PhoneValidator
	validate *playground.Validate
}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{
		phone:    NewPhoneValidator(),
		validate: playground.New(),
	}
}

// ValidateEmail returns the trimmed, lower-cased address
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmptyEmail
	}
	if err := v.validate.Var(email, "email,max=254"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidatePhone returns the sanitized phone number
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	return v.phone.Validate(phone)
}
