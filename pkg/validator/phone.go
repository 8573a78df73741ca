package validator

import (
	"errors"
	"regexp"
	"strings"
)

// Phone validation errors
var (
	ErrEmptyPhone    = errors.New("phone number cannot be empty")
	ErrInvalidFormat = errors.New("phone number can only contain digits and a leading +")
	ErrInvalidLength = errors.New("phone number must have between 7 and 15 digits")
)

// E.164 allows at most 15 digits
const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

var (
	dialable        = regexp.MustCompile(`^\+?\d+$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// PhoneValidator checks passenger contact numbers. Local and international
// forms are accepted, e.g. 0771234567, +94 77 123 4567 or (077) 123-4567.
type PhoneValidator struct{}

func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate returns the number with separators stripped
func (v *PhoneValidator) Validate(phone string) (string, error) {
	cleaned := v.Sanitize(phone)
	switch {
	case cleaned == "":
		return "", ErrEmptyPhone
	case !dialable.MatchString(cleaned):
		return "", ErrInvalidFormat
	}

	if n := len(strings.TrimPrefix(cleaned, "+")); n < minPhoneDigits || n > maxPhoneDigits {
		return "", ErrInvalidLength
	}
	return cleaned, nil
}

// Sanitize trims the number and drops separators; a leading + is kept
func (v *PhoneValidator) Sanitize(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}

func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
