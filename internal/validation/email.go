// Package validation checks user input before it leaves the process.
package validation

import (
	"regexp"

	"signup-go/internal/models"
)

// whitespace is the JavaScript \s class. RE2's \s is ASCII only and would
// let vertical tabs and Unicode spaces through.
const whitespace = `\t\n\v\f\r \x{00a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

var emailPattern = regexp.MustCompile(`^[^` + whitespace + `@]+@[^` + whitespace + `@]+\.[^` + whitespace + `@]+$`)

const (
	MsgEmailRequired = "Email is required"
	MsgEmailInvalid  = "Please enter a valid email address"
)

// ValidateEmail returns a *models.ValidationError when email is empty or is
// not shaped like local@domain.tld.
func ValidateEmail(email string) error {
	if email == "" {
		return models.NewValidationError(MsgEmailRequired)
	}
	if !emailPattern.MatchString(email) {
		return models.NewValidationError(MsgEmailInvalid)
	}
	return nil
}
