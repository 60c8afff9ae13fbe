// Package validation provides input validation rules shared by the forms.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"unicode"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	digitRe    = regexp.MustCompile(`[0-9]`)
	specialRe  = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9 \-]{6,20}$`)
)

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	var hasUpper, hasLower bool
	for _, r := range password {
		hasUpper = hasUpper || unicode.IsUpper(r)
		hasLower = hasLower || unicode.IsLower(r)
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !digitRe.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !specialRe.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}
	return nil
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return fmt.Errorf("username must not exceed 30 characters")
	}
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}
	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}
	return nil
}

func stringRule(check func(string) error) ozzo.Rule {
	return ozzo.By(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		return check(s)
	})
}

// Rules for use inside ozzo.Field.
var (
	Password = stringRule(ValidatePassword)
	Username = stringRule(ValidateUsername)
	Email    = is.EmailFormat
	Phone    = ozzo.Match(phoneRe).Error("phone must contain 6 to 20 digits")
)

// Message flattens an ozzo validation error into one sentence, ordered by
// field name so the output is stable.
func Message(err error) string {
	var errs ozzo.Errors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if errs[k] != nil {
			return fmt.Sprintf("%s: %s", k, errs[k].Error())
		}
	}
	return err.Error()
}
