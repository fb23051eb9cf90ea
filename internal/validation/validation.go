// Package validation provides input validation for names and artifact
// paths.
package validation

import (
	"errors"
	"path"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInputTooLong indicates input exceeds maximum length.
	ErrInputTooLong = errors.New("input exceeds maximum length")
	// ErrInputInvalid indicates input contains invalid characters.
	ErrInputInvalid = errors.New("input contains invalid characters")
	// ErrPasswordTooShort indicates password is less than minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrPasswordTooWeak indicates password lacks required character classes.
	ErrPasswordTooWeak = errors.New("password must mix upper, lower, and digit characters")
)

// ValidateTargetName validates a target name. The name becomes a
// directory component under the config, backup, and log roots, so it
// is restricted to a flat, safe character set.
func ValidateTargetName(name string) error {
	if name == "" || len(name) > 64 {
		return ErrInputTooLong
	}

	validName := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*$`)
	if !validName.MatchString(name) {
		return ErrInputInvalid
	}
	if strings.Contains(name, "..") {
		return ErrInputInvalid
	}
	return nil
}

// ValidateArtifactPath validates a relative file path inside a config
// artifact. Paths are cleaned and must stay inside the config
// directory: no absolute paths, no traversal, no null bytes.
func ValidateArtifactPath(name string) error {
	if name == "" || len(name) > 255 {
		return ErrInputTooLong
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return ErrInputInvalid
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return ErrInputInvalid
	}

	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInputInvalid
	}
	if clean != name {
		return ErrInputInvalid
	}
	return nil
}

// ValidatePassword enforces the minimum password policy for operator
// accounts.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return ErrPasswordTooWeak
	}
	return nil
}
