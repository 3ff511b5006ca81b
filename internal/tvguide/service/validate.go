package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxUsernameLength = 64
)

// NormalizeUsername trims surrounding space and checks what remains.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", malformed("username", "is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", malformed("username", "must be at most 64 characters")
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", malformed("username", "must not contain whitespace or control characters")
		}
	}
	return username, nil
}

// ValidatePassword enforces the length policy. The password is never trimmed.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < MinPasswordLength:
		return malformed("password", "must be at least 8 characters")
	case n > MaxPasswordLength:
		return malformed("password", "must be at most 128 characters")
	}
	return nil
}
