package auth

import (
	"regexp"
	"unicode/utf8"
)

const MinPasswordLength = 6

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ValidUsername accepts 3-20 letters, digits and underscores.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}
