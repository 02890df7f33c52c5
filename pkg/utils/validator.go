package utils

import (
	"fmt"
	"regexp"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrency validates a 3-letter ISO 4217 currency code
func ValidateCurrency(code string) error {
	if !currencyRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// SanitizeString removes control characters from user-supplied text
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
