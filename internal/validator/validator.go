// Package validator rejects caller supplied identifiers carrying characters
// which could alter a downstream query document.
package validator

import (
	"strings"

	"github.com/mdouchement/playerdata/internal/apperror"
)

// Forbidden is the set of characters rejected by Validate.
const Forbidden = "${};<>!`'\""

// Validate returns false if s contains any Forbidden character.
func Validate(s string) bool {
	return !strings.ContainsAny(s, Forbidden)
}

// Check returns an invalid input error naming field when s is empty or fails Validate.
func Check(field, s string) error {
	if s == "" {
		return apperror.InvalidInput("", field+" is empty")
	}
	if !Validate(s) {
		return apperror.InvalidInput("", field+" contains forbidden characters")
	}
	return nil
}
