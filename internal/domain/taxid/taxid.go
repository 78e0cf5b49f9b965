// Package taxid normalizes and checks 11-digit national tax ids (CPF).
//
// IsValid is a format check only. No check digits are verified, so a
// normalized id can still belong to nobody.
package taxid

import (
	"regexp"
	"strings"
)

const Length = 11

var (
	nonDigit     = regexp.MustCompile(`\D`)
	elevenDigits = regexp.MustCompile(`^\d{11}$`)
)

// Normalize strips every non-digit and left-pads the result with zeros when
// it does not have exactly 11 digits. Longer values are kept as they are.
func Normalize(raw string) string {
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) < Length {
		digits = strings.Repeat("0", Length-len(digits)) + digits
	}
	return digits
}

func IsValid(id string) bool {
	return elevenDigits.MatchString(id)
}

// NormalizeAndValidate returns the normalized id and true when it is valid.
func NormalizeAndValidate(raw string) (string, bool) {
	id := Normalize(raw)
	if !IsValid(id) {
		return "", false
	}
	return id, true
}
