package sms

import (
	"regexp"
	"strings"
)

// Philippine mobile number shapes accepted:
//   +639XXXXXXXXX (international format)
//   639XXXXXXXXX  (without +)
//   09XXXXXXXXX   (local format)
//   9XXXXXXXXX    (without leading 0)
var philippineNumber = regexp.MustCompile(`^(\+63|63|0)?9\d{9}$`)

var nonDigits = regexp.MustCompile(`\D`)

// ValidNumber reports whether number is an accepted Philippine mobile number.
func ValidNumber(number string) bool {
	return philippineNumber.MatchString(strings.ReplaceAll(number, " ", ""))
}

// Normalize converts any accepted shape to canonical +639XXXXXXXXX form.
// Unrecognized input is returned unchanged and left for validation to reject.
func Normalize(number string) string {
	cleaned := nonDigits.ReplaceAllString(number, "")

	switch {
	case strings.HasPrefix(cleaned, "639"):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "09"):
		return "+63" + cleaned[1:]
	case strings.HasPrefix(cleaned, "9") && len(cleaned) == 10:
		return "+63" + cleaned
	}
	return number
}
