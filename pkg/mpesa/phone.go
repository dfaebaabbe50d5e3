package mpesa

import (
	"fmt"
	"strings"
)

// NormalizePhone converts Kenyan mobile number spellings into the
// 254XXXXXXXXX form the Daraja API expects. Accepted inputs:
//
//	0712345678, 0112345678
//	712345678, 112345678
//	+254712345678, 254712345678
//
// The result is always 12 digits starting with 254.
func NormalizePhone(input string) (string, error) {
	var digits strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	switch {
	case len(number) == 12 && strings.HasPrefix(number, "254"):
		// already normalized
	case len(number) == 10 && (strings.HasPrefix(number, "07") || strings.HasPrefix(number, "01")):
		number = "254" + number[1:]
	case len(number) == 9 && (strings.HasPrefix(number, "7") || strings.HasPrefix(number, "1")):
		number = "254" + number
	default:
		return "", fmt.Errorf("unrecognized phone number %q", input)
	}

	if len(number) != 12 {
		return "", fmt.Errorf("normalized phone %q is not 12 digits", number)
	}
	return number, nil
}
