// Package phone normalizes Kenyan mobile numbers to the 12-digit
// international form expected by the payment gateway (2547XXXXXXXX).
package phone

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CountryCode = "254"
	trunkPrefix = "0"
	digitCount  = 12
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize strips everything but digits, replaces a leading trunk 0 with
// the country code and prepends the country code when it is missing.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, trunkPrefix):
		digits = CountryCode + digits[len(trunkPrefix):]
	case !strings.HasPrefix(digits, CountryCode):
		digits = CountryCode + digits
	}

	if len(digits) != digitCount {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return digits, nil
}

func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
