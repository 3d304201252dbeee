package service

import "strings"

// FormatPhone normalizes a raw phone number to canonical 254XXXXXXXXX form.
// Accepted shapes, checked in order against the digits only:
//
//	7XXXXXXXX    (9 digits)  -> 2547XXXXXXXX
//	07XXXXXXXX   (10 digits) -> 2547XXXXXXXX
//	254XXXXXXXXX (12 digits) -> unchanged
//
// Anything else is rejected with ErrInvalidPhoneFormat. Idempotent: a
// canonical number normalizes to itself.
func FormatPhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 9 && strings.HasPrefix(digits, "7"):
		return "254" + digits, nil
	case len(digits) == 10 && strings.HasPrefix(digits, "07"):
		return "254" + digits[1:], nil
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		return digits, nil
	}

	return "", ErrInvalidPhoneFormat
}
