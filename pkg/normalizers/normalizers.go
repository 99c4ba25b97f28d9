// Package normalizers canonicalizes order fields before they are compared.
// Every normalizer is idempotent and maps absent input to the empty string.
package normalizers

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// CollapseWhitespace trims s and replaces every run of whitespace with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DigitsOnly keeps only ASCII digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps the digits of a phone number and drops a leading North American
// country code, so "+1 (212) 555-1234" and "2125551234" normalize identically.
func NormalizePhone(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}

// NormalizeName lowercases and collapses whitespace. Names are compared as whole strings.
func NormalizeName(s string) string {
	return CollapseWhitespace(strings.ToLower(s))
}

// NormalizeAddressComponent lowercases, trims and collapses internal whitespace.
func NormalizeAddressComponent(s string) string {
	return CollapseWhitespace(strings.ToLower(s))
}

// NormalizeAddress1 normalizes a street line and drops periods and commas,
// so "123 Main St., Apt 4" equals "123 main st apt 4" and "P.O. Box 12" equals "po box 12".
func NormalizeAddress1(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)
	return NormalizeAddressComponent(s)
}

// NormalizedAddress holds the comparable components of a shipping address.
type NormalizedAddress struct {
	Address1 string
	City     string
	Province string
	Zip      string
	Country  string
}

// NormalizeAddress returns nil for an absent address.
func NormalizeAddress(a *models.Address) *NormalizedAddress {
	if a == nil {
		return nil
	}
	return &NormalizedAddress{
		Address1: NormalizeAddress1(a.Address1),
		City:     NormalizeAddressComponent(a.City),
		Province: NormalizeAddressComponent(a.Province),
		Zip:      NormalizeAddressComponent(a.Zip),
		Country:  NormalizeAddressComponent(a.Country),
	}
}

// Optional applies fn to a nullable field; nil maps to "".
func Optional(s *string, fn func(string) string) string {
	if s == nil {
		return ""
	}
	return fn(*s)
}
