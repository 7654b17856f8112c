package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ttacon/libphonenumber"
)

var CountryCode = "BR"

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeName collapses internal whitespace and case-folds, so
// "  ACME   Ltda " and "acme ltda" compare equal.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " ")))
}

// CnpjDigits strips a CNPJ down to its digits.
func CnpjDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var cnpjWeightsFirst = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
var cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidateCnpj runs the two-digit mod-11 check over the weighted digits.
// Sequences of 14 identical digits are rejected outright: several of them
// (e.g. all zeros) would otherwise pass the arithmetic.
func ValidateCnpj(s string) error {
	digits := CnpjDigits(s)
	if len(digits) != 14 {
		return ErrInvalidTaxId
	}

	identical := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			identical = false
			break
		}
	}
	if identical {
		return ErrInvalidTaxId
	}

	if cnpjCheckDigit(digits, cnpjWeightsFirst) != int(digits[12]-'0') {
		return ErrInvalidTaxId
	}
	if cnpjCheckDigit(digits, cnpjWeightsSecond) != int(digits[13]-'0') {
		return ErrInvalidTaxId
	}
	return nil
}

func cnpjCheckDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// NormalizePlate upper-cases and strips separators so "abc-1234" and
// "ABC1234" identify the same vehicle.
func NormalizePlate(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}
