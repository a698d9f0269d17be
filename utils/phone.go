package utils

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// CountryCode is the default region for phone numbers entered without a
// country prefix.
var CountryCode = "RU"

// NormalizePhone validates the number for the default region and returns its
// E.164 form, so the same contact never appears under two spellings.
func NormalizePhone(phone string) (string, error) {
	p, err := libphonenumber.Parse(strings.TrimSpace(phone), CountryCode)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
