// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "FR"

// NormalizeE164 formats a phone number to E.164 using countryCode as the
// parsing region, falling back to the default region when blank. If parsing
// or validation fails, it returns the trimmed input unchanged.
func NormalizeE164(input, countryCode string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	region := strings.ToUpper(strings.TrimSpace(countryCode))
	if region == "" {
		region = defaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
