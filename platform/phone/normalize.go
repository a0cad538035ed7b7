// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no international prefix.
const DefaultRegion = "FR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	return NormalizeE164In(input, DefaultRegion)
}

// NormalizeE164In is NormalizeE164 with an explicit default region.
func NormalizeE164In(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, regionOrDefault(region))
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// MatchKey returns a canonical digit sequence (E.164 without the plus sign)
// suitable for equality comparison. "06 12 34 56 78" and "+33612345678"
// both yield "33612345678". Empty or digit-free input yields "".
func MatchKey(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	region = regionOrDefault(region)
	number, err := phonenumbers.Parse(trimmed, region)
	if err == nil && phonenumbers.IsPossibleNumber(number) {
		return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
	}

	return digitsFallback(trimmed, region)
}

// digitsFallback mirrors the E.164 shape for inputs libphonenumber rejects,
// so a number that parses on one side and not on the other still compares equal.
func digitsFallback(input, region string) string {
	var b strings.Builder
	for _, r := range input {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "00"):
		return strings.TrimLeft(digits[2:], "0")
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		if cc := phonenumbers.GetCountryCodeForRegion(region); cc > 0 {
			return strconv.Itoa(cc) + digits[1:]
		}
	}
	return digits
}

func regionOrDefault(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return DefaultRegion
	}
	return region
}
