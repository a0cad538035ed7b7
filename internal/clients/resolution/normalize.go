// Package resolution decides whether a lead already corresponds to a client
// and, through an injected repository, reconciles or creates it.
package resolution

import (
	"strings"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/phone"

	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes identifying strings. All methods are pure and
// total; empty input yields empty output.
type Normalizer struct {
	region string
}

// NewNormalizer returns a Normalizer parsing national phone numbers in region.
func NewNormalizer(region string) Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = phone.DefaultRegion
	}
	return Normalizer{region: region}
}

// Email trims and lowercases.
func (n Normalizer) Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone reduces any formatting of a number to E.164 digits without the plus sign.
func (n Normalizer) Phone(s string) string {
	return phone.MatchKey(s, n.regionOrDefault())
}

// Text lowercases, composes accents (NFC) and collapses runs of whitespace
// to one space, dropping it at both ends.
func (n Normalizer) Text(s string) string {
	return norm.NFC.String(strings.ToLower(strings.Join(strings.Fields(s), " ")))
}

// Siret trims surrounding whitespace only; SIRETs compare exactly.
func (n Normalizer) Siret(s string) string {
	return strings.TrimSpace(s)
}

func (n Normalizer) regionOrDefault() string {
	if n.region == "" {
		return phone.DefaultRegion
	}
	return n.region
}

var defaultNormalizer = NewNormalizer(phone.DefaultRegion)

// NormalizeEmail is Normalizer.Email with the default region.
func NormalizeEmail(s string) string { return defaultNormalizer.Email(s) }

// NormalizePhone is Normalizer.Phone with the default region (FR).
func NormalizePhone(s string) string { return defaultNormalizer.Phone(s) }

// NormalizeText is Normalizer.Text.
func NormalizeText(s string) string { return defaultNormalizer.Text(s) }
