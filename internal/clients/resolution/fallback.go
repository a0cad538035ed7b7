package resolution

import (
	"fmt"
	"strings"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/sanitize"
)

// DefaultBrandName is used in fallback names when none is configured.
const DefaultBrandName = "Wash&Go"

const (
	temporarySiretPrefix = "TMP-"
	temporarySlugLength  = 8
	temporarySlugDefault = "client"
	previewName          = "Prospect"
	contactFallbackName  = "Contact"
)

// SplitContactName splits a free-text name on whitespace: the first word is
// the first name, the rest the last name.
func SplitContactName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// ResolveDisplayName picks the name of a client created from lead.
//
// Individuals: "first last" from the contact name, then "Client <brand>".
// Companies: company name, then contact name, then "Organisation <brand>".
// The result is never empty.
func ResolveDisplayName(clientType domain.ClientType, lead domain.Lead, brand string) string {
	brand = brandOrDefault(brand)
	contact := strings.TrimSpace(lead.Contact)

	if clientType == domain.ClientTypeIndividual {
		first, last := SplitContactName(contact)
		if name := strings.TrimSpace(first + " " + last); name != "" {
			return name
		}
		return "Client " + brand
	}

	if company := strings.TrimSpace(lead.Company); company != "" {
		return company
	}
	if contact != "" {
		return contact
	}
	return "Organisation " + brand
}

// ResolveSiret picks the SIRET of a company created from lead: the lead's own
// SIRET, then override, then a temporary token built from name and now.
// temporary reports whether the token was synthesized.
func ResolveSiret(lead domain.Lead, override, name string, now time.Time) (siret string, temporary bool) {
	if s := strings.TrimSpace(lead.Siret); s != "" {
		return s, IsTemporarySiret(s)
	}
	if s := strings.TrimSpace(override); s != "" {
		return s, IsTemporarySiret(s)
	}
	return TemporarySiret(name, now), true
}

// TemporarySiret builds "TMP-<slug>-<unix millis>" where slug is the first
// eight ASCII letters or digits of name, or "client".
func TemporarySiret(name string, now time.Time) string {
	slug := sanitize.Slug(name)
	if len(slug) > temporarySlugLength {
		slug = slug[:temporarySlugLength]
	}
	if slug == "" {
		slug = temporarySlugDefault
	}
	return fmt.Sprintf("%s%s-%d", temporarySiretPrefix, slug, now.UnixMilli())
}

// IsTemporarySiret reports whether siret was synthesized and awaits correction.
func IsTemporarySiret(siret string) bool {
	return strings.HasPrefix(strings.TrimSpace(siret), temporarySiretPrefix)
}

// ResolveContactFirstName picks the first name of a contact added to client
// from lead: split contact name, company, client name, then "Contact".
func ResolveContactFirstName(lead domain.Lead, client domain.Client) string {
	if first, _ := SplitContactName(lead.Contact); first != "" {
		return first
	}
	if company := strings.TrimSpace(lead.Company); company != "" {
		return company
	}
	if name := strings.TrimSpace(client.Name); name != "" {
		return name
	}
	return contactFallbackName
}

func orPlaceholder(value, placeholder string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return placeholder
}

func brandOrDefault(brand string) string {
	if b := strings.TrimSpace(brand); b != "" {
		return b
	}
	return DefaultBrandName
}
