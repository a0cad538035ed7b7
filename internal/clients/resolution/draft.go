package resolution

import (
	"strings"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/phone"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/sanitize"

	"github.com/google/uuid"
)

// DraftInput gathers what BuildClientDraft needs besides the lead.
type DraftInput struct {
	Key           IdentityKey
	SiretOverride string
	Brand         string
	Now           time.Time
	// Region parses national phone numbers; empty means FR.
	Region string
}

// BuildClientDraft constructs the client (and optional primary contact) to
// create for an unmatched lead. A lead without a type hint becomes a company.
func BuildClientDraft(lead domain.Lead, in DraftInput) domain.ClientDraft {
	clientType := lead.ClientType
	if clientType == "" {
		clientType = domain.ClientTypeCompany
	}

	name := ResolveDisplayName(clientType, lead, in.Brand)
	first, last := SplitContactName(lead.Contact)
	mobile := phone.NormalizeE164In(lead.Phone, in.Region)

	draft := domain.ClientDraft{
		Type:       clientType,
		Name:       name,
		Email:      strings.TrimSpace(lead.Email),
		Phone:      mobile,
		Address:    strings.TrimSpace(lead.Address),
		City:       strings.TrimSpace(lead.City),
		Status:     domain.StatusProspect,
		Tags:       sanitize.Tags(lead.Tags),
		UniqueKeys: in.Key.UniqueKeys(lead.ClientType),
	}

	if clientType == domain.ClientTypeIndividual {
		draft.FirstName = first
		draft.LastName = last
		return draft
	}

	siret, temporary := ResolveSiret(lead, in.SiretOverride, name, in.Now)
	draft.CompanyName = name
	draft.Siret = siret
	if temporary {
		draft.Tags = appendTag(draft.Tags, domain.TagTemporarySiret)
	} else if siret != "" {
		draft.UniqueKeys = appendKey(draft.UniqueKeys, domain.UniqueKey{Kind: domain.KeySiret, Value: siret})
	}

	if first != "" || last != "" {
		draft.PrimaryContact = &domain.ContactDraft{
			FirstName:        orPlaceholder(first, name),
			LastName:         last,
			Email:            orPlaceholder(lead.Email, domain.PlaceholderEmail),
			Mobile:           orPlaceholder(mobile, domain.PlaceholderMobile),
			Roles:            []domain.ContactRole{domain.RoleFacturation},
			IsBillingDefault: true,
		}
	}
	return draft
}

// PreviewClient builds an unsaved client for dry-run screens. Its ID is
// uuid.Nil; it carries one billing contact when the lead has an email.
func PreviewClient(lead domain.Lead) domain.Client {
	first, last := SplitContactName(lead.Contact)
	clientType := domain.ClientTypeCompany
	if lead.ClientType == domain.ClientTypeIndividual {
		clientType = domain.ClientTypeIndividual
	}

	name := strings.TrimSpace(lead.Company)
	if name == "" {
		name = strings.TrimSpace(lead.Contact)
	}
	if name == "" {
		name = previewName
	}

	client := domain.Client{
		ID:          uuid.Nil,
		Type:        clientType,
		Name:        name,
		CompanyName: strings.TrimSpace(lead.Company),
		Siret:       strings.TrimSpace(lead.Siret),
		Email:       strings.TrimSpace(lead.Email),
		Phone:       phone.NormalizeE164(lead.Phone),
		Address:     strings.TrimSpace(lead.Address),
		City:        strings.TrimSpace(lead.City),
		Status:      domain.StatusActive,
		Tags:        sanitize.Tags(lead.Tags),
		Contacts:    []domain.Contact{},
	}
	if clientType == domain.ClientTypeIndividual {
		client.FirstName = first
		client.LastName = last
	}

	if email := strings.TrimSpace(lead.Email); email != "" {
		client.Contacts = append(client.Contacts, domain.Contact{
			FirstName:        orPlaceholder(first, contactFallbackName),
			LastName:         last,
			Email:            email,
			Mobile:           client.Phone,
			Roles:            []domain.ContactRole{domain.RoleFacturation},
			Active:           true,
			IsBillingDefault: true,
		})
	}
	return client
}

func appendKey(keys []domain.UniqueKey, key domain.UniqueKey) []domain.UniqueKey {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return tags
		}
	}
	return append(tags, tag)
}
