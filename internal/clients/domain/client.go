// Package domain holds the client, contact and lead types shared by the
// clients bounded context.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientType discriminates companies from private individuals.
type ClientType string

const (
	ClientTypeCompany    ClientType = "company"
	ClientTypeIndividual ClientType = "individual"
)

// ParseClientType maps free input to a ClientType. Anything unknown,
// including the empty string, yields "" (no hint).
func ParseClientType(value string) ClientType {
	switch ClientType(strings.ToLower(strings.TrimSpace(value))) {
	case ClientTypeCompany:
		return ClientTypeCompany
	case ClientTypeIndividual:
		return ClientTypeIndividual
	default:
		return ""
	}
}

// ContactRole is a responsibility carried by a client contact.
type ContactRole string

const (
	RoleAchat       ContactRole = "achat"
	RoleFacturation ContactRole = "facturation"
	RoleTechnique   ContactRole = "technique"
)

// CRM statuses assigned by this context.
const (
	StatusActive   = "Actif"
	StatusProspect = "Prospect"
)

// Placeholder channels stored on contacts created without a real value.
// They are display defaults only and never take part in matching.
const (
	PlaceholderEmail  = "contact@client.fr"
	PlaceholderMobile = "+33 6 00 00 00 00"
)

// TagTemporarySiret marks clients whose SIRET was synthesized and must be
// corrected by a human.
const TagTemporarySiret = "siret-a-completer"

// Contact is a person attached to exactly one client.
type Contact struct {
	ID               uuid.UUID     `json:"id"`
	ClientID         uuid.UUID     `json:"clientId"`
	FirstName        string        `json:"firstName"`
	LastName         string        `json:"lastName"`
	Email            string        `json:"email"`
	Mobile           string        `json:"mobile"`
	Roles            []ContactRole `json:"roles"`
	Active           bool          `json:"active"`
	IsBillingDefault bool          `json:"isBillingDefault"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// Client is the canonical business entity a lead resolves to.
type Client struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Type           ClientType `json:"type"`
	Name           string     `json:"name"`
	CompanyName    string     `json:"companyName,omitempty"`
	FirstName      string     `json:"firstName,omitempty"`
	LastName       string     `json:"lastName,omitempty"`
	Siret          string     `json:"siret"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	Status         string     `json:"status"`
	Tags           []string   `json:"tags"`
	Contacts       []Contact  `json:"contacts"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FindContact returns the contact with the given id.
func (c Client) FindContact(id uuid.UUID) (Contact, bool) {
	for _, contact := range c.Contacts {
		if contact.ID == id {
			return contact, true
		}
	}
	return Contact{}, false
}

// ActiveBillingDefaults returns every active contact flagged as billing default.
// A healthy client yields zero or one.
func (c Client) ActiveBillingDefaults() []Contact {
	var out []Contact
	for _, contact := range c.Contacts {
		if contact.Active && contact.IsBillingDefault {
			out = append(out, contact)
		}
	}
	return out
}

// HasActiveBillingDefault reports whether an active billing default exists.
func (c Client) HasActiveBillingDefault() bool {
	return len(c.ActiveBillingDefaults()) > 0
}

// Validate checks the type-dependent shape of a client.
func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyClientName
	}
	switch c.Type {
	case ClientTypeCompany:
		if strings.TrimSpace(c.CompanyName) == "" {
			return ErrCompanyWithoutName
		}
		if c.FirstName != "" || c.LastName != "" {
			return ErrCompanyWithPersonName
		}
	case ClientTypeIndividual:
		if c.Siret != "" {
			return ErrIndividualWithSiret
		}
	default:
		return ErrInvalidClientType
	}
	return nil
}
