package domain

import "github.com/google/uuid"

// Lead is a prospect record before conversion. Every field is optional.
type Lead struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	Company        string     `json:"company"`
	Contact        string     `json:"contact"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Siret          string     `json:"siret"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	ClientType     ClientType `json:"clientType"`
	Tags           []string   `json:"tags"`
	ClientID       *uuid.UUID `json:"clientId,omitempty"`
}

// IdentityKind discriminates the Identity variant.
type IdentityKind int

const (
	IdentityLead IdentityKind = iota + 1
	IdentityClient
)

// Identity is either a lead still to be resolved or an already known client.
// Callers that accept both build one with LeadIdentity or ClientIdentity and
// switch on Kind instead of inspecting field shapes.
type Identity struct {
	Kind   IdentityKind
	Lead   *Lead
	Client *Client
}

// LeadIdentity wraps a lead.
func LeadIdentity(lead Lead) Identity {
	return Identity{Kind: IdentityLead, Lead: &lead}
}

// ClientIdentity wraps a client.
func ClientIdentity(client Client) Identity {
	return Identity{Kind: IdentityClient, Client: &client}
}

// Valid reports whether the variant carries the payload its Kind announces.
func (i Identity) Valid() bool {
	switch i.Kind {
	case IdentityLead:
		return i.Lead != nil && i.Client == nil
	case IdentityClient:
		return i.Client != nil && i.Lead == nil
	default:
		return false
	}
}
