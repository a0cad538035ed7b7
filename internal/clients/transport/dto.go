// Package transport holds the request and response shapes of the clients API.
package transport

import (
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"

	"github.com/google/uuid"
)

// Request DTOs

// LeadPayload is a lead as submitted to the resolution endpoints.
type LeadPayload struct {
	ID         *uuid.UUID `json:"id,omitempty"`
	Company    string     `json:"company" validate:"max=200"`
	Contact    string     `json:"contact" validate:"max=200"`
	Email      string     `json:"email" validate:"omitempty,email,max=254"`
	Phone      string     `json:"phone" validate:"max=40"`
	Siret      string     `json:"siret" validate:"siret"`
	Address    string     `json:"address" validate:"max=300"`
	City       string     `json:"city" validate:"max=120"`
	ClientType string     `json:"clientType" validate:"clienttype"`
	Tags       []string   `json:"tags" validate:"max=20,dive,max=50"`
}

type ResolveRequest struct {
	Lead          LeadPayload `json:"lead"`
	SiretOverride string      `json:"siretOverride" validate:"siret"`
}

type MatchRequest struct {
	Lead LeadPayload `json:"lead"`
}

type ConvertLeadRequest struct {
	SiretOverride string `json:"siretOverride" validate:"siret"`
}

type SetBillingContactRequest struct {
	ContactID uuid.UUID `json:"contactId" validate:"required"`
}

// Response DTOs

type ContactResponse struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Mobile           string    `json:"mobile"`
	Roles            []string  `json:"roles"`
	Active           bool      `json:"active"`
	IsBillingDefault bool      `json:"isBillingDefault"`
}

type ClientResponse struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organizationId"`
	Type           string            `json:"type"`
	Name           string            `json:"name"`
	CompanyName    string            `json:"companyName,omitempty"`
	FirstName      string            `json:"firstName,omitempty"`
	LastName       string            `json:"lastName,omitempty"`
	Siret          string            `json:"siret,omitempty"`
	SiretPending   bool              `json:"siretPending"`
	Email          string            `json:"email,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	Address        string            `json:"address,omitempty"`
	City           string            `json:"city,omitempty"`
	Status         string            `json:"status"`
	Tags           []string          `json:"tags"`
	Contacts       []ContactResponse `json:"contacts"`
	CreatedAt      *time.Time        `json:"createdAt,omitempty"`
}

type ResolutionResponse struct {
	Client        ClientResponse `json:"client"`
	Outcome       string         `json:"outcome"`
	MatchedBy     string         `json:"matchedBy"`
	ContactID     *uuid.UUID     `json:"contactId,omitempty"`
	Created       bool           `json:"created"`
	ValidationGap bool           `json:"validationGap"`
}

type MatchResponse struct {
	Found     bool            `json:"found"`
	MatchedBy string          `json:"matchedBy"`
	Client    *ClientResponse `json:"client,omitempty"`
}

type ConvertQueuedResponse struct {
	LeadID uuid.UUID `json:"leadId"`
	TaskID string    `json:"taskId"`
	Status string    `json:"status"`
}

// ToLead maps a payload onto a domain lead of organizationID.
func (p LeadPayload) ToLead(organizationID uuid.UUID) domain.Lead {
	lead := domain.Lead{
		OrganizationID: organizationID,
		Company:        p.Company,
		Contact:        p.Contact,
		Email:          p.Email,
		Phone:          p.Phone,
		Siret:          p.Siret,
		Address:        p.Address,
		City:           p.City,
		ClientType:     domain.ClientType(p.ClientType),
		Tags:           p.Tags,
	}
	if p.ID != nil {
		lead.ID = *p.ID
	}
	return lead
}
