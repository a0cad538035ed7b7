package transport

import (
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"

	"github.com/google/uuid"
)

func ToClientResponse(c domain.Client) ClientResponse {
	contacts := make([]ContactResponse, 0, len(c.Contacts))
	for _, contact := range c.Contacts {
		contacts = append(contacts, ToContactResponse(contact))
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}

	resp := ClientResponse{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Type:           string(c.Type),
		Name:           c.Name,
		CompanyName:    c.CompanyName,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Siret:          c.Siret,
		SiretPending:   resolution.IsTemporarySiret(c.Siret),
		Email:          c.Email,
		Phone:          c.Phone,
		Address:        c.Address,
		City:           c.City,
		Status:         c.Status,
		Tags:           tags,
		Contacts:       contacts,
	}
	if !c.CreatedAt.IsZero() {
		created := c.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func ToContactResponse(c domain.Contact) ContactResponse {
	roles := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, string(r))
	}
	return ContactResponse{
		ID:               c.ID,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Email:            c.Email,
		Mobile:           c.Mobile,
		Roles:            roles,
		Active:           c.Active,
		IsBillingDefault: c.IsBillingDefault,
	}
}

// ToResolutionResponse maps the outcome of one resolution.
func ToResolutionResponse(res resolution.Resolution) ResolutionResponse {
	resp := ResolutionResponse{
		Client:        ToClientResponse(res.Client),
		Outcome:       string(res.Outcome),
		MatchedBy:     string(res.MatchedBy),
		Created:       res.Created(),
		ValidationGap: res.ValidationGap,
	}
	if res.ContactID != uuid.Nil {
		id := res.ContactID
		resp.ContactID = &id
	}
	return resp
}

func ToMatchResponse(m resolution.Match) MatchResponse {
	if !m.Found() {
		return MatchResponse{Found: false, MatchedBy: string(domain.KeyNone)}
	}
	client := ToClientResponse(m.Client)
	return MatchResponse{Found: true, MatchedBy: string(m.By), Client: &client}
}
