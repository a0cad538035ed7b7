package resolution

import (
	"context"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"

	"github.com/google/uuid"
)

// ConvertLead resolves a stored lead and links it to the resulting client.
// A lead already linked to that client is not written again.
func (s *Service) ConvertLead(ctx context.Context, leads repository.LeadStore, repo repository.Repository, organizationID, leadID uuid.UUID, opts ...EnsureOption) (Resolution, error) {
	lead, err := leads.GetLead(ctx, organizationID, leadID)
	if err != nil {
		return Resolution{}, storeError("get lead", err)
	}

	res, err := s.EnsureClient(ctx, lead, repo, opts...)
	if err != nil {
		return Resolution{}, err
	}

	if lead.ClientID != nil && *lead.ClientID == res.Client.ID {
		return res, nil
	}
	if err := leads.LinkClient(ctx, organizationID, leadID, res.Client.ID); err != nil {
		return Resolution{}, storeError("link lead", err)
	}
	return res, nil
}
