package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"

	"github.com/google/uuid"
)

// MemoryLeads is the in-memory lead store paired with Memory.
type MemoryLeads struct {
	mu    sync.Mutex
	leads []domain.Lead
}

// NewMemoryLeads creates an empty lead store.
func NewMemoryLeads() *MemoryLeads {
	return &MemoryLeads{}
}

var _ LeadStore = (*MemoryLeads)(nil)

// Add stores lead, assigning an ID when missing.
func (s *MemoryLeads) Add(lead domain.Lead) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	s.leads = append(s.leads, lead)
	return lead
}

func (s *MemoryLeads) GetLead(_ context.Context, organizationID, leadID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leads {
		if l.ID == leadID && l.OrganizationID == organizationID {
			return l, nil
		}
	}
	return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
}

func (s *MemoryLeads) ListUnlinkedLeads(_ context.Context, organizationID uuid.UUID, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}

	started := afterID == uuid.Nil
	var out []domain.Lead
	for _, l := range s.leads {
		if !started {
			started = l.ID == afterID
			continue
		}
		if l.OrganizationID != organizationID || l.ClientID != nil {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryLeads) ListOrganizationsWithUnlinkedLeads(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, l := range s.leads {
		if l.ClientID != nil {
			continue
		}
		if _, ok := seen[l.OrganizationID]; !ok {
			seen[l.OrganizationID] = struct{}{}
			out = append(out, l.OrganizationID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *MemoryLeads) LinkClient(_ context.Context, organizationID, leadID, clientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leads {
		if s.leads[i].ID == leadID && s.leads[i].OrganizationID == organizationID {
			id := clientID
			s.leads[i].ClientID = &id
			return nil
		}
	}
	return apperr.NotFound(leadNotFoundMessage)
}
