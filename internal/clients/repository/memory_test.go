package repository

import (
	"context"
	"testing"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// MemorySuite exercises the in-memory store contract.
type MemorySuite struct {
	suite.Suite
	store *Memory
	org   uuid.UUID
	repo  Repository
	ctx   context.Context
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(MemorySuite))
}

func (s *MemorySuite) SetupTest() {
	s.store = NewMemory()
	s.org = uuid.New()
	s.repo = s.store.ForOrganization(s.org)
	s.ctx = context.Background()
}

func (s *MemorySuite) companyDraft(email string) domain.ClientDraft {
	return domain.ClientDraft{
		Type:        domain.ClientTypeCompany,
		Name:        "Acme",
		CompanyName: "Acme",
		Email:       email,
		Status:      domain.StatusProspect,
		PrimaryContact: &domain.ContactDraft{
			FirstName:        "Jean",
			Email:            email,
			Roles:            []domain.ContactRole{domain.RoleFacturation},
			IsBillingDefault: true,
		},
		UniqueKeys: []domain.UniqueKey{{Kind: domain.KeyEmail, Value: email}},
	}
}

func (s *MemorySuite) TestCreateClientWithPrimaryContact() {
	created, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)
	s.Equal(s.org, created.OrganizationID)
	s.Require().Len(created.Contacts, 1)
	s.True(created.Contacts[0].Active)
	s.True(created.Contacts[0].IsBillingDefault)

	owner, ok := s.store.KeyOwner(s.org, domain.UniqueKey{Kind: domain.KeyEmail, Value: "a@b.fr"})
	s.True(ok)
	s.Equal(created.ID, owner)
}

func (s *MemorySuite) TestCreateClientRejectsTakenKey() {
	_, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)

	_, err = s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().Error(err)
	s.True(apperr.Is(err, apperr.KindConflict))
	s.ErrorIs(err, ErrIdentityKeyTaken)

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
}

func (s *MemorySuite) TestKeysAreScopedPerOrganization() {
	_, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)

	other := s.store.ForOrganization(uuid.New())
	_, err = other.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)

	clients, err := other.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
}

func (s *MemorySuite) TestAddBillingContactDemotesPrevious() {
	created, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)

	contact, err := s.repo.AddContact(s.ctx, created.ID, domain.ContactDraft{
		FirstName:        "Marie",
		Email:            "m@b.fr",
		IsBillingDefault: true,
	})
	s.Require().NoError(err)

	fresh, err := s.repo.GetClient(s.ctx, created.ID)
	s.Require().NoError(err)
	defaults := fresh.ActiveBillingDefaults()
	s.Require().Len(defaults, 1)
	s.Equal(contact.ID, defaults[0].ID)
}

func (s *MemorySuite) TestSetBillingDefaultClearsOthers() {
	created, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)
	second, err := s.repo.AddContact(s.ctx, created.ID, domain.ContactDraft{FirstName: "Marie"})
	s.Require().NoError(err)

	s.Require().NoError(s.repo.SetBillingDefault(s.ctx, created.ID, second.ID))

	fresh, err := s.repo.GetClient(s.ctx, created.ID)
	s.Require().NoError(err)
	defaults := fresh.ActiveBillingDefaults()
	s.Require().Len(defaults, 1)
	s.Equal(second.ID, defaults[0].ID)

	err = s.repo.SetBillingDefault(s.ctx, created.ID, uuid.New())
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *MemorySuite) TestReactivateKeepsOtherFields() {
	seeded := s.store.Seed(domain.Client{
		OrganizationID: s.org,
		Type:           domain.ClientTypeCompany,
		Name:           "Acme",
		CompanyName:    "Acme",
		Contacts: []domain.Contact{
			{FirstName: "Jean", Email: "a@b.fr", Active: false, Roles: []domain.ContactRole{domain.RoleAchat}},
		},
	})

	s.Require().NoError(s.repo.ReactivateContact(s.ctx, seeded.ID, seeded.Contacts[0].ID))

	fresh, err := s.repo.GetClient(s.ctx, seeded.ID)
	s.Require().NoError(err)
	s.True(fresh.Contacts[0].Active)
	s.Equal("Jean", fresh.Contacts[0].FirstName)
	s.Equal([]domain.ContactRole{domain.RoleAchat}, fresh.Contacts[0].Roles)
}

func (s *MemorySuite) TestReactivateDropsStaleBillingDefault() {
	seeded := s.store.Seed(domain.Client{
		OrganizationID: s.org,
		Type:           domain.ClientTypeCompany,
		Name:           "Acme",
		CompanyName:    "Acme",
		Contacts: []domain.Contact{
			{Email: "old@b.fr", Active: false, IsBillingDefault: true},
			{Email: "new@b.fr", Active: true, IsBillingDefault: true},
		},
	})

	s.Require().NoError(s.repo.ReactivateContact(s.ctx, seeded.ID, seeded.Contacts[0].ID))

	fresh, err := s.repo.GetClient(s.ctx, seeded.ID)
	s.Require().NoError(err)
	s.True(fresh.Contacts[0].Active)
	s.False(fresh.Contacts[0].IsBillingDefault)
	s.True(fresh.Contacts[1].IsBillingDefault)
	s.Len(fresh.ActiveBillingDefaults(), 1)
}

func (s *MemorySuite) TestReactivateKeepsSoleBillingDefault() {
	seeded := s.store.Seed(domain.Client{
		OrganizationID: s.org,
		Type:           domain.ClientTypeCompany,
		Name:           "Acme",
		CompanyName:    "Acme",
		Contacts: []domain.Contact{
			{Email: "old@b.fr", Active: false, IsBillingDefault: true},
			{Email: "new@b.fr", Active: true},
		},
	})

	s.Require().NoError(s.repo.ReactivateContact(s.ctx, seeded.ID, seeded.Contacts[0].ID))

	fresh, err := s.repo.GetClient(s.ctx, seeded.ID)
	s.Require().NoError(err)
	s.True(fresh.Contacts[0].IsBillingDefault)
	s.Len(fresh.ActiveBillingDefaults(), 1)
}

func (s *MemorySuite) TestGetClientFromOtherOrganizationIsNotFound() {
	created, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)

	_, err = s.store.ForOrganization(uuid.New()).GetClient(s.ctx, created.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *MemorySuite) TestReturnedClientsAreCopies() {
	created, err := s.repo.CreateClient(s.ctx, s.companyDraft("a@b.fr"))
	s.Require().NoError(err)
	created.Contacts[0].Active = false

	fresh, err := s.repo.GetClient(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(fresh.Contacts[0].Active)
}
