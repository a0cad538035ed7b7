package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientType(t *testing.T) {
	assert.Equal(t, ClientTypeCompany, ParseClientType(" Company "))
	assert.Equal(t, ClientTypeIndividual, ParseClientType("individual"))
	assert.Equal(t, ClientType(""), ParseClientType("association"))
	assert.Equal(t, ClientType(""), ParseClientType(""))
}

func TestValidateTypeShape(t *testing.T) {
	require.NoError(t, Client{Type: ClientTypeCompany, Name: "Acme", CompanyName: "Acme", Siret: "12345678901234"}.Validate())
	require.NoError(t, Client{Type: ClientTypeIndividual, Name: "Jean Dupont", FirstName: "Jean", LastName: "Dupont"}.Validate())

	assert.ErrorIs(t, Client{Type: ClientTypeIndividual, Name: "Jean", Siret: "123"}.Validate(), ErrIndividualWithSiret)
	assert.ErrorIs(t, Client{Type: ClientTypeCompany, Name: "Acme"}.Validate(), ErrCompanyWithoutName)
	assert.ErrorIs(t, Client{Type: ClientTypeCompany, Name: "Acme", CompanyName: "Acme", FirstName: "Jean"}.Validate(), ErrCompanyWithPersonName)
	assert.ErrorIs(t, Client{Type: ClientTypeCompany, Name: "  ", CompanyName: "Acme"}.Validate(), ErrEmptyClientName)
	assert.ErrorIs(t, Client{Name: "x"}.Validate(), ErrInvalidClientType)
}

func TestActiveBillingDefaultsIgnoresInactive(t *testing.T) {
	client := Client{Contacts: []Contact{
		{ID: uuid.New(), Active: false, IsBillingDefault: true},
		{ID: uuid.New(), Active: true, IsBillingDefault: false},
	}}
	assert.False(t, client.HasActiveBillingDefault())

	client.Contacts = append(client.Contacts, Contact{ID: uuid.New(), Active: true, IsBillingDefault: true})
	assert.Len(t, client.ActiveBillingDefaults(), 1)

	found, ok := client.FindContact(client.Contacts[2].ID)
	require.True(t, ok)
	assert.True(t, found.IsBillingDefault)
}

func TestIdentityVariant(t *testing.T) {
	lead := LeadIdentity(Lead{Email: "a@b.fr"})
	assert.True(t, lead.Valid())
	assert.Equal(t, IdentityLead, lead.Kind)

	client := ClientIdentity(Client{ID: uuid.New()})
	assert.True(t, client.Valid())
	assert.Equal(t, IdentityClient, client.Kind)

	assert.False(t, Identity{}.Valid())
	assert.False(t, Identity{Kind: IdentityLead}.Valid())
}
