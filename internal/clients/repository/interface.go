// Package repository provides client persistence for the identity resolution
// engine: the Repository port, a Postgres store, an in-memory store and the
// lead store used by conversion flows.
package repository

import (
	"context"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"

	"github.com/google/uuid"
)

// ClientReader reads the organization's client snapshot.
type ClientReader interface {
	// ListClients returns every client with its contacts, oldest first.
	ListClients(ctx context.Context) ([]domain.Client, error)
	// GetClient returns one client with its contacts.
	GetClient(ctx context.Context, clientID uuid.UUID) (domain.Client, error)
}

// ClientWriter mutates clients and contacts. Every method is atomic.
type ClientWriter interface {
	// CreateClient stores the client, its unique keys and its optional primary
	// contact in one transaction. A unique key already owned by another client
	// yields an apperr conflict wrapping ErrIdentityKeyTaken.
	CreateClient(ctx context.Context, draft domain.ClientDraft) (domain.Client, error)
	// AddContact stores a contact. When the draft is billing default, every
	// other contact of the client is demoted in the same transaction. Unique
	// keys already owned are left untouched.
	AddContact(ctx context.Context, clientID uuid.UUID, draft domain.ContactDraft) (domain.Contact, error)
	// SetBillingDefault flags contactID and clears the flag on every other contact.
	SetBillingDefault(ctx context.Context, clientID, contactID uuid.UUID) error
	// ReactivateContact sets active=true without altering other fields, except
	// that a leftover billing-default flag is cleared when another active
	// contact already holds the default.
	ReactivateContact(ctx context.Context, clientID, contactID uuid.UUID) error
}

// Repository is the capability the resolution engine consumes.
type Repository interface {
	ClientReader
	ClientWriter
}

// Store hands out organization-scoped repositories.
type Store interface {
	ForOrganization(organizationID uuid.UUID) Repository
}

// LeadReader loads leads for conversion.
type LeadReader interface {
	GetLead(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Lead, error)
	ListUnlinkedLeads(ctx context.Context, organizationID uuid.UUID, afterID uuid.UUID, limit int) ([]domain.Lead, error)
	ListOrganizationsWithUnlinkedLeads(ctx context.Context) ([]uuid.UUID, error)
}

// LeadLinker records the client a lead was resolved to.
type LeadLinker interface {
	LinkClient(ctx context.Context, organizationID, leadID, clientID uuid.UUID) error
}

// LeadStore combines lead reads and linking.
type LeadStore interface {
	LeadReader
	LeadLinker
}
