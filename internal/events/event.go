// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Clients Domain Events
// =============================================================================

// ClientCreated is published when a lead produced a brand new client.
type ClientCreated struct {
	BaseEvent
	ClientID       uuid.UUID `json:"clientId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	LeadID         uuid.UUID `json:"leadId"`
	ClientType     string    `json:"clientType"`
	TemporarySiret bool      `json:"temporarySiret"`
}

func (e ClientCreated) EventName() string    { return "clients.client.created" }
func (e ClientCreated) PartitionKey() string { return e.ClientID.String() }

// ClientContactAdded is published when a lead added a new contact to an existing client.
type ClientContactAdded struct {
	BaseEvent
	ClientID       uuid.UUID `json:"clientId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ContactID      uuid.UUID `json:"contactId"`
	LeadID         uuid.UUID `json:"leadId"`
}

func (e ClientContactAdded) EventName() string    { return "clients.contact.added" }
func (e ClientContactAdded) PartitionKey() string { return e.ClientID.String() }

// ClientContactReactivated is published when an inactive contact matched a lead again.
type ClientContactReactivated struct {
	BaseEvent
	ClientID       uuid.UUID `json:"clientId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ContactID      uuid.UUID `json:"contactId"`
	LeadID         uuid.UUID `json:"leadId"`
}

func (e ClientContactReactivated) EventName() string    { return "clients.contact.reactivated" }
func (e ClientContactReactivated) PartitionKey() string { return e.ClientID.String() }

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadResolved is published once a lead has been attached to a client,
// whatever the outcome (matched, contact added, created).
type LeadResolved struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ClientID       uuid.UUID `json:"clientId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Outcome        string    `json:"outcome"`
	MatchedBy      string    `json:"matchedBy"`
}

func (e LeadResolved) EventName() string    { return "leads.lead.resolved" }
func (e LeadResolved) PartitionKey() string { return e.ClientID.String() }

// Published lists the events relayed outside the process.
func Published() []string {
	return []string{
		ClientCreated{}.EventName(),
		ClientContactAdded{}.EventName(),
		ClientContactReactivated{}.EventName(),
		LeadResolved{}.EventName(),
	}
}
