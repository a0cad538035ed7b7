package resolution

import (
	"fmt"
	"strings"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/phone"

	"github.com/google/uuid"
)

// ActionKind is the decision taken for a matched client.
type ActionKind int

const (
	ActionNoOp ActionKind = iota
	ActionReactivate
	ActionCreateContact
)

func (k ActionKind) String() string {
	switch k {
	case ActionReactivate:
		return "reactivate"
	case ActionCreateContact:
		return "create_contact"
	default:
		return "noop"
	}
}

// ReconcileAction describes the contact mutation to apply to a matched client.
type ReconcileAction struct {
	Kind      ActionKind
	ContactID uuid.UUID
	Draft     *domain.ContactDraft
}

// ContactReconciler decides how a matched client's contacts absorb a lead.
type ContactReconciler struct {
	norm Normalizer
}

// NewContactReconciler returns a reconciler sharing n with the match engine.
func NewContactReconciler(n Normalizer) ContactReconciler {
	return ContactReconciler{norm: n}
}

// Reconcile evaluates, in order:
//  1. matched by email and the contact owning that email is inactive: reactivate it;
//  2. the lead has an email and the match used another key: add a billing
//     contact, default only if the client has no active billing default;
//  3. otherwise nothing.
func (r ContactReconciler) Reconcile(m Match, lead domain.Lead) ReconcileAction {
	key := r.norm.Key(lead)

	if m.By == domain.KeyEmail {
		if id, ok := r.inactiveContactWithEmail(m.Client, key.Email); ok {
			return ReconcileAction{Kind: ActionReactivate, ContactID: id}
		}
		return ReconcileAction{Kind: ActionNoOp}
	}

	if key.Email == "" {
		return ReconcileAction{Kind: ActionNoOp}
	}

	_, last := SplitContactName(lead.Contact)
	draft := &domain.ContactDraft{
		FirstName:        ResolveContactFirstName(lead, m.Client),
		LastName:         last,
		Email:            orPlaceholder(lead.Email, domain.PlaceholderEmail),
		Mobile:           orPlaceholder(phone.NormalizeE164In(lead.Phone, r.norm.region), domain.PlaceholderMobile),
		Roles:            []domain.ContactRole{domain.RoleFacturation},
		IsBillingDefault: !m.Client.HasActiveBillingDefault(),
		UniqueKeys:       key.UniqueKeys(""),
	}
	return ReconcileAction{Kind: ActionCreateContact, Draft: draft}
}

// inactiveContactWithEmail returns the first inactive contact holding email,
// unless an active contact already holds it.
func (r ContactReconciler) inactiveContactWithEmail(client domain.Client, email string) (uuid.UUID, bool) {
	if email == "" {
		return uuid.Nil, false
	}
	var candidate uuid.UUID
	found := false
	for _, contact := range client.Contacts {
		if r.norm.Email(contact.Email) != email {
			continue
		}
		if contact.Active {
			return uuid.Nil, false
		}
		if !found {
			candidate, found = contact.ID, true
		}
	}
	return candidate, found
}

// CheckBillingInvariant fails when client has more than one active
// billing-default contact. The client is never repaired here.
func CheckBillingInvariant(client domain.Client) error {
	defaults := client.ActiveBillingDefaults()
	if len(defaults) <= 1 {
		return nil
	}
	ids := make([]string, 0, len(defaults))
	for _, c := range defaults {
		ids = append(ids, c.ID.String())
	}
	return fmt.Errorf("%w: client %s contacts [%s]", ErrInvariantViolation, client.ID, strings.Join(ids, ", "))
}
