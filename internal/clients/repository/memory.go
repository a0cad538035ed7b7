package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"

	"github.com/google/uuid"
)

type memoryKey struct {
	org   uuid.UUID
	kind  domain.KeyKind
	value string
}

// Memory is a mutex-guarded store with the same uniqueness and billing-default
// guarantees as the Postgres store. It backs tests and CLIENT_STORE=memory.
type Memory struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*domain.Client
	order   []uuid.UUID
	keys    map[memoryKey]uuid.UUID
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		clients: make(map[uuid.UUID]*domain.Client),
		keys:    make(map[memoryKey]uuid.UUID),
		now:     time.Now,
	}
}

// ForOrganization returns a repository scoped to organizationID.
func (m *Memory) ForOrganization(organizationID uuid.UUID) Repository {
	return &memoryRepo{store: m, org: organizationID}
}

// Seed inserts client as-is, bypassing every check, and registers keys for it.
// The client keeps its ID when set.
func (m *Memory) Seed(client domain.Client, keys ...domain.UniqueKey) domain.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	for i := range client.Contacts {
		if client.Contacts[i].ID == uuid.Nil {
			client.Contacts[i].ID = uuid.New()
		}
		client.Contacts[i].ClientID = client.ID
	}
	stored := cloneClient(client)
	m.clients[client.ID] = &stored
	m.order = append(m.order, client.ID)
	for _, k := range keys {
		m.keys[memoryKey{org: client.OrganizationID, kind: k.Kind, value: k.Value}] = client.ID
	}
	return cloneClient(stored)
}

// KeyOwner returns the client owning a unique key.
func (m *Memory) KeyOwner(organizationID uuid.UUID, key domain.UniqueKey) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[memoryKey{org: organizationID, kind: key.Kind, value: key.Value}]
	return id, ok
}

var _ Store = (*Memory)(nil)

type memoryRepo struct {
	store *Memory
	org   uuid.UUID
}

var _ Repository = (*memoryRepo)(nil)

func (r *memoryRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Client, 0, len(m.order))
	for _, id := range m.order {
		if c := m.clients[id]; c.OrganizationID == r.org {
			out = append(out, cloneClient(*c))
		}
	}
	return out, nil
}

func (r *memoryRepo) GetClient(ctx context.Context, clientID uuid.UUID) (domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return domain.Client{}, err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := r.lookup(clientID)
	if err != nil {
		return domain.Client{}, err
	}
	return cloneClient(*c), nil
}

func (r *memoryRepo) CreateClient(ctx context.Context, draft domain.ClientDraft) (domain.Client, error) {
	if err := ctx.Err(); err != nil {
		return domain.Client{}, err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range draft.UniqueKeys {
		if _, taken := m.keys[memoryKey{org: r.org, kind: k.Kind, value: k.Value}]; taken {
			return domain.Client{}, apperr.Wrap(apperr.KindConflict, "identity key already registered", ErrIdentityKeyTaken)
		}
	}

	now := m.now()
	client := draft.Client()
	client.ID = uuid.New()
	client.OrganizationID = r.org
	client.Tags = append([]string{}, draft.Tags...)
	client.Contacts = []domain.Contact{}
	client.CreatedAt = now
	client.UpdatedAt = now

	if draft.PrimaryContact != nil {
		client.Contacts = append(client.Contacts, newContact(client.ID, *draft.PrimaryContact, now))
	}

	m.clients[client.ID] = &client
	m.order = append(m.order, client.ID)
	for _, k := range draft.UniqueKeys {
		m.keys[memoryKey{org: r.org, kind: k.Kind, value: k.Value}] = client.ID
	}
	return cloneClient(client), nil
}

func (r *memoryRepo) AddContact(ctx context.Context, clientID uuid.UUID, draft domain.ContactDraft) (domain.Contact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Contact{}, err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := r.lookup(clientID)
	if err != nil {
		return domain.Contact{}, err
	}

	now := m.now()
	if draft.IsBillingDefault {
		for i := range c.Contacts {
			c.Contacts[i].IsBillingDefault = false
		}
	}
	contact := newContact(clientID, draft, now)
	c.Contacts = append(c.Contacts, contact)
	c.UpdatedAt = now

	for _, k := range draft.UniqueKeys {
		mk := memoryKey{org: r.org, kind: k.Kind, value: k.Value}
		if _, taken := m.keys[mk]; !taken {
			m.keys[mk] = clientID
		}
	}
	return cloneContact(contact), nil
}

func (r *memoryRepo) SetBillingDefault(ctx context.Context, clientID, contactID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := r.lookup(clientID)
	if err != nil {
		return err
	}
	idx := contactIndex(c, contactID)
	if idx < 0 {
		return apperr.NotFound(contactNotFoundMessage)
	}
	for i := range c.Contacts {
		c.Contacts[i].IsBillingDefault = i == idx
	}
	c.UpdatedAt = m.now()
	return nil
}

func (r *memoryRepo) ReactivateContact(ctx context.Context, clientID, contactID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := r.store
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := r.lookup(clientID)
	if err != nil {
		return err
	}
	idx := contactIndex(c, contactID)
	if idx < 0 {
		return apperr.NotFound(contactNotFoundMessage)
	}
	if c.Contacts[idx].IsBillingDefault {
		for i, other := range c.Contacts {
			if i != idx && other.Active && other.IsBillingDefault {
				c.Contacts[idx].IsBillingDefault = false
				break
			}
		}
	}
	c.Contacts[idx].Active = true
	c.UpdatedAt = m.now()
	return nil
}

func (r *memoryRepo) lookup(clientID uuid.UUID) (*domain.Client, error) {
	c, ok := r.store.clients[clientID]
	if !ok || c.OrganizationID != r.org {
		return nil, apperr.NotFound(clientNotFoundMessage)
	}
	return c, nil
}

func contactIndex(c *domain.Client, contactID uuid.UUID) int {
	for i := range c.Contacts {
		if c.Contacts[i].ID == contactID {
			return i
		}
	}
	return -1
}

func newContact(clientID uuid.UUID, draft domain.ContactDraft, now time.Time) domain.Contact {
	return domain.Contact{
		ID:               uuid.New(),
		ClientID:         clientID,
		FirstName:        draft.FirstName,
		LastName:         draft.LastName,
		Email:            draft.Email,
		Mobile:           draft.Mobile,
		Roles:            append([]domain.ContactRole{}, draft.Roles...),
		Active:           true,
		IsBillingDefault: draft.IsBillingDefault,
		CreatedAt:        now,
	}
}

func cloneClient(c domain.Client) domain.Client {
	out := c
	out.Tags = append([]string{}, c.Tags...)
	out.Contacts = make([]domain.Contact, 0, len(c.Contacts))
	for _, contact := range c.Contacts {
		out.Contacts = append(out.Contacts, cloneContact(contact))
	}
	return out
}

func cloneContact(c domain.Contact) domain.Contact {
	out := c
	out.Roles = append([]domain.ContactRole{}, c.Roles...)
	return out
}
