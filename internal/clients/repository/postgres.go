package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintIdentityKeys   = "uq_client_identity_keys"
	constraintBillingDefault = "uq_client_contacts_billing_default"
)

const clientColumns = `
	id, organization_id, type, name, company_name, first_name, last_name, siret,
	email, phone, address, city, status, tags, created_at, updated_at`

const contactColumns = `
	id, client_id, first_name, last_name, email, mobile, roles, active,
	is_billing_default, created_at`

// Postgres is the pgx-backed client store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ForOrganization returns a repository scoped to organizationID.
func (p *Postgres) ForOrganization(organizationID uuid.UUID) Repository {
	return &postgresRepo{pool: p.pool, org: organizationID}
}

var _ Store = (*Postgres)(nil)

type postgresRepo struct {
	pool *pgxpool.Pool
	org  uuid.UUID
}

var _ Repository = (*postgresRepo)(nil)

func (r *postgresRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+clientColumns+`
		FROM clients
		WHERE organization_id = $1
		ORDER BY created_at, id`, r.org)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	clients, err := pgx.CollectRows(rows, scanClient)
	if err != nil {
		return nil, fmt.Errorf("scan clients: %w", err)
	}

	contacts, err := r.listContacts(ctx, `
		SELECT`+contactColumns+`
		FROM client_contacts
		WHERE organization_id = $1
		ORDER BY client_id, position`, r.org)
	if err != nil {
		return nil, err
	}

	byClient := make(map[uuid.UUID][]domain.Contact, len(clients))
	for _, c := range contacts {
		byClient[c.ClientID] = append(byClient[c.ClientID], c)
	}
	for i := range clients {
		clients[i].Contacts = byClient[clients[i].ID]
		if clients[i].Contacts == nil {
			clients[i].Contacts = []domain.Contact{}
		}
	}
	return clients, nil
}

func (r *postgresRepo) GetClient(ctx context.Context, clientID uuid.UUID) (domain.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+clientColumns+`
		FROM clients
		WHERE id = $1 AND organization_id = $2`, clientID, r.org)
	if err != nil {
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	client, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}

	contacts, err := r.listContacts(ctx, `
		SELECT`+contactColumns+`
		FROM client_contacts
		WHERE client_id = $1 AND organization_id = $2
		ORDER BY position`, clientID, r.org)
	if err != nil {
		return domain.Client{}, err
	}
	client.Contacts = contacts
	return client, nil
}

func (r *postgresRepo) CreateClient(ctx context.Context, draft domain.ClientDraft) (domain.Client, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Client{}, fmt.Errorf("begin create client: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	client := draft.Client()
	client.ID = uuid.New()
	client.OrganizationID = r.org
	if client.Tags == nil {
		client.Tags = []string{}
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO clients (
			id, organization_id, type, name, company_name, first_name, last_name, siret,
			email, phone, address, city, status, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		client.ID, client.OrganizationID, string(client.Type), client.Name, client.CompanyName,
		client.FirstName, client.LastName, client.Siret, client.Email, client.Phone,
		client.Address, client.City, client.Status, client.Tags,
	).Scan(&client.CreatedAt, &client.UpdatedAt); err != nil {
		return domain.Client{}, fmt.Errorf("insert client: %w", err)
	}

	for _, k := range draft.UniqueKeys {
		if _, err := tx.Exec(ctx, `
			INSERT INTO client_identity_keys (organization_id, kind, value, client_id)
			VALUES ($1, $2, $3, $4)`, r.org, string(k.Kind), k.Value, client.ID); err != nil {
			if db.IsUniqueViolation(err) && db.ConstraintName(err) == constraintIdentityKeys {
				return domain.Client{}, apperr.Wrap(apperr.KindConflict, "identity key already registered",
					fmt.Errorf("%w: %s", ErrIdentityKeyTaken, k.Kind))
			}
			return domain.Client{}, fmt.Errorf("insert identity key: %w", err)
		}
	}

	client.Contacts = []domain.Contact{}
	if draft.PrimaryContact != nil {
		contact, err := insertContact(ctx, tx, r.org, client.ID, 0, *draft.PrimaryContact)
		if err != nil {
			return domain.Client{}, err
		}
		client.Contacts = append(client.Contacts, contact)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Client{}, fmt.Errorf("commit create client: %w", err)
	}
	return client, nil
}

func (r *postgresRepo) AddContact(ctx context.Context, clientID uuid.UUID, draft domain.ContactDraft) (domain.Contact, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Contact{}, fmt.Errorf("begin add contact: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockClient(ctx, tx, r.org, clientID); err != nil {
		return domain.Contact{}, err
	}

	if draft.IsBillingDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE client_contacts SET is_billing_default = false, updated_at = now()
			WHERE client_id = $1 AND is_billing_default`, clientID); err != nil {
			return domain.Contact{}, fmt.Errorf("demote billing default: %w", err)
		}
	}

	var position int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM client_contacts WHERE client_id = $1`, clientID,
	).Scan(&position); err != nil {
		return domain.Contact{}, fmt.Errorf("next contact position: %w", err)
	}

	contact, err := insertContact(ctx, tx, r.org, clientID, position, draft)
	if err != nil {
		return domain.Contact{}, err
	}

	for _, k := range draft.UniqueKeys {
		if _, err := tx.Exec(ctx, `
			INSERT INTO client_identity_keys (organization_id, kind, value, client_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT ON CONSTRAINT `+constraintIdentityKeys+` DO NOTHING`,
			r.org, string(k.Kind), k.Value, clientID); err != nil {
			return domain.Contact{}, fmt.Errorf("register contact key: %w", err)
		}
	}

	if err := touchClient(ctx, tx, clientID); err != nil {
		return domain.Contact{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Contact{}, fmt.Errorf("commit add contact: %w", err)
	}
	return contact, nil
}

func (r *postgresRepo) SetBillingDefault(ctx context.Context, clientID, contactID uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin set billing default: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockClient(ctx, tx, r.org, clientID); err != nil {
		return err
	}

	// The partial unique index is checked row by row, so clear before setting.
	if _, err := tx.Exec(ctx, `
		UPDATE client_contacts SET is_billing_default = false, updated_at = now()
		WHERE client_id = $1 AND is_billing_default AND id <> $2`, clientID, contactID); err != nil {
		return fmt.Errorf("clear billing default: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE client_contacts SET is_billing_default = true, updated_at = now()
		WHERE id = $1 AND client_id = $2`, contactID, clientID)
	if err != nil {
		return fmt.Errorf("set billing default: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(contactNotFoundMessage)
	}

	if err := touchClient(ctx, tx, clientID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit set billing default: %w", err)
	}
	return nil
}

func (r *postgresRepo) ReactivateContact(ctx context.Context, clientID, contactID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE client_contacts c SET
			active = true,
			is_billing_default = c.is_billing_default AND NOT EXISTS (
				SELECT 1 FROM client_contacts o
				WHERE o.client_id = c.client_id AND o.id <> c.id AND o.active AND o.is_billing_default
			),
			updated_at = now()
		WHERE c.id = $1 AND c.client_id = $2 AND c.organization_id = $3`, contactID, clientID, r.org)
	if err != nil {
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == constraintBillingDefault {
			return apperr.Wrap(apperr.KindConflict, "billing default already assigned", ErrBillingDefaultTaken)
		}
		return fmt.Errorf("reactivate contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(contactNotFoundMessage)
	}
	return nil
}

func (r *postgresRepo) listContacts(ctx context.Context, query string, args ...any) ([]domain.Contact, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	contacts, err := pgx.CollectRows(rows, scanContact)
	if err != nil {
		return nil, fmt.Errorf("scan contacts: %w", err)
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	return contacts, nil
}

func lockClient(ctx context.Context, tx pgx.Tx, org, clientID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM clients WHERE id = $1 AND organization_id = $2 FOR UPDATE`, clientID, org,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(clientNotFoundMessage)
	}
	if err != nil {
		return fmt.Errorf("lock client: %w", err)
	}
	return nil
}

func touchClient(ctx context.Context, tx pgx.Tx, clientID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `UPDATE clients SET updated_at = now() WHERE id = $1`, clientID); err != nil {
		return fmt.Errorf("touch client: %w", err)
	}
	return nil
}

func insertContact(ctx context.Context, tx pgx.Tx, org, clientID uuid.UUID, position int, draft domain.ContactDraft) (domain.Contact, error) {
	contact := domain.Contact{
		ID:               uuid.New(),
		ClientID:         clientID,
		FirstName:        draft.FirstName,
		LastName:         draft.LastName,
		Email:            draft.Email,
		Mobile:           draft.Mobile,
		Roles:            append([]domain.ContactRole{}, draft.Roles...),
		Active:           true,
		IsBillingDefault: draft.IsBillingDefault,
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO client_contacts (
			id, client_id, organization_id, position, first_name, last_name, email, mobile,
			roles, active, is_billing_default
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, $10)
		RETURNING created_at`,
		contact.ID, clientID, org, position, contact.FirstName, contact.LastName,
		contact.Email, contact.Mobile, rolesToStrings(contact.Roles), contact.IsBillingDefault,
	).Scan(&contact.CreatedAt); err != nil {
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == constraintBillingDefault {
			return domain.Contact{}, apperr.Wrap(apperr.KindConflict, "billing default already assigned", ErrBillingDefaultTaken)
		}
		return domain.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return contact, nil
}

func scanClient(row pgx.CollectableRow) (domain.Client, error) {
	var (
		c          domain.Client
		clientType string
		createdAt  time.Time
		updatedAt  time.Time
	)
	err := row.Scan(
		&c.ID, &c.OrganizationID, &clientType, &c.Name, &c.CompanyName, &c.FirstName, &c.LastName,
		&c.Siret, &c.Email, &c.Phone, &c.Address, &c.City, &c.Status, &c.Tags, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Client{}, err
	}
	c.Type = domain.ClientType(clientType)
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

func scanContact(row pgx.CollectableRow) (domain.Contact, error) {
	var (
		c     domain.Contact
		roles []string
	)
	if err := row.Scan(
		&c.ID, &c.ClientID, &c.FirstName, &c.LastName, &c.Email, &c.Mobile, &roles,
		&c.Active, &c.IsBillingDefault, &c.CreatedAt,
	); err != nil {
		return domain.Contact{}, err
	}
	c.Roles = make([]domain.ContactRole, 0, len(roles))
	for _, role := range roles {
		c.Roles = append(c.Roles, domain.ContactRole(role))
	}
	return c, nil
}

func rolesToStrings(roles []domain.ContactRole) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
