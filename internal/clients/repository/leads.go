package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadStatusConverted = "converti"

const leadColumns = `
	id, organization_id, company, contact, email, phone, siret, address, city,
	client_type, tags, client_id`

// PostgresLeads reads leads and links them to their resolved client.
type PostgresLeads struct {
	pool *pgxpool.Pool
}

// NewPostgresLeads creates a lead store.
func NewPostgresLeads(pool *pgxpool.Pool) *PostgresLeads {
	return &PostgresLeads{pool: pool}
}

var _ LeadStore = (*PostgresLeads)(nil)

// GetLead returns a non-deleted lead of the organization.
func (s *PostgresLeads) GetLead(ctx context.Context, organizationID, leadID uuid.UUID) (domain.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`, leadID, organizationID)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	lead, err := pgx.CollectExactlyOneRow(rows, scanLead)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// ListUnlinkedLeads pages through leads without a client, keyset on id
// within creation order. Pass uuid.Nil to start.
func (s *PostgresLeads) ListUnlinkedLeads(ctx context.Context, organizationID uuid.UUID, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE organization_id = $1
			AND client_id IS NULL
			AND deleted_at IS NULL
			AND status <> 'archived'
			AND ($2::uuid = '00000000-0000-0000-0000-000000000000'::uuid
				OR (created_at, id) > (SELECT created_at, id FROM leads WHERE id = $2))
		ORDER BY created_at, id
		LIMIT $3`, organizationID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unlinked leads: %w", err)
	}
	leads, err := pgx.CollectRows(rows, scanLead)
	if err != nil {
		return nil, fmt.Errorf("scan leads: %w", err)
	}
	return leads, nil
}

// ListOrganizationsWithUnlinkedLeads returns every organization that still
// has leads to resolve.
func (s *PostgresLeads) ListOrganizationsWithUnlinkedLeads(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT organization_id
		FROM leads
		WHERE client_id IS NULL AND deleted_at IS NULL AND status <> 'archived'
		ORDER BY organization_id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan organizations: %w", err)
	}
	return ids, nil
}

// LinkClient records clientID on the lead and marks it converted.
func (s *PostgresLeads) LinkClient(ctx context.Context, organizationID, leadID, clientID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE leads
		SET client_id = $3, status = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`,
		leadID, organizationID, clientID, leadStatusConverted)
	if err != nil {
		return fmt.Errorf("link lead to client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

func scanLead(row pgx.CollectableRow) (domain.Lead, error) {
	var (
		l          domain.Lead
		clientType string
	)
	if err := row.Scan(
		&l.ID, &l.OrganizationID, &l.Company, &l.Contact, &l.Email, &l.Phone, &l.Siret,
		&l.Address, &l.City, &clientType, &l.Tags, &l.ClientID,
	); err != nil {
		return domain.Lead{}, err
	}
	l.ClientType = domain.ParseClientType(clientType)
	return l, nil
}
