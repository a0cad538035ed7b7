package resolution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/logger"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/metrics"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLockTTL       = 10 * time.Second
	sharedResolveTimeout = 30 * time.Second
)

// Outcome describes what EnsureClient did.
type Outcome string

const (
	OutcomeMatched            Outcome = "matched"
	OutcomeContactAdded       Outcome = "contact_added"
	OutcomeContactReactivated Outcome = "contact_reactivated"
	OutcomeCreated            Outcome = "created"
	outcomeFailed             Outcome = "failed"
)

// Resolution is the result of EnsureClient. Client is always the state
// re-read from the repository after the last write.
type Resolution struct {
	Client    domain.Client
	Outcome   Outcome
	MatchedBy domain.KeyKind
	// ContactID is the contact added or reactivated, if any.
	ContactID uuid.UUID
	// ValidationGap is set when the lead carried nothing to match on.
	ValidationGap bool
}

// Created reports whether a new client was created.
func (r Resolution) Created() bool { return r.Outcome == OutcomeCreated }

// Locker serializes resolutions of the same identity across processes.
// Acquire returns a release function.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Service orchestrates normalization, matching, reconciliation and creation.
type Service struct {
	norm       Normalizer
	engine     MatchEngine
	reconciler ContactReconciler
	brand      string
	now        func() time.Time
	locker     Locker
	lockTTL    time.Duration
	bus        events.Bus
	metrics    *metrics.Resolution
	log        *logger.Logger
	flight     singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for temporary SIRETs.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBrandName sets the brand used in fallback client names.
func WithBrandName(brand string) Option {
	return func(s *Service) { s.brand = brandOrDefault(brand) }
}

// WithPhoneRegion sets the region national phone numbers are parsed in.
func WithPhoneRegion(region string) Option {
	return func(s *Service) { s.setNormalizer(NewNormalizer(region)) }
}

// WithLocker enables a distributed identity lock held for at most ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithEventBus publishes client and lead events after each resolution.
func WithEventBus(bus events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithMetrics records resolution outcomes.
func WithMetrics(m *metrics.Resolution) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a resolution service.
func New(opts ...Option) *Service {
	s := &Service{
		brand:   DefaultBrandName,
		now:     time.Now,
		lockTTL: defaultLockTTL,
		log:     logger.Nop(),
	}
	s.setNormalizer(NewNormalizer(""))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) setNormalizer(n Normalizer) {
	s.norm = n
	s.engine = NewMatchEngine(n)
	s.reconciler = NewContactReconciler(n)
}

// Normalizer returns the normalizer shared by matching and reconciliation.
func (s *Service) Normalizer() Normalizer { return s.norm }

// FindClient looks lead up in clients without side effects.
func (s *Service) FindClient(lead domain.Lead, clients []domain.Client) (domain.Client, bool) {
	return s.engine.FindBestMatch(lead, clients)
}

// MatchInRepository runs FindClient against a fresh snapshot of repo and
// also reports the key used.
func (s *Service) MatchInRepository(ctx context.Context, lead domain.Lead, repo repository.ClientReader) (Match, error) {
	clients, err := repo.ListClients(ctx)
	if err != nil {
		return Match{}, storeError("list clients", err)
	}
	return s.engine.Match(lead, clients), nil
}

// PreviewClient builds the unsaved client a lead would produce on a dry run.
func (s *Service) PreviewClient(lead domain.Lead) domain.Client {
	return PreviewClient(lead)
}

// EnsureOptions tune one EnsureClient call.
type EnsureOptions struct {
	// SiretOverride is used for a created company when the lead has no SIRET.
	SiretOverride string
}

// EnsureOption configures one EnsureClient call.
type EnsureOption func(*EnsureOptions)

// WithSiretOverride supplies a SIRET entered outside the lead.
func WithSiretOverride(siret string) EnsureOption {
	return func(o *EnsureOptions) { o.SiretOverride = strings.TrimSpace(siret) }
}

// EnsureClient returns the client lead belongs to, reconciling its contacts
// or creating it. Calling it again with the same lead and store state yields
// the same client and no extra contact. lead.OrganizationID must be the
// organization repo is scoped to.
func (s *Service) EnsureClient(ctx context.Context, lead domain.Lead, repo repository.Repository, opts ...EnsureOption) (Resolution, error) {
	var options EnsureOptions
	for _, opt := range opts {
		opt(&options)
	}

	key := s.norm.Key(lead)
	if key.Siret == "" && strings.TrimSpace(lead.Siret) == "" && !IsTemporarySiret(options.SiretOverride) {
		key.Siret = s.norm.Siret(options.SiretOverride)
	}
	run := func(ctx context.Context) (Resolution, error) {
		ctx, span := tracing.StartSpan(ctx, "resolution.EnsureClient")
		defer span.End()

		started := time.Now()
		res, err := s.ensure(ctx, lead, key, repo, options)
		s.record(ctx, lead, key, res, err, started)

		span.SetAttributes(
			attribute.String("organization_id", lead.OrganizationID.String()),
			attribute.String("resolution.outcome", string(res.Outcome)),
			attribute.String("resolution.matched_by", string(res.MatchedBy)),
		)
		tracing.Fail(span, err)
		return res, err
	}

	fingerprint := key.Fingerprint()
	if fingerprint == "" || lead.OrganizationID == uuid.Nil {
		return run(ctx)
	}

	flightKey := strings.Join([]string{
		lead.OrganizationID.String(), lead.ID.String(), fingerprint,
		string(lead.ClientType), options.SiretOverride,
	}, "|")
	// The shared call is detached from every waiter's cancellation.
	ch := s.flight.DoChan(flightKey, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedResolveTimeout)
		defer cancel()
		return run(shared)
	})
	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Resolution{}, r.Err
		}
		return r.Val.(Resolution), nil
	}
}

// ClientFor returns the client behind identity: a known client is re-read,
// a lead goes through EnsureClient.
func (s *Service) ClientFor(ctx context.Context, identity domain.Identity, repo repository.Repository, opts ...EnsureOption) (domain.Client, error) {
	if !identity.Valid() {
		return domain.Client{}, apperr.Wrap(apperr.KindValidation, "invalid identity", ErrInvalidIdentity)
	}
	switch identity.Kind {
	case domain.IdentityClient:
		client, err := repo.GetClient(ctx, identity.Client.ID)
		if err != nil {
			return domain.Client{}, storeError("get client", err)
		}
		return client, nil
	default:
		res, err := s.EnsureClient(ctx, *identity.Lead, repo, opts...)
		if err != nil {
			return domain.Client{}, err
		}
		return res.Client, nil
	}
}

// SetBillingContact makes contactID the billing default of clientID.
func (s *Service) SetBillingContact(ctx context.Context, repo repository.Repository, clientID, contactID uuid.UUID) (domain.Client, error) {
	client, err := repo.GetClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, storeError("get client", err)
	}
	contact, ok := client.FindContact(contactID)
	if !ok {
		return domain.Client{}, apperr.NotFound("contact not found")
	}
	if !contact.Active {
		return domain.Client{}, apperr.Validation("an inactive contact cannot be billing default")
	}

	if err := repo.SetBillingDefault(ctx, clientID, contactID); err != nil {
		return domain.Client{}, s.mutationError(ctx, "set billing default", err)
	}

	fresh, err := repo.GetClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, storeError("get client", err)
	}
	if err := s.checkInvariant(ctx, fresh); err != nil {
		return domain.Client{}, err
	}
	return fresh, nil
}

func (s *Service) ensure(ctx context.Context, lead domain.Lead, key IdentityKey, repo repository.Repository, options EnsureOptions) (Resolution, error) {
	release := s.acquire(ctx, lead.OrganizationID, key)
	defer release()

	clients, err := repo.ListClients(ctx)
	if err != nil {
		return Resolution{}, storeError("list clients", err)
	}

	if m := s.engine.matchKey(key, lead.ClientType, clients); m.Found() {
		return s.reconcile(ctx, lead, m, repo)
	}
	return s.create(ctx, lead, key, repo, options)
}

func (s *Service) create(ctx context.Context, lead domain.Lead, key IdentityKey, repo repository.Repository, options EnsureOptions) (Resolution, error) {
	draft := BuildClientDraft(lead, DraftInput{
		Key:           key,
		SiretOverride: options.SiretOverride,
		Brand:         s.brand,
		Now:           s.now(),
		Region:        s.norm.region,
	})
	if err := draft.Client().Validate(); err != nil {
		return Resolution{}, apperr.Wrap(apperr.KindInternal, "invalid client draft", err)
	}

	created, err := repo.CreateClient(ctx, draft)
	if err != nil {
		if !apperr.Is(err, apperr.KindConflict) {
			return Resolution{}, storeError("create client", err)
		}
		return s.rematch(ctx, lead, key, draft.UniqueKeys, repo, err)
	}

	fresh, err := repo.GetClient(ctx, created.ID)
	if err != nil {
		return Resolution{}, storeError("get client", err)
	}
	if err := s.checkInvariant(ctx, fresh); err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Client:        fresh,
		Outcome:       OutcomeCreated,
		MatchedBy:     domain.KeyNone,
		ValidationGap: key.Empty() && strings.TrimSpace(lead.Contact) == "",
	}, nil
}

// rematch runs once after a lost create race. When the usual search misses,
// the keys the draft tried to register are searched directly, since one of
// them is held by the winner.
func (s *Service) rematch(ctx context.Context, lead domain.Lead, key IdentityKey, guarded []domain.UniqueKey, repo repository.Repository, conflict error) (Resolution, error) {
	s.metrics.Conflict()
	s.log.WithContext(ctx).IdentityConflict(key.Fingerprint(), conflict)

	clients, err := repo.ListClients(ctx)
	if err != nil {
		return Resolution{}, storeError("list clients", err)
	}
	m := s.engine.matchKey(key, lead.ClientType, clients)
	if !m.Found() {
		m = s.engine.matchUniqueKeys(guarded, clients)
	}
	if !m.Found() {
		return Resolution{}, apperr.Wrap(apperr.KindUnavailable, "client creation conflicted, retry",
			fmt.Errorf("%w: %w", ErrConcurrentCreateConflict, conflict))
	}
	return s.reconcile(ctx, lead, m, repo)
}

func (s *Service) reconcile(ctx context.Context, lead domain.Lead, m Match, repo repository.Repository) (Resolution, error) {
	action := s.reconciler.Reconcile(m, lead)
	res := Resolution{Outcome: OutcomeMatched, MatchedBy: m.By}

	switch action.Kind {
	case ActionReactivate:
		if err := repo.ReactivateContact(ctx, m.Client.ID, action.ContactID); err != nil {
			return Resolution{}, s.mutationError(ctx, "reactivate contact", err)
		}
		res.Outcome = OutcomeContactReactivated
		res.ContactID = action.ContactID
	case ActionCreateContact:
		contact, err := repo.AddContact(ctx, m.Client.ID, *action.Draft)
		if err != nil {
			return Resolution{}, s.mutationError(ctx, "add contact", err)
		}
		res.Outcome = OutcomeContactAdded
		res.ContactID = contact.ID
	}

	fresh, err := repo.GetClient(ctx, m.Client.ID)
	if err != nil {
		return Resolution{}, storeError("get client", err)
	}
	if err := s.checkInvariant(ctx, fresh); err != nil {
		return Resolution{}, err
	}
	res.Client = fresh
	return res, nil
}

func (s *Service) checkInvariant(ctx context.Context, client domain.Client) error {
	if err := CheckBillingInvariant(client); err != nil {
		s.log.WithContext(ctx).Error("billing_default_invariant_violation", "client_id", client.ID.String(), "error", err)
		s.metrics.InvariantViolation()
		return apperr.Wrap(apperr.KindInternal, "billing default invariant violated", err)
	}
	return nil
}

func (s *Service) mutationError(ctx context.Context, op string, err error) error {
	if errors.Is(err, repository.ErrBillingDefaultTaken) {
		s.log.WithContext(ctx).Error("billing_default_invariant_violation", "operation", op, "error", err)
		s.metrics.InvariantViolation()
		return apperr.Wrap(apperr.KindInternal, "billing default invariant violated",
			fmt.Errorf("%s: %w: %w", op, ErrInvariantViolation, err))
	}
	return storeError(op, err)
}

// acquire takes the identity lock when a locker is configured. Lock failures
// never fail the call: storage uniqueness still guarantees one winner.
func (s *Service) acquire(ctx context.Context, organizationID uuid.UUID, key IdentityKey) func() {
	noop := func() {}
	primary := key.Primary()
	if s.locker == nil || primary.Kind == domain.KeyNone {
		return noop
	}

	sum := sha256.Sum256([]byte(primary.Value))
	lockKey := fmt.Sprintf("clients:identity:%s:%s:%s", organizationID, primary.Kind, hex.EncodeToString(sum[:8]))

	release, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		s.log.WithContext(ctx).Warn("identity lock unavailable, continuing without it", "fingerprint", key.Fingerprint(), "error", err)
		s.metrics.LockFallback()
		return noop
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithContext(ctx).Warn("identity lock release failed", "fingerprint", key.Fingerprint(), "error", err)
		}
	}
}

func (s *Service) record(ctx context.Context, lead domain.Lead, key IdentityKey, res Resolution, err error, started time.Time) {
	log := s.log.WithContext(ctx)
	if err != nil {
		s.metrics.Observe(string(outcomeFailed), string(domain.KeyNone), started)
		log.Warn("identity resolution failed", "fingerprint", key.Fingerprint(), "kind", apperr.GetKind(err).String(), "error", err)
		return
	}

	s.metrics.Observe(string(res.Outcome), string(res.MatchedBy), started)
	log.IdentityResolved(string(res.Outcome), string(res.MatchedBy), res.Client.ID.String())
	if res.ValidationGap {
		log.Info("lead carried no identifying field, created a new client", "client_id", res.Client.ID.String())
	}
	s.publish(ctx, lead, res)
}

func (s *Service) publish(ctx context.Context, lead domain.Lead, res Resolution) {
	if s.bus == nil {
		return
	}
	orgID := res.Client.OrganizationID
	if orgID == uuid.Nil {
		orgID = lead.OrganizationID
	}

	switch res.Outcome {
	case OutcomeCreated:
		s.bus.Publish(ctx, events.ClientCreated{
			BaseEvent:      events.NewBaseEvent(),
			ClientID:       res.Client.ID,
			OrganizationID: orgID,
			LeadID:         lead.ID,
			ClientType:     string(res.Client.Type),
			TemporarySiret: IsTemporarySiret(res.Client.Siret),
		})
	case OutcomeContactAdded:
		s.bus.Publish(ctx, events.ClientContactAdded{
			BaseEvent:      events.NewBaseEvent(),
			ClientID:       res.Client.ID,
			OrganizationID: orgID,
			ContactID:      res.ContactID,
			LeadID:         lead.ID,
		})
	case OutcomeContactReactivated:
		s.bus.Publish(ctx, events.ClientContactReactivated{
			BaseEvent:      events.NewBaseEvent(),
			ClientID:       res.Client.ID,
			OrganizationID: orgID,
			ContactID:      res.ContactID,
			LeadID:         lead.ID,
		})
	}

	s.bus.Publish(ctx, events.LeadResolved{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		ClientID:       res.Client.ID,
		OrganizationID: orgID,
		Outcome:        string(res.Outcome),
		MatchedBy:      string(res.MatchedBy),
	})
}

// storeError passes typed caller-facing errors through and turns anything
// else into a retryable RepositoryUnavailable.
func storeError(op string, err error) error {
	switch apperr.GetKind(err) {
	case apperr.KindNotFound, apperr.KindValidation, apperr.KindBadRequest, apperr.KindForbidden:
		return err
	}
	return apperr.Wrap(apperr.KindUnavailable, "client store unavailable",
		fmt.Errorf("%s: %w: %w", op, ErrRepositoryUnavailable, err))
}
