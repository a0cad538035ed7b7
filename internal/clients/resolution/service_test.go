package resolution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/events"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	org     uuid.UUID
	store   *repository.Memory
	repo    repository.Repository
	metrics *metrics.Resolution
	svc     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.org = uuid.New()
	s.store = repository.NewMemory()
	s.repo = s.store.ForOrganization(s.org)
	s.metrics = metrics.NewResolution(prometheus.NewRegistry())
	s.svc = New(WithClock(func() time.Time { return fixedNow }), WithMetrics(s.metrics))
}

func (s *ServiceSuite) lead(l domain.Lead) domain.Lead {
	l.ID = uuid.New()
	l.OrganizationID = s.org
	return l
}

func (s *ServiceSuite) seedCompany(siret string, contacts ...domain.Contact) domain.Client {
	return s.store.Seed(domain.Client{
		OrganizationID: s.org,
		Type:           domain.ClientTypeCompany,
		Name:           "Acme",
		CompanyName:    "Acme",
		Siret:          siret,
		Status:         domain.StatusActive,
		Contacts:       contacts,
	})
}

func (s *ServiceSuite) TestCreatesIndividualWithoutContacts() {
	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{
		Email:      "j@x.fr",
		Contact:    "Jean Dupont",
		ClientType: domain.ClientTypeIndividual,
	}), s.repo)
	s.Require().NoError(err)

	s.True(res.Created())
	s.Equal(domain.KeyNone, res.MatchedBy)
	s.Equal(domain.ClientTypeIndividual, res.Client.Type)
	s.Equal("Jean Dupont", res.Client.Name)
	s.Empty(res.Client.Siret)
	s.Empty(res.Client.Contacts)
	s.Equal(s.org, res.Client.OrganizationID)

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
}

func (s *ServiceSuite) TestReactivatesInactiveContactOnEmailMatch() {
	seeded := s.seedCompany("123", domain.Contact{Email: "a@b.fr", Active: false})

	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "A@B.fr "}), s.repo)
	s.Require().NoError(err)

	s.Equal(OutcomeContactReactivated, res.Outcome)
	s.Equal(domain.KeyEmail, res.MatchedBy)
	s.Equal(seeded.ID, res.Client.ID)
	s.Require().Len(res.Client.Contacts, 1)
	s.True(res.Client.Contacts[0].Active)
	s.Equal(seeded.Contacts[0].ID, res.ContactID)
}

func (s *ServiceSuite) TestReactivationKeepsCurrentBillingDefault() {
	seeded := s.seedCompany("123",
		domain.Contact{Email: "old@acme.fr", Active: false, IsBillingDefault: true},
		domain.Contact{Email: "new@acme.fr", Active: true, IsBillingDefault: true},
	)
	s.Require().NoError(CheckBillingInvariant(seeded))

	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "old@acme.fr"}), s.repo)
	s.Require().NoError(err)

	s.Equal(OutcomeContactReactivated, res.Outcome)
	s.Equal(seeded.Contacts[0].ID, res.ContactID)
	defaults := res.Client.ActiveBillingDefaults()
	s.Require().Len(defaults, 1)
	s.Equal(seeded.Contacts[1].ID, defaults[0].ID)
	s.Zero(testutil.ToFloat64(s.metrics.InvariantViolations))
}

func (s *ServiceSuite) TestSiretMatchAddsBillingContact() {
	seeded := s.seedCompany("123")

	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{
		Email:      "compta@acme.fr",
		Phone:      "0600000000",
		Siret:      "123",
		ClientType: domain.ClientTypeCompany,
	}), s.repo)
	s.Require().NoError(err)

	s.Equal(OutcomeContactAdded, res.Outcome)
	s.Equal(domain.KeySiret, res.MatchedBy)
	s.Equal(seeded.ID, res.Client.ID)
	s.Require().Len(res.Client.Contacts, 1)
	s.True(res.Client.Contacts[0].IsBillingDefault)
	s.Equal("compta@acme.fr", res.Client.Contacts[0].Email)
}

func (s *ServiceSuite) TestSiretMatchKeepsExistingBillingDefault() {
	seeded := s.seedCompany("123", domain.Contact{Email: "boss@acme.fr", Active: true, IsBillingDefault: true})

	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{
		Email:      "compta@acme.fr",
		Siret:      "123",
		ClientType: domain.ClientTypeCompany,
	}), s.repo)
	s.Require().NoError(err)

	s.Equal(OutcomeContactAdded, res.Outcome)
	s.Require().Len(res.Client.Contacts, 2)
	defaults := res.Client.ActiveBillingDefaults()
	s.Require().Len(defaults, 1)
	s.Equal(seeded.Contacts[0].ID, defaults[0].ID)
}

func (s *ServiceSuite) TestSiretMatchWithoutEmailChangesNothing() {
	seeded := s.seedCompany("123")

	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{
		Phone:      "0600000000",
		Siret:      "123",
		ClientType: domain.ClientTypeCompany,
	}), s.repo)
	s.Require().NoError(err)

	s.Equal(OutcomeMatched, res.Outcome)
	s.Equal(domain.KeySiret, res.MatchedBy)
	s.Equal(seeded.ID, res.Client.ID)
	s.Empty(res.Client.Contacts)
}

// barrierRepo holds the first two ListClients calls until both have read,
// so two resolutions race on creation.
type barrierRepo struct {
	repository.Repository
	calls atomic.Int32
	gate  sync.WaitGroup
}

func newBarrierRepo(repo repository.Repository) *barrierRepo {
	b := &barrierRepo{Repository: repo}
	b.gate.Add(2)
	return b
}

func (b *barrierRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	clients, err := b.Repository.ListClients(ctx)
	if b.calls.Add(1) <= 2 {
		b.gate.Done()
		b.gate.Wait()
	}
	return clients, err
}

func (s *ServiceSuite) TestConcurrentLeadsWithSameEmailCreateOneClient() {
	repo := newBarrierRepo(s.repo)
	leads := []domain.Lead{
		s.lead(domain.Lead{Email: "same@x.fr", Contact: "Jean Dupont", ClientType: domain.ClientTypeIndividual}),
		s.lead(domain.Lead{Email: " SAME@x.fr", Contact: "Jean Dupont", ClientType: domain.ClientTypeIndividual}),
	}

	results := make([]Resolution, len(leads))
	errs := make([]error, len(leads))
	var wg sync.WaitGroup
	for i, lead := range leads {
		wg.Add(1)
		go func(i int, lead domain.Lead) {
			defer wg.Done()
			results[i], errs[i] = s.svc.EnsureClient(s.ctx, lead, repo)
		}(i, lead)
	}
	wg.Wait()

	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])
	s.Equal(results[0].Client.ID, results[1].Client.ID)

	created := 0
	for _, res := range results {
		if res.Created() {
			created++
		}
	}
	s.Equal(1, created)

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Conflicts))
}

// gatedRepo blocks ListClients until release is closed or ctx ends.
type gatedRepo struct {
	repository.Repository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Repository.ListClients(ctx)
}

func (s *ServiceSuite) TestCancelledCallerDoesNotFailSharedResolution() {
	repo := &gatedRepo{Repository: s.repo, entered: make(chan struct{}), release: make(chan struct{})}
	lead := s.lead(domain.Lead{Email: "shared@x.fr", Contact: "Jean Dupont", ClientType: domain.ClientTypeIndividual})

	firstCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.svc.EnsureClient(firstCtx, lead, repo)
		firstErr <- err
	}()
	<-repo.entered

	type outcome struct {
		res Resolution
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := s.svc.EnsureClient(s.ctx, lead, repo)
		second <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	s.ErrorIs(<-firstErr, context.Canceled)

	close(repo.release)
	got := <-second
	s.Require().NoError(got.err)
	s.True(got.res.Created())

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
}

func (s *ServiceSuite) TestEnsureClientIsIdempotent() {
	lead := s.lead(domain.Lead{Company: "Acme", Contact: "Marie Curie", Email: "marie@acme.fr", Phone: "06 12 34 56 78"})

	first, err := s.svc.EnsureClient(s.ctx, lead, s.repo)
	s.Require().NoError(err)
	s.True(first.Created())
	s.Require().Len(first.Client.Contacts, 1)

	for i := 0; i < 3; i++ {
		again, err := s.svc.EnsureClient(s.ctx, lead, s.repo)
		s.Require().NoError(err)
		s.Equal(first.Client.ID, again.Client.ID)
		s.Equal(OutcomeMatched, again.Outcome)
		s.Equal(domain.KeyEmail, again.MatchedBy)
		s.Len(again.Client.Contacts, 1)
	}

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
}

func (s *ServiceSuite) TestBillingDefaultStaysUniqueAcrossLeads() {
	s.seedCompany("123")

	for _, email := range []string{"a@acme.fr", "b@acme.fr", "c@acme.fr", "a@acme.fr"} {
		res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{
			Email:      email,
			Siret:      "123",
			ClientType: domain.ClientTypeCompany,
		}), s.repo)
		s.Require().NoError(err)
		s.LessOrEqual(len(res.Client.ActiveBillingDefaults()), 1, email)
	}

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(clients, 1)
	s.Len(clients[0].Contacts, 3)
	s.Len(clients[0].ActiveBillingDefaults(), 1)
}

func (s *ServiceSuite) TestCreatedClientsAreTypeConsistent() {
	comp, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Company: "Lavage Pro", Siret: "12345678901234", ClientType: domain.ClientTypeCompany}), s.repo)
	s.Require().NoError(err)
	s.Equal("Lavage Pro", comp.Client.CompanyName)
	s.Equal("12345678901234", comp.Client.Siret)
	s.Empty(comp.Client.FirstName)
	s.NoError(comp.Client.Validate())

	individual, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Contact: "Ana Lima", Siret: "999", ClientType: domain.ClientTypeIndividual}), s.repo)
	s.Require().NoError(err)
	s.Empty(individual.Client.Siret)
	s.Empty(individual.Client.CompanyName)
	s.NoError(individual.Client.Validate())
}

func (s *ServiceSuite) TestTemporarySiretOnlyWithoutOverride() {
	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Company: "Acme"}), s.repo)
	s.Require().NoError(err)
	s.True(IsTemporarySiret(res.Client.Siret))
	s.Contains(res.Client.Tags, domain.TagTemporarySiret)

	res, err = s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Company: "Beta"}), s.repo, WithSiretOverride(" 55555555555555 "))
	s.Require().NoError(err)
	s.Equal("55555555555555", res.Client.Siret)
	s.NotContains(res.Client.Tags, domain.TagTemporarySiret)
}

func (s *ServiceSuite) TestSiretOverrideHasOneWinner() {
	first, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Company: "Beta"}), s.repo, WithSiretOverride("55555555555555"))
	s.Require().NoError(err)
	s.True(first.Created())

	owner, ok := s.store.KeyOwner(s.org, domain.UniqueKey{Kind: domain.KeySiret, Value: "55555555555555"})
	s.Require().True(ok)
	s.Equal(first.Client.ID, owner)

	again, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Company: "Beta Nettoyage"}), s.repo, WithSiretOverride("55555555555555"))
	s.Require().NoError(err)
	s.False(again.Created())
	s.Equal(first.Client.ID, again.Client.ID)
	s.Equal(domain.KeySiret, again.MatchedBy)

	hinted, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Company: "Autre", ClientType: domain.ClientTypeCompany}), s.repo, WithSiretOverride("55555555555555"))
	s.Require().NoError(err)
	s.Equal(first.Client.ID, hinted.Client.ID)
	s.Equal(domain.KeySiret, hinted.MatchedBy)

	clients, err := s.repo.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Len(clients, 1)
}

func (s *ServiceSuite) TestCreatedContactPhonesAreE164() {
	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{
		Company: "Acme",
		Contact: "Marie Curie",
		Phone:   "06 12 34 56 78",
	}), s.repo)
	s.Require().NoError(err)
	s.Equal("+33612345678", res.Client.Phone)
	s.Require().Len(res.Client.Contacts, 1)
	s.Equal("+33612345678", res.Client.Contacts[0].Mobile)

	again, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Phone: "+33 6 12 34 56 78"}), s.repo)
	s.Require().NoError(err)
	s.Equal(res.Client.ID, again.Client.ID)
	s.Equal(domain.KeyPhone, again.MatchedBy)
}

func (s *ServiceSuite) TestEmptyLeadReportsValidationGap() {
	res, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{}), s.repo)
	s.Require().NoError(err)
	s.True(res.Created())
	s.True(res.ValidationGap)
	s.Equal("Organisation Wash&Go", res.Client.Name)

	res, err = s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Contact: "Jean Dupont"}), s.repo)
	s.Require().NoError(err)
	s.False(res.ValidationGap)
}

type failingRepo struct {
	repository.Repository
	err error
}

func (f failingRepo) ListClients(context.Context) ([]domain.Client, error) {
	return nil, f.err
}

func (s *ServiceSuite) TestStoreFailureIsUnavailable() {
	_, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "j@x.fr"}), failingRepo{Repository: s.repo, err: errors.New("connection refused")})
	s.Require().Error(err)
	s.Equal(apperr.KindUnavailable, apperr.GetKind(err))
	s.ErrorIs(err, ErrRepositoryUnavailable)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ResolutionsTotal.WithLabelValues("failed", "none")))
}

type conflictingRepo struct {
	repository.Repository
}

func (conflictingRepo) ListClients(context.Context) ([]domain.Client, error) {
	return []domain.Client{}, nil
}

func (conflictingRepo) CreateClient(context.Context, domain.ClientDraft) (domain.Client, error) {
	return domain.Client{}, apperr.Wrap(apperr.KindConflict, "identity key already registered", repository.ErrIdentityKeyTaken)
}

func (s *ServiceSuite) TestUnresolvableConflictIsRetryable() {
	_, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "j@x.fr"}), conflictingRepo{Repository: s.repo})
	s.Require().Error(err)
	s.Equal(apperr.KindUnavailable, apperr.GetKind(err))
	s.ErrorIs(err, ErrConcurrentCreateConflict)
	s.ErrorIs(err, repository.ErrIdentityKeyTaken)
}

func (s *ServiceSuite) TestExistingDoubleDefaultIsReportedNotRepaired() {
	seeded := s.seedCompany("123",
		domain.Contact{Email: "a@acme.fr", Active: true, IsBillingDefault: true},
		domain.Contact{Email: "b@acme.fr", Active: true, IsBillingDefault: true},
	)

	_, err := s.svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "a@acme.fr"}), s.repo)
	s.Require().Error(err)
	s.Equal(apperr.KindInternal, apperr.GetKind(err))
	s.ErrorIs(err, ErrInvariantViolation)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.InvariantViolations))

	stored, err := s.repo.GetClient(s.ctx, seeded.ID)
	s.Require().NoError(err)
	s.Len(stored.ActiveBillingDefaults(), 2)
}

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	keys     []string
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.released++
		return nil
	}, nil
}

func (s *ServiceSuite) TestLockIsTakenOnPrimaryKey() {
	locker := &fakeLocker{}
	svc := New(WithLocker(locker, time.Second), WithMetrics(s.metrics))

	_, err := svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "j@x.fr", Phone: "0612345678"}), s.repo)
	s.Require().NoError(err)

	s.Require().Len(locker.keys, 1)
	s.True(strings.HasPrefix(locker.keys[0], "clients:identity:"+s.org.String()+":email:"))
	s.Equal(1, locker.released)
	s.Zero(testutil.ToFloat64(s.metrics.LockFallbacks))
}

func (s *ServiceSuite) TestLockFailureFallsBackToStorageUniqueness() {
	svc := New(WithLocker(&fakeLocker{err: errors.New("redis down")}, time.Second), WithMetrics(s.metrics))

	res, err := svc.EnsureClient(s.ctx, s.lead(domain.Lead{Email: "j@x.fr"}), s.repo)
	s.Require().NoError(err)
	s.True(res.Created())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.LockFallbacks))
}

func (s *ServiceSuite) TestPublishesResolutionEvents() {
	bus := events.NewInMemoryBus(nil)
	var mu sync.Mutex
	var names []string
	var resolved events.LeadResolved
	record := events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, e.EventName())
		if r, ok := e.(events.LeadResolved); ok {
			resolved = r
		}
		return nil
	})
	bus.Subscribe(events.ClientCreated{}.EventName(), record)
	bus.Subscribe(events.LeadResolved{}.EventName(), record)

	svc := New(WithEventBus(bus))
	lead := s.lead(domain.Lead{Email: "j@x.fr"})
	res, err := svc.EnsureClient(s.ctx, lead, s.repo)
	s.Require().NoError(err)
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	s.ElementsMatch([]string{"clients.client.created", "leads.lead.resolved"}, names)
	s.Equal(lead.ID, resolved.LeadID)
	s.Equal(res.Client.ID, resolved.ClientID)
	s.Equal(s.org, resolved.OrganizationID)
	s.Equal(string(OutcomeCreated), resolved.Outcome)
}

func (s *ServiceSuite) TestClientForVariants() {
	seeded := s.seedCompany("123")

	client, err := s.svc.ClientFor(s.ctx, domain.ClientIdentity(seeded), s.repo)
	s.Require().NoError(err)
	s.Equal(seeded.ID, client.ID)

	client, err = s.svc.ClientFor(s.ctx, domain.LeadIdentity(s.lead(domain.Lead{Siret: "123", ClientType: domain.ClientTypeCompany})), s.repo)
	s.Require().NoError(err)
	s.Equal(seeded.ID, client.ID)

	_, err = s.svc.ClientFor(s.ctx, domain.Identity{Kind: domain.IdentityLead}, s.repo)
	s.Equal(apperr.KindValidation, apperr.GetKind(err))
	s.ErrorIs(err, ErrInvalidIdentity)
}

func (s *ServiceSuite) TestSetBillingContact() {
	seeded := s.seedCompany("123",
		domain.Contact{Email: "a@acme.fr", Active: true, IsBillingDefault: true},
		domain.Contact{Email: "b@acme.fr", Active: true},
		domain.Contact{Email: "c@acme.fr", Active: false},
	)

	client, err := s.svc.SetBillingContact(s.ctx, s.repo, seeded.ID, seeded.Contacts[1].ID)
	s.Require().NoError(err)
	defaults := client.ActiveBillingDefaults()
	s.Require().Len(defaults, 1)
	s.Equal(seeded.Contacts[1].ID, defaults[0].ID)

	_, err = s.svc.SetBillingContact(s.ctx, s.repo, seeded.ID, seeded.Contacts[2].ID)
	s.Equal(apperr.KindValidation, apperr.GetKind(err))

	_, err = s.svc.SetBillingContact(s.ctx, s.repo, seeded.ID, uuid.New())
	s.Equal(apperr.KindNotFound, apperr.GetKind(err))

	_, err = s.svc.SetBillingContact(s.ctx, s.repo, uuid.New(), uuid.New())
	s.Equal(apperr.KindNotFound, apperr.GetKind(err))
}

func (s *ServiceSuite) TestOrganizationsAreIsolated() {
	other := s.store.ForOrganization(uuid.New())
	s.seedCompany("123", domain.Contact{Email: "a@acme.fr", Active: true})

	res, err := s.svc.EnsureClient(s.ctx, domain.Lead{ID: uuid.New(), Email: "a@acme.fr"}, other)
	s.Require().NoError(err)
	s.True(res.Created())
}
