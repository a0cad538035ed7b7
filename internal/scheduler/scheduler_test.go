package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/domain"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSchedulerConfig struct {
	url string
}

func (c stubSchedulerConfig) GetRedisURL() string       { return c.url }
func (c stubSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c stubSchedulerConfig) GetAsynqQueueName() string { return "" }
func (c stubSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func ensureTask(t *testing.T, org, lead uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := NewEnsureClientFromLeadTask(EnsureClientFromLeadPayload{LeadID: lead.String(), OrganizationID: org.String()})
	require.NoError(t, err)
	return task
}

func TestEnsureClientFromLeadPayloadRoundTrip(t *testing.T) {
	task, err := NewEnsureClientFromLeadTask(EnsureClientFromLeadPayload{LeadID: "l", OrganizationID: "o", SiretOverride: "123"})
	require.NoError(t, err)
	assert.Equal(t, TaskEnsureClientFromLead, task.Type())

	payload, err := ParseEnsureClientFromLeadPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "123", payload.SiretOverride)

	_, err = ParseEnsureClientFromLeadPayload(asynq.NewTask(TaskEnsureClientFromLead, []byte("{")))
	assert.Error(t, err)
}

func TestWorkerConvertsAndLinksLead(t *testing.T) {
	store := repository.NewMemory()
	leads := repository.NewMemoryLeads()
	org := uuid.New()
	lead := leads.Add(domain.Lead{OrganizationID: org, Email: "j@x.fr", Contact: "Jean Dupont", ClientType: domain.ClientTypeIndividual})

	w := newWorker(resolution.New(), store, leads, nil)
	require.NoError(t, w.mux.ProcessTask(context.Background(), ensureTask(t, org, lead.ID)))

	stored, err := leads.GetLead(context.Background(), org, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ClientID)

	clients, err := store.ForOrganization(org).ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, clients[0].ID, *stored.ClientID)

	require.NoError(t, w.mux.ProcessTask(context.Background(), ensureTask(t, org, lead.ID)))
	clients, err = store.ForOrganization(org).ListClients(context.Background())
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestWorkerSkipsRetryOnPermanentErrors(t *testing.T) {
	w := newWorker(resolution.New(), repository.NewMemory(), repository.NewMemoryLeads(), nil)
	ctx := context.Background()

	err := w.mux.ProcessTask(ctx, asynq.NewTask(TaskEnsureClientFromLead, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.mux.ProcessTask(ctx, ensureTask(t, uuid.Nil, uuid.New()))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.mux.ProcessTask(ctx, ensureTask(t, uuid.New(), uuid.New()))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
}

type flakyConverter struct{}

func (flakyConverter) ConvertLead(context.Context, repository.LeadStore, repository.Repository, uuid.UUID, uuid.UUID, ...resolution.EnsureOption) (resolution.Resolution, error) {
	return resolution.Resolution{}, apperr.Wrap(apperr.KindUnavailable, "client store unavailable", errors.New("timeout"))
}

func TestWorkerRetriesTransientErrors(t *testing.T) {
	w := newWorker(flakyConverter{}, repository.NewMemory(), repository.NewMemoryLeads(), nil)

	err := w.mux.ProcessTask(context.Background(), ensureTask(t, uuid.New(), uuid.New()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestClientEnqueuesOncePerLead(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(stubSchedulerConfig{url: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	org, lead := uuid.New(), uuid.New()
	first, err := client.EnqueueEnsureFromLead(context.Background(), org, lead, "")
	require.NoError(t, err)
	assert.True(t, mr.Exists("asynq:{default}:t:"+first))

	second, err := client.EnqueueEnsureFromLead(context.Background(), org, lead, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewClientRequiresRedis(t *testing.T) {
	_, err := NewClient(stubSchedulerConfig{})
	assert.Error(t, err)
}
