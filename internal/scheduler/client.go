package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/config"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/tracing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	ensureMaxRetry = 8
	ensureTimeout  = 30 * time.Second
	// ensureUnique drops duplicate enqueues of the same lead while one is pending.
	ensureUnique = 10 * time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueEnsureFromLead schedules the conversion of one lead and returns the task ID.
// A conversion of the same lead already queued is reported as success.
func (c *Client) EnqueueEnsureFromLead(ctx context.Context, organizationID, leadID uuid.UUID, siretOverride string) (string, error) {
	task, err := NewEnsureClientFromLeadTask(EnsureClientFromLeadPayload{
		LeadID:         leadID.String(),
		OrganizationID: organizationID.String(),
		SiretOverride:  siretOverride,
		TraceParent:    tracing.TraceParent(ctx),
	})
	if err != nil {
		return "", err
	}

	taskID := ensureTaskID(organizationID, leadID)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(ensureMaxRetry),
		asynq.Timeout(ensureTimeout),
		asynq.Unique(ensureUnique),
	)
	if err != nil && !isDuplicate(err) {
		return "", err
	}
	return taskID, nil
}

func ensureTaskID(organizationID, leadID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", TaskEnsureClientFromLead, organizationID, leadID)
}

func isDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict)
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
