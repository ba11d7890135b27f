package scheduler

import (
	"context"

	"leadrouter_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// redisConnOpt translates the REDIS_URL into asynq's connection options,
// honoring the TLS-insecure escape hatch for managed redis with self-signed
// certs.
func redisConnOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	connOpt := asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
	if cfg.GetRedisTLSInsecure() && connOpt.TLSConfig != nil {
		connOpt.TLSConfig.InsecureSkipVerify = true
	}
	return connOpt, nil
}

// Client enqueues background tasks from the API process.
type Client struct {
	inner *asynq.Client
	queue string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	connOpt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		inner: asynq.NewClient(connOpt),
		queue: cfg.GetAsynqQueueName(),
	}, nil
}

func (c *Client) EnqueueStaleSweep(ctx context.Context) error {
	_, err := c.inner.EnqueueContext(ctx, NewStaleSweepTask(), asynq.Queue(c.queue))
	return err
}

func (c *Client) EnqueueKPIWarmup(ctx context.Context, tenantID uuid.UUID) error {
	task, err := NewKPIWarmupTask(tenantID)
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func (c *Client) Close() error {
	return c.inner.Close()
}
