package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
)

const (
	DefaultQueue = "default"
	maxRetry     = 3
)

// Client enqueues mail tasks. It implements mailer.Dispatcher so the
// reconciliation engine can hand work to the worker process.
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

func NewClient(cfg *config.Config) *Client {
	if cfg == nil || !cfg.QueueEnabled {
		return &Client{enabled: false, defaultQueue: DefaultQueue}
	}
	return &Client{
		client:       asynq.NewClient(RedisOpt(cfg)),
		enabled:      true,
		defaultQueue: DefaultQueue,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) RegistrationConfirmed(ctx context.Context, id uint) error {
	return c.enqueueRecord(ctx, TaskRegistrationEmail, id)
}

func (c *Client) DonationReceived(ctx context.Context, id uint) error {
	return c.enqueueRecord(ctx, TaskDonationEmail, id)
}

func (c *Client) CounsellorsRegistered(ctx context.Context, id uint) error {
	return c.enqueueRecord(ctx, TaskCounsellorEmail, id)
}

func (c *Client) BalancePaid(ctx context.Context, id uint, amount decimal.Decimal) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewBalanceTask(BalancePayload{RegistrationID: id, Amount: amount})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueueRecord(ctx context.Context, taskType string, id uint) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewRecordTask(taskType, id)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.defaultQueue), asynq.MaxRetry(maxRetry))
	return err
}

// BuildServerConfig returns the worker settings for asynq.NewServer.
func BuildServerConfig(cfg *config.Config) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := 5
	if cfg != nil && cfg.QueueConcurrency > 0 {
		concurrency = cfg.QueueConcurrency
	}
	return RedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
	}
}

func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	if cfg.RedisAddr != "" {
		opt.Addr = cfg.RedisAddr
	}
	opt.Password = cfg.RedisPassword
	opt.DB = cfg.RedisDB
	return opt
}
