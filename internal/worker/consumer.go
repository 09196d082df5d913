package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/queue"
)

// Sender delivers the mails behind queued tasks; *mailer.Service implements it.
type Sender interface {
	SendRegistrationConfirmation(ctx context.Context, id uint) error
	SendBalanceReceipt(ctx context.Context, id uint, amount decimal.Decimal) error
	SendDonationReceipt(ctx context.Context, id uint) error
	SendCounsellorConfirmation(ctx context.Context, id uint) error
}

// Consumer handles mail tasks.
type Consumer struct {
	sender Sender
}

func NewConsumer(sender Sender) *Consumer {
	return &Consumer{sender: sender}
}

func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskRegistrationEmail, c.recordHandler(c.sender.SendRegistrationConfirmation))
	mux.HandleFunc(queue.TaskDonationEmail, c.recordHandler(c.sender.SendDonationReceipt))
	mux.HandleFunc(queue.TaskCounsellorEmail, c.recordHandler(c.sender.SendCounsellorConfirmation))
	mux.HandleFunc(queue.TaskBalanceEmail, c.handleBalanceEmail)
}

func (c *Consumer) recordHandler(send func(ctx context.Context, id uint) error) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := queue.DecodeRecord(task)
		if err != nil {
			logger.Warnw("worker_unmarshal_failed", "task", task.Type(), "error", err)
			return err
		}
		if payload.ID == 0 {
			logger.Debugw("worker_skip_invalid_payload", "task", task.Type())
			return nil
		}
		if err := send(ctx, payload.ID); err != nil {
			logger.Warnw("worker_mail_send_failed", "task", task.Type(), "record_id", payload.ID, "error", err)
			return err
		}
		return nil
	}
}

func (c *Consumer) handleBalanceEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeBalance(task)
	if err != nil {
		logger.Warnw("worker_unmarshal_failed", "task", task.Type(), "error", err)
		return err
	}
	if payload.RegistrationID == 0 {
		logger.Debugw("worker_skip_invalid_payload", "task", task.Type())
		return nil
	}
	if err := c.sender.SendBalanceReceipt(ctx, payload.RegistrationID, payload.Amount); err != nil {
		logger.Warnw("worker_mail_send_failed", "task", task.Type(), "record_id", payload.RegistrationID, "error", err)
		return err
	}
	return nil
}
