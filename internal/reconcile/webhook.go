package reconcile

import (
	"context"
	"errors"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

const EventIntentSucceeded = "payment_intent.succeeded"

// WebhookResult describes what an event did.
type WebhookResult string

const (
	WebhookIgnored  WebhookResult = "ignored"
	WebhookApplied  WebhookResult = "applied"
	WebhookReplayed WebhookResult = "replayed"
	WebhookOrphaned WebhookResult = "orphaned"
)

// HandleIntentEvent applies a gateway-pushed success through the same
// idempotent paths as browser confirmation, without any session check.
// Errors are returned only when the event should be redelivered.
func (e *Engine) HandleIntentEvent(ctx context.Context, eventType string, intent *gateway.Intent) (WebhookResult, error) {
	if eventType != EventIntentSucceeded || intent == nil || !intent.Succeeded() {
		return WebhookIgnored, nil
	}

	paymentType := models.PaymentType(intent.Metadata[gateway.MetaPaymentType])
	switch paymentType {
	case models.PaymentTypeDonation:
		id, ok := parseID(intent.Metadata[gateway.MetaDonationID])
		if !ok {
			return e.orphan(intent), nil
		}
		applied, donation, err := e.applyDonationSuccess(ctx, id, intent)
		if err != nil {
			return "", err
		}
		if donation == nil {
			return e.orphan(intent), nil
		}
		return webhookOutcome(applied), nil

	case models.PaymentTypeBalance:
		id, ok := parseID(intent.Metadata[gateway.MetaRegistrationID])
		if !ok {
			return e.orphan(intent), nil
		}
		applied, _, err := e.applyBalanceSuccess(ctx, id, intent)
		if errors.Is(err, ErrNoInitialPayment) || errors.Is(err, ErrNotFound) {
			return e.orphan(intent), nil
		}
		if err != nil {
			return "", err
		}
		return webhookOutcome(applied), nil

	default:
		id, ok := parseID(intent.Metadata[gateway.MetaRegistrationID])
		if !ok {
			return e.orphan(intent), nil
		}
		reg, err := e.store.FindRegistration(ctx, id)
		if err != nil {
			return "", err
		}
		if reg == nil {
			return e.orphan(intent), nil
		}
		applied, _, err := e.applyRegistrationSuccess(ctx, id, intent, resolvePaymentType(string(paymentType), string(reg.PaymentType)))
		if err != nil {
			return "", err
		}
		return webhookOutcome(applied), nil
	}
}

func (e *Engine) orphan(intent *gateway.Intent) WebhookResult {
	logger.Warnw("webhook_intent_orphaned", "intent_id", intent.ID, "metadata", intent.Metadata)
	return WebhookOrphaned
}

func webhookOutcome(applied bool) WebhookResult {
	if applied {
		return WebhookApplied
	}
	return WebhookReplayed
}
