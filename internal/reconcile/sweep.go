package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
)

type SweepResult struct {
	Registrations int
	Donations     int
	// Reconciled counts stale records whose intent had in fact succeeded.
	Reconciled int
	// Skipped counts records left for a later sweep because their intent
	// could not be fetched.
	Skipped int
}

// SweepAbandoned removes pending registrations and donations older than the
// staleness window. Open intents are cancelled best effort first.
func (e *Engine) SweepAbandoned(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	before := now.Add(-e.staleAfter)

	regs, err := e.store.ListStalePendingRegistrations(ctx, before)
	if err != nil {
		return result, fmt.Errorf("list stale registrations: %w", err)
	}
	for i := range regs {
		reg := &regs[i]
		intent, err := e.staleIntent(ctx, reg.IntentID())
		if err != nil {
			result.Skipped++
			continue
		}
		if intent != nil && intent.Succeeded() {
			paymentType := resolvePaymentType(intent.Metadata[gateway.MetaPaymentType], string(reg.PaymentType))
			if _, _, err := e.applyRegistrationSuccess(ctx, reg.ID, intent, paymentType); err != nil {
				logger.Errorw("sweep_reconcile_failed", "registration_id", reg.ID, "intent_id", intent.ID, "error", err)
				continue
			}
			result.Reconciled++
			continue
		}
		deleted, err := e.store.DestroyPendingRegistration(ctx, reg.ID)
		if err != nil {
			logger.Errorw("registration_destroy_failed", "registration_id", reg.ID, "reason", "abandoned", "error", err)
			continue
		}
		if deleted {
			result.Registrations++
		}
	}

	donations, err := e.store.ListStalePendingDonations(ctx, before)
	if err != nil {
		return result, fmt.Errorf("list stale donations: %w", err)
	}
	for i := range donations {
		donation := &donations[i]
		intent, err := e.staleIntent(ctx, donation.IntentID())
		if err != nil {
			result.Skipped++
			continue
		}
		if intent != nil && intent.Succeeded() {
			if _, _, err := e.applyDonationSuccess(ctx, donation.ID, intent); err != nil {
				logger.Errorw("sweep_reconcile_failed", "donation_id", donation.ID, "intent_id", intent.ID, "error", err)
				continue
			}
			result.Reconciled++
			continue
		}
		deleted, err := e.store.DestroyPendingDonation(ctx, donation.ID)
		if err != nil {
			logger.Errorw("donation_destroy_failed", "donation_id", donation.ID, "reason", "abandoned", "error", err)
			continue
		}
		if deleted {
			result.Donations++
		}
	}

	e.metrics.Swept(flowRegistration, result.Registrations)
	e.metrics.Swept(flowDonation, result.Donations)
	if result.Registrations+result.Donations+result.Reconciled+result.Skipped > 0 {
		logger.Infow("sweep_completed",
			"registrations", result.Registrations,
			"donations", result.Donations,
			"reconciled", result.Reconciled,
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

// staleIntent fetches the intent of an abandoned record and cancels it when it
// is still open. A nil intent with a nil error means the record can go: it
// never had an intent, the provider no longer knows it, or payments are not
// configured. Any other retrieve failure is returned and the record is kept.
func (e *Engine) staleIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	if intentID == "" {
		return nil, nil
	}
	intent, err := e.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) || errors.Is(err, gateway.ErrNotConfigured) {
			return nil, nil
		}
		e.metrics.GatewayError("retrieve")
		logger.Warnw("sweep_retrieve_intent_failed", "intent_id", intentID, "error", err)
		return nil, err
	}
	if intent.Open() {
		e.cancelQuietly(ctx, intent.ID, "abandoned")
	}
	return intent, nil
}
