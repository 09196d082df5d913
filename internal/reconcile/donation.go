package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
)

const flowDonation = "donation"

type DonationIntent struct {
	Donation     *models.Donation
	ClientSecret string
}

// CreateDonation stores a pending donation and opens an intent for it in one
// step. The donation is removed again when the gateway refuses the intent.
func (e *Engine) CreateDonation(ctx context.Context, sessionID string, draft DonationDraft) (*DonationIntent, error) {
	if verr := e.validateDonation(draft); verr != nil {
		return nil, verr
	}

	donation := &models.Donation{
		Amount:        models.NewMoney(draft.Amount.Round(2)),
		Email:         strings.ToLower(strings.TrimSpace(draft.Email)),
		Name:          strings.TrimSpace(draft.Name),
		PaymentStatus: models.PaymentPending,
	}
	if err := e.store.CreateDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}

	intent, err := e.create(ctx, pricing.ToMinorUnits(donation.Amount.Decimal), map[string]string{
		gateway.MetaDonationID:  idString(donation.ID),
		gateway.MetaPaymentType: string(models.PaymentTypeDonation),
	})
	if err != nil {
		e.dropDonation(ctx, donation.ID, "gateway_failed")
		return nil, err
	}
	if err := e.store.SetDonationIntent(ctx, donation.ID, intent.ID); err != nil {
		e.cancelQuietly(ctx, intent.ID, "store_failed")
		e.dropDonation(ctx, donation.ID, "store_failed")
		return nil, fmt.Errorf("store intent: %w", err)
	}
	donation.GatewayIntentID = &intent.ID

	if err := e.setSlot(ctx, sessionID, session.PendingDonation, session.Correlation{
		RecordID:    donation.ID,
		PaymentType: string(models.PaymentTypeDonation),
	}); err != nil {
		return nil, err
	}
	e.metrics.IntentCreated(flowDonation)
	logger.Infow("donation_intent_created", "donation_id", donation.ID, "intent_id", intent.ID, "amount", intent.Amount)
	return &DonationIntent{Donation: donation, ClientSecret: intent.ClientSecret}, nil
}

func (e *Engine) dropDonation(ctx context.Context, id uint, reason string) {
	deleted, err := e.store.DestroyPendingDonation(ctx, id)
	if err != nil {
		logger.Errorw("donation_destroy_failed", "donation_id", id, "reason", reason, "error", err)
		return
	}
	if deleted {
		logger.Infow("donation_destroyed", "donation_id", id, "reason", reason)
	}
}

func (e *Engine) findDonation(ctx context.Context, id uint) (*models.Donation, error) {
	donation, err := e.store.FindDonation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find donation: %w", err)
	}
	if donation == nil {
		return nil, ErrNotFound
	}
	return donation, nil
}

// guardDonation mirrors guardRegistration for donations.
func (e *Engine) guardDonation(ctx context.Context, sessionID string, donation *models.Donation) error {
	_, ok, err := e.sessionHolds(ctx, sessionID, session.PendingDonation, donation.ID)
	if err != nil || ok {
		return err
	}
	if donation.Paid() {
		_, ok, err = e.sessionHolds(ctx, sessionID, session.ConfirmedDonation, donation.ID)
		if err != nil || ok {
			return err
		}
		return ErrSessionMismatch
	}
	logger.Warnw("donation_session_mismatch", "donation_id", donation.ID)
	e.cancelQuietly(ctx, donation.IntentID(), "session_mismatch")
	e.dropDonation(ctx, donation.ID, "session_mismatch")
	return ErrSessionMismatch
}

// Donation returns a donation the session may view.
func (e *Engine) Donation(ctx context.Context, sessionID string, id uint) (*models.Donation, error) {
	donation, err := e.findDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.guardDonation(ctx, sessionID, donation); err != nil {
		return nil, err
	}
	return donation, nil
}

// ConfirmDonation verifies the donation's intent and records the result.
func (e *Engine) ConfirmDonation(ctx context.Context, sessionID string, id uint, intentID string) (*Confirmation, error) {
	donation, err := e.findDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.guardDonation(ctx, sessionID, donation); err != nil {
		return nil, err
	}

	if intentID == "" {
		intentID = donation.IntentID()
	}
	if intentID == "" {
		return &Confirmation{Outcome: OutcomeNeedsPayment, Donation: donation}, nil
	}

	intent, err := e.retrieve(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Metadata[gateway.MetaDonationID] != idString(donation.ID) {
		logger.Warnw("donation_intent_mismatch", "donation_id", donation.ID, "intent_id", intent.ID)
		return nil, ErrInvalidPayment
	}

	if donation.Paid() && donation.IntentID() == intent.ID {
		return &Confirmation{Outcome: OutcomeSucceeded, Replayed: true, IntentStatus: intent.Status, Donation: donation}, nil
	}

	if intent.Succeeded() {
		applied, paid, err := e.applyDonationSuccess(ctx, donation.ID, intent)
		if err != nil {
			return nil, err
		}
		if paid == nil {
			return nil, ErrNotFound
		}
		if err := e.setSlot(ctx, sessionID, session.ConfirmedDonation, session.Correlation{RecordID: paid.ID}); err != nil {
			logger.Warnw("session_confirm_failed", "donation_id", paid.ID, "error", err)
		}
		e.clearSlot(ctx, sessionID, session.PendingDonation)
		return &Confirmation{Outcome: OutcomeSucceeded, Replayed: !applied, IntentStatus: intent.Status, Donation: paid}, nil
	}

	logger.Infow("donation_payment_failed", "donation_id", donation.ID, "intent_id", intent.ID, "status", intent.Status)
	if intent.Open() {
		e.cancelQuietly(ctx, intent.ID, "payment_failed")
	}
	e.dropDonation(ctx, donation.ID, "payment_failed")
	e.clearSlot(ctx, sessionID, session.PendingDonation)
	e.metrics.Confirmation(flowDonation, string(OutcomeFailed))
	return &Confirmation{Outcome: OutcomeFailed, IntentStatus: intent.Status, Donation: donation}, nil
}

func (e *Engine) applyDonationSuccess(ctx context.Context, id uint, intent *gateway.Intent) (bool, *models.Donation, error) {
	applied, err := e.store.MarkDonationPaid(ctx, id, intent.ID, pricing.FromMinorUnits(intent.Amount))
	if err != nil {
		return false, nil, fmt.Errorf("mark donation paid: %w", err)
	}
	donation, err := e.store.FindDonation(ctx, id)
	if err != nil {
		return applied, nil, fmt.Errorf("find donation: %w", err)
	}
	if !applied {
		e.metrics.Confirmation(flowDonation, "replayed")
		return false, donation, nil
	}
	e.metrics.Confirmation(flowDonation, string(OutcomeSucceeded))
	logger.Infow("donation_paid", "donation_id", id, "intent_id", intent.ID, "amount", intent.Amount)
	if donation != nil {
		e.afterDonationPaid(ctx, donation)
	}
	return true, donation, nil
}
