package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/store"
)

const flowRegistration = "registration"

// PaymentSummary is what the payment page shows before an intent exists.
type PaymentSummary struct {
	Registration  *models.Registration
	AttendeeCount int
	PricingType   pricing.Type
	AmountDue     decimal.Decimal
	DepositAmount decimal.Decimal
}

func summarize(reg *models.Registration) *PaymentSummary {
	return &PaymentSummary{
		Registration:  reg,
		AttendeeCount: reg.ActiveAttendeeCount(),
		PricingType:   reg.PricingType,
		AmountDue:     reg.TotalDue(),
		DepositAmount: reg.DepositAmount(),
	}
}

// Initiate validates and stores a new pending registration and correlates it
// with the browser session.
func (e *Engine) Initiate(ctx context.Context, sessionID string, draft RegistrationDraft) (*models.Registration, error) {
	now := e.now()
	if verr := e.validateRegistration(draft, now); verr != nil {
		return nil, verr
	}

	if err := e.reclaimSessionRegistration(ctx, sessionID); err != nil {
		return nil, err
	}

	reg := buildRegistration(draft, now)
	reg.PricingType = pricing.TypeAt(now, e.earlyBirdCutoff)
	if err := e.store.CreateRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	if err := e.setSlot(ctx, sessionID, session.PendingRegistration, session.Correlation{RecordID: reg.ID}); err != nil {
		return nil, err
	}
	logger.Infow("registration_initiated", "registration_id", reg.ID, "attendees", len(reg.Attendees), "pricing_type", reg.PricingType)
	return reg, nil
}

// reclaimSessionRegistration drops the pending registration this browser
// started earlier, if any.
func (e *Engine) reclaimSessionRegistration(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	corr, err := e.sessions.Get(ctx, sessionID, session.PendingRegistration)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if corr == nil {
		return nil
	}
	prev, err := e.store.FindRegistration(ctx, corr.RecordID)
	if err != nil {
		return fmt.Errorf("find registration: %w", err)
	}
	if prev != nil && !prev.Paid() {
		e.discardRegistration(ctx, prev, "replaced")
	}
	e.clearSlot(ctx, sessionID, session.PendingRegistration)
	return nil
}

// discardRegistration cancels the open intent of a pending registration and
// deletes it. Both steps are best effort.
func (e *Engine) discardRegistration(ctx context.Context, reg *models.Registration, reason string) {
	if id := reg.IntentID(); id != "" {
		e.cancelQuietly(ctx, id, reason)
	}
	deleted, err := e.store.DestroyPendingRegistration(ctx, reg.ID)
	if err != nil {
		logger.Errorw("registration_destroy_failed", "registration_id", reg.ID, "reason", reason, "error", err)
		return
	}
	if deleted {
		logger.Infow("registration_destroyed", "registration_id", reg.ID, "reason", reason)
	}
}

// guardRegistration checks that the browser session owns reg. The pending
// slot grants access to an unpaid record and the confirmed slot to a paid
// one. A pending record reached from another session is destroyed.
func (e *Engine) guardRegistration(ctx context.Context, sessionID string, reg *models.Registration) (*session.Correlation, error) {
	corr, ok, err := e.sessionHolds(ctx, sessionID, session.PendingRegistration, reg.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		return corr, nil
	}
	if reg.Paid() {
		corr, ok, err = e.sessionHolds(ctx, sessionID, session.ConfirmedRegistration, reg.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			return corr, nil
		}
		return nil, ErrSessionMismatch
	}
	logger.Warnw("registration_session_mismatch", "registration_id", reg.ID)
	e.discardRegistration(ctx, reg, "session_mismatch")
	return nil, ErrSessionMismatch
}

func (e *Engine) findRegistration(ctx context.Context, id uint) (*models.Registration, error) {
	reg, err := e.store.FindRegistration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if reg == nil {
		return nil, ErrNotFound
	}
	return reg, nil
}

// BeginPayment returns the amounts for the payment page.
func (e *Engine) BeginPayment(ctx context.Context, sessionID string, id uint) (*PaymentSummary, error) {
	if _, err := e.SweepAbandoned(ctx, e.now()); err != nil {
		logger.Warnw("sweep_failed", "error", err)
	}

	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Paid() {
		return nil, ErrAlreadyPaid
	}
	if _, err := e.guardRegistration(ctx, sessionID, reg); err != nil {
		return nil, err
	}
	return summarize(reg), nil
}

// Registration returns a record the session may view, paid or not.
func (e *Engine) Registration(ctx context.Context, sessionID string, id uint) (*models.Registration, error) {
	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := e.guardRegistration(ctx, sessionID, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// CreateOrReuseIntent returns a client secret for paying the registration
// with paymentType. An open intent for the same amount is reused.
func (e *Engine) CreateOrReuseIntent(ctx context.Context, sessionID string, id uint, paymentType models.PaymentType) (string, error) {
	if !paymentType.Valid() {
		return "", invalid("payment_type", "must be deposit or full")
	}
	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := e.guardRegistration(ctx, sessionID, reg); err != nil {
		return "", err
	}
	if reg.Paid() {
		return "", ErrAlreadyPaid
	}

	amount := reg.TotalDue()
	if paymentType == models.PaymentTypeDeposit {
		amount = reg.DepositAmount()
	}
	minor := pricing.ToMinorUnits(amount)

	if existing := reg.IntentID(); existing != "" {
		intent, err := e.retrieve(ctx, existing)
		if err != nil {
			return "", err
		}
		if intent.Open() && intent.Amount == minor {
			e.metrics.IntentReused(flowRegistration)
			if err := e.rememberPaymentType(ctx, sessionID, reg.ID, paymentType); err != nil {
				return "", err
			}
			return intent.ClientSecret, nil
		}
		if intent.Open() {
			e.cancelQuietly(ctx, intent.ID, "superseded")
		}
	}

	intent, err := e.create(ctx, minor, map[string]string{
		gateway.MetaRegistrationID: idString(reg.ID),
		gateway.MetaPaymentType:    string(paymentType),
	})
	if err != nil {
		return "", err
	}
	if err := e.store.SetRegistrationIntent(ctx, reg.ID, intent.ID, paymentType); err != nil {
		e.cancelQuietly(ctx, intent.ID, "store_failed")
		return "", fmt.Errorf("store intent: %w", err)
	}
	e.metrics.IntentCreated(flowRegistration)
	logger.Infow("registration_intent_created", "registration_id", reg.ID, "intent_id", intent.ID, "payment_type", paymentType, "amount", minor)

	if err := e.rememberPaymentType(ctx, sessionID, reg.ID, paymentType); err != nil {
		return "", err
	}
	return intent.ClientSecret, nil
}

func (e *Engine) rememberPaymentType(ctx context.Context, sessionID string, id uint, paymentType models.PaymentType) error {
	return e.setSlot(ctx, sessionID, session.PendingRegistration, session.Correlation{
		RecordID:    id,
		PaymentType: string(paymentType),
	})
}

// ConfirmPayment verifies the intent with the gateway and applies the result.
func (e *Engine) ConfirmPayment(ctx context.Context, sessionID string, id uint, intentID string, paymentTypeParam string) (*Confirmation, error) {
	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	corr, err := e.guardRegistration(ctx, sessionID, reg)
	if err != nil {
		return nil, err
	}

	if intentID == "" && reg.Paid() {
		return &Confirmation{Outcome: OutcomeSucceeded, Replayed: true, Registration: reg}, nil
	}
	if intentID == "" {
		intentID = reg.IntentID()
	}
	if intentID == "" {
		return &Confirmation{Outcome: OutcomeNeedsPayment, Registration: reg}, nil
	}

	intent, err := e.retrieve(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Metadata[gateway.MetaRegistrationID] != idString(reg.ID) || isTopUp(intent) {
		logger.Warnw("registration_intent_mismatch", "registration_id", reg.ID, "intent_id", intent.ID)
		return nil, ErrInvalidPayment
	}

	if reg.Paid() && reg.IntentID() == intent.ID {
		return &Confirmation{Outcome: OutcomeSucceeded, Replayed: true, IntentStatus: intent.Status, Registration: reg}, nil
	}

	if intent.Succeeded() {
		sessionType := ""
		if corr != nil {
			sessionType = corr.PaymentType
		}
		paymentType := resolvePaymentType(intent.Metadata[gateway.MetaPaymentType], sessionType, paymentTypeParam, string(reg.PaymentType))
		applied, paid, err := e.applyRegistrationSuccess(ctx, reg.ID, intent, paymentType)
		if err != nil {
			return nil, err
		}
		if paid == nil {
			return nil, ErrNotFound
		}
		if err := e.setSlot(ctx, sessionID, session.ConfirmedRegistration, session.Correlation{RecordID: paid.ID}); err != nil {
			logger.Warnw("session_confirm_failed", "registration_id", paid.ID, "error", err)
		}
		e.clearSlot(ctx, sessionID, session.PendingRegistration)
		return &Confirmation{Outcome: OutcomeSucceeded, Replayed: !applied, IntentStatus: intent.Status, Registration: paid}, nil
	}

	if reg.Paid() {
		// Paid through an earlier intent; a failed retry must not touch it.
		return nil, ErrAlreadyPaid
	}

	logger.Infow("registration_payment_failed", "registration_id", reg.ID, "intent_id", intent.ID, "status", intent.Status)
	if intent.Open() {
		e.cancelQuietly(ctx, intent.ID, "payment_failed")
	}
	if _, err := e.store.DestroyPendingRegistration(ctx, reg.ID); err != nil {
		logger.Errorw("registration_destroy_failed", "registration_id", reg.ID, "reason", "payment_failed", "error", err)
	}
	e.clearSlot(ctx, sessionID, session.PendingRegistration)
	e.metrics.Confirmation(flowRegistration, string(OutcomeFailed))
	return &Confirmation{Outcome: OutcomeFailed, IntentStatus: intent.Status, Registration: reg}, nil
}

// applyRegistrationSuccess records a succeeded intent against a pending
// registration. Side effects run only for the call that performed the
// transition. The returned registration is nil when it no longer exists.
func (e *Engine) applyRegistrationSuccess(ctx context.Context, id uint, intent *gateway.Intent, paymentType models.PaymentType) (bool, *models.Registration, error) {
	applied, err := e.store.MarkRegistrationPaid(ctx, id, store.PaidUpdate{
		IntentID:    intent.ID,
		Amount:      pricing.FromMinorUnits(intent.Amount),
		PaymentType: paymentType,
	})
	if err != nil {
		return false, nil, fmt.Errorf("mark registration paid: %w", err)
	}
	reg, err := e.store.FindRegistration(ctx, id)
	if err != nil {
		return applied, nil, fmt.Errorf("find registration: %w", err)
	}
	if !applied {
		e.metrics.Confirmation(flowRegistration, "replayed")
		return false, reg, nil
	}
	e.metrics.Confirmation(flowRegistration, string(OutcomeSucceeded))
	logger.Infow("registration_paid", "registration_id", id, "intent_id", intent.ID, "payment_type", paymentType, "amount", intent.Amount)
	if reg != nil {
		e.afterRegistrationPaid(ctx, reg)
	}
	return true, reg, nil
}

// resolvePaymentType returns the first valid initial payment type among
// candidates, defaulting to full.
func resolvePaymentType(candidates ...string) models.PaymentType {
	for _, c := range candidates {
		if t := models.PaymentType(c); t.Valid() {
			return t
		}
	}
	return models.PaymentTypeFull
}

func isTopUp(intent *gateway.Intent) bool {
	t := models.PaymentType(intent.Metadata[gateway.MetaPaymentType])
	return t == models.PaymentTypeBalance || t == models.PaymentTypeDonation
}
