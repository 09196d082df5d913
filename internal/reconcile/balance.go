package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/store"
)

const flowBalance = "balance"

type BalanceSummary struct {
	Registration     *models.Registration
	TotalDue         decimal.Decimal
	AmountPaid       decimal.Decimal
	RemainingBalance decimal.Decimal
}

func balanceOf(reg *models.Registration) *BalanceSummary {
	return &BalanceSummary{
		Registration:     reg,
		TotalDue:         reg.TotalDue(),
		AmountPaid:       reg.AmountPaid.Decimal,
		RemainingBalance: reg.RemainingBalance(),
	}
}

// payable rejects registrations that cannot take a balance payment.
func payable(reg *models.Registration) error {
	if !reg.Paid() {
		return ErrNoInitialPayment
	}
	if !reg.RemainingBalance().IsPositive() {
		return ErrPaidInFull
	}
	return nil
}

// LookupBalance finds the registration for a guardian email and opens the
// balance flow for this browser session.
func (e *Engine) LookupBalance(ctx context.Context, sessionID, email string) (*BalanceSummary, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email", "must be a valid email address")
	}

	regs, err := e.store.FindRegistrationsByGuardianEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find registrations: %w", err)
	}
	if len(regs) == 0 {
		return nil, ErrNotFound
	}

	var reg *models.Registration
	for i := range regs {
		if regs[i].Paid() {
			reg = &regs[i]
			break
		}
	}
	if reg == nil {
		return nil, ErrNoInitialPayment
	}
	if err := payable(reg); err != nil {
		return nil, err
	}

	if err := e.setSlot(ctx, sessionID, session.BalanceRegistration, session.Correlation{
		RecordID:    reg.ID,
		PaymentType: string(models.PaymentTypeBalance),
	}); err != nil {
		return nil, err
	}
	return balanceOf(reg), nil
}

// guardBalance checks the balance slot. Mismatches never destroy anything
// because the registration is already paid.
func (e *Engine) guardBalance(ctx context.Context, sessionID string, reg *models.Registration) error {
	_, ok, err := e.sessionHolds(ctx, sessionID, session.BalanceRegistration, reg.ID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Warnw("balance_session_mismatch", "registration_id", reg.ID)
		return ErrSessionMismatch
	}
	return nil
}

// BalanceStatus returns the balance of a registration the session looked up,
// whether or not anything is still owed.
func (e *Engine) BalanceStatus(ctx context.Context, sessionID string, id uint) (*BalanceSummary, error) {
	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.guardBalance(ctx, sessionID, reg); err != nil {
		return nil, err
	}
	return balanceOf(reg), nil
}

// BeginBalance returns the outstanding amount for the balance payment page.
func (e *Engine) BeginBalance(ctx context.Context, sessionID string, id uint) (*BalanceSummary, error) {
	summary, err := e.BalanceStatus(ctx, sessionID, id)
	if err != nil {
		return nil, err
	}
	if err := payable(summary.Registration); err != nil {
		return nil, err
	}
	return summary, nil
}

// CreateBalanceIntent returns a client secret for the remaining balance.
func (e *Engine) CreateBalanceIntent(ctx context.Context, sessionID string, id uint) (string, error) {
	summary, err := e.BeginBalance(ctx, sessionID, id)
	if err != nil {
		return "", err
	}
	reg := summary.Registration
	minor := pricing.ToMinorUnits(summary.RemainingBalance)

	if existing := reg.IntentID(); existing != "" {
		intent, err := e.retrieve(ctx, existing)
		if err != nil {
			return "", err
		}
		isBalance := intent.Metadata[gateway.MetaPaymentType] == string(models.PaymentTypeBalance)
		if isBalance && intent.Open() && intent.Amount == minor {
			e.metrics.IntentReused(flowBalance)
			return intent.ClientSecret, nil
		}
		if isBalance && intent.Open() {
			e.cancelQuietly(ctx, intent.ID, "superseded")
		}
	}

	intent, err := e.create(ctx, minor, map[string]string{
		gateway.MetaRegistrationID: idString(reg.ID),
		gateway.MetaPaymentType:    string(models.PaymentTypeBalance),
	})
	if err != nil {
		return "", err
	}
	// The initial payment type stays on the record; only the intent changes.
	if err := e.store.SetRegistrationIntent(ctx, reg.ID, intent.ID, ""); err != nil {
		e.cancelQuietly(ctx, intent.ID, "store_failed")
		return "", fmt.Errorf("store intent: %w", err)
	}
	e.metrics.IntentCreated(flowBalance)
	logger.Infow("balance_intent_created", "registration_id", reg.ID, "intent_id", intent.ID, "amount", minor)
	return intent.ClientSecret, nil
}

// ConfirmBalance verifies a balance intent and adds it to amount_paid.
func (e *Engine) ConfirmBalance(ctx context.Context, sessionID string, id uint, intentID string) (*Confirmation, error) {
	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.guardBalance(ctx, sessionID, reg); err != nil {
		return nil, err
	}
	if !reg.Paid() {
		return nil, ErrNoInitialPayment
	}

	explicit := intentID != ""
	if !explicit {
		intentID = reg.IntentID()
	}
	if intentID == "" {
		return &Confirmation{Outcome: OutcomeNeedsPayment, Registration: reg}, nil
	}

	intent, err := e.retrieve(ctx, intentID)
	if err != nil {
		return nil, err
	}
	// The stored intent is still the initial payment until a balance intent exists.
	if !explicit && intent.Metadata[gateway.MetaPaymentType] != string(models.PaymentTypeBalance) {
		return &Confirmation{Outcome: OutcomeNeedsPayment, Registration: reg}, nil
	}
	if intent.Metadata[gateway.MetaRegistrationID] != idString(reg.ID) ||
		intent.Metadata[gateway.MetaPaymentType] != string(models.PaymentTypeBalance) {
		logger.Warnw("balance_intent_mismatch", "registration_id", reg.ID, "intent_id", intent.ID)
		return nil, ErrInvalidPayment
	}

	recorded, err := e.store.HasPayment(ctx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("check payment: %w", err)
	}
	if recorded {
		return &Confirmation{Outcome: OutcomeSucceeded, Replayed: true, IntentStatus: intent.Status, Registration: reg}, nil
	}

	if !intent.Succeeded() {
		logger.Infow("balance_payment_failed", "registration_id", reg.ID, "intent_id", intent.ID, "status", intent.Status)
		e.metrics.Confirmation(flowBalance, string(OutcomeFailed))
		return &Confirmation{Outcome: OutcomeFailed, IntentStatus: intent.Status, Registration: reg}, nil
	}

	applied, updated, err := e.applyBalanceSuccess(ctx, reg.ID, intent)
	if err != nil {
		return nil, err
	}
	return &Confirmation{Outcome: OutcomeSucceeded, Replayed: !applied, IntentStatus: intent.Status, Registration: updated}, nil
}

// applyBalanceSuccess adds a succeeded balance intent to the registration.
func (e *Engine) applyBalanceSuccess(ctx context.Context, id uint, intent *gateway.Intent) (bool, *models.Registration, error) {
	amount := pricing.FromMinorUnits(intent.Amount)
	applied, err := e.store.ApplyBalancePayment(ctx, id, intent.ID, amount)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil, ErrNoInitialPayment
	}
	if err != nil {
		return false, nil, fmt.Errorf("apply balance payment: %w", err)
	}
	reg, err := e.findRegistration(ctx, id)
	if err != nil {
		return applied, nil, err
	}
	if !applied {
		e.metrics.Confirmation(flowBalance, "replayed")
		return false, reg, nil
	}
	e.metrics.Confirmation(flowBalance, string(OutcomeSucceeded))
	logger.Infow("balance_paid", "registration_id", id, "intent_id", intent.ID, "amount", intent.Amount)
	e.afterBalancePaid(ctx, reg, amount)
	return true, reg, nil
}
