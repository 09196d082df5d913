// Package reconcile coordinates the payment gateway with locally stored
// registrations and donations: it creates or reuses payment intents, checks
// that a browser owns the record it is paying for, verifies intents before
// marking anything paid and discards records whose payment failed or was
// abandoned.
package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/mailer"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/metrics"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/notifier"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/store"
)

// Store is the persistence the engine needs; *store.Store implements it.
type Store interface {
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	FindRegistration(ctx context.Context, id uint) (*models.Registration, error)
	FindRegistrationsByGuardianEmail(ctx context.Context, email string) ([]models.Registration, error)
	SetRegistrationIntent(ctx context.Context, id uint, intentID string, paymentType models.PaymentType) error
	MarkRegistrationPaid(ctx context.Context, id uint, update store.PaidUpdate) (bool, error)
	ApplyBalancePayment(ctx context.Context, id uint, intentID string, amount decimal.Decimal) (bool, error)
	HasPayment(ctx context.Context, intentID string) (bool, error)
	DestroyPendingRegistration(ctx context.Context, id uint) (bool, error)
	ListStalePendingRegistrations(ctx context.Context, before time.Time) ([]models.Registration, error)

	CreateDonation(ctx context.Context, donation *models.Donation) error
	FindDonation(ctx context.Context, id uint) (*models.Donation, error)
	SetDonationIntent(ctx context.Context, id uint, intentID string) error
	MarkDonationPaid(ctx context.Context, id uint, intentID string, amount decimal.Decimal) (bool, error)
	DestroyPendingDonation(ctx context.Context, id uint) (bool, error)
	ListStalePendingDonations(ctx context.Context, before time.Time) ([]models.Donation, error)

	CreateCounsellorPair(ctx context.Context, pair *models.CounsellorPair) error
}

// Deps are the collaborators the engine calls. Mail, Notifier and Metrics may be nil.
type Deps struct {
	Store    Store
	Gateway  gateway.Gateway
	Sessions session.Store
	Mail     mailer.Dispatcher
	Notifier notifier.Notifier
	Metrics  *metrics.Metrics
}

// Options tune pricing, validation and the abandoned-record window.
type Options struct {
	Currency        string
	StaleAfter      time.Duration
	EarlyBirdCutoff time.Time
	MinAttendeeAge  int
	MaxAttendeeAge  int
	Now             func() time.Time
}

// Engine runs the registration, balance and donation payment flows.
type Engine struct {
	store    Store
	gateway  gateway.Gateway
	sessions session.Store
	mail     mailer.Dispatcher
	notifier notifier.Notifier
	metrics  *metrics.Metrics

	currency        string
	staleAfter      time.Duration
	earlyBirdCutoff time.Time
	minAge          int
	maxAge          int
	now             func() time.Time
	validate        *validator.Validate
}

// New fills unset options with defaults and builds an Engine.
func New(deps Deps, opts Options) *Engine {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxAttendeeAge <= 0 {
		opts.MaxAttendeeAge = 99
	}
	return &Engine{
		store:           deps.Store,
		gateway:         deps.Gateway,
		sessions:        deps.Sessions,
		mail:            deps.Mail,
		notifier:        deps.Notifier,
		metrics:         deps.Metrics,
		currency:        strings.ToLower(opts.Currency),
		staleAfter:      opts.StaleAfter,
		earlyBirdCutoff: opts.EarlyBirdCutoff,
		minAge:          opts.MinAttendeeAge,
		maxAge:          opts.MaxAttendeeAge,
		now:             opts.Now,
		validate:        newValidator(),
	}
}

// Outcome is the result of a confirmation attempt.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeFailed       Outcome = "failed"
	OutcomeNeedsPayment Outcome = "needs_payment"
)

type Confirmation struct {
	Outcome Outcome
	// Replayed is true when the success had already been applied earlier.
	Replayed     bool
	IntentStatus gateway.IntentStatus
	Registration *models.Registration
	Donation     *models.Donation
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// sessionHolds reports whether slot in the browser session references id.
func (e *Engine) sessionHolds(ctx context.Context, sessionID string, slot session.Slot, id uint) (*session.Correlation, bool, error) {
	if sessionID == "" {
		return nil, false, nil
	}
	corr, err := e.sessions.Get(ctx, sessionID, slot)
	if err != nil {
		return nil, false, fmt.Errorf("read session: %w", err)
	}
	if corr == nil || corr.RecordID != id {
		return nil, false, nil
	}
	return corr, true, nil
}

func (e *Engine) clearSlot(ctx context.Context, sessionID string, slot session.Slot) {
	if sessionID == "" {
		return
	}
	if err := e.sessions.Delete(ctx, sessionID, slot); err != nil {
		logger.Warnw("session_clear_failed", "slot", slot, "error", err)
	}
}

func (e *Engine) setSlot(ctx context.Context, sessionID string, slot session.Slot, corr session.Correlation) error {
	if err := e.sessions.Set(ctx, sessionID, slot, corr); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// cancelQuietly cancels an open intent, logging instead of failing.
func (e *Engine) cancelQuietly(ctx context.Context, intentID, reason string) {
	if intentID == "" {
		return
	}
	if err := e.gateway.CancelIntent(ctx, intentID); err != nil {
		e.metrics.GatewayError("cancel")
		logger.Warnw("gateway_cancel_intent_failed", "intent_id", intentID, "reason", reason, "error", err)
	}
}

func (e *Engine) retrieve(ctx context.Context, intentID string) (*gateway.Intent, error) {
	intent, err := e.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		e.metrics.GatewayError("retrieve")
		return nil, newGatewayError("retrieve", err)
	}
	return intent, nil
}

func (e *Engine) create(ctx context.Context, amount int64, metadata map[string]string) (*gateway.Intent, error) {
	intent, err := e.gateway.CreateIntent(ctx, gateway.CreateParams{
		Amount:   amount,
		Currency: e.currency,
		Metadata: metadata,
	})
	if err != nil {
		e.metrics.GatewayError("create")
		return nil, newGatewayError("create", err)
	}
	return intent, nil
}
