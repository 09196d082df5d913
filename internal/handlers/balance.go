package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
)

const (
	balanceLookupPath = "/balance"

	flashNoEmail           = "Please enter an email address."
	flashNoRegistration    = "No registration found with that email address."
	flashNoInitialPayment  = "This registration does not have any payment completed. Please complete your initial registration first."
	flashPaidInFull        = "This registration is already paid in full."
	flashNoRemainingAmount = "No remaining balance to pay."
)

type BalanceHandler struct {
	flow
}

func NewBalanceHandler(engine *reconcile.Engine, cfg *config.Config) *BalanceHandler {
	return &BalanceHandler{flow{engine: engine, cfg: cfg}}
}

type BalanceLookupInput struct {
	SessionInput
	Body struct {
		Email string `json:"email" doc:"Primary guardian email"`
	}
}

func (h *BalanceHandler) HandleLookup(ctx context.Context, input *BalanceLookupInput) (*RedirectOutput, error) {
	v := h.visitor(input.SessionInput)

	if strings.TrimSpace(input.Body.Email) == "" {
		return nil, unprocessable(flashNoEmail)
	}
	summary, err := h.engine.LookupBalance(ctx, v.ID, input.Body.Email)
	if err != nil {
		if msg, ok := firstFieldMessage(err); ok {
			return nil, unprocessable(msg)
		}
		switch {
		case errors.Is(err, reconcile.ErrNotFound):
			return nil, unprocessable(flashNoRegistration)
		case errors.Is(err, reconcile.ErrNoInitialPayment):
			return nil, unprocessable(flashNoInitialPayment)
		case errors.Is(err, reconcile.ErrPaidInFull):
			return nil, unprocessable(flashPaidInFull)
		}
		logger.Errorw("balance_lookup_failed", "error", err)
		return nil, internalError("Failed to look up registration", err)
	}
	return h.redirect(v, idPath("/balance/", summary.Registration.ID, ""), ""), nil
}

type BalanceView struct {
	RegistrationID   uint   `json:"registration_id"`
	GuardianName     string `json:"guardian_name"`
	AttendeeCount    int    `json:"attendee_count"`
	TotalDue         string `json:"total_due"`
	AmountPaid       string `json:"amount_paid"`
	RemainingBalance string `json:"remaining_balance"`
	PaidInFull       bool   `json:"paid_in_full"`
	PublishableKey   string `json:"publishable_key,omitempty"`
}

type BalanceOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      BalanceView
}

func (h *BalanceHandler) view(v visitor, summary *reconcile.BalanceSummary) *BalanceOutput {
	reg := summary.Registration
	return &BalanceOutput{
		SetCookie: v.Cookie,
		Body: BalanceView{
			RegistrationID:   reg.ID,
			GuardianName:     reg.Guardian1.Name,
			AttendeeCount:    reg.ActiveAttendeeCount(),
			TotalDue:         money(summary.TotalDue),
			AmountPaid:       money(summary.AmountPaid),
			RemainingBalance: money(summary.RemainingBalance),
			PaidInFull:       !summary.RemainingBalance.IsPositive(),
		},
	}
}

// lookupFailure sends the visitor back to the email lookup form.
func (h *BalanceHandler) lookupFailure(v visitor, err error) error {
	switch {
	case errors.Is(err, reconcile.ErrNoInitialPayment):
		return redirectTo(v, balanceLookupPath, "This registration does not have any payment completed.")
	case errors.Is(err, reconcile.ErrPaidInFull):
		return redirectTo(v, balanceLookupPath, flashPaidInFull)
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
		return redirectTo(v, balanceLookupPath, flashRegistrationNotFound)
	}
	return internalError("Failed to load balance", err)
}

func (h *BalanceHandler) HandleShow(ctx context.Context, input *RegistrationPathInput) (*BalanceOutput, error) {
	v := h.visitor(input.SessionInput)

	summary, err := h.engine.BeginBalance(ctx, v.ID, input.ID)
	if err != nil {
		return nil, h.lookupFailure(v, err)
	}
	out := h.view(v, summary)
	out.Body.PublishableKey = h.cfg.StripePublishableKey
	return out, nil
}

type BalanceIntentInput struct {
	SessionInput
	ID uint `path:"id"`
}

func (h *BalanceHandler) HandleCreateIntent(ctx context.Context, input *BalanceIntentInput) (*ClientSecretOutput, error) {
	v := h.visitor(input.SessionInput)

	secret, err := h.engine.CreateBalanceIntent(ctx, v.ID, input.ID)
	if err != nil {
		if msg, ok := gatewayMessage(err); ok {
			return nil, unprocessable(msg)
		}
		if errors.Is(err, reconcile.ErrPaidInFull) {
			return nil, unprocessable(flashNoRemainingAmount)
		}
		return nil, h.lookupFailure(v, err)
	}

	out := &ClientSecretOutput{SetCookie: v.Cookie}
	out.Body.ClientSecret = secret
	return out, nil
}

type BalanceConfirmInput struct {
	SessionInput
	ID            uint   `path:"id"`
	PaymentIntent string `query:"payment_intent" doc:"Gateway intent ID"`
}

func (h *BalanceHandler) HandleConfirm(ctx context.Context, input *BalanceConfirmInput) (*RedirectOutput, error) {
	v := h.visitor(input.SessionInput)
	page := idPath("/balance/", input.ID, "")
	confirmation := idPath("/balance/", input.ID, "/confirmation")

	conf, err := h.engine.ConfirmBalance(ctx, v.ID, input.ID, input.PaymentIntent)
	if err != nil {
		if msg, ok := gatewayMessage(err); ok {
			return h.redirect(v, page, "There was an error processing your payment: "+msg), nil
		}
		switch {
		case errors.Is(err, reconcile.ErrInvalidPayment):
			return h.redirect(v, page, flashInvalidPayment), nil
		case errors.Is(err, reconcile.ErrNoInitialPayment):
			return h.redirect(v, balanceLookupPath, "This registration does not have any payment completed."), nil
		case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
			return h.redirect(v, balanceLookupPath, flashRegistrationNotFound), nil
		}
		logger.Errorw("balance_confirm_failed", "registration_id", input.ID, "error", err)
		return nil, internalError("Failed to confirm payment", err)
	}

	switch conf.Outcome {
	case reconcile.OutcomeSucceeded:
		return h.redirect(v, confirmation, ""), nil
	case reconcile.OutcomeNeedsPayment:
		return h.redirect(v, page, flashIntentNotFound), nil
	default:
		return h.redirect(v, page, flashPaymentFailed), nil
	}
}

func (h *BalanceHandler) HandleConfirmation(ctx context.Context, input *RegistrationPathInput) (*BalanceOutput, error) {
	v := h.visitor(input.SessionInput)

	summary, err := h.engine.BalanceStatus(ctx, v.ID, input.ID)
	if err != nil {
		return nil, h.lookupFailure(v, err)
	}
	return h.view(v, summary), nil
}

func (h *BalanceHandler) register(api huma.API) {
	payments := huma.Middlewares{h.requirePayments}

	huma.Register(api, huma.Operation{
		OperationID:   "balance-lookup",
		Method:        http.MethodPost,
		Path:          "/balance/lookup",
		Summary:       "Find a registration with an outstanding balance",
		Tags:          []string{"Balance"},
		DefaultStatus: http.StatusSeeOther,
		Middlewares:   payments,
	}, h.HandleLookup)
	huma.Register(api, huma.Operation{
		OperationID: "balance-show",
		Method:      http.MethodGet,
		Path:        "/balance/{id}",
		Summary:     "Outstanding balance for the payment page",
		Tags:        []string{"Balance"},
		Middlewares: payments,
	}, h.HandleShow)
	huma.Register(api, huma.Operation{
		OperationID: "balance-payment-intent",
		Method:      http.MethodPost,
		Path:        "/balance/{id}/payment-intent",
		Summary:     "Create or reuse a balance payment intent",
		Tags:        []string{"Balance"},
		Middlewares: payments,
	}, h.HandleCreateIntent)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		huma.Register(api, huma.Operation{
			OperationID:   "balance-confirm-" + strings.ToLower(method),
			Method:        method,
			Path:          "/balance/{id}/confirm",
			Summary:       "Confirm a balance payment",
			Tags:          []string{"Balance"},
			DefaultStatus: http.StatusSeeOther,
			Middlewares:   payments,
		}, h.HandleConfirm)
	}
	huma.Register(api, huma.Operation{
		OperationID: "balance-confirmation",
		Method:      http.MethodGet,
		Path:        "/balance/{id}/confirmation",
		Summary:     "Balance after payment",
		Tags:        []string{"Balance"},
	}, h.HandleConfirmation)
}
