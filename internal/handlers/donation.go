package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
)

const (
	donationsPath = "/donations"

	flashDonationNotFound = "Donation not found."
	flashMinimumDonation  = "Minimum donation amount is $5.00"
)

type DonationHandler struct {
	flow
}

func NewDonationHandler(engine *reconcile.Engine, cfg *config.Config) *DonationHandler {
	return &DonationHandler{flow{engine: engine, cfg: cfg}}
}

type CreateDonationInput struct {
	SessionInput
	Body struct {
		Amount string `json:"amount" doc:"Dollar amount, e.g. 25.00"`
		Email  string `json:"email"`
		Name   string `json:"name,omitempty"`
	}
}

type CreateDonationOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		ClientSecret string `json:"clientSecret"`
		DonationID   uint   `json:"donation_id"`
	}
}

func (h *DonationHandler) HandleCreate(ctx context.Context, input *CreateDonationInput) (*CreateDonationOutput, error) {
	v := h.visitor(input.SessionInput)

	amount, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(input.Body.Amount), "$"))
	if err != nil {
		return nil, unprocessable(flashMinimumDonation)
	}

	created, err := h.engine.CreateDonation(ctx, v.ID, reconcile.DonationDraft{
		Amount: amount,
		Email:  input.Body.Email,
		Name:   input.Body.Name,
	})
	if err != nil {
		if msg, ok := gatewayMessage(err); ok {
			return nil, unprocessable(msg)
		}
		var verr *reconcile.ValidationError
		if errors.As(err, &verr) {
			if verr.Fields[0].Field == "amount" {
				return nil, unprocessable(flashMinimumDonation)
			}
			msg, _ := firstFieldMessage(err)
			return nil, unprocessable(msg)
		}
		logger.Errorw("donation_create_failed", "error", err)
		return nil, internalError("Failed to create donation", err)
	}

	out := &CreateDonationOutput{SetCookie: v.Cookie}
	out.Body.ClientSecret = created.ClientSecret
	out.Body.DonationID = created.Donation.ID
	return out, nil
}

func (h *DonationHandler) HandleConfirm(ctx context.Context, input *ConfirmInput) (*RedirectOutput, error) {
	v := h.visitor(input.SessionInput)
	confirmation := idPath("/donations/", input.ID, "/confirmation")

	conf, err := h.engine.ConfirmDonation(ctx, v.ID, input.ID, input.PaymentIntent)
	if err != nil {
		if msg, ok := gatewayMessage(err); ok {
			return h.redirect(v, donationsPath, "There was an error processing your payment: "+msg), nil
		}
		switch {
		case errors.Is(err, reconcile.ErrInvalidPayment):
			return h.redirect(v, donationsPath, flashInvalidPayment), nil
		case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
			return h.redirect(v, donationsPath, flashDonationNotFound), nil
		}
		logger.Errorw("donation_confirm_failed", "donation_id", input.ID, "error", err)
		return nil, internalError("Failed to confirm donation", err)
	}

	switch conf.Outcome {
	case reconcile.OutcomeSucceeded:
		return h.redirect(v, confirmation, ""), nil
	case reconcile.OutcomeNeedsPayment:
		return h.redirect(v, donationsPath, flashIntentNotFound), nil
	default:
		return h.redirect(v, donationsPath, flashPaymentFailed), nil
	}
}

type DonationView struct {
	ID            uint      `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Amount        string    `json:"amount"`
	PaymentStatus string    `json:"payment_status"`
}

func donationView(d *models.Donation) DonationView {
	return DonationView{
		ID:            d.ID,
		CreatedAt:     d.CreatedAt,
		Name:          d.Name,
		Email:         d.Email,
		Amount:        money(d.Amount.Decimal),
		PaymentStatus: string(d.PaymentStatus),
	}
}

type DonationOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      DonationView
}

func (h *DonationHandler) HandleConfirmation(ctx context.Context, input *RegistrationPathInput) (*DonationOutput, error) {
	v := h.visitor(input.SessionInput)

	donation, err := h.engine.Donation(ctx, v.ID, input.ID)
	switch {
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
		return nil, redirectTo(v, donationsPath, flashDonationNotFound)
	case err != nil:
		return nil, internalError("Failed to load donation", err)
	}
	if !donation.Paid() {
		return nil, redirectTo(v, donationsPath, flashNotCompleted)
	}
	return &DonationOutput{SetCookie: v.Cookie, Body: donationView(donation)}, nil
}

func (h *DonationHandler) register(api huma.API) {
	payments := huma.Middlewares{h.requirePayments}

	huma.Register(api, huma.Operation{
		OperationID: "donation-payment-intent",
		Method:      http.MethodPost,
		Path:        "/donations/payment-intent",
		Summary:     "Create a donation and its payment intent",
		Tags:        []string{"Donations"},
		Middlewares: payments,
	}, h.HandleCreate)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		huma.Register(api, huma.Operation{
			OperationID:   "donation-confirm-" + strings.ToLower(method),
			Method:        method,
			Path:          "/donations/{id}/confirm",
			Summary:       "Confirm a donation payment",
			Tags:          []string{"Donations"},
			DefaultStatus: http.StatusSeeOther,
			Middlewares:   payments,
		}, h.HandleConfirm)
	}
	huma.Register(api, huma.Operation{
		OperationID: "donation-confirmation",
		Method:      http.MethodGet,
		Path:        "/donations/{id}/confirmation",
		Summary:     "Paid donation receipt",
		Tags:        []string{"Donations"},
	}, h.HandleConfirmation)
}
