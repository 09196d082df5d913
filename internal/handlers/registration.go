package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
)

const flashRegistrationNotFound = "Registration not found."

type RegistrationHandler struct {
	flow
}

func NewRegistrationHandler(engine *reconcile.Engine, cfg *config.Config) *RegistrationHandler {
	return &RegistrationHandler{flow{engine: engine, cfg: cfg}}
}

type AttendeeView struct {
	ID          uint   `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
	Archived    bool   `json:"archived"`
}

type RegistrationView struct {
	ID               uint           `json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	GuardianName     string         `json:"guardian_name"`
	GuardianEmail    string         `json:"guardian_email"`
	PaymentStatus    string         `json:"payment_status"`
	PaymentType      string         `json:"payment_type,omitempty"`
	PricingType      string         `json:"pricing_type"`
	TotalDue         string         `json:"total_due"`
	AmountPaid       string         `json:"amount_paid"`
	RemainingBalance string         `json:"remaining_balance"`
	Archived         bool           `json:"archived"`
	Attendees        []AttendeeView `json:"attendees"`
}

func registrationView(reg *models.Registration) RegistrationView {
	view := RegistrationView{
		ID:               reg.ID,
		CreatedAt:        reg.CreatedAt,
		GuardianName:     reg.Guardian1.Name,
		GuardianEmail:    reg.Guardian1.Email,
		PaymentStatus:    string(reg.PaymentStatus),
		PaymentType:      string(reg.PaymentType),
		PricingType:      string(reg.PricingType),
		TotalDue:         money(reg.TotalDue()),
		AmountPaid:       money(reg.AmountPaid.Decimal),
		RemainingBalance: money(reg.RemainingBalance()),
		Archived:         reg.Archived,
		Attendees:        make([]AttendeeView, 0, len(reg.Attendees)),
	}
	for _, a := range reg.Attendees {
		view.Attendees = append(view.Attendees, AttendeeView{
			ID:          a.ID,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			DateOfBirth: a.DateOfBirth.Format("2006-01-02"),
			Age:         a.Age,
			Archived:    a.Archived,
		})
	}
	return view
}

type CreateRegistrationInput struct {
	SessionInput
	Body reconcile.RegistrationDraft
}

type CreateRegistrationOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		RegistrationID uint   `json:"registration_id"`
		PaymentURL     string `json:"payment_url"`
	}
}

func (h *RegistrationHandler) HandleCreate(ctx context.Context, input *CreateRegistrationInput) (*CreateRegistrationOutput, error) {
	v := h.visitor(input.SessionInput)

	reg, err := h.engine.Initiate(ctx, v.ID, input.Body)
	if err != nil {
		if problem, ok := validationProblem(err); ok {
			return nil, problem
		}
		logger.Errorw("registration_create_failed", "error", err)
		return nil, internalError("Failed to save registration", err)
	}

	out := &CreateRegistrationOutput{SetCookie: v.Cookie}
	out.Body.RegistrationID = reg.ID
	out.Body.PaymentURL = idPath("/registrations/", reg.ID, "/payment")
	return out, nil
}

type RegistrationPathInput struct {
	SessionInput
	ID uint `path:"id"`
}

type PaymentPageOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		RegistrationID uint   `json:"registration_id"`
		AttendeeCount  int    `json:"attendee_count"`
		PricingType    string `json:"pricing_type"`
		AmountDue      string `json:"amount_due"`
		DepositAmount  string `json:"deposit_amount"`
		PublishableKey string `json:"publishable_key"`
	}
}

func (h *RegistrationHandler) HandlePaymentPage(ctx context.Context, input *RegistrationPathInput) (*PaymentPageOutput, error) {
	v := h.visitor(input.SessionInput)

	summary, err := h.engine.BeginPayment(ctx, v.ID, input.ID)
	switch {
	case errors.Is(err, reconcile.ErrAlreadyPaid):
		return nil, redirectTo(v, idPath("/registrations/", input.ID, "/confirmation"), "")
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
		return nil, redirectTo(v, "/", flashRegistrationNotFound)
	case err != nil:
		return nil, internalError("Failed to load registration", err)
	}

	out := &PaymentPageOutput{SetCookie: v.Cookie}
	out.Body.RegistrationID = summary.Registration.ID
	out.Body.AttendeeCount = summary.AttendeeCount
	out.Body.PricingType = string(summary.PricingType)
	out.Body.AmountDue = money(summary.AmountDue)
	out.Body.DepositAmount = money(summary.DepositAmount)
	out.Body.PublishableKey = h.cfg.StripePublishableKey
	return out, nil
}

type CreateIntentInput struct {
	SessionInput
	ID   uint `path:"id"`
	Body struct {
		PaymentType string `json:"payment_type" enum:"deposit,full" doc:"deposit or full"`
	}
}

type ClientSecretOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		ClientSecret string `json:"clientSecret"`
	}
}

func (h *RegistrationHandler) HandleCreateIntent(ctx context.Context, input *CreateIntentInput) (*ClientSecretOutput, error) {
	v := h.visitor(input.SessionInput)

	secret, err := h.engine.CreateOrReuseIntent(ctx, v.ID, input.ID, models.PaymentType(input.Body.PaymentType))
	if err != nil {
		return nil, h.intentFailure(v, input.ID, err)
	}

	out := &ClientSecretOutput{SetCookie: v.Cookie}
	out.Body.ClientSecret = secret
	return out, nil
}

func (h *RegistrationHandler) intentFailure(v visitor, id uint, err error) error {
	if msg, ok := gatewayMessage(err); ok {
		return unprocessable(msg)
	}
	if msg, ok := firstFieldMessage(err); ok {
		return unprocessable(msg)
	}
	switch {
	case errors.Is(err, reconcile.ErrAlreadyPaid):
		return redirectTo(v, idPath("/registrations/", id, "/confirmation"), "")
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
		return redirectTo(v, "/", flashRegistrationNotFound)
	}
	logger.Errorw("registration_intent_failed", "registration_id", id, "error", err)
	return internalError("Failed to create payment", err)
}

type ConfirmInput struct {
	SessionInput
	ID            uint   `path:"id"`
	PaymentIntent string `query:"payment_intent" doc:"Gateway intent ID"`
	PaymentType   string `query:"payment_type"`
}

func (h *RegistrationHandler) HandleConfirm(ctx context.Context, input *ConfirmInput) (*RedirectOutput, error) {
	v := h.visitor(input.SessionInput)
	paymentPage := idPath("/registrations/", input.ID, "/payment")
	confirmation := idPath("/registrations/", input.ID, "/confirmation")

	conf, err := h.engine.ConfirmPayment(ctx, v.ID, input.ID, input.PaymentIntent, input.PaymentType)
	if err != nil {
		if msg, ok := gatewayMessage(err); ok {
			return h.redirect(v, paymentPage, "There was an error processing your payment: "+msg), nil
		}
		switch {
		case errors.Is(err, reconcile.ErrAlreadyPaid):
			return h.redirect(v, confirmation, ""), nil
		case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
			return h.redirect(v, "/", flashRegistrationNotFound), nil
		case errors.Is(err, reconcile.ErrInvalidPayment):
			return h.redirect(v, paymentPage, flashInvalidPayment), nil
		}
		logger.Errorw("registration_confirm_failed", "registration_id", input.ID, "error", err)
		return nil, internalError("Failed to confirm payment", err)
	}

	switch conf.Outcome {
	case reconcile.OutcomeSucceeded:
		return h.redirect(v, confirmation, ""), nil
	case reconcile.OutcomeNeedsPayment:
		return h.redirect(v, paymentPage, ""), nil
	default:
		return h.redirect(v, "/", flashPaymentFailed), nil
	}
}

type RegistrationViewOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      RegistrationView
}

func (h *RegistrationHandler) HandleConfirmation(ctx context.Context, input *RegistrationPathInput) (*RegistrationViewOutput, error) {
	v := h.visitor(input.SessionInput)

	reg, err := h.engine.Registration(ctx, v.ID, input.ID)
	switch {
	case errors.Is(err, reconcile.ErrNotFound), errors.Is(err, reconcile.ErrSessionMismatch):
		return nil, redirectTo(v, "/", flashRegistrationNotFound)
	case err != nil:
		return nil, internalError("Failed to load registration", err)
	}
	if !reg.Paid() {
		return nil, redirectTo(v, idPath("/registrations/", reg.ID, "/payment"), flashNotCompleted)
	}
	return &RegistrationViewOutput{SetCookie: v.Cookie, Body: registrationView(reg)}, nil
}

func (h *RegistrationHandler) register(api huma.API) {
	payments := huma.Middlewares{h.requirePayments}

	huma.Register(api, huma.Operation{
		OperationID:   "create-registration",
		Method:        http.MethodPost,
		Path:          "/registrations",
		Summary:       "Submit a camp registration",
		Tags:          []string{"Registrations"},
		DefaultStatus: http.StatusCreated,
	}, h.HandleCreate)
	huma.Register(api, huma.Operation{
		OperationID: "registration-payment-page",
		Method:      http.MethodGet,
		Path:        "/registrations/{id}/payment",
		Summary:     "Amounts for the payment page",
		Tags:        []string{"Registrations"},
		Middlewares: payments,
	}, h.HandlePaymentPage)
	huma.Register(api, huma.Operation{
		OperationID: "registration-payment-intent",
		Method:      http.MethodPost,
		Path:        "/registrations/{id}/payment-intent",
		Summary:     "Create or reuse a payment intent",
		Tags:        []string{"Registrations"},
		Middlewares: payments,
	}, h.HandleCreateIntent)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		huma.Register(api, huma.Operation{
			OperationID:   "registration-confirm-" + strings.ToLower(method),
			Method:        method,
			Path:          "/registrations/{id}/confirm",
			Summary:       "Confirm a registration payment",
			Tags:          []string{"Registrations"},
			DefaultStatus: http.StatusSeeOther,
			Middlewares:   payments,
		}, h.HandleConfirm)
	}
	huma.Register(api, huma.Operation{
		OperationID: "registration-confirmation",
		Method:      http.MethodGet,
		Path:        "/registrations/{id}/confirmation",
		Summary:     "Paid registration details",
		Tags:        []string{"Registrations"},
	}, h.HandleConfirmation)
}
