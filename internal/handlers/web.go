package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
)

const (
	flashPaymentsDisabled = "Payment system is not configured. Please ensure STRIPE_API_KEY and STRIPE_PUBLISHABLE_KEY are set and restart the server."
	flashIntentNotFound   = "Payment intent not found."
	flashInvalidPayment   = "Invalid payment. Please try again."
	flashPaymentFailed    = "Payment was not successful. Please try again."
	flashNotCompleted     = "Payment not completed."
)

// SessionInput carries the anonymous browser session cookie.
type SessionInput struct {
	SessionID string `cookie:"camp_session" doc:"Browser session"`
}

// RedirectOutput is a 303 that also refreshes the session cookie.
type RedirectOutput struct {
	Status    int
	Location  string      `header:"Location"`
	SetCookie http.Cookie `header:"Set-Cookie"`
}

// visitor resolves the caller's browser session, minting one when the cookie
// is missing or malformed.
type visitor struct {
	ID     string
	Cookie http.Cookie
}

func (f *flow) visitor(in SessionInput) visitor {
	id := in.SessionID
	if !session.ValidID(id) {
		id = session.NewID()
	}
	return visitor{
		ID: id,
		Cookie: http.Cookie{
			Name:     session.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(f.cfg.SessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   f.cfg.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

// flow holds what every public payment handler needs.
type flow struct {
	engine *reconcile.Engine
	cfg    *config.Config
}

// requirePayments short-circuits payment operations when the gateway keys
// are not configured.
func (f *flow) requirePayments(ctx huma.Context, next func(huma.Context)) {
	if f.cfg.PaymentsEnabled() {
		next(ctx)
		return
	}
	ctx.SetHeader("Location", flashURL("/", flashPaymentsDisabled))
	ctx.SetStatus(http.StatusSeeOther)
}

func (f *flow) redirect(v visitor, path, flash string) *RedirectOutput {
	return &RedirectOutput{
		Status:    http.StatusSeeOther,
		Location:  flashURL(path, flash),
		SetCookie: v.Cookie,
	}
}

func flashURL(path, flash string) string {
	if flash == "" {
		return path
	}
	return path + "?" + url.Values{"flash": {flash}}.Encode()
}

func idPath(prefix string, id uint, suffix string) string {
	return prefix + strconv.FormatUint(uint64(id), 10) + suffix
}

// redirectError turns a failed lookup into a 303 with a flash message.
type redirectError struct {
	location string
	cookie   http.Cookie
}

func redirectTo(v visitor, path, flash string) error {
	return &redirectError{location: flashURL(path, flash), cookie: v.Cookie}
}

func (e *redirectError) Error() string {
	return "redirect to " + e.location
}

func (e *redirectError) GetStatus() int {
	return http.StatusSeeOther
}

func (e *redirectError) GetHeaders() http.Header {
	h := http.Header{}
	h.Set("Location", e.location)
	h.Add("Set-Cookie", e.cookie.String())
	return h
}

// jsonError renders as {"error": "..."} for the script-driven intent endpoints.
type jsonError struct {
	status  int
	Message string `json:"error"`
}

func (e *jsonError) Error() string {
	return e.Message
}

func (e *jsonError) GetStatus() int {
	return e.status
}

func unprocessable(msg string) error {
	return &jsonError{status: http.StatusUnprocessableEntity, Message: msg}
}

// validationProblem maps field errors onto huma's problem details.
func validationProblem(err error) (error, bool) {
	var verr *reconcile.ValidationError
	if !errors.As(err, &verr) {
		return nil, false
	}
	details := make([]error, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		details = append(details, &huma.ErrorDetail{
			Location: "body." + f.Field,
			Message:  f.Message,
		})
	}
	return huma.Error422UnprocessableEntity("There was an error with your submission. Please check the form and try again.", details...), true
}

// firstFieldMessage is used where the response shape is a single {error}.
func firstFieldMessage(err error) (string, bool) {
	var verr *reconcile.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) == 0 {
		return "", false
	}
	f := verr.Fields[0]
	return f.Field + " " + f.Message, true
}

func gatewayMessage(err error) (string, bool) {
	var gwErr *reconcile.GatewayError
	if !errors.As(err, &gwErr) {
		return "", false
	}
	return gwErr.Message, true
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func internalError(msg string, err error) error {
	return huma.Error500InternalServerError(msg, err)
}
