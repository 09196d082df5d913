// Package stripegw implements gateway.Gateway on Stripe payment intents.
package stripegw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
)

type Gateway struct {
	client        *client.API
	webhookSecret string
}

func New(apiKey, webhookSecret string) *Gateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &Gateway{client: sc, webhookSecret: webhookSecret}
}

func (g *Gateway) CreateIntent(ctx context.Context, p gateway.CreateParams) (*gateway.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, id string) (*gateway.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.client.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toIntent(pi), nil
}

func (g *Gateway) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := g.client.PaymentIntents.Cancel(id, params); err != nil {
		return mapStripeError(err)
	}
	return nil
}

// Event is a verified webhook event carrying a payment intent.
type Event struct {
	ID     string
	Type   string
	Intent *gateway.Intent
}

var ErrWebhookNotConfigured = errors.New("stripe webhook secret is not configured")

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Events that do not carry a payment intent return a nil Intent.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") {
		return out, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.Intent = toIntent(&pi)
	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) *gateway.Intent {
	md := make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		md[k] = v
	}
	return &gateway.Intent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       gateway.IntentStatus(pi.Status),
		Metadata:     md,
		ClientSecret: pi.ClientSecret,
	}
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return &gateway.Error{Message: stripeErr.Msg, Code: string(stripeErr.Code), StatusCode: stripeErr.HTTPStatusCode, Err: gateway.ErrIntentNotFound}
		}
		msg := stripeErr.Msg
		if msg == "" {
			msg = string(stripeErr.Type)
		}
		return &gateway.Error{Message: msg, Code: string(stripeErr.Code), StatusCode: stripeErr.HTTPStatusCode, Err: err}
	}
	return &gateway.Error{Message: err.Error(), Err: err}
}
