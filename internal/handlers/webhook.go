package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway/stripegw"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
)

// WebhookParser verifies and decodes a signed gateway event.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*stripegw.Event, error)
}

// IntentEventHandler applies a verified intent event.
type IntentEventHandler interface {
	HandleIntentEvent(ctx context.Context, eventType string, intent *gateway.Intent) (reconcile.WebhookResult, error)
}

type WebhookHandler struct {
	parser WebhookParser
	events IntentEventHandler
}

func NewWebhookHandler(parser WebhookParser, events IntentEventHandler) *WebhookHandler {
	return &WebhookHandler{parser: parser, events: events}
}

type WebhookInput struct {
	Signature string `header:"Stripe-Signature"`
	RawBody   []byte
}

type WebhookOutput struct {
	Body struct {
		Received bool   `json:"received"`
		Result   string `json:"result"`
	}
}

func (h *WebhookHandler) HandleStripe(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
	if h.parser == nil {
		return nil, huma.Error503ServiceUnavailable("Payment system is not configured")
	}
	event, err := h.parser.ParseWebhook(input.RawBody, input.Signature)
	if err != nil {
		if errors.Is(err, stripegw.ErrWebhookNotConfigured) {
			return nil, huma.Error503ServiceUnavailable("Webhook secret is not configured")
		}
		logger.Warnw("webhook_rejected", "error", err)
		return nil, huma.Error400BadRequest("Invalid webhook signature")
	}

	result, err := h.events.HandleIntentEvent(ctx, event.Type, event.Intent)
	if err != nil {
		// A 5xx makes the gateway redeliver the event.
		logger.Errorw("webhook_apply_failed", "event_id", event.ID, "event_type", event.Type, "error", err)
		return nil, internalError("Failed to apply event", err)
	}
	logger.Infow("webhook_handled", "event_id", event.ID, "event_type", event.Type, "result", result)

	out := &WebhookOutput{}
	out.Body.Received = true
	out.Body.Result = string(result)
	return out, nil
}

func (h *WebhookHandler) register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "stripe-webhook",
		Method:      http.MethodPost,
		Path:        "/webhooks/stripe",
		Summary:     "Gateway event receiver",
		Tags:        []string{"Webhooks"},
	}, h.HandleStripe)
}
