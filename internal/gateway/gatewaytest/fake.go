// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
)

// Fake keeps intents in memory. Set the Fail* fields to make the next calls
// return a *gateway.Error with that message.
type Fake struct {
	mu      sync.Mutex
	seq     int
	intents map[string]*gateway.Intent

	FailCreate   string
	FailRetrieve string
	FailCancel   string

	Created   int
	Retrieved int
	Canceled  []string
}

func New() *Fake {
	return &Fake{intents: make(map[string]*gateway.Intent)}
}

func (f *Fake) CreateIntent(_ context.Context, p gateway.CreateParams) (*gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate != "" {
		return nil, &gateway.Error{Message: f.FailCreate, StatusCode: 402}
	}
	f.seq++
	f.Created++
	id := fmt.Sprintf("pi_fake_%d", f.seq)
	md := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		md[k] = v
	}
	intent := &gateway.Intent{
		ID:           id,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       gateway.StatusRequiresPaymentMethod,
		Metadata:     md,
		ClientSecret: id + "_secret",
	}
	f.intents[id] = intent
	return copyIntent(intent), nil
}

func (f *Fake) RetrieveIntent(_ context.Context, id string) (*gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRetrieve != "" {
		return nil, &gateway.Error{Message: f.FailRetrieve, StatusCode: 500}
	}
	f.Retrieved++
	intent, ok := f.intents[id]
	if !ok {
		return nil, &gateway.Error{Message: "No such payment_intent: " + id, Code: "resource_missing", StatusCode: 404, Err: gateway.ErrIntentNotFound}
	}
	return copyIntent(intent), nil
}

func (f *Fake) CancelIntent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCancel != "" {
		return &gateway.Error{Message: f.FailCancel, StatusCode: 400}
	}
	intent, ok := f.intents[id]
	if !ok {
		return &gateway.Error{Message: "No such payment_intent: " + id, Code: "resource_missing", StatusCode: 404, Err: gateway.ErrIntentNotFound}
	}
	intent.Status = gateway.StatusCanceled
	f.Canceled = append(f.Canceled, id)
	return nil
}

// SetStatus simulates the customer completing (or failing) payment.
func (f *Fake) SetStatus(id string, status gateway.IntentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if intent, ok := f.intents[id]; ok {
		intent.Status = status
	}
}

// Put stores an intent as-is, for metadata or amount mismatch scenarios.
func (f *Fake) Put(intent gateway.Intent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intent.ID] = copyIntent(&intent)
}

func (f *Fake) Intent(id string) *gateway.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok {
		return nil
	}
	return copyIntent(intent)
}

func copyIntent(in *gateway.Intent) *gateway.Intent {
	out := *in
	out.Metadata = make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		out.Metadata[k] = v
	}
	return &out
}
