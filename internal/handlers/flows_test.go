package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway/stripegw"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
)

func TestBalanceFlow(t *testing.T) {
	env := newTestEnv(t)
	id, sid := env.register(t, 1)
	env.payRegistration(t, id, sid, "deposit")

	// The guardian comes back later from a different browser.
	balanceSID := session.NewID()
	lookup := &BalanceLookupInput{SessionInput: SessionInput{SessionID: balanceSID}}
	lookup.Body.Email = "  PAT@example.com "
	out, err := env.balance.HandleLookup(env.ctx, lookup)
	require.NoError(t, err)
	assert.Equal(t, idPath("/balance/", id, ""), out.Location)

	path := &RegistrationPathInput{SessionInput: SessionInput{SessionID: balanceSID}, ID: id}
	show, err := env.balance.HandleShow(env.ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "275.00", show.Body.TotalDue)
	assert.Equal(t, "50.00", show.Body.AmountPaid)
	assert.Equal(t, "225.00", show.Body.RemainingBalance)
	assert.False(t, show.Body.PaidInFull)
	assert.Equal(t, "pk_test_123", show.Body.PublishableKey)

	_, err = env.balance.HandleCreateIntent(env.ctx, &BalanceIntentInput{SessionInput: SessionInput{SessionID: balanceSID}, ID: id})
	require.NoError(t, err)
	reg, err := env.store.FindRegistration(env.ctx, id)
	require.NoError(t, err)
	intentID := reg.IntentID()
	assert.Equal(t, int64(22500), env.gw.Intent(intentID).Amount)
	env.gw.SetStatus(intentID, gateway.StatusSucceeded)

	confirm := &BalanceConfirmInput{SessionInput: SessionInput{SessionID: balanceSID}, ID: id, PaymentIntent: intentID}
	done, err := env.balance.HandleConfirm(env.ctx, confirm)
	require.NoError(t, err)
	assert.Equal(t, idPath("/balance/", id, "/confirmation"), done.Location)

	// Replaying the return URL does not pay twice.
	done, err = env.balance.HandleConfirm(env.ctx, confirm)
	require.NoError(t, err)
	assert.Equal(t, idPath("/balance/", id, "/confirmation"), done.Location)

	receipt, err := env.balance.HandleConfirmation(env.ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "275.00", receipt.Body.AmountPaid)
	assert.Equal(t, "0.00", receipt.Body.RemainingBalance)
	assert.True(t, receipt.Body.PaidInFull)

	_, err = env.balance.HandleShow(env.ctx, path)
	requireRedirect(t, err, flashURL(balanceLookupPath, flashPaidInFull))

	_, err = env.balance.HandleCreateIntent(env.ctx, &BalanceIntentInput{SessionInput: SessionInput{SessionID: balanceSID}, ID: id})
	requireJSONError(t, err, http.StatusUnprocessableEntity, flashNoRemainingAmount)
}

func TestBalanceLookupErrors(t *testing.T) {
	env := newTestEnv(t)
	unpaidID, _ := env.register(t, 1)
	require.NotZero(t, unpaidID)

	tests := []struct {
		name    string
		email   string
		message string
	}{
		{name: "Blank", email: "   ", message: flashNoEmail},
		{name: "Malformed", email: "not-an-email", message: "email must be a valid email address"},
		{name: "Unknown", email: "nobody@example.com", message: flashNoRegistration},
		{name: "Unpaid", email: "pat@example.com", message: flashNoInitialPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &BalanceLookupInput{}
			in.Body.Email = tt.email
			_, err := env.balance.HandleLookup(env.ctx, in)
			requireJSONError(t, err, http.StatusUnprocessableEntity, tt.message)
		})
	}
}

func TestBalancePageRequiresLookup(t *testing.T) {
	env := newTestEnv(t)
	id, sid := env.register(t, 1)
	env.payRegistration(t, id, sid, "deposit")

	_, err := env.balance.HandleShow(env.ctx, &RegistrationPathInput{SessionInput: SessionInput{SessionID: session.NewID()}, ID: id})
	requireRedirect(t, err, flashURL(balanceLookupPath, flashRegistrationNotFound))

	reg, err := env.store.FindRegistration(env.ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, reg, "paid registrations survive a session mismatch")
}

func TestDonationFlow(t *testing.T) {
	env := newTestEnv(t)
	sid := session.NewID()

	in := &CreateDonationInput{SessionInput: SessionInput{SessionID: sid}}
	in.Body.Amount = "$25"
	in.Body.Email = "Friend@Example.com"
	in.Body.Name = "A Friend"
	created, err := env.donations.HandleCreate(env.ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.Body.ClientSecret)
	id := created.Body.DonationID

	donation, err := env.store.FindDonation(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), env.gw.Intent(donation.IntentID()).Amount)

	_, err = env.donations.HandleConfirmation(env.ctx, &RegistrationPathInput{SessionInput: SessionInput{SessionID: sid}, ID: id})
	requireRedirect(t, err, flashURL(donationsPath, flashNotCompleted))

	env.gw.SetStatus(donation.IntentID(), gateway.StatusSucceeded)
	out, err := env.donations.HandleConfirm(env.ctx, &ConfirmInput{SessionInput: SessionInput{SessionID: sid}, ID: id, PaymentIntent: donation.IntentID()})
	require.NoError(t, err)
	assert.Equal(t, idPath("/donations/", id, "/confirmation"), out.Location)

	receipt, err := env.donations.HandleConfirmation(env.ctx, &RegistrationPathInput{SessionInput: SessionInput{SessionID: sid}, ID: id})
	require.NoError(t, err)
	assert.Equal(t, "25.00", receipt.Body.Amount)
	assert.Equal(t, "friend@example.com", receipt.Body.Email)
	assert.Equal(t, "succeeded", receipt.Body.PaymentStatus)
}

func TestDonationRejections(t *testing.T) {
	env := newTestEnv(t)

	t.Run("BelowMinimum", func(t *testing.T) {
		in := &CreateDonationInput{}
		in.Body.Amount = "4.99"
		in.Body.Email = "friend@example.com"
		_, err := env.donations.HandleCreate(env.ctx, in)
		requireJSONError(t, err, http.StatusUnprocessableEntity, flashMinimumDonation)
	})

	t.Run("NotANumber", func(t *testing.T) {
		in := &CreateDonationInput{}
		in.Body.Amount = "lots"
		in.Body.Email = "friend@example.com"
		_, err := env.donations.HandleCreate(env.ctx, in)
		requireJSONError(t, err, http.StatusUnprocessableEntity, flashMinimumDonation)
	})

	t.Run("GatewayDeclines", func(t *testing.T) {
		env.gw.FailCreate = "Amount too large."
		defer func() { env.gw.FailCreate = "" }()

		in := &CreateDonationInput{}
		in.Body.Amount = "10"
		in.Body.Email = "friend@example.com"
		_, err := env.donations.HandleCreate(env.ctx, in)
		requireJSONError(t, err, http.StatusUnprocessableEntity, "Amount too large.")

		donations, err := env.store.ListDonations(env.ctx, "")
		require.NoError(t, err)
		assert.Empty(t, donations)
	})
}

func TestDonationConfirmFromAnotherSession(t *testing.T) {
	env := newTestEnv(t)
	in := &CreateDonationInput{SessionInput: SessionInput{SessionID: session.NewID()}}
	in.Body.Amount = "10"
	in.Body.Email = "friend@example.com"
	created, err := env.donations.HandleCreate(env.ctx, in)
	require.NoError(t, err)

	out, err := env.donations.HandleConfirm(env.ctx, &ConfirmInput{SessionInput: SessionInput{SessionID: session.NewID()}, ID: created.Body.DonationID})
	require.NoError(t, err)
	assert.Equal(t, flashURL(donationsPath, flashDonationNotFound), out.Location)
}

func TestCounsellorCreate(t *testing.T) {
	env := newTestEnv(t)
	h := NewCounsellorHandler(env.engine)

	counsellor := func(first, email string) reconcile.CounsellorInput {
		return reconcile.CounsellorInput{
			FirstName:           first,
			LastName:            "Rivera",
			AddressLine1:        "2 Harbor Blvd",
			City:                "Ventura",
			StateProvinceRegion: "CA",
			PostalCode:          "93001",
			Phone:               "805-555-0199",
			Email:               email,
		}
	}

	out, err := h.HandleCreate(env.ctx, &CreateCounsellorsInput{Body: reconcile.CounsellorDraft{
		Counsellor1: counsellor("Alex", "alex@example.com"),
		Counsellor2: counsellor("Jordan", "jordan@example.com"),
	}})
	require.NoError(t, err)
	assert.NotZero(t, out.Body.ID)

	_, err = h.HandleCreate(env.ctx, &CreateCounsellorsInput{Body: reconcile.CounsellorDraft{
		Counsellor1: counsellor("Alex", "alex@example.com"),
	}})
	requireStatus(t, err, http.StatusUnprocessableEntity)
}

type stubParser struct {
	event *stripegw.Event
	err   error
}

func (p *stubParser) ParseWebhook(_ []byte, _ string) (*stripegw.Event, error) {
	return p.event, p.err
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	id, sid := env.register(t, 1)
	in := &CreateIntentInput{SessionInput: SessionInput{SessionID: sid}, ID: id}
	in.Body.PaymentType = "full"
	_, err := env.registrations.HandleCreateIntent(env.ctx, in)
	require.NoError(t, err)
	reg, err := env.store.FindRegistration(env.ctx, id)
	require.NoError(t, err)
	env.gw.SetStatus(reg.IntentID(), gateway.StatusSucceeded)

	parser := &stubParser{event: &stripegw.Event{
		ID:     "evt_1",
		Type:   reconcile.EventIntentSucceeded,
		Intent: env.gw.Intent(reg.IntentID()),
	}}
	h := NewWebhookHandler(parser, env.engine)

	out, err := h.HandleStripe(env.ctx, &WebhookInput{Signature: "t=1,v1=abc", RawBody: []byte(`{}`)})
	require.NoError(t, err)
	assert.True(t, out.Body.Received)
	assert.Equal(t, string(reconcile.WebhookApplied), out.Body.Result)

	reg, err = env.store.FindRegistration(env.ctx, id)
	require.NoError(t, err)
	assert.True(t, reg.PaidInFull())

	out, err = h.HandleStripe(env.ctx, &WebhookInput{RawBody: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, string(reconcile.WebhookReplayed), out.Body.Result)

	t.Run("BadSignature", func(t *testing.T) {
		h := NewWebhookHandler(&stubParser{err: errors.New("signature mismatch")}, env.engine)
		_, err := h.HandleStripe(env.ctx, &WebhookInput{})
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("NoSecret", func(t *testing.T) {
		h := NewWebhookHandler(&stubParser{err: stripegw.ErrWebhookNotConfigured}, env.engine)
		_, err := h.HandleStripe(env.ctx, &WebhookInput{})
		requireStatus(t, err, http.StatusServiceUnavailable)
	})

	t.Run("PaymentsDisabled", func(t *testing.T) {
		h := NewWebhookHandler(nil, env.engine)
		_, err := h.HandleStripe(env.ctx, &WebhookInput{})
		requireStatus(t, err, http.StatusServiceUnavailable)
	})
}
