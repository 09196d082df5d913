package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

func (s *EngineSuite) TestWebhookIgnoresOtherEvents() {
	result, err := s.engine.HandleIntentEvent(s.ctx, "payment_intent.created", &gateway.Intent{ID: "pi_x"})
	s.Require().NoError(err)
	s.Equal(WebhookIgnored, result)
}

func (s *EngineSuite) TestWebhookAppliesRegistrationOnce() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeDeposit)
	s.Require().NoError(err)
	intentID := s.reload(reg.ID).IntentID()
	s.gw.SetStatus(intentID, gateway.StatusSucceeded)
	intent := s.gw.Intent(intentID)

	result, err := s.engine.HandleIntentEvent(s.ctx, EventIntentSucceeded, intent)
	s.Require().NoError(err)
	s.Equal(WebhookApplied, result)

	result, err = s.engine.HandleIntentEvent(s.ctx, EventIntentSucceeded, intent)
	s.Require().NoError(err)
	s.Equal(WebhookReplayed, result)

	// The browser arriving afterwards sees a replay, not a second success.
	conf, err := s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, intentID, "")
	s.Require().NoError(err)
	s.True(conf.Replayed)

	stored := s.reload(reg.ID)
	s.Equal(models.PaymentTypeDeposit, stored.PaymentType)
	s.True(decimal.NewFromInt(50).Equal(stored.AmountPaid.Decimal))
	s.Len(s.mail.registrations, 1)
}

func (s *EngineSuite) TestWebhookAppliesBalanceAndDonation() {
	reg := s.paidRegistration("reg", 1, models.PaymentTypeDeposit)
	balance := &gateway.Intent{
		ID:     "pi_balance",
		Amount: 22500,
		Status: gateway.StatusSucceeded,
		Metadata: map[string]string{
			gateway.MetaRegistrationID: idString(reg.ID),
			gateway.MetaPaymentType:    "balance",
		},
	}
	result, err := s.engine.HandleIntentEvent(s.ctx, EventIntentSucceeded, balance)
	s.Require().NoError(err)
	s.Equal(WebhookApplied, result)
	s.True(s.reload(reg.ID).PaidInFull())

	donation, err := s.engine.CreateDonation(s.ctx, "sid", donationDraft("15"))
	s.Require().NoError(err)
	s.gw.SetStatus(donation.Donation.IntentID(), gateway.StatusSucceeded)

	result, err = s.engine.HandleIntentEvent(s.ctx, EventIntentSucceeded, s.gw.Intent(donation.Donation.IntentID()))
	s.Require().NoError(err)
	s.Equal(WebhookApplied, result)
	s.Equal([]uint{donation.Donation.ID}, s.mail.donations)
}

func (s *EngineSuite) TestWebhookOrphanedIntent() {
	result, err := s.engine.HandleIntentEvent(s.ctx, EventIntentSucceeded, &gateway.Intent{
		ID:       "pi_gone",
		Amount:   27500,
		Status:   gateway.StatusSucceeded,
		Metadata: map[string]string{gateway.MetaRegistrationID: "4242"},
	})
	s.Require().NoError(err)
	s.Equal(WebhookOrphaned, result)
}
