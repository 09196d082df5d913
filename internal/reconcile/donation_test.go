package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
)

func donationDraft(amount string) DonationDraft {
	return DonationDraft{Amount: decimal.RequireFromString(amount), Email: "Giver@Example.com", Name: "Jo Giver"}
}

func (s *EngineSuite) TestCreateDonationRejectsSmallAmount() {
	_, err := s.engine.CreateDonation(s.ctx, "sid", donationDraft("4.99"))

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("amount", verr.Fields[0].Field)
	s.Equal(0, s.gw.Created)
}

func (s *EngineSuite) TestCreateDonationRollsBackOnGatewayFailure() {
	s.gw.FailCreate = "Invalid amount"

	_, err := s.engine.CreateDonation(s.ctx, "sid", donationDraft("25"))

	var gwErr *GatewayError
	s.Require().ErrorAs(err, &gwErr)
	donations, err := s.store.ListDonations(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(donations)
}

func (s *EngineSuite) TestDonationLifecycle() {
	created, err := s.engine.CreateDonation(s.ctx, "sid", donationDraft("25.50"))
	s.Require().NoError(err)
	s.NotEmpty(created.ClientSecret)
	intentID := created.Donation.IntentID()
	intent := s.gw.Intent(intentID)
	s.Equal(int64(2550), intent.Amount)
	s.Equal("donation", intent.Metadata[gateway.MetaPaymentType])
	s.Equal("giver@example.com", created.Donation.Email)

	s.gw.SetStatus(intentID, gateway.StatusSucceeded)
	conf, err := s.engine.ConfirmDonation(s.ctx, "sid", created.Donation.ID, intentID)
	s.Require().NoError(err)
	s.Equal(OutcomeSucceeded, conf.Outcome)
	s.Equal(models.PaymentSucceeded, conf.Donation.PaymentStatus)
	s.Equal(created.Donation.ID, s.slot("sid", session.ConfirmedDonation).RecordID)

	again, err := s.engine.ConfirmDonation(s.ctx, "sid", created.Donation.ID, intentID)
	s.Require().NoError(err)
	s.True(again.Replayed)
	s.Equal([]uint{created.Donation.ID}, s.mail.donations)
}

func (s *EngineSuite) TestDonationFailureDestroysRecord() {
	created, err := s.engine.CreateDonation(s.ctx, "sid", donationDraft("10"))
	s.Require().NoError(err)
	s.gw.SetStatus(created.Donation.IntentID(), gateway.StatusRequiresPaymentMethod)

	conf, err := s.engine.ConfirmDonation(s.ctx, "sid", created.Donation.ID, "")
	s.Require().NoError(err)
	s.Equal(OutcomeFailed, conf.Outcome)

	found, err := s.store.FindDonation(s.ctx, created.Donation.ID)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *EngineSuite) TestDonationSessionMismatchDestroysPending() {
	created, err := s.engine.CreateDonation(s.ctx, "sid", donationDraft("10"))
	s.Require().NoError(err)

	_, err = s.engine.ConfirmDonation(s.ctx, "stranger", created.Donation.ID, "")
	s.ErrorIs(err, ErrSessionMismatch)

	found, err := s.store.FindDonation(s.ctx, created.Donation.ID)
	s.Require().NoError(err)
	s.Nil(found)
	s.Contains(s.gw.Canceled, created.Donation.IntentID())
}
