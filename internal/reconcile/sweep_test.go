package reconcile

import (
	"time"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

func (s *EngineSuite) TestSweepSkipsFreshRecords() {
	reg := s.initiate("sid", 1)

	result, err := s.engine.SweepAbandoned(s.ctx, time.Now().Add(59*time.Minute))
	s.Require().NoError(err)
	s.Equal(SweepResult{}, result)
	s.NotNil(s.reload(reg.ID))
}

func (s *EngineSuite) TestSweepCancelsAndDestroysStale() {
	withIntent := s.initiate("a", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "a", withIntent.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	intentID := s.reload(withIntent.ID).IntentID()
	bare := s.initiate("b", 1)
	paid := s.paidRegistration("c", 1, models.PaymentTypeFull)
	donation, err := s.engine.CreateDonation(s.ctx, "d", donationDraft("20"))
	s.Require().NoError(err)

	result, err := s.engine.SweepAbandoned(s.ctx, time.Now().Add(61*time.Minute))
	s.Require().NoError(err)

	s.Equal(2, result.Registrations)
	s.Equal(1, result.Donations)
	s.Nil(s.reload(withIntent.ID))
	s.Nil(s.reload(bare.ID))
	s.NotNil(s.reload(paid.ID))
	s.Contains(s.gw.Canceled, intentID)
	s.Contains(s.gw.Canceled, donation.Donation.IntentID())
}

func (s *EngineSuite) TestSweepToleratesCancelFailure() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	s.gw.FailCancel = "cannot cancel"

	result, err := s.engine.SweepAbandoned(s.ctx, time.Now().Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, result.Registrations)
	s.Nil(s.reload(reg.ID))
}

func (s *EngineSuite) TestSweepReconcilesSucceededIntent() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	s.gw.SetStatus(s.reload(reg.ID).IntentID(), gateway.StatusSucceeded)

	result, err := s.engine.SweepAbandoned(s.ctx, time.Now().Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, result.Reconciled)
	s.Equal(0, result.Registrations)

	stored := s.reload(reg.ID)
	s.Require().NotNil(stored)
	s.Equal(models.PaymentSucceeded, stored.PaymentStatus)
	s.Equal([]uint{reg.ID}, s.mail.registrations)
}

func (s *EngineSuite) TestSweepKeepsRecordsWhenIntentLookupFails() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	s.gw.SetStatus(s.reload(reg.ID).IntentID(), gateway.StatusSucceeded)
	donation, err := s.engine.CreateDonation(s.ctx, "d", donationDraft("20"))
	s.Require().NoError(err)
	s.gw.FailRetrieve = "api unavailable"

	result, err := s.engine.SweepAbandoned(s.ctx, time.Now().Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(SweepResult{Skipped: 2}, result)
	s.NotNil(s.reload(reg.ID))
	s.Empty(s.gw.Canceled)

	// Once the gateway answers again the charged registration is reconciled.
	s.gw.FailRetrieve = ""
	result, err = s.engine.SweepAbandoned(s.ctx, time.Now().Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, result.Reconciled)
	s.Equal(1, result.Donations)
	stored := s.reload(reg.ID)
	s.Require().NotNil(stored)
	s.Equal(models.PaymentSucceeded, stored.PaymentStatus)

	gone, err := s.store.FindDonation(s.ctx, donation.Donation.ID)
	s.Require().NoError(err)
	s.Nil(gone)
}

func (s *EngineSuite) TestSweepDestroysRecordsWithUnknownIntent() {
	reg := s.initiate("sid", 1)
	s.Require().NoError(s.store.SetRegistrationIntent(s.ctx, reg.ID, "pi_missing", models.PaymentTypeFull))

	result, err := s.engine.SweepAbandoned(s.ctx, time.Now().Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, result.Registrations)
	s.Nil(s.reload(reg.ID))
}

func (s *EngineSuite) TestSweepWithPaymentsDisabled() {
	reg := s.initiate("sid", 1)
	s.Require().NoError(s.store.SetRegistrationIntent(s.ctx, reg.ID, "pi_before_keys_removed", models.PaymentTypeFull))
	engine := New(Deps{Store: s.store, Gateway: gateway.Disabled{}, Sessions: s.sessions}, Options{})

	result, err := engine.SweepAbandoned(s.ctx, time.Now().Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, result.Registrations)
	s.Nil(s.reload(reg.ID))
}
