package reconcile

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/store"
)

func (s *EngineSuite) TestInitiateRejectsInvalidDraft() {
	draft := validDraft(1)
	draft.Guardian1.Email = ""
	draft.Guardian1.Zip = "9300"
	draft.TermsAgreement = false

	_, err := s.engine.Initiate(s.ctx, "sid", draft)

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	s.Equal("is required", fields["guardian_1.email"])
	s.Equal("must be a valid ZIP code", fields["guardian_1.zip"])
	s.Equal("must be accepted", fields["terms_agreement"])

	regs, err := s.store.ListRegistrations(s.ctx, store.RegistrationFilter{IncludeArchived: true})
	s.Require().NoError(err)
	s.Empty(regs)
	s.Nil(s.slot("sid", session.PendingRegistration))
}

func (s *EngineSuite) TestInitiateRequiresAttendees() {
	_, err := s.engine.Initiate(s.ctx, "sid", validDraft(0))

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("attendees", verr.Fields[0].Field)
}

func (s *EngineSuite) TestInitiateEnforcesAgeWindow() {
	draft := validDraft(2)
	draft.Attendees[1].DateOfBirth = "2000-01-01"

	_, err := s.engine.Initiate(s.ctx, "sid", draft)

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Require().Len(verr.Fields, 1)
	s.Equal("attendees[1].date_of_birth", verr.Fields[0].Field)
	s.Equal("attendee must be between 5 and 18 years old", verr.Fields[0].Message)
}

func (s *EngineSuite) TestInitiatePersistsPendingRegistration() {
	reg := s.initiate("sid", 2)

	stored := s.reload(reg.ID)
	s.Require().NotNil(stored)
	s.Equal(models.PaymentPending, stored.PaymentStatus)
	s.True(stored.AmountPaid.IsZero())
	s.Equal(pricing.Regular, stored.PricingType)
	s.Equal("pat@example.com", stored.Guardian1.Email)
	s.Require().Len(stored.Attendees, 2)
	s.Equal(11, stored.Attendees[0].Age)

	corr := s.slot("sid", session.PendingRegistration)
	s.Require().NotNil(corr)
	s.Equal(reg.ID, corr.RecordID)
}

func (s *EngineSuite) TestInitiateUsesEarlyBirdBeforeCutoff() {
	engine := s.newEngine(testNow.Add(24 * time.Hour))

	reg, err := engine.Initiate(s.ctx, "sid", validDraft(1))
	s.Require().NoError(err)
	s.Equal(pricing.EarlyBird, s.reload(reg.ID).PricingType)
}

func (s *EngineSuite) TestInitiateReplacesSessionsPreviousPendingRegistration() {
	first := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", first.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	firstIntent := s.reload(first.ID).IntentID()

	second := s.initiate("sid", 1)

	s.Nil(s.reload(first.ID))
	s.Contains(s.gw.Canceled, firstIntent)
	s.Equal(second.ID, s.slot("sid", session.PendingRegistration).RecordID)
}

func (s *EngineSuite) TestBeginPaymentNotFound() {
	_, err := s.engine.BeginPayment(s.ctx, "sid", 999)
	s.ErrorIs(err, ErrNotFound)
}

func (s *EngineSuite) TestBeginPaymentSummarizesAmounts() {
	reg := s.initiate("sid", 2)

	summary, err := s.engine.BeginPayment(s.ctx, "sid", reg.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(550).Equal(summary.AmountDue))
	s.True(decimal.NewFromInt(100).Equal(summary.DepositAmount))
	s.Equal(2, summary.AttendeeCount)
}

func (s *EngineSuite) TestBeginPaymentSessionMismatchDestroysOrphan() {
	reg := s.initiate("owner", 1)

	_, err := s.engine.BeginPayment(s.ctx, "stranger", reg.ID)
	s.ErrorIs(err, ErrSessionMismatch)
	s.Nil(s.reload(reg.ID))

	_, err = s.engine.BeginPayment(s.ctx, "owner", reg.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *EngineSuite) TestBeginPaymentAlreadyPaid() {
	reg := s.paidRegistration("sid", 1, models.PaymentTypeFull)

	_, err := s.engine.BeginPayment(s.ctx, "sid", reg.ID)
	s.ErrorIs(err, ErrAlreadyPaid)
}

func (s *EngineSuite) TestCreateOrReuseIntentReturnsSameSecret() {
	reg := s.initiate("sid", 1)

	first, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	second, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal(1, s.gw.Created)
	intent := s.gw.Intent(s.reload(reg.ID).IntentID())
	s.Equal(int64(27500), intent.Amount)
	s.Equal("usd", intent.Currency)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IntentsReused.WithLabelValues(flowRegistration)))
}

func (s *EngineSuite) TestCreateOrReuseIntentReplacesIntentForNewAmount() {
	reg := s.initiate("sid", 2)

	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	fullIntent := s.reload(reg.ID).IntentID()

	_, err = s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeDeposit)
	s.Require().NoError(err)

	stored := s.reload(reg.ID)
	s.NotEqual(fullIntent, stored.IntentID())
	s.Equal(models.PaymentTypeDeposit, stored.PaymentType)
	s.Equal(int64(10000), s.gw.Intent(stored.IntentID()).Amount)
	s.Equal(map[string]string{
		gateway.MetaRegistrationID: idString(reg.ID),
		gateway.MetaPaymentType:    "deposit",
	}, s.gw.Intent(stored.IntentID()).Metadata)
	s.Contains(s.gw.Canceled, fullIntent)
	s.Equal("deposit", s.slot("sid", session.PendingRegistration).PaymentType)
}

func (s *EngineSuite) TestCreateOrReuseIntentRejectsUnknownType() {
	reg := s.initiate("sid", 1)

	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeBalance)

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal(0, s.gw.Created)
}

func (s *EngineSuite) TestCreateOrReuseIntentGatewayFailureLeavesRegistration() {
	reg := s.initiate("sid", 1)
	s.gw.FailCreate = "Your card was declined."

	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)

	var gwErr *GatewayError
	s.Require().ErrorAs(err, &gwErr)
	s.Equal("Your card was declined.", gwErr.Message)
	stored := s.reload(reg.ID)
	s.Require().NotNil(stored)
	s.Empty(stored.IntentID())
	s.Equal(models.PaymentPending, stored.PaymentStatus)
}

func (s *EngineSuite) TestConfirmWithoutIntentNeedsPayment() {
	reg := s.initiate("sid", 1)

	conf, err := s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, "", "")
	s.Require().NoError(err)
	s.Equal(OutcomeNeedsPayment, conf.Outcome)
}

func (s *EngineSuite) TestConfirmSuccessMarksPaidOnce() {
	reg := s.initiate("sid", 2)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeDeposit)
	s.Require().NoError(err)
	intentID := s.reload(reg.ID).IntentID()
	s.gw.SetStatus(intentID, gateway.StatusSucceeded)

	conf, err := s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, intentID, "")
	s.Require().NoError(err)
	s.Equal(OutcomeSucceeded, conf.Outcome)
	s.False(conf.Replayed)

	stored := s.reload(reg.ID)
	s.Equal(models.PaymentSucceeded, stored.PaymentStatus)
	s.Equal(models.PaymentTypeDeposit, stored.PaymentType)
	s.True(decimal.NewFromInt(100).Equal(stored.AmountPaid.Decimal))
	s.Equal(intentID, stored.IntentID())
	s.Nil(s.slot("sid", session.PendingRegistration))
	s.Equal(reg.ID, s.slot("sid", session.ConfirmedRegistration).RecordID)

	again, err := s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, intentID, "")
	s.Require().NoError(err)
	s.Equal(OutcomeSucceeded, again.Outcome)
	s.True(again.Replayed)

	s.Equal([]uint{reg.ID}, s.mail.registrations)
	s.Equal([]string{"registration"}, s.notes.events)
	payments, err := s.store.ListPayments(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Len(payments, 1)
}

func (s *EngineSuite) TestConfirmConcurrentCallsApplyOnce() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	intentID := s.reload(reg.ID).IntentID()
	s.gw.SetStatus(intentID, gateway.StatusSucceeded)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, intentID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Len(s.mail.registrations, 1)
}

func (s *EngineSuite) TestConfirmPaymentTypeFallsBackToSession() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeDeposit)
	s.Require().NoError(err)
	intent := s.gw.Intent(s.reload(reg.ID).IntentID())
	intent.Status = gateway.StatusSucceeded
	delete(intent.Metadata, gateway.MetaPaymentType)
	s.gw.Put(*intent)

	_, err = s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, intent.ID, "full")
	s.Require().NoError(err)

	s.Equal(models.PaymentTypeDeposit, s.reload(reg.ID).PaymentType)
}

func (s *EngineSuite) TestResolvePaymentTypePriority() {
	s.Equal(models.PaymentTypeDeposit, resolvePaymentType("deposit", "full", "full", "full"))
	s.Equal(models.PaymentTypeFull, resolvePaymentType("", "full", "deposit"))
	s.Equal(models.PaymentTypeDeposit, resolvePaymentType("", "", "deposit", "full"))
	s.Equal(models.PaymentTypeDeposit, resolvePaymentType("", "", "bogus", "deposit"))
	s.Equal(models.PaymentTypeFull, resolvePaymentType("", "", "", ""))
}

func (s *EngineSuite) TestConfirmFailedIntentDestroysRegistration() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	intentID := s.reload(reg.ID).IntentID()
	s.gw.SetStatus(intentID, gateway.StatusCanceled)

	conf, err := s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, intentID, "")
	s.Require().NoError(err)
	s.Equal(OutcomeFailed, conf.Outcome)
	s.Equal(gateway.StatusCanceled, conf.IntentStatus)
	s.Nil(s.reload(reg.ID))
	s.Nil(s.slot("sid", session.PendingRegistration))
	s.Empty(s.mail.registrations)
}

func (s *EngineSuite) TestConfirmRejectsForeignIntent() {
	mine := s.initiate("sid", 1)
	other := s.initiate("other", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "other", other.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	foreign := s.reload(other.ID).IntentID()
	s.gw.SetStatus(foreign, gateway.StatusSucceeded)

	_, err = s.engine.ConfirmPayment(s.ctx, "sid", mine.ID, foreign, "")
	s.ErrorIs(err, ErrInvalidPayment)

	stored := s.reload(mine.ID)
	s.Require().NotNil(stored)
	s.Equal(models.PaymentPending, stored.PaymentStatus)
	s.Empty(s.mail.registrations)
}

func (s *EngineSuite) TestConfirmGatewayFailureLeavesRegistration() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)
	s.gw.FailRetrieve = "gateway unavailable"

	_, err = s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, "", "")

	var gwErr *GatewayError
	s.Require().ErrorAs(err, &gwErr)
	stored := s.reload(reg.ID)
	s.Require().NotNil(stored)
	s.Equal(models.PaymentPending, stored.PaymentStatus)
}

func (s *EngineSuite) TestConfirmAfterSweepIsNotFound() {
	reg := s.initiate("sid", 1)
	_, err := s.engine.CreateOrReuseIntent(s.ctx, "sid", reg.ID, models.PaymentTypeFull)
	s.Require().NoError(err)

	_, err = s.engine.SweepAbandoned(s.ctx, time.Now().Add(61*time.Minute))
	s.Require().NoError(err)

	_, err = s.engine.ConfirmPayment(s.ctx, "sid", reg.ID, "", "")
	s.ErrorIs(err, ErrNotFound)
}

func (s *EngineSuite) TestConfirmedRegistrationVisibleOnlyToConfirmingSession() {
	reg := s.paidRegistration("sid", 1, models.PaymentTypeFull)

	viewed, err := s.engine.Registration(s.ctx, "sid", reg.ID)
	s.Require().NoError(err)
	s.Equal(reg.ID, viewed.ID)

	_, err = s.engine.Registration(s.ctx, "stranger", reg.ID)
	s.ErrorIs(err, ErrSessionMismatch)
	s.NotNil(s.reload(reg.ID))
}
