package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
)

func (s *EngineSuite) TestLookupBalanceRejections() {
	_, err := s.engine.LookupBalance(s.ctx, "sid", "nobody@example.com")
	s.ErrorIs(err, ErrNotFound)

	var verr *ValidationError
	_, err = s.engine.LookupBalance(s.ctx, "sid", "  ")
	s.ErrorAs(err, &verr)

	s.initiate("pending", 1)
	_, err = s.engine.LookupBalance(s.ctx, "sid", "pat@example.com")
	s.ErrorIs(err, ErrNoInitialPayment)
}

func (s *EngineSuite) TestLookupBalancePaidInFull() {
	s.paidRegistration("reg", 1, models.PaymentTypeFull)

	_, err := s.engine.LookupBalance(s.ctx, "sid", "PAT@example.com ")
	s.ErrorIs(err, ErrPaidInFull)
}

func (s *EngineSuite) TestLookupBalanceOpensFlow() {
	reg := s.paidRegistration("reg", 2, models.PaymentTypeDeposit)

	summary, err := s.engine.LookupBalance(s.ctx, "sid", " Pat@Example.COM")
	s.Require().NoError(err)
	s.Equal(reg.ID, summary.Registration.ID)
	s.True(decimal.NewFromInt(450).Equal(summary.RemainingBalance))
	s.Equal(reg.ID, s.slot("sid", session.BalanceRegistration).RecordID)
}

func (s *EngineSuite) TestBalancePaymentIsAdditiveAndIdempotent() {
	reg := s.paidRegistration("reg", 2, models.PaymentTypeDeposit)
	_, err := s.engine.LookupBalance(s.ctx, "sid", "pat@example.com")
	s.Require().NoError(err)

	first, err := s.engine.CreateBalanceIntent(s.ctx, "sid", reg.ID)
	s.Require().NoError(err)
	second, err := s.engine.CreateBalanceIntent(s.ctx, "sid", reg.ID)
	s.Require().NoError(err)
	s.Equal(first, second)

	stored := s.reload(reg.ID)
	intentID := stored.IntentID()
	intent := s.gw.Intent(intentID)
	s.Equal(int64(45000), intent.Amount)
	s.Equal("balance", intent.Metadata[gateway.MetaPaymentType])
	s.Equal(models.PaymentTypeDeposit, stored.PaymentType)

	s.gw.SetStatus(intentID, gateway.StatusSucceeded)
	conf, err := s.engine.ConfirmBalance(s.ctx, "sid", reg.ID, intentID)
	s.Require().NoError(err)
	s.Equal(OutcomeSucceeded, conf.Outcome)
	s.False(conf.Replayed)
	s.True(decimal.NewFromInt(550).Equal(conf.Registration.AmountPaid.Decimal))
	s.True(conf.Registration.PaidInFull())

	again, err := s.engine.ConfirmBalance(s.ctx, "sid", reg.ID, intentID)
	s.Require().NoError(err)
	s.True(again.Replayed)
	s.True(decimal.NewFromInt(550).Equal(s.reload(reg.ID).AmountPaid.Decimal))
	s.Equal([]uint{reg.ID}, s.mail.balances)

	_, err = s.engine.BeginBalance(s.ctx, "sid", reg.ID)
	s.ErrorIs(err, ErrPaidInFull)
}

func (s *EngineSuite) TestConfirmBalanceBeforeIntentNeedsPayment() {
	reg := s.paidRegistration("reg", 2, models.PaymentTypeDeposit)
	_, err := s.engine.LookupBalance(s.ctx, "sid", "pat@example.com")
	s.Require().NoError(err)

	conf, err := s.engine.ConfirmBalance(s.ctx, "sid", reg.ID, "")
	s.Require().NoError(err)
	s.Equal(OutcomeNeedsPayment, conf.Outcome)
}

func (s *EngineSuite) TestConfirmBalanceRejectsInitialIntent() {
	reg := s.paidRegistration("reg", 2, models.PaymentTypeDeposit)
	_, err := s.engine.LookupBalance(s.ctx, "sid", "pat@example.com")
	s.Require().NoError(err)

	_, err = s.engine.ConfirmBalance(s.ctx, "sid", reg.ID, reg.IntentID())
	s.ErrorIs(err, ErrInvalidPayment)
	s.True(decimal.NewFromInt(100).Equal(s.reload(reg.ID).AmountPaid.Decimal))
}

func (s *EngineSuite) TestBalanceFailureLeavesRegistration() {
	reg := s.paidRegistration("reg", 2, models.PaymentTypeDeposit)
	_, err := s.engine.LookupBalance(s.ctx, "sid", "pat@example.com")
	s.Require().NoError(err)
	_, err = s.engine.CreateBalanceIntent(s.ctx, "sid", reg.ID)
	s.Require().NoError(err)
	intentID := s.reload(reg.ID).IntentID()
	s.gw.SetStatus(intentID, gateway.StatusCanceled)

	conf, err := s.engine.ConfirmBalance(s.ctx, "sid", reg.ID, intentID)
	s.Require().NoError(err)
	s.Equal(OutcomeFailed, conf.Outcome)

	stored := s.reload(reg.ID)
	s.Require().NotNil(stored)
	s.True(decimal.NewFromInt(100).Equal(stored.AmountPaid.Decimal))
}

func (s *EngineSuite) TestBalanceSessionMismatchNeverDestroys() {
	reg := s.paidRegistration("reg", 2, models.PaymentTypeDeposit)

	_, err := s.engine.BeginBalance(s.ctx, "stranger", reg.ID)
	s.ErrorIs(err, ErrSessionMismatch)
	_, err = s.engine.CreateBalanceIntent(s.ctx, "stranger", reg.ID)
	s.ErrorIs(err, ErrSessionMismatch)
	s.NotNil(s.reload(reg.ID))
}
