package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/database"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

// Dispatcher is how the rest of the service asks for an email to go out.
// Implementations may deliver inline or through the task queue.
type Dispatcher interface {
	RegistrationConfirmed(ctx context.Context, registrationID uint) error
	BalancePaid(ctx context.Context, registrationID uint, amount decimal.Decimal) error
	DonationReceived(ctx context.Context, donationID uint) error
	CounsellorsRegistered(ctx context.Context, pairID uint) error
}

type Records interface {
	FindRegistration(ctx context.Context, id uint) (*models.Registration, error)
	FindDonation(ctx context.Context, id uint) (*models.Donation, error)
	FindCounsellorPair(ctx context.Context, id uint) (*models.CounsellorPair, error)
}

// Service loads the record behind a notification and sends the email.
type Service struct {
	records Records
	mailer  Mailer
	appName string
}

func NewService(records Records, mailer Mailer, appName string) *Service {
	return &Service{records: records, mailer: mailer, appName: appName}
}

func (s *Service) SendRegistrationConfirmation(ctx context.Context, id uint) error {
	var reg *models.Registration
	if err := database.WithRetry(ctx, "mail_load_registration", func() (err error) {
		reg, err = s.records.FindRegistration(ctx, id)
		return err
	}); err != nil {
		return err
	}
	if reg == nil {
		logger.Debugw("mail_registration_confirmation_skip_not_found", "registration_id", id)
		return nil
	}
	return s.mailer.Send(ctx, RegistrationConfirmation(s.appName, reg))
}

func (s *Service) SendBalanceReceipt(ctx context.Context, id uint, amount decimal.Decimal) error {
	var reg *models.Registration
	if err := database.WithRetry(ctx, "mail_load_registration", func() (err error) {
		reg, err = s.records.FindRegistration(ctx, id)
		return err
	}); err != nil {
		return err
	}
	if reg == nil {
		logger.Debugw("mail_balance_receipt_skip_not_found", "registration_id", id)
		return nil
	}
	return s.mailer.Send(ctx, BalanceReceipt(s.appName, reg, amount))
}

func (s *Service) SendDonationReceipt(ctx context.Context, id uint) error {
	var donation *models.Donation
	if err := database.WithRetry(ctx, "mail_load_donation", func() (err error) {
		donation, err = s.records.FindDonation(ctx, id)
		return err
	}); err != nil {
		return err
	}
	if donation == nil {
		logger.Debugw("mail_donation_receipt_skip_not_found", "donation_id", id)
		return nil
	}
	return s.mailer.Send(ctx, DonationReceipt(s.appName, donation))
}

func (s *Service) SendCounsellorConfirmation(ctx context.Context, id uint) error {
	var pair *models.CounsellorPair
	if err := database.WithRetry(ctx, "mail_load_counsellors", func() (err error) {
		pair, err = s.records.FindCounsellorPair(ctx, id)
		return err
	}); err != nil {
		return err
	}
	if pair == nil {
		logger.Debugw("mail_counsellor_confirmation_skip_not_found", "counsellor_pair_id", id)
		return nil
	}
	return s.mailer.Send(ctx, CounsellorConfirmation(s.appName, pair))
}

// InlineDispatcher sends from a detached goroutine so request latency does
// not depend on the mail relay. Used when the task queue is disabled.
type InlineDispatcher struct {
	svc     *Service
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInlineDispatcher(svc *Service) *InlineDispatcher {
	return &InlineDispatcher{svc: svc, timeout: 30 * time.Second}
}

func (d *InlineDispatcher) RegistrationConfirmed(_ context.Context, id uint) error {
	d.run("registration_confirmation", id, func(ctx context.Context) error {
		return d.svc.SendRegistrationConfirmation(ctx, id)
	})
	return nil
}

func (d *InlineDispatcher) BalancePaid(_ context.Context, id uint, amount decimal.Decimal) error {
	d.run("balance_receipt", id, func(ctx context.Context) error {
		return d.svc.SendBalanceReceipt(ctx, id, amount)
	})
	return nil
}

func (d *InlineDispatcher) DonationReceived(_ context.Context, id uint) error {
	d.run("donation_receipt", id, func(ctx context.Context) error {
		return d.svc.SendDonationReceipt(ctx, id)
	})
	return nil
}

func (d *InlineDispatcher) CounsellorsRegistered(_ context.Context, id uint) error {
	d.run("counsellor_confirmation", id, func(ctx context.Context) error {
		return d.svc.SendCounsellorConfirmation(ctx, id)
	})
	return nil
}

// Wait blocks until every in-flight send has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

func (d *InlineDispatcher) run(kind string, id uint, send func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logger.Warnw("mail_send_failed", "kind", kind, "record_id", id, "error", err)
		}
	}()
}
