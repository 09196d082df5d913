package reconcile

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

// Side effects after a state change. Failures are logged and never undo the
// payment that triggered them.

func (e *Engine) afterRegistrationPaid(ctx context.Context, reg *models.Registration) {
	if e.mail != nil {
		if err := e.mail.RegistrationConfirmed(ctx, reg.ID); err != nil {
			logger.Errorw("registration_mail_dispatch_failed", "registration_id", reg.ID, "error", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyRegistrationPaid(*reg); err != nil {
			logger.Warnw("registration_notify_failed", "registration_id", reg.ID, "error", err)
		}
	}
}

func (e *Engine) afterBalancePaid(ctx context.Context, reg *models.Registration, amount decimal.Decimal) {
	if e.mail != nil {
		if err := e.mail.BalancePaid(ctx, reg.ID, amount); err != nil {
			logger.Errorw("balance_mail_dispatch_failed", "registration_id", reg.ID, "error", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyBalancePaid(*reg, amount); err != nil {
			logger.Warnw("balance_notify_failed", "registration_id", reg.ID, "error", err)
		}
	}
}

func (e *Engine) afterDonationPaid(ctx context.Context, donation *models.Donation) {
	if e.mail != nil {
		if err := e.mail.DonationReceived(ctx, donation.ID); err != nil {
			logger.Errorw("donation_mail_dispatch_failed", "donation_id", donation.ID, "error", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyDonation(*donation); err != nil {
			logger.Warnw("donation_notify_failed", "donation_id", donation.ID, "error", err)
		}
	}
}

func (e *Engine) afterCounsellorsRegistered(ctx context.Context, pair *models.CounsellorPair) {
	if e.mail != nil {
		if err := e.mail.CounsellorsRegistered(ctx, pair.ID); err != nil {
			logger.Errorw("counsellor_mail_dispatch_failed", "counsellor_pair_id", pair.ID, "error", err)
		}
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyCounsellors(*pair); err != nil {
			logger.Warnw("counsellor_notify_failed", "counsellor_pair_id", pair.ID, "error", err)
		}
	}
}
