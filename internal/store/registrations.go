package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
	"gorm.io/gorm"
)

// PaidUpdate describes a successful initial payment.
type PaidUpdate struct {
	IntentID    string
	Amount      decimal.Decimal
	PaymentType models.PaymentType
}

type RegistrationFilter struct {
	IncludeArchived bool
	Status          models.PaymentStatus
}

func (s *Store) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	return s.db.WithContext(ctx).Create(reg).Error
}

// FindRegistration returns nil without error when the id does not exist.
func (s *Store) FindRegistration(ctx context.Context, id uint) (*models.Registration, error) {
	var reg models.Registration
	err := s.db.WithContext(ctx).Preload("Attendees").First(&reg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindRegistrationsByGuardianEmail matches the primary guardian email
// case-insensitively, newest first.
func (s *Store) FindRegistrationsByGuardianEmail(ctx context.Context, email string) ([]models.Registration, error) {
	var regs []models.Registration
	err := s.db.WithContext(ctx).
		Preload("Attendees").
		Where("LOWER(guardian_1_email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("id DESC").
		Find(&regs).Error
	return regs, err
}

func (s *Store) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]models.Registration, error) {
	q := s.db.WithContext(ctx).Preload("Attendees").Order("id DESC")
	if !filter.IncludeArchived {
		q = q.Where("archived = ?", false)
	}
	if filter.Status != "" {
		q = q.Where("payment_status = ?", filter.Status)
	}
	var regs []models.Registration
	return regs, q.Find(&regs).Error
}

func (s *Store) ListStalePendingRegistrations(ctx context.Context, before time.Time) ([]models.Registration, error) {
	var regs []models.Registration
	err := s.db.WithContext(ctx).
		Where("payment_status = ? AND created_at < ?", models.PaymentPending, before).
		Find(&regs).Error
	return regs, err
}

// SetRegistrationIntent records the intent currently used to pay a registration.
// An empty paymentType leaves the stored type unchanged.
func (s *Store) SetRegistrationIntent(ctx context.Context, id uint, intentID string, paymentType models.PaymentType) error {
	updates := map[string]interface{}{"gateway_intent_id": intentID}
	if paymentType != "" {
		updates["payment_type"] = paymentType
	}
	res := s.db.WithContext(ctx).Model(&models.Registration{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRegistrationPaid moves a pending registration to succeeded and records
// the intent in the ledger. It returns false when the intent was already
// applied or the registration is no longer pending.
func (s *Store) MarkRegistrationPaid(ctx context.Context, id uint, update PaidUpdate) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recorded, err := paymentExists(tx, update.IntentID)
		if err != nil || recorded {
			return err
		}

		res := tx.Model(&models.Registration{}).
			Where("id = ? AND payment_status = ?", id, models.PaymentPending).
			Updates(map[string]interface{}{
				"payment_status":    models.PaymentSucceeded,
				"payment_type":      update.PaymentType,
				"amount_paid":       models.NewMoney(update.Amount),
				"gateway_intent_id": update.IntentID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(&models.Payment{
			RegistrationID: id,
			IntentID:       update.IntentID,
			Amount:         models.NewMoney(update.Amount),
			PaymentType:    update.PaymentType,
		}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if isDuplicate(err) {
		return false, nil
	}
	return applied, err
}

// ApplyBalancePayment adds amount to a paid registration's amount_paid.
// The ledger's unique intent id makes repeated calls a no-op (false).
func (s *Store) ApplyBalancePayment(ctx context.Context, id uint, intentID string, amount decimal.Decimal) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recorded, err := paymentExists(tx, intentID)
		if err != nil || recorded {
			return err
		}

		if err := tx.Create(&models.Payment{
			RegistrationID: id,
			IntentID:       intentID,
			Amount:         models.NewMoney(amount),
			PaymentType:    models.PaymentTypeBalance,
		}).Error; err != nil {
			return err
		}

		var reg models.Registration
		if err := tx.Select("id", "amount_paid", "payment_status").
			Where("id = ? AND payment_status = ?", id, models.PaymentSucceeded).
			First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		total := reg.AmountPaid.Decimal.Add(amount)
		if err := tx.Model(&models.Registration{}).Where("id = ?", id).Updates(map[string]interface{}{
			"amount_paid":       models.NewMoney(total),
			"gateway_intent_id": intentID,
		}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if isDuplicate(err) {
		return false, nil
	}
	return applied, err
}

func (s *Store) HasPayment(ctx context.Context, intentID string) (bool, error) {
	return paymentExists(s.db.WithContext(ctx), intentID)
}

func (s *Store) ListPayments(ctx context.Context, registrationID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).Where("registration_id = ?", registrationID).Order("id").Find(&payments).Error
	return payments, err
}

// DestroyPendingRegistration deletes a registration and its attendees only
// while it is still pending. It reports whether anything was deleted.
func (s *Store) DestroyPendingRegistration(ctx context.Context, id uint) (bool, error) {
	return s.destroyRegistration(ctx, id, true)
}

// DestroyRegistration deletes a registration regardless of payment state,
// together with its attendees and ledger rows.
func (s *Store) DestroyRegistration(ctx context.Context, id uint) error {
	deleted, err := s.destroyRegistration(ctx, id, false)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *Store) destroyRegistration(ctx context.Context, id uint, onlyPending bool) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Unscoped().Where("id = ?", id)
		if onlyPending {
			q = q.Where("payment_status = ?", models.PaymentPending)
		}
		res := q.Delete(&models.Registration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Unscoped().Where("registration_id = ?", id).Delete(&models.Attendee{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("registration_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (s *Store) ArchiveRegistration(ctx context.Context, id uint, archived bool) error {
	res := s.db.WithContext(ctx).Model(&models.Registration{}).Where("id = ?", id).Update("archived", archived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ArchiveAttendee(ctx context.Context, registrationID, attendeeID uint, archived bool) error {
	res := s.db.WithContext(ctx).Model(&models.Attendee{}).
		Where("id = ? AND registration_id = ?", attendeeID, registrationID).
		Update("archived", archived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveAttendee deletes one attendee and rescales amount_paid so the
// remaining attendees keep their share of what was paid.
func (s *Store) RemoveAttendee(ctx context.Context, registrationID, attendeeID uint) (*models.Registration, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg models.Registration
		if err := tx.Preload("Attendees").First(&reg, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var target *models.Attendee
		for i := range reg.Attendees {
			if reg.Attendees[i].ID == attendeeID {
				target = &reg.Attendees[i]
				break
			}
		}
		if target == nil {
			return ErrNotFound
		}

		share := decimal.NewFromInt(1)
		if target.Archived {
			share = decimal.Zero
		}
		rescaled := pricing.Rescale(reg.AmountPaid.Decimal, reg.ActiveAttendeeCount(), share)

		if err := tx.Unscoped().Delete(&models.Attendee{}, attendeeID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Registration{}).Where("id = ?", registrationID).
			Update("amount_paid", models.NewMoney(rescaled)).Error
	})
	if err != nil {
		return nil, err
	}
	return s.FindRegistration(ctx, registrationID)
}

func paymentExists(db *gorm.DB, intentID string) (bool, error) {
	var count int64
	if err := db.Model(&models.Payment{}).Where("intent_id = ?", intentID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
