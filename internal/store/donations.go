package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"gorm.io/gorm"
)

func (s *Store) CreateDonation(ctx context.Context, donation *models.Donation) error {
	return s.db.WithContext(ctx).Create(donation).Error
}

func (s *Store) FindDonation(ctx context.Context, id uint) (*models.Donation, error) {
	var donation models.Donation
	err := s.db.WithContext(ctx).First(&donation, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

func (s *Store) SetDonationIntent(ctx context.Context, id uint, intentID string) error {
	res := s.db.WithContext(ctx).Model(&models.Donation{}).Where("id = ?", id).Update("gateway_intent_id", intentID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDonationPaid records the settled amount once; false means the donation
// was already succeeded or no longer exists.
func (s *Store) MarkDonationPaid(ctx context.Context, id uint, intentID string, amount decimal.Decimal) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Donation{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{
			"payment_status":    models.PaymentSucceeded,
			"amount":            models.NewMoney(amount),
			"gateway_intent_id": intentID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) DestroyPendingDonation(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Unscoped().
		Where("id = ? AND payment_status = ?", id, models.PaymentPending).
		Delete(&models.Donation{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) ListStalePendingDonations(ctx context.Context, before time.Time) ([]models.Donation, error) {
	var donations []models.Donation
	err := s.db.WithContext(ctx).
		Where("payment_status = ? AND created_at < ?", models.PaymentPending, before).
		Find(&donations).Error
	return donations, err
}

func (s *Store) ListDonations(ctx context.Context, status models.PaymentStatus) ([]models.Donation, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("payment_status = ?", status)
	}
	var donations []models.Donation
	return donations, q.Find(&donations).Error
}
