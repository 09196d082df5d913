package store

import (
	"context"
	"errors"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"gorm.io/gorm"
)

func (s *Store) CreateCounsellorPair(ctx context.Context, pair *models.CounsellorPair) error {
	return s.db.WithContext(ctx).Create(pair).Error
}

func (s *Store) FindCounsellorPair(ctx context.Context, id uint) (*models.CounsellorPair, error) {
	var pair models.CounsellorPair
	err := s.db.WithContext(ctx).First(&pair, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *Store) ListCounsellorPairs(ctx context.Context, includeArchived bool) ([]models.CounsellorPair, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	var pairs []models.CounsellorPair
	return pairs, q.Find(&pairs).Error
}

func (s *Store) ArchiveCounsellorPair(ctx context.Context, id uint, archived bool) error {
	res := s.db.WithContext(ctx).Model(&models.CounsellorPair{}).Where("id = ?", id).Update("archived", archived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DestroyCounsellorPair(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Unscoped().Delete(&models.CounsellorPair{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
