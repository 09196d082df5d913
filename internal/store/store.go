// Package store persists registrations, donations and counsellor sign-ups.
// Payment state transitions are conditional updates so concurrent requests
// cannot apply the same success twice or delete a record that just got paid.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for admin handlers that list data.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
