package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// APIKey grants scripted access to the admin API on behalf of a user. Only a
// SHA-256 digest of the key is stored; Prefix is kept for display.
type APIKey struct {
	gorm.Model
	UserID     uint       `json:"user_id"`
	User       User       `json:"-"`
	KeyHash    string     `json:"-" gorm:"uniqueIndex"`
	Prefix     string     `json:"prefix"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
