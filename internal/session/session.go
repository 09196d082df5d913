// Package session keeps short-lived per-browser correlation records that tie
// a visitor to the pending record they created. Nothing here is authoritative
// for payment state; it only guards who may continue a flow.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Slot names a correlation within one browser session.
type Slot string

const (
	PendingRegistration   Slot = "pending_registration"
	ConfirmedRegistration Slot = "confirmed_registration"
	BalanceRegistration   Slot = "balance_registration"
	PendingDonation       Slot = "pending_donation"
	ConfirmedDonation     Slot = "confirmed_donation"
)

const CookieName = "camp_session"

// Correlation is the fixed-shape value stored in a slot.
type Correlation struct {
	RecordID    uint   `json:"record_id"`
	PaymentType string `json:"payment_type,omitempty"`
}

type Store interface {
	// Get returns nil when the slot is empty or expired.
	Get(ctx context.Context, sessionID string, slot Slot) (*Correlation, error)
	Set(ctx context.Context, sessionID string, slot Slot, c Correlation) error
	Delete(ctx context.Context, sessionID string, slot Slot) error
}

// NewID returns a fresh browser session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && id != ""
}

type memoryEntry struct {
	value     Correlation
	expiresAt time.Time
}

// MemoryStore is a process-local Store, used when Redis is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string, slot Slot) (*Correlation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(sessionID, slot)
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	value := entry.value
	return &value, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, slot Slot, c Correlation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memoryKey(sessionID, slot)] = memoryEntry{value: c, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memoryKey(sessionID, slot))
	return nil
}

func memoryKey(sessionID string, slot Slot) string {
	return sessionID + ":" + string(slot)
}
