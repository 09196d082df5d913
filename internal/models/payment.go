package models

import (
	"gorm.io/gorm"
)

// Payment is an append-only record of a gateway intent that has been applied
// to a registration. IntentID is unique so an intent can be applied only once.
type Payment struct {
	gorm.Model
	RegistrationID uint        `json:"registration_id" gorm:"index"`
	IntentID       string      `json:"intent_id" gorm:"uniqueIndex;not null"`
	Amount         Money       `json:"amount" gorm:"type:decimal(10,2);not null"`
	PaymentType    PaymentType `json:"payment_type"`
}
