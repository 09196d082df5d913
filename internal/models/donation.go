package models

import (
	"gorm.io/gorm"
)

type Donation struct {
	gorm.Model
	Amount          Money         `json:"amount" gorm:"type:decimal(10,2);not null"`
	Email           string        `json:"email" gorm:"index"`
	Name            string        `json:"name"`
	GatewayIntentID *string       `json:"-" gorm:"uniqueIndex"`
	PaymentStatus   PaymentStatus `json:"payment_status" gorm:"default:pending;index"`
}

func (d *Donation) IntentID() string {
	if d.GatewayIntentID == nil {
		return ""
	}
	return *d.GatewayIntentID
}

func (d *Donation) Paid() bool {
	return d.PaymentStatus == PaymentSucceeded
}
