package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
)

type PaymentType string

const (
	PaymentTypeDeposit  PaymentType = "deposit"
	PaymentTypeFull     PaymentType = "full"
	PaymentTypeBalance  PaymentType = "balance"
	PaymentTypeDonation PaymentType = "donation"
)

// Valid reports whether t can be chosen for an initial registration payment.
func (t PaymentType) Valid() bool {
	return t == PaymentTypeDeposit || t == PaymentTypeFull
}

type Guardian struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

type EmergencyContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Registration struct {
	gorm.Model
	Guardian1             Guardian         `json:"guardian_1" gorm:"embedded;embeddedPrefix:guardian_1_"`
	Guardian2             Guardian         `json:"guardian_2" gorm:"embedded;embeddedPrefix:guardian_2_"`
	Guardian2SameAddress  bool             `json:"guardian_2_same_address"`
	EmergencyContact1     EmergencyContact `json:"emergency_contact_1" gorm:"embedded;embeddedPrefix:emergency_contact_1_"`
	EmergencyContact2     EmergencyContact `json:"emergency_contact_2" gorm:"embedded;embeddedPrefix:emergency_contact_2_"`
	InterestInCounselling bool             `json:"interest_in_counselling"`
	Notes                 string           `json:"notes"`
	TermsAgreement        bool             `json:"terms_agreement"`
	MedicalConsent        bool             `json:"medical_consent"`

	Attendees []Attendee `json:"attendees"`

	PaymentStatus   PaymentStatus `json:"payment_status" gorm:"default:pending;index"`
	PaymentType     PaymentType   `json:"payment_type"`
	AmountPaid      Money         `json:"amount_paid" gorm:"type:decimal(10,2);not null;default:0"`
	GatewayIntentID *string       `json:"-" gorm:"index"`
	PricingType     pricing.Type  `json:"pricing_type" gorm:"default:regular"`
	Archived        bool          `json:"archived" gorm:"default:false;index"`
}

type Attendee struct {
	gorm.Model
	RegistrationID      uint      `json:"registration_id" gorm:"index"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	DateOfBirth         time.Time `json:"date_of_birth"`
	Age                 int       `json:"age"`
	Gender              string    `json:"gender"`
	Ecclesia            string    `json:"ecclesia"`
	Piano               bool      `json:"piano"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	AddressLine1        string    `json:"address_line_1"`
	AddressLine2        string    `json:"address_line_2"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	Zip                 string    `json:"zip"`
	TShirtSize          string    `json:"t_shirt_size"`
	MedicalConditions   string    `json:"medical_conditions"`
	DietaryRestrictions string    `json:"dietary_restrictions"`
	Allergies           string    `json:"allergies"`
	SpecialNeeds        string    `json:"special_needs"`
	Notes               string    `json:"notes"`
	Archived            bool      `json:"archived" gorm:"default:false"`
}

// AgeOn returns the number of whole years between dob and day.
func AgeOn(dob, day time.Time) int {
	age := day.Year() - dob.Year()
	if day.Month() < dob.Month() || (day.Month() == dob.Month() && day.Day() < dob.Day()) {
		age--
	}
	return age
}

func (r *Registration) IntentID() string {
	if r.GatewayIntentID == nil {
		return ""
	}
	return *r.GatewayIntentID
}

// ActiveAttendeeCount counts attendees that have not been archived.
func (r *Registration) ActiveAttendeeCount() int {
	count := 0
	for _, a := range r.Attendees {
		if !a.Archived {
			count++
		}
	}
	return count
}

func (r *Registration) TotalDue() decimal.Decimal {
	return pricing.Total(r.ActiveAttendeeCount(), r.PricingType)
}

func (r *Registration) DepositAmount() decimal.Decimal {
	return pricing.Deposit(r.ActiveAttendeeCount())
}

func (r *Registration) RemainingBalance() decimal.Decimal {
	return pricing.Remaining(r.TotalDue(), r.AmountPaid.Decimal)
}

func (r *Registration) Paid() bool {
	return r.PaymentStatus == PaymentSucceeded
}

func (r *Registration) PaidDeposit() bool {
	return r.Paid() && r.PaymentType == PaymentTypeDeposit
}

func (r *Registration) PaidInFull() bool {
	return r.Paid() && !r.RemainingBalance().IsPositive()
}
