package models

import (
	"gorm.io/gorm"
)

const DefaultCountry = "United States of America"

type Counsellor struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	AddressLine1        string `json:"address_line_1"`
	AddressLine2        string `json:"address_line_2"`
	City                string `json:"city"`
	StateProvinceRegion string `json:"state_province_region"`
	PostalCode          string `json:"postal_code"`
	Country             string `json:"country"`
	Phone               string `json:"phone"`
	Email               string `json:"email"`
	Ecclesia            string `json:"ecclesia"`
	TShirtSize          string `json:"t_shirt_size"`
	Piano               bool   `json:"piano"`
}

// CounsellorPair is a single sign-up covering two counsellors who serve together.
type CounsellorPair struct {
	gorm.Model
	Counsellor1    Counsellor `json:"counsellor_1" gorm:"embedded;embeddedPrefix:counsellor_1_"`
	Counsellor2    Counsellor `json:"counsellor_2" gorm:"embedded;embeddedPrefix:counsellor_2_"`
	PairingRequest string     `json:"pairing_request"`
	Notes          string     `json:"notes"`
	Archived       bool       `json:"archived" gorm:"default:false;index"`
}
