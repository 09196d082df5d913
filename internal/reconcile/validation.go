package reconcile

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

var (
	phonePattern  = regexp.MustCompile(`^[\d\s\-()+.]+$`)
	zipPattern    = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	postalPattern = regexp.MustCompile(`^[\w\s\-]+$`)

	MinimumDonation = decimal.NewFromInt(5)
)

const dateLayout = "2006-01-02"

type GuardianInput struct {
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,phone"`
	AddressLine1 string `json:"address_line_1" validate:"required"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	Zip          string `json:"zip" validate:"required,zip"`
}

type SecondGuardianInput struct {
	Name         string `json:"name,omitempty" validate:"max=200"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,phone"`
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty" validate:"omitempty,zip"`
}

type EmergencyContactInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,phone"`
}

type OptionalContactInput struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty" validate:"omitempty,phone"`
}

type AttendeeInput struct {
	FirstName           string `json:"first_name" validate:"required,max=100"`
	LastName            string `json:"last_name" validate:"required,max=100"`
	DateOfBirth         string `json:"date_of_birth" validate:"required,datetime=2006-01-02" doc:"YYYY-MM-DD"`
	Gender              string `json:"gender" validate:"required"`
	Ecclesia            string `json:"ecclesia,omitempty"`
	Piano               bool   `json:"piano,omitempty"`
	Phone               string `json:"phone,omitempty" validate:"omitempty,phone"`
	Email               string `json:"email,omitempty" validate:"omitempty,email"`
	AddressLine1        string `json:"address_line_1,omitempty"`
	AddressLine2        string `json:"address_line_2,omitempty"`
	City                string `json:"city,omitempty"`
	State               string `json:"state,omitempty"`
	Zip                 string `json:"zip,omitempty" validate:"omitempty,zip"`
	TShirtSize          string `json:"t_shirt_size,omitempty"`
	MedicalConditions   string `json:"medical_conditions,omitempty"`
	DietaryRestrictions string `json:"dietary_restrictions,omitempty"`
	Allergies           string `json:"allergies,omitempty"`
	SpecialNeeds        string `json:"special_needs,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// RegistrationDraft is the unsaved form a guardian submits.
type RegistrationDraft struct {
	Guardian1             GuardianInput         `json:"guardian_1"`
	Guardian2             *SecondGuardianInput  `json:"guardian_2,omitempty" validate:"omitempty"`
	Guardian2SameAddress  bool                  `json:"guardian_2_same_address,omitempty"`
	EmergencyContact1     EmergencyContactInput `json:"emergency_contact_1"`
	EmergencyContact2     *OptionalContactInput `json:"emergency_contact_2,omitempty" validate:"omitempty"`
	InterestInCounselling bool                  `json:"interest_in_counselling,omitempty"`
	Notes                 string                `json:"notes,omitempty" validate:"max=2000"`
	TermsAgreement        bool                  `json:"terms_agreement" validate:"required"`
	MedicalConsent        bool                  `json:"medical_consent" validate:"required"`
	Attendees             []AttendeeInput       `json:"attendees" validate:"required,min=1,dive"`
}

type DonationDraft struct {
	Amount decimal.Decimal `json:"amount"`
	Email  string          `json:"email" validate:"required,email"`
	Name   string          `json:"name" validate:"max=200"`
}

type CounsellorInput struct {
	FirstName           string `json:"first_name" validate:"required,max=100"`
	LastName            string `json:"last_name" validate:"required,max=100"`
	AddressLine1        string `json:"address_line_1" validate:"required"`
	AddressLine2        string `json:"address_line_2,omitempty"`
	City                string `json:"city" validate:"required"`
	StateProvinceRegion string `json:"state_province_region" validate:"required"`
	PostalCode          string `json:"postal_code" validate:"required,postal"`
	Country             string `json:"country,omitempty"`
	Phone               string `json:"phone" validate:"required,phone"`
	Email               string `json:"email" validate:"required,email"`
	Ecclesia            string `json:"ecclesia,omitempty"`
	TShirtSize          string `json:"t_shirt_size,omitempty"`
	Piano               bool   `json:"piano,omitempty"`
}

type CounsellorDraft struct {
	Counsellor1    CounsellorInput `json:"counsellor_1"`
	Counsellor2    CounsellorInput `json:"counsellor_2"`
	PairingRequest string          `json:"pairing_request,omitempty" validate:"max=500"`
	Notes          string          `json:"notes,omitempty" validate:"max=2000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "phone", matches(phonePattern))
	mustRegister(v, "zip", matches(zipPattern))
	mustRegister(v, "postal", matches(postalPattern))
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// check runs struct validation and converts failures to a ValidationError.
func (e *Engine) check(draft interface{}) *ValidationError {
	err := e.validate.Struct(draft)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid("body", err.Error())
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return "must be accepted"
		}
		if fe.Kind() == reflect.Slice {
			return "must include at least one entry"
		}
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	case "zip":
		return "must be a valid ZIP code"
	case "postal":
		return "must be a valid postal code"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "min":
		return "must include at least " + fe.Param() + " entry"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// validateRegistration checks field rules and the attendee age window.
func (e *Engine) validateRegistration(draft RegistrationDraft, now time.Time) *ValidationError {
	if verr := e.check(draft); verr != nil {
		return verr
	}
	out := &ValidationError{}
	for i, a := range draft.Attendees {
		dob, err := time.Parse(dateLayout, a.DateOfBirth)
		if err != nil {
			out.Fields = append(out.Fields, FieldError{Field: fmt.Sprintf("attendees[%d].date_of_birth", i), Message: "must be a date formatted YYYY-MM-DD"})
			continue
		}
		age := models.AgeOn(dob, now)
		if age < e.minAge || age > e.maxAge {
			out.Fields = append(out.Fields, FieldError{
				Field:   fmt.Sprintf("attendees[%d].date_of_birth", i),
				Message: fmt.Sprintf("attendee must be between %d and %d years old", e.minAge, e.maxAge),
			})
		}
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

func (e *Engine) validateDonation(draft DonationDraft) *ValidationError {
	out := &ValidationError{}
	if draft.Amount.LessThan(MinimumDonation) {
		out.Fields = append(out.Fields, FieldError{Field: "amount", Message: "must be at least $5.00"})
	}
	if verr := e.check(draft); verr != nil {
		out.Fields = append(out.Fields, verr.Fields...)
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

func buildRegistration(draft RegistrationDraft, now time.Time) *models.Registration {
	reg := &models.Registration{
		Guardian1: models.Guardian{
			Name:         strings.TrimSpace(draft.Guardian1.Name),
			Email:        strings.ToLower(strings.TrimSpace(draft.Guardian1.Email)),
			Phone:        draft.Guardian1.Phone,
			AddressLine1: draft.Guardian1.AddressLine1,
			AddressLine2: draft.Guardian1.AddressLine2,
			City:         draft.Guardian1.City,
			State:        draft.Guardian1.State,
			Zip:          draft.Guardian1.Zip,
		},
		Guardian2SameAddress: draft.Guardian2SameAddress,
		EmergencyContact1: models.EmergencyContact{
			Name:  draft.EmergencyContact1.Name,
			Phone: draft.EmergencyContact1.Phone,
		},
		InterestInCounselling: draft.InterestInCounselling,
		Notes:                 draft.Notes,
		TermsAgreement:        draft.TermsAgreement,
		MedicalConsent:        draft.MedicalConsent,
		PaymentStatus:         models.PaymentPending,
	}
	if g := draft.Guardian2; g != nil {
		reg.Guardian2 = models.Guardian{
			Name:         strings.TrimSpace(g.Name),
			Email:        strings.ToLower(strings.TrimSpace(g.Email)),
			Phone:        g.Phone,
			AddressLine1: g.AddressLine1,
			AddressLine2: g.AddressLine2,
			City:         g.City,
			State:        g.State,
			Zip:          g.Zip,
		}
		if draft.Guardian2SameAddress {
			reg.Guardian2.AddressLine1 = reg.Guardian1.AddressLine1
			reg.Guardian2.AddressLine2 = reg.Guardian1.AddressLine2
			reg.Guardian2.City = reg.Guardian1.City
			reg.Guardian2.State = reg.Guardian1.State
			reg.Guardian2.Zip = reg.Guardian1.Zip
		}
	}
	if c := draft.EmergencyContact2; c != nil {
		reg.EmergencyContact2 = models.EmergencyContact{Name: c.Name, Phone: c.Phone}
	}
	for _, a := range draft.Attendees {
		dob, _ := time.Parse(dateLayout, a.DateOfBirth)
		reg.Attendees = append(reg.Attendees, models.Attendee{
			FirstName:           strings.TrimSpace(a.FirstName),
			LastName:            strings.TrimSpace(a.LastName),
			DateOfBirth:         dob,
			Age:                 models.AgeOn(dob, now),
			Gender:              a.Gender,
			Ecclesia:            a.Ecclesia,
			Piano:               a.Piano,
			Phone:               a.Phone,
			Email:               a.Email,
			AddressLine1:        a.AddressLine1,
			AddressLine2:        a.AddressLine2,
			City:                a.City,
			State:               a.State,
			Zip:                 a.Zip,
			TShirtSize:          a.TShirtSize,
			MedicalConditions:   a.MedicalConditions,
			DietaryRestrictions: a.DietaryRestrictions,
			Allergies:           a.Allergies,
			SpecialNeeds:        a.SpecialNeeds,
			Notes:               a.Notes,
		})
	}
	return reg
}

func buildCounsellor(in CounsellorInput) models.Counsellor {
	country := strings.TrimSpace(in.Country)
	if country == "" {
		country = models.DefaultCountry
	}
	return models.Counsellor{
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		AddressLine1:        in.AddressLine1,
		AddressLine2:        in.AddressLine2,
		City:                in.City,
		StateProvinceRegion: in.StateProvinceRegion,
		PostalCode:          in.PostalCode,
		Country:             country,
		Phone:               in.Phone,
		Email:               strings.ToLower(strings.TrimSpace(in.Email)),
		Ecclesia:            in.Ecclesia,
		TShirtSize:          in.TShirtSize,
		Piano:               in.Piano,
	}
}
