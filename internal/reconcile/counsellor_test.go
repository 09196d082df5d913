package reconcile

import (
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

func counsellor(first string) CounsellorInput {
	return CounsellorInput{
		FirstName:           first,
		LastName:            "Smith",
		AddressLine1:        "9 Oak Ave",
		City:                "Ojai",
		StateProvinceRegion: "CA",
		PostalCode:          "93023",
		Phone:               "+1 805 555 0199",
		Email:               first + "@example.com",
	}
}

func (s *EngineSuite) TestRegisterCounsellors() {
	pair, err := s.engine.RegisterCounsellors(s.ctx, CounsellorDraft{
		Counsellor1:    counsellor("ana"),
		Counsellor2:    counsellor("ben"),
		PairingRequest: " cabin 4 ",
	})
	s.Require().NoError(err)
	s.NotZero(pair.ID)
	s.Equal(models.DefaultCountry, pair.Counsellor1.Country)
	s.Equal("cabin 4", pair.PairingRequest)
	s.Equal([]uint{pair.ID}, s.mail.counsellors)
	s.Equal([]string{"counsellors"}, s.notes.events)
}

func (s *EngineSuite) TestRegisterCounsellorsValidates() {
	second := counsellor("ben")
	second.PostalCode = "93023!"
	second.Email = "not-an-email"

	_, err := s.engine.RegisterCounsellors(s.ctx, CounsellorDraft{Counsellor1: counsellor("ana"), Counsellor2: second})

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	s.Equal("must be a valid postal code", fields["counsellor_2.postal_code"])
	s.Equal("must be a valid email address", fields["counsellor_2.email"])
	s.Empty(s.mail.counsellors)
}
