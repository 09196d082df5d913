package mailer

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/pricing"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type fakeRecords struct {
	registrations map[uint]*models.Registration
	donations     map[uint]*models.Donation
	pairs         map[uint]*models.CounsellorPair
}

func (f *fakeRecords) FindRegistration(_ context.Context, id uint) (*models.Registration, error) {
	return f.registrations[id], nil
}

func (f *fakeRecords) FindDonation(_ context.Context, id uint) (*models.Donation, error) {
	return f.donations[id], nil
}

func (f *fakeRecords) FindCounsellorPair(_ context.Context, id uint) (*models.CounsellorPair, error) {
	return f.pairs[id], nil
}

func paidRegistration() *models.Registration {
	reg := &models.Registration{
		Guardian1:     models.Guardian{Name: "Pat Doe", Email: "pat@example.com"},
		Guardian2:     models.Guardian{Email: "PAT@example.com"},
		PaymentStatus: models.PaymentSucceeded,
		PaymentType:   models.PaymentTypeDeposit,
		PricingType:   pricing.Regular,
		AmountPaid:    models.NewMoney(decimal.NewFromInt(100)),
		Attendees:     []models.Attendee{{FirstName: "Ada", LastName: "Doe"}, {FirstName: "Ben", LastName: "Doe"}},
	}
	reg.ID = 7
	return reg
}

func TestRegistrationConfirmation(t *testing.T) {
	msg := RegistrationConfirmation("Camp", paidRegistration())

	assert.Equal(t, []string{"pat@example.com"}, msg.To, "duplicate guardian emails collapse")
	assert.Equal(t, "Camp registration confirmed", msg.Subject)
	assert.Contains(t, msg.Body, "payment of $100.00")
	assert.Contains(t, msg.Body, "Ada Doe")
	assert.Contains(t, msg.Body, "Remaining balance: $450.00")
}

func TestBalanceReceiptPaidInFull(t *testing.T) {
	reg := paidRegistration()
	reg.AmountPaid = models.NewMoney(decimal.NewFromInt(550))

	msg := BalanceReceipt("Camp", reg, decimal.NewFromInt(450))
	assert.Contains(t, msg.Body, "$450.00")
	assert.Contains(t, msg.Body, "paid in full")
}

func TestDonationReceiptDefaultsName(t *testing.T) {
	donation := &models.Donation{Amount: models.NewMoney(decimal.NewFromInt(5)), Email: "d@example.com"}
	msg := DonationReceipt("Camp", donation)
	assert.Contains(t, msg.Body, "Dear friend")
	assert.Contains(t, msg.Body, "$5.00")
}

func TestServiceSendsAndSkipsMissing(t *testing.T) {
	mail := &recordingMailer{}
	records := &fakeRecords{
		registrations: map[uint]*models.Registration{7: paidRegistration()},
		pairs: map[uint]*models.CounsellorPair{3: {
			Counsellor1: models.Counsellor{FirstName: "Ann", Email: "ann@example.com"},
			Counsellor2: models.Counsellor{FirstName: "Bo", Email: "bo@example.com"},
		}},
	}
	svc := NewService(records, mail, "Camp")
	ctx := context.Background()

	require.NoError(t, svc.SendRegistrationConfirmation(ctx, 7))
	require.NoError(t, svc.SendRegistrationConfirmation(ctx, 99))
	require.NoError(t, svc.SendDonationReceipt(ctx, 1))
	require.NoError(t, svc.SendCounsellorConfirmation(ctx, 3))

	require.Len(t, mail.sent, 2)
	assert.Equal(t, []string{"ann@example.com", "bo@example.com"}, mail.sent[1].To)
}

func TestInlineDispatcherDelivers(t *testing.T) {
	mail := &recordingMailer{}
	records := &fakeRecords{registrations: map[uint]*models.Registration{7: paidRegistration()}}
	d := NewInlineDispatcher(NewService(records, mail, "Camp"))

	require.NoError(t, d.RegistrationConfirmed(context.Background(), 7))
	require.NoError(t, d.BalancePaid(context.Background(), 7, decimal.NewFromInt(50)))
	d.Wait()

	assert.Len(t, mail.sent, 2)
}

func TestSMTPMailerRejectsEmptyRecipients(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "camp@example.com"})
	assert.ErrorIs(t, m.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipients)

	raw := string(m.render(Message{To: []string{"a@example.com"}, Subject: "Hello", Body: "line1\nline2"}))
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "line1\r\nline2")
}
