package mailer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/models"
)

func RegistrationConfirmation(appName string, reg *models.Registration) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", reg.Guardian1.Name)
	fmt.Fprintf(&b, "Thank you for registering for %s. We received your payment of $%s.\n\n", appName, reg.AmountPaid.String())
	b.WriteString("Registered campers:\n")
	for _, a := range reg.Attendees {
		if a.Archived {
			continue
		}
		fmt.Fprintf(&b, "  - %s %s\n", a.FirstName, a.LastName)
	}
	fmt.Fprintf(&b, "\nTotal fee: $%s\n", reg.TotalDue().StringFixed(2))
	if remaining := reg.RemainingBalance(); remaining.IsPositive() {
		fmt.Fprintf(&b, "Remaining balance: $%s\n", remaining.StringFixed(2))
		b.WriteString("You can pay the balance at any time from the balance payment page using this email address.\n")
	} else {
		b.WriteString("Your registration is paid in full.\n")
	}
	fmt.Fprintf(&b, "\nRegistration number: %d\n", reg.ID)

	return Message{
		To:      recipients(reg.Guardian1.Email, reg.Guardian2.Email),
		Subject: fmt.Sprintf("%s registration confirmed", appName),
		Body:    b.String(),
	}
}

func BalanceReceipt(appName string, reg *models.Registration, amount decimal.Decimal) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", reg.Guardian1.Name)
	fmt.Fprintf(&b, "We received your balance payment of $%s for registration %d.\n", amount.StringFixed(2), reg.ID)
	fmt.Fprintf(&b, "Total paid so far: $%s of $%s.\n", reg.AmountPaid.String(), reg.TotalDue().StringFixed(2))
	if remaining := reg.RemainingBalance(); remaining.IsPositive() {
		fmt.Fprintf(&b, "Remaining balance: $%s\n", remaining.StringFixed(2))
	} else {
		b.WriteString("Your registration is now paid in full. Thank you!\n")
	}

	return Message{
		To:      recipients(reg.Guardian1.Email),
		Subject: fmt.Sprintf("%s balance payment received", appName),
		Body:    b.String(),
	}
}

func DonationReceipt(appName string, donation *models.Donation) Message {
	name := donation.Name
	if strings.TrimSpace(name) == "" {
		name = "friend"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "Thank you for your donation of $%s to %s.\n", donation.Amount.String(), appName)
	b.WriteString("Your gift helps children attend camp.\n\n")
	fmt.Fprintf(&b, "Receipt number: D-%d\n", donation.ID)

	return Message{
		To:      recipients(donation.Email),
		Subject: fmt.Sprintf("%s donation receipt", appName),
		Body:    b.String(),
	}
}

func CounsellorConfirmation(appName string, pair *models.CounsellorPair) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s and %s,\n\n", pair.Counsellor1.FirstName, pair.Counsellor2.FirstName)
	fmt.Fprintf(&b, "Thank you for volunteering as counsellors for %s.\n", appName)
	b.WriteString("The organisers will be in touch with cabin assignments before camp.\n")
	if pair.PairingRequest != "" {
		fmt.Fprintf(&b, "\nPairing request noted: %s\n", pair.PairingRequest)
	}

	return Message{
		To:      recipients(pair.Counsellor1.Email, pair.Counsellor2.Email),
		Subject: fmt.Sprintf("%s counsellor registration received", appName),
		Body:    b.String(),
	}
}

func recipients(emails ...string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]bool)
	for _, e := range emails {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
