// Package pricing holds the camp fee tables and the money arithmetic shared by
// registrations and balance payments. All amounts are dollars as decimals.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	EarlyBird Type = "early_bird"
	Regular   Type = "regular"
)

var (
	// Cent is the smallest amount treated as a non-zero balance.
	Cent = decimal.New(1, -2)

	DepositPerAttendee = decimal.NewFromInt(50)

	// Fees indexed by attendee count; the last entry applies to larger families.
	regularFees   = []decimal.Decimal{decimal.NewFromInt(275), decimal.NewFromInt(550), decimal.NewFromInt(650)}
	earlyBirdFees = []decimal.Decimal{decimal.NewFromInt(225), decimal.NewFromInt(450), decimal.NewFromInt(500)}
)

// TypeAt picks the tier for a registration created at now. A zero cutoff
// disables early-bird pricing.
func TypeAt(now, cutoff time.Time) Type {
	if !cutoff.IsZero() && now.Before(cutoff) {
		return EarlyBird
	}
	return Regular
}

// Total is the full fee for attendeeCount children.
func Total(attendeeCount int, t Type) decimal.Decimal {
	if attendeeCount <= 0 {
		return decimal.Zero
	}
	fees := regularFees
	if t == EarlyBird {
		fees = earlyBirdFees
	}
	if attendeeCount > len(fees) {
		return fees[len(fees)-1]
	}
	return fees[attendeeCount-1]
}

func Deposit(attendeeCount int) decimal.Decimal {
	if attendeeCount <= 0 {
		return decimal.Zero
	}
	return DepositPerAttendee.Mul(decimal.NewFromInt(int64(attendeeCount)))
}

// Remaining returns total minus paid rounded to cents. Differences smaller
// than a cent collapse to exactly zero; overpayment stays negative.
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	diff := total.Sub(paid)
	if diff.Abs().LessThan(Cent) {
		return decimal.Zero
	}
	return diff.Round(2)
}

// Rescale adjusts amount paid after attendees are removed from a registration.
// removedShare is the number of per-attendee shares taken away (usually 1).
// Removing no share leaves the amount unchanged. The result never drops below
// zero.
func Rescale(oldTotalPaid decimal.Decimal, oldAttendeeCount int, removedShare decimal.Decimal) decimal.Decimal {
	if !removedShare.IsPositive() {
		return oldTotalPaid
	}
	if oldAttendeeCount <= 0 || !oldTotalPaid.IsPositive() {
		return decimal.Zero
	}
	perAttendee := oldTotalPaid.Div(decimal.NewFromInt(int64(oldAttendeeCount)))
	rescaled := oldTotalPaid.Sub(perAttendee.Mul(removedShare)).Round(2)
	if rescaled.IsNegative() {
		return decimal.Zero
	}
	return rescaled
}

// ToMinorUnits converts dollars to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
