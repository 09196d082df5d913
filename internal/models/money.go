package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Money is a dollar amount kept at two decimal places. It is stored as a
// decimal column and serialised as a fixed-point string ("275.00").
type Money struct {
	decimal.Decimal
}

func NewMoney(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(2)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.Round(2).StringFixed(2))
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = parsed.Round(2)
		return nil
	}
	parsed, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	m.Decimal = parsed.Round(2)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(2).Value()
}

func (m *Money) Scan(value interface{}) error {
	if value == nil {
		m.Decimal = decimal.Zero
		return nil
	}
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(2)
	return nil
}

func (m Money) String() string {
	return m.Decimal.Round(2).StringFixed(2)
}
