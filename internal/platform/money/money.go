// Package money normalises monetary input for fees and payments.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for amounts.
const Scale = 2

// Limit is the first amount a NUMERIC(12,2) column cannot hold.
var Limit = Amount{Decimal: decimal.New(1, 10)}

// Amount is a decimal that unmarshals from either a JSON number or a numeric
// string, and marshals as a canonical decimal string.
type Amount struct {
	decimal.Decimal
}

func New(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(Scale)}
}

// Parse accepts a numeric string such as "50", "50.5" or " 1200.00 ".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return New(d), nil
}

func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the canonical form: rounded to Scale, no trailing zeros.
func (a Amount) String() string {
	return a.Decimal.Round(Scale).String()
}

func (a Amount) IsPositive() bool {
	return a.Decimal.IsPositive()
}

// Storable reports whether a fits below Limit.
func (a Amount) Storable() bool {
	return a.Decimal.Round(Scale).LessThan(Limit.Decimal)
}

// MinorUnits returns the amount in the currency's minor unit (cents, satang).
func (a Amount) MinorUnits() int64 {
	return a.Decimal.Shift(Scale).Round(0).IntPart()
}

func (a Amount) Add(b Amount) Amount {
	return New(a.Decimal.Add(b.Decimal))
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON leaves a unchanged for null, like the standard decoder does
// for other non-pointer values.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
