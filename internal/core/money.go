// Package core provides money parsing and handling utilities.
//
// This file contains the decimal Amount type used for activity charges and
// the Charges type that carries the value exactly as it was received.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext is shared by all Amount arithmetic. Context methods only read
// their receiver, so concurrent use is safe.
var decimalContext = apd.BaseContext.WithPrecision(amountPrecision)

const (
	amountPrecision = 34
	// maxAmountScale bounds the fractional digits of a parsed amount.
	// Together with the precision it keeps a plain-notation amount to 34
	// digits.
	maxAmountScale = 12
)

// ErrInexactSum means a sum needed more digits than Amount carries.
var ErrInexactSum = errors.New("charges sum exceeds decimal precision")

// Amount is a non-negative decimal money value.
type Amount struct {
	value apd.Decimal
}

// ParseAmount converts a decimal string to an Amount.
//
// Surrounding whitespace and a leading "$" are ignored. Exponent notation is
// accepted ("1e2") as long as the value written out in plain notation fits in
// 34 digits with at most 12 after the point. Negative values, NaN and
// infinities are rejected.
//
// Examples:
//
//	ParseAmount("250.50") -> 250.50, nil
//	ParseAmount(" $100 ") -> 100, nil
//	ParseAmount("-1")     -> ErrInvalidCharges
func ParseAmount(s string) (Amount, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty value", ErrInvalidCharges)
	}
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidCharges, raw)
	}
	if d.Form != apd.Finite {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidCharges, raw)
	}
	if d.Negative {
		if !d.IsZero() {
			return Amount{}, fmt.Errorf("%w: negative value %q", ErrInvalidCharges, raw)
		}
		d.Negative = false
	}
	if !fitsPlain(&d) {
		return Amount{}, fmt.Errorf("%w: %q is out of range", ErrInvalidCharges, raw)
	}
	return Amount{value: d}, nil
}

// fitsPlain reports whether d written without an exponent has no more than
// amountPrecision digits and maxAmountScale of them after the point.
func fitsPlain(d *apd.Decimal) bool {
	digits := d.NumDigits()
	exp := int64(d.Exponent)
	if exp < -maxAmountScale {
		return false
	}
	if exp > 0 {
		return digits+exp <= amountPrecision
	}
	// The integer part has digits+exp digits, the fraction -exp.
	return max(digits, -exp) <= amountPrecision
}

// AmountFromInt returns the Amount for a whole number of currency units.
func AmountFromInt(i int64) Amount {
	var d apd.Decimal
	d.SetInt64(i)
	return Amount{value: d}
}

// Add returns the sum of a and other. A sum that would lose digits to
// rounding fails with ErrInexactSum and the caller keeps a.
func (a Amount) Add(other Amount) (Amount, error) {
	var result apd.Decimal
	cond, err := decimalContext.Add(&result, &a.value, &other.value)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInexactSum, err)
	}
	if cond.Inexact() {
		return a, ErrInexactSum
	}
	return Amount{value: result}, nil
}

// Cmp compares a and other and returns -1, 0 or +1.
func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(&other.value)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// Float64 returns the amount as a float64 for display purposes.
// Use Add for arithmetic to avoid floating-point drift.
func (a Amount) Float64() float64 {
	f, err := a.value.Float64()
	if err != nil {
		return 0
	}
	return f
}

// String returns the amount in plain decimal notation, keeping its scale.
func (a Amount) String() string {
	return a.value.Text('f')
}

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a JSON string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	c := Charges("")
	if err := c.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := c.Amount()
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Charges is a charges value as it was received: the text of a JSON number or
// the content of a JSON string. It is parsed only when an Amount is needed, so
// a malformed value travels with its record instead of failing the decode.
type Charges string

// Amount parses the charges value.
func (c Charges) Amount() (Amount, error) {
	return ParseAmount(string(c))
}

// Valid reports whether the charges value parses as a non-negative amount.
func (c Charges) Valid() bool {
	_, err := c.Amount()
	return err == nil
}

// ChargesOf returns the canonical Charges for an amount.
func ChargesOf(a Amount) Charges {
	return Charges(a.String())
}

// UnmarshalJSON keeps numbers verbatim and unquotes strings. Any other JSON
// value is kept as its raw text and will fail to parse later.
func (c *Charges) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Charges(s)
	default:
		*c = Charges(data)
	}
	return nil
}

// MarshalJSON emits a JSON number when the value parses and a JSON string
// with the original text otherwise.
func (c Charges) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	if a, err := c.Amount(); err == nil {
		return a.MarshalJSON()
	}
	return json.Marshal(string(c))
}
