package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	POPending  POStatus = "Pending"
	POApproved POStatus = "Approved"
	PORejected POStatus = "Rejected"

	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentOverdue PaymentStatus = "Overdue"
)

const dateLayout = "2006-01-02"

type (
	POStatus      string
	PaymentStatus string

	// Date is a calendar date in UTC. A value that could not be parsed keeps
	// its original text and reports !Valid().
	Date struct {
		time.Time
		raw string
	}

	// ActivityRecord is one logged unit of field work.
	ActivityRecord struct {
		ID                int64         `json:"id"`
		EndUser           string        `json:"endUser"`
		CustomerName      string        `json:"customerName"`
		VendorName        string        `json:"vendorName"`
		WorkLocation      string        `json:"workLocation"`
		Personnel         string        `json:"personnel"`
		Activity          string        `json:"activity"`
		ActivityDate      Date          `json:"activityDate"`
		ActivityCompleted bool          `json:"activityCompleted"`
		POStatus          POStatus      `json:"poStatus"`
		Invoiced          bool          `json:"invoiced"`
		InvoiceNumber     string        `json:"invoiceNumber,omitempty"`
		PaymentStatus     PaymentStatus `json:"paymentStatus"`
		ReportsPending    bool          `json:"reportsPending"`
		Charges           Charges       `json:"charges"`
	}
)

var (
	ErrInvalidDate          = errors.New("invalid activity date")
	ErrInvalidCharges       = errors.New("invalid charges")
	ErrInvalidPOStatus      = errors.New("invalid PO status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrEmptyPersonnel       = errors.New("empty personnel")
	ErrEmptyActivity        = errors.New("empty activity")
	ErrEmptyCustomer        = errors.New("empty customer name")
	ErrEmptyLocation        = errors.New("empty work location")
	ErrInvoiceNumber        = errors.New("invoice number requires invoiced")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD" or an RFC 3339 timestamp. Timestamps are
// reduced to their UTC calendar date. Years outside 1900-2999 are rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return Date{}, ErrInvalidDate
		}
		t = t.UTC()
	}
	if t.Year() < 1900 || t.Year() >= 3000 {
		return Date{}, ErrInvalidDate
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

// LenientDate parses s like ParseDate but never fails: an unparseable value
// is kept as text on an invalid Date.
func LenientDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{raw: strings.TrimSpace(s)}
	}
	return d
}

// DateOf returns the UTC calendar date containing t.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Valid reports whether the date holds a parsed calendar date.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// Raw returns the unparsed text of an invalid date.
func (d Date) Raw() string {
	return d.raw
}

// String returns "YYYY-MM-DD", or the original text of an invalid date.
func (d Date) String() string {
	if d.Valid() {
		return d.Format(dateLayout)
	}
	return d.raw
}

// MarshalJSON encodes a valid date as "YYYY-MM-DD", an invalid one as its
// original text, and a missing one as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid() && d.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails on content: malformed dates are kept as text.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = LenientDate(s)
		return nil
	}
	*d = Date{raw: string(data)}
	return nil
}

// ParsePOStatus matches s case-insensitively against the PO statuses.
func ParsePOStatus(s string) (POStatus, bool) {
	for _, v := range []POStatus{POPending, POApproved, PORejected} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

// ParsePaymentStatus matches s case-insensitively against the payment statuses.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	for _, v := range []PaymentStatus{PaymentPending, PaymentPaid, PaymentOverdue} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

func (s POStatus) Valid() bool {
	_, ok := ParsePOStatus(string(s))
	return ok && string(s) == strings.TrimSpace(string(s))
}

func (s PaymentStatus) Valid() bool {
	_, ok := ParsePaymentStatus(string(s))
	return ok && string(s) == strings.TrimSpace(string(s))
}

// Normalize trims text fields and canonicalizes the enum spelling. It
// returns a copy; the receiver is not modified.
func (r ActivityRecord) Normalize() ActivityRecord {
	r.EndUser = strings.TrimSpace(r.EndUser)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.VendorName = strings.TrimSpace(r.VendorName)
	r.WorkLocation = strings.TrimSpace(r.WorkLocation)
	r.Personnel = strings.TrimSpace(r.Personnel)
	r.Activity = strings.TrimSpace(r.Activity)
	r.InvoiceNumber = strings.TrimSpace(r.InvoiceNumber)
	if v, ok := ParsePOStatus(string(r.POStatus)); ok {
		r.POStatus = v
	}
	if v, ok := ParsePaymentStatus(string(r.PaymentStatus)); ok {
		r.PaymentStatus = v
	}
	r.Charges = Charges(strings.TrimSpace(string(r.Charges)))
	return r
}

// Validate checks a record before it is written. Records read back from a
// store are never validated; the aggregation functions tolerate bad data.
func (r ActivityRecord) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return ErrEmptyCustomer
	}
	if strings.TrimSpace(r.WorkLocation) == "" {
		return ErrEmptyLocation
	}
	if strings.TrimSpace(r.Personnel) == "" {
		return ErrEmptyPersonnel
	}
	if strings.TrimSpace(r.Activity) == "" {
		return ErrEmptyActivity
	}
	if len(r.Activity) > 500 {
		return errors.New("activity too long (max 500 characters)")
	}
	if !r.ActivityDate.Valid() {
		return ErrInvalidDate
	}
	if !r.POStatus.Valid() {
		return ErrInvalidPOStatus
	}
	if !r.PaymentStatus.Valid() {
		return ErrInvalidPaymentStatus
	}
	if r.InvoiceNumber != "" && !r.Invoiced {
		return ErrInvoiceNumber
	}
	if _, err := r.Charges.Amount(); err != nil {
		return err
	}
	return nil
}
