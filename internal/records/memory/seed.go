package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"activitylog/internal/core"
)

// seedFile is the YAML layout of a seed file:
//
//	activities:
//	  - id: 1
//	    customer_name: Acme
//	    activity_date: 2024-01-15
//	    charges: 250.50
type seedFile struct {
	Activities []seedActivity `yaml:"activities"`
}

// seedActivity keeps dates and charges as text so malformed seed values
// reach the store the same way malformed API data would.
type seedActivity struct {
	ID                int64  `yaml:"id"`
	EndUser           string `yaml:"end_user"`
	CustomerName      string `yaml:"customer_name"`
	VendorName        string `yaml:"vendor_name"`
	WorkLocation      string `yaml:"work_location"`
	Personnel         string `yaml:"personnel"`
	Activity          string `yaml:"activity"`
	ActivityDate      string `yaml:"activity_date"`
	ActivityCompleted bool   `yaml:"activity_completed"`
	POStatus          string `yaml:"po_status"`
	Invoiced          bool   `yaml:"invoiced"`
	InvoiceNumber     string `yaml:"invoice_number"`
	PaymentStatus     string `yaml:"payment_status"`
	ReportsPending    bool   `yaml:"reports_pending"`
	Charges           string `yaml:"charges"`
}

func (a seedActivity) record() core.ActivityRecord {
	return core.ActivityRecord{
		ID:                a.ID,
		EndUser:           a.EndUser,
		CustomerName:      a.CustomerName,
		VendorName:        a.VendorName,
		WorkLocation:      a.WorkLocation,
		Personnel:         a.Personnel,
		Activity:          a.Activity,
		ActivityDate:      core.LenientDate(a.ActivityDate),
		ActivityCompleted: a.ActivityCompleted,
		POStatus:          core.POStatus(a.POStatus),
		Invoiced:          a.Invoiced,
		InvoiceNumber:     a.InvoiceNumber,
		PaymentStatus:     core.PaymentStatus(a.PaymentStatus),
		ReportsPending:    a.ReportsPending,
		Charges:           core.Charges(a.Charges),
	}.Normalize()
}

// ParseSeed decodes YAML seed data.
func ParseSeed(data []byte) ([]core.ActivityRecord, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	out := make([]core.ActivityRecord, 0, len(f.Activities))
	for _, a := range f.Activities {
		out = append(out, a.record())
	}
	return out, nil
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) ([]core.ActivityRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// NewFromFile returns a store seeded from a YAML file.
func NewFromFile(path string) (*Store, error) {
	rs, err := LoadSeed(path)
	if err != nil {
		return nil, err
	}
	return New(rs...), nil
}
