package memory

import (
	"fmt"
	"math/rand"
	"time"

	"activitylog/internal/core"
)

var (
	genCustomers = []string{"Northwind Energy", "Acme Industrial", "Blue Harbor Utilities", "Summit Refining", "Greenfield Water"}
	genEndUsers  = []string{"Plant 4", "Main Campus", "Pump Station B", "Tank Farm", "Substation 12"}
	genVendors   = []string{"Precision Tools", "Delta Instruments", "Ironclad Services", "Apex Controls"}
	genLocations = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Denver"}
	genPersonnel = []string{"John Doe", "Jane Smith", "Carlos Rivera", "Priya Patel", "Mei Chen"}
	genActivity  = []string{"Valve calibration", "Safety inspection", "Pump overhaul", "Sensor replacement", "Pressure test", "Site survey"}
)

// Generate builds n plausible records dated within the year before now. The
// same seed always yields the same records.
func Generate(n int, seed int64, now time.Time) []core.ActivityRecord {
	rng := rand.New(rand.NewSource(seed))
	today := core.DateOf(now)
	out := make([]core.ActivityRecord, 0, n)
	for i := 0; i < n; i++ {
		completed := rng.Intn(100) < 65
		invoiced := completed && rng.Intn(100) < 70

		payment := core.PaymentPending
		if invoiced {
			switch roll := rng.Intn(100); {
			case roll < 60:
				payment = core.PaymentPaid
			case roll < 80:
				payment = core.PaymentOverdue
			}
		}

		po := core.POApproved
		switch roll := rng.Intn(100); {
		case roll < 15:
			po = core.POPending
		case roll < 20 && !completed:
			po = core.PORejected
		}

		r := core.ActivityRecord{
			ID:                int64(i + 1),
			EndUser:           pick(rng, genEndUsers),
			CustomerName:      pick(rng, genCustomers),
			VendorName:        pick(rng, genVendors),
			WorkLocation:      pick(rng, genLocations),
			Personnel:         pick(rng, genPersonnel),
			Activity:          pick(rng, genActivity),
			ActivityDate:      core.DateOf(today.AddDate(0, 0, -rng.Intn(365))),
			ActivityCompleted: completed,
			POStatus:          po,
			Invoiced:          invoiced,
			PaymentStatus:     payment,
			ReportsPending:    completed && rng.Intn(100) < 25,
			Charges:           core.Charges(fmt.Sprintf("%d.%02d", 150+rng.Intn(4850), rng.Intn(100))),
		}
		if invoiced {
			r.InvoiceNumber = fmt.Sprintf("INV-%05d", 10000+i)
		}
		out = append(out, r)
	}
	return out
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}
