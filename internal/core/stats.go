package core

// Stats is the scalar summary of a record collection.
type Stats struct {
	TotalActivities     int    `json:"totalActivities"`
	CompletedActivities int    `json:"completedActivities"`
	PendingPayments     int    `json:"pendingPayments"`
	OverduePayments     int    `json:"overduePayments"`
	TotalCharges        Amount `json:"totalCharges"`
	PendingReports      int    `json:"pendingReports"`
	// Skipped counts records whose charges did not parse or could not be
	// added exactly. They are still counted everywhere else.
	Skipped int `json:"skipped"`
}

// ComputeStats summarizes records. Empty input yields zero stats.
func ComputeStats(records []ActivityRecord) Stats {
	var s Stats
	s.TotalActivities = len(records)
	for _, r := range records {
		if r.ActivityCompleted {
			s.CompletedActivities++
		}
		status, _ := ParsePaymentStatus(string(r.PaymentStatus))
		switch status {
		case PaymentPending:
			s.PendingPayments++
		case PaymentOverdue:
			s.OverduePayments++
		}
		if r.ReportsPending {
			s.PendingReports++
		}
		amount, err := r.Charges.Amount()
		if err != nil {
			s.Skipped++
			continue
		}
		if s.TotalCharges, err = s.TotalCharges.Add(amount); err != nil {
			s.Skipped++
		}
	}
	return s
}
