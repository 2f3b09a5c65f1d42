package core

import "strings"

// Anomalies lists the soft invariants a record breaks. These are reported,
// never enforced on stored data.
func Anomalies(r ActivityRecord) []string {
	var out []string
	hasNumber := strings.TrimSpace(r.InvoiceNumber) != ""
	if hasNumber && !r.Invoiced {
		out = append(out, "invoice number set but not invoiced")
	}
	if r.Invoiced && !hasNumber {
		out = append(out, "invoiced without invoice number")
	}
	if status, _ := ParsePaymentStatus(string(r.PaymentStatus)); status == PaymentPaid && !r.ActivityCompleted {
		out = append(out, "paid but not completed")
	}
	if status, _ := ParsePOStatus(string(r.POStatus)); status == PORejected && r.ActivityCompleted {
		out = append(out, "completed with rejected PO")
	}
	return out
}
