package core

// ActivityPatch is a partial update. Nil fields are left unchanged.
type ActivityPatch struct {
	EndUser           *string        `json:"endUser,omitempty"`
	CustomerName      *string        `json:"customerName,omitempty"`
	VendorName        *string        `json:"vendorName,omitempty"`
	WorkLocation      *string        `json:"workLocation,omitempty"`
	Personnel         *string        `json:"personnel,omitempty"`
	Activity          *string        `json:"activity,omitempty"`
	ActivityDate      *Date          `json:"activityDate,omitempty"`
	ActivityCompleted *bool          `json:"activityCompleted,omitempty"`
	POStatus          *POStatus      `json:"poStatus,omitempty"`
	Invoiced          *bool          `json:"invoiced,omitempty"`
	InvoiceNumber     *string        `json:"invoiceNumber,omitempty"`
	PaymentStatus     *PaymentStatus `json:"paymentStatus,omitempty"`
	ReportsPending    *bool          `json:"reportsPending,omitempty"`
	Charges           *Charges       `json:"charges,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ActivityPatch) IsEmpty() bool {
	return p == ActivityPatch{}
}

// Apply returns a copy of r with the patch fields set. The ID is never changed.
func (p ActivityPatch) Apply(r ActivityRecord) ActivityRecord {
	setString(&r.EndUser, p.EndUser)
	setString(&r.CustomerName, p.CustomerName)
	setString(&r.VendorName, p.VendorName)
	setString(&r.WorkLocation, p.WorkLocation)
	setString(&r.Personnel, p.Personnel)
	setString(&r.Activity, p.Activity)
	setString(&r.InvoiceNumber, p.InvoiceNumber)
	if p.ActivityDate != nil {
		r.ActivityDate = *p.ActivityDate
	}
	if p.ActivityCompleted != nil {
		r.ActivityCompleted = *p.ActivityCompleted
	}
	if p.POStatus != nil {
		r.POStatus = *p.POStatus
	}
	if p.Invoiced != nil {
		r.Invoiced = *p.Invoiced
	}
	if p.PaymentStatus != nil {
		r.PaymentStatus = *p.PaymentStatus
	}
	if p.ReportsPending != nil {
		r.ReportsPending = *p.ReportsPending
	}
	if p.Charges != nil {
		r.Charges = *p.Charges
	}
	return r
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// PatchFrom returns a patch that sets every field of r.
func PatchFrom(r ActivityRecord) ActivityPatch {
	return ActivityPatch{
		EndUser:           &r.EndUser,
		CustomerName:      &r.CustomerName,
		VendorName:        &r.VendorName,
		WorkLocation:      &r.WorkLocation,
		Personnel:         &r.Personnel,
		Activity:          &r.Activity,
		ActivityDate:      &r.ActivityDate,
		ActivityCompleted: &r.ActivityCompleted,
		POStatus:          &r.POStatus,
		Invoiced:          &r.Invoiced,
		InvoiceNumber:     &r.InvoiceNumber,
		PaymentStatus:     &r.PaymentStatus,
		ReportsPending:    &r.ReportsPending,
		Charges:           &r.Charges,
	}
}
