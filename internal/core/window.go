package core

import (
	"fmt"
	"time"
)

// RecentWindow returns the inclusive reporting window for a dashboard period
// ending on the day of now:
//
//	day   -> today
//	week  -> last 7 days
//	month -> last 30 days
//	year  -> since January 1
func RecentWindow(p Period, now time.Time) (from, to Date, err error) {
	to = DateOf(now)
	switch p {
	case PeriodDay:
		from = to
	case PeriodWeek:
		from = DateOf(to.AddDate(0, 0, -6))
	case PeriodMonth:
		from = DateOf(to.AddDate(0, 0, -29))
	case PeriodYear:
		from = NewDate(to.Year(), 1, 1)
	default:
		return Date{}, Date{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return from, to, nil
}

// FilterWindow keeps the records dated within [from, to]. Records without a
// valid date cannot be placed and are counted in invalid.
func FilterWindow(records []ActivityRecord, from, to Date) (kept []ActivityRecord, invalid int) {
	kept = make([]ActivityRecord, 0, len(records))
	for _, r := range records {
		if !r.ActivityDate.Valid() {
			invalid++
			continue
		}
		if r.ActivityDate.Before(from.Time) || r.ActivityDate.After(to.Time) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, invalid
}
