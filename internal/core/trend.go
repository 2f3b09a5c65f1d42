// This file implements time bucketing for trend series. Each period
// (day, week, month, year) has its own Bucketer that knows how to align a
// date to its bucket, step to the next bucket and label it.

package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// maxRangeBuckets bounds every zero-filled series. ComputeTrendRange rejects a
// wider window. ComputeTrend falls back to populated buckets only.
const maxRangeBuckets = 5000

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidRange  = errors.New("invalid date range")
)

// ParsePeriod matches s case-insensitively against the known periods.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := bucketers[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

func (p Period) IsValid() bool {
	_, ok := bucketers[p]
	return ok
}

// Bucketer is the strategy interface for one trend granularity.
type Bucketer interface {
	// Start returns the first day of the bucket containing t.
	Start(t time.Time) time.Time
	// Next returns the start of the bucket following the one at start.
	Next(start time.Time) time.Time
	// Label identifies the bucket starting at start.
	Label(start time.Time) string
}

// DayBucketer buckets by calendar day.
type DayBucketer struct{}

func (DayBucketer) Start(t time.Time) time.Time { return truncateDay(t) }
func (DayBucketer) Next(start time.Time) time.Time { return start.AddDate(0, 0, 1) }
func (DayBucketer) Label(start time.Time) string { return start.Format(dateLayout) }

// WeekBucketer buckets by ISO week, starting on Monday.
type WeekBucketer struct{}

func (WeekBucketer) Start(t time.Time) time.Time {
	t = truncateDay(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func (WeekBucketer) Next(start time.Time) time.Time { return start.AddDate(0, 0, 7) }

// Label returns the ISO year and week, e.g. "2024-W01". The ISO year can
// differ from the calendar year around January 1.
func (WeekBucketer) Label(start time.Time) string {
	year, week := start.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthBucketer buckets by calendar month.
type MonthBucketer struct{}

func (MonthBucketer) Start(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (MonthBucketer) Next(start time.Time) time.Time { return start.AddDate(0, 1, 0) }
func (MonthBucketer) Label(start time.Time) string { return start.Format("2006-01") }

// YearBucketer buckets by calendar year.
type YearBucketer struct{}

func (YearBucketer) Start(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

func (YearBucketer) Next(start time.Time) time.Time { return start.AddDate(1, 0, 0) }
func (YearBucketer) Label(start time.Time) string { return start.Format("2006") }

var bucketers = map[Period]Bucketer{
	PeriodDay:   DayBucketer{},
	PeriodWeek:  WeekBucketer{},
	PeriodMonth: MonthBucketer{},
	PeriodYear:  YearBucketer{},
}

// BucketerFor returns the bucketer for a period.
func BucketerFor(p Period) (Bucketer, error) {
	b, ok := bucketers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return b, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Label  string `json:"date"`
	Start  Date   `json:"start"`
	Count  int    `json:"count"`
	Amount Amount `json:"amount"`
}

// Trend is an ascending series of buckets.
type Trend struct {
	Period Period       `json:"period"`
	Points []TrendPoint `json:"points"`
	// Skipped counts records without a usable activity date.
	Skipped int `json:"skipped"`
	// InvalidCharges counts bucketed records whose charges did not parse or
	// overflowed the bucket sum.
	InvalidCharges int `json:"invalidCharges"`
	// Sparse is set when the records span more than maxRangeBuckets buckets
	// and empty buckets were left out.
	Sparse bool `json:"sparse,omitempty"`
}

// Total returns the number of bucketed records.
func (t Trend) Total() int {
	n := 0
	for _, p := range t.Points {
		n += p.Count
	}
	return n
}

type bucketSet struct {
	bucketer       Bucketer
	points         map[int64]*TrendPoint
	first, last    time.Time
	skipped        int
	invalidCharges int
}

func newBucketSet(b Bucketer) *bucketSet {
	return &bucketSet{bucketer: b, points: make(map[int64]*TrendPoint)}
}

func (s *bucketSet) add(r ActivityRecord) {
	start := s.bucketer.Start(r.ActivityDate.Time)
	key := start.Unix()
	p, ok := s.points[key]
	if !ok {
		p = &TrendPoint{Label: s.bucketer.Label(start), Start: DateOf(start)}
		s.points[key] = p
		if s.first.IsZero() || start.Before(s.first) {
			s.first = start
		}
		if s.last.IsZero() || start.After(s.last) {
			s.last = start
		}
	}
	p.Count++
	amount, err := r.Charges.Amount()
	if err != nil {
		s.invalidCharges++
		return
	}
	if p.Amount, err = p.Amount.Add(amount); err != nil {
		s.invalidCharges++
	}
}

// spanExceeds reports whether [first, last] holds more than limit buckets.
func spanExceeds(b Bucketer, first, last time.Time, limit int) bool {
	n := 0
	for start := first; !start.After(last); start = b.Next(start) {
		n++
		if n > limit {
			return true
		}
	}
	return false
}

// populated returns the buckets holding at least one record, ascending.
func (s *bucketSet) populated() []TrendPoint {
	points := make([]TrendPoint, 0, len(s.points))
	for _, p := range s.points {
		points = append(points, *p)
	}
	slices.SortFunc(points, func(a, b TrendPoint) int { return a.Start.Compare(b.Start.Time) })
	return points
}

// series walks every bucket from first to last inclusive, zero-filling gaps.
func (s *bucketSet) series(first, last time.Time) []TrendPoint {
	points := make([]TrendPoint, 0, len(s.points))
	if first.IsZero() {
		return points
	}
	for start := first; !start.After(last); start = s.bucketer.Next(start) {
		if p, ok := s.points[start.Unix()]; ok {
			points = append(points, *p)
			continue
		}
		points = append(points, TrendPoint{Label: s.bucketer.Label(start), Start: DateOf(start)})
	}
	return points
}

// ComputeTrend buckets records by activity date. Buckets between the earliest
// and the latest populated bucket are zero-filled unless that would take more
// than maxRangeBuckets buckets; the trend is then Sparse. Records without a
// valid date are counted in Skipped.
func ComputeTrend(records []ActivityRecord, period Period) (Trend, error) {
	b, err := BucketerFor(period)
	if err != nil {
		return Trend{}, err
	}
	set := newBucketSet(b)
	for _, r := range records {
		if !r.ActivityDate.Valid() {
			set.skipped++
			continue
		}
		set.add(r)
	}
	trend := Trend{
		Period:         period,
		Skipped:        set.skipped,
		InvalidCharges: set.invalidCharges,
	}
	if !set.first.IsZero() && spanExceeds(b, set.first, set.last, maxRangeBuckets) {
		trend.Points = set.populated()
		trend.Sparse = true
		return trend, nil
	}
	trend.Points = set.series(set.first, set.last)
	return trend, nil
}

// ComputeTrendRange is ComputeTrend over the window [from, to]. Every bucket
// touching the window is present. Records dated outside it are ignored.
func ComputeTrendRange(records []ActivityRecord, period Period, from, to Date) (Trend, error) {
	b, err := BucketerFor(period)
	if err != nil {
		return Trend{}, err
	}
	if !from.Valid() || !to.Valid() || to.Before(from.Time) {
		return Trend{}, fmt.Errorf("%w: %s to %s", ErrInvalidRange, from, to)
	}
	first, last := b.Start(from.Time), b.Start(to.Time)
	if spanExceeds(b, first, last, maxRangeBuckets) {
		return Trend{}, fmt.Errorf("%w: more than %d %s buckets", ErrInvalidRange, maxRangeBuckets, period)
	}

	set := newBucketSet(b)
	for _, r := range records {
		if !r.ActivityDate.Valid() {
			set.skipped++
			continue
		}
		if r.ActivityDate.Before(from.Time) || r.ActivityDate.After(to.Time) {
			continue
		}
		set.add(r)
	}
	return Trend{
		Period:         period,
		Points:         set.series(first, last),
		Skipped:        set.skipped,
		InvalidCharges: set.invalidCharges,
	}, nil
}
