package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activitylog/internal/amqp"
	"activitylog/internal/cache"
	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/observability"
	"activitylog/internal/records"
)

var ErrEmptyPatch = errors.New("no fields to update")

// ValidationError wraps a rejected create or update.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Dashboard periods used when the caller does not pick one.
const (
	DefaultTrendPeriod     = core.PeriodWeek
	DefaultBreakdownPeriod = core.PeriodMonth
)

const allRecordsKey = "all"

type (
	// StatsReport is ComputeStats over an optional reporting window.
	StatsReport struct {
		core.Stats
		Period core.Period `json:"period,omitempty"`
		From   *core.Date  `json:"from,omitempty"`
		To     *core.Date  `json:"to,omitempty"`
		// Undated counts records left out of a window for lack of a date.
		Undated int `json:"undated"`
	}

	PersonnelReport struct {
		Period  core.Period            `json:"period"`
		Groups  []core.PersonnelMetric `json:"groups"`
		Undated int                    `json:"undated"`
	}

	LocationReport struct {
		Period core.Period           `json:"period"`
		Groups []core.LocationMetric `json:"groups"`
		// Skipped counts records whose charges did not parse.
		Skipped int `json:"skipped"`
		Undated int `json:"undated"`
	}
)

// ActivityService validates writes against the record store, announces
// changes over AMQP and serves the dashboard aggregates from a shared
// snapshot of the records.
type ActivityService struct {
	store     records.Store
	publisher amqp.Publisher
	snapshots *cache.Loader[[]core.ActivityRecord]
	logger    *log.Logger
	now       func() time.Time
}

// NewActivityService wires the service. publisher and snapshots may be nil:
// changes are then not announced and every read hits the store.
func NewActivityService(store records.Store, publisher amqp.Publisher, snapshots *cache.Loader[[]core.ActivityRecord], logger *log.Logger) *ActivityService {
	if logger == nil {
		logger = log.Nop()
	}
	return &ActivityService{
		store:     store,
		publisher: publisher,
		snapshots: snapshots,
		logger:    logger.WithComponent(log.ComponentActivity),
		now:       time.Now,
	}
}

func (s *ActivityService) List(ctx context.Context, f records.Filter) ([]core.ActivityRecord, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	key := "list:" + f.Status + ":" + f.Personnel
	if f.IsZero() {
		key = allRecordsKey
	}
	return s.load(ctx, key, func(ctx context.Context) ([]core.ActivityRecord, error) {
		return s.store.ListActivities(ctx, f)
	})
}

func (s *ActivityService) Get(ctx context.Context, id int64) (core.ActivityRecord, error) {
	return s.store.GetActivity(ctx, id)
}

func (s *ActivityService) Personnel(ctx context.Context) ([]string, error) {
	return s.store.ListPersonnel(ctx)
}

// Create validates r, saves it and publishes a created message.
func (s *ActivityService) Create(ctx context.Context, r core.ActivityRecord) (core.ActivityRecord, error) {
	r = r.Normalize()
	r.ID = 0
	if err := r.Validate(); err != nil {
		return core.ActivityRecord{}, &ValidationError{Err: err}
	}

	created, err := s.store.CreateActivity(ctx, r)
	if err != nil {
		return core.ActivityRecord{}, fmt.Errorf("save activity: %w", err)
	}

	s.afterWrite(ctx, created, amqp.ActionCreated)
	return created, nil
}

// Update merges p into the stored record, validates the result and saves it.
func (s *ActivityService) Update(ctx context.Context, id int64, p core.ActivityPatch) (core.ActivityRecord, error) {
	if p.IsEmpty() {
		return core.ActivityRecord{}, &ValidationError{Err: ErrEmptyPatch}
	}

	current, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return core.ActivityRecord{}, err
	}
	merged := p.Apply(current).Normalize()
	if err := merged.Validate(); err != nil {
		return core.ActivityRecord{}, &ValidationError{Err: err}
	}

	updated, err := s.store.UpdateActivity(ctx, id, core.PatchFrom(merged))
	if err != nil {
		return core.ActivityRecord{}, fmt.Errorf("update activity: %w", err)
	}

	s.afterWrite(ctx, updated, amqp.ActionUpdated)
	return updated, nil
}

func (s *ActivityService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteActivity(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, core.ActivityRecord{ID: id}, amqp.ActionDeleted)
	return nil
}

func (s *ActivityService) afterWrite(ctx context.Context, r core.ActivityRecord, action amqp.Action) {
	if s.snapshots != nil {
		s.snapshots.Invalidate()
	}
	observability.RecordActivityWrite(string(action))

	if action != amqp.ActionDeleted {
		if found := core.Anomalies(r); len(found) > 0 {
			observability.RecordAnomalies(len(found))
			s.logger.WarnContext(ctx, "Activity saved with inconsistencies",
				log.FieldActivityID, r.ID,
				log.FieldAnomalies, strings.Join(found, "; "))
		}
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping change message", log.FieldActivityID, r.ID)
		return
	}
	// The write already succeeded; a failed announcement is only logged.
	msg := amqp.NewActivityChangedMessage(r.ID, action, s.now())
	if err := s.publisher.PublishActivityChanged(context.WithoutCancel(ctx), msg); err != nil {
		observability.RecordPublishError()
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			log.FieldActivityID, r.ID,
			"action", action,
			log.FieldError, err.Error())
	}
}

// Snapshot returns every record, shared with concurrent callers and cached
// until the next write.
func (s *ActivityService) Snapshot(ctx context.Context) ([]core.ActivityRecord, error) {
	return s.load(ctx, allRecordsKey, func(ctx context.Context) ([]core.ActivityRecord, error) {
		return s.store.ListActivities(ctx, records.Filter{})
	})
}

func (s *ActivityService) load(ctx context.Context, key string, fetch func(context.Context) ([]core.ActivityRecord, error)) ([]core.ActivityRecord, error) {
	if s.snapshots == nil {
		return fetch(ctx)
	}
	rs, hit, err := s.snapshots.Get(ctx, key, fetch)
	observability.RecordCacheLookup(hit)
	return rs, err
}

// parseOptionalPeriod returns def for an empty value.
func parseOptionalPeriod(raw string, def core.Period) (core.Period, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return core.ParsePeriod(raw)
}

func (s *ActivityService) window(ctx context.Context, p core.Period) ([]core.ActivityRecord, core.Date, core.Date, int, error) {
	from, to, err := core.RecentWindow(p, s.now())
	if err != nil {
		return nil, core.Date{}, core.Date{}, 0, err
	}
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, core.Date{}, core.Date{}, 0, err
	}
	kept, undated := core.FilterWindow(all, from, to)
	return kept, from, to, undated, nil
}

// Stats summarizes every record, or the records of the recent window for
// period when one is given.
func (s *ActivityService) Stats(ctx context.Context, period string) (StatsReport, error) {
	if strings.TrimSpace(period) == "" {
		all, err := s.Snapshot(ctx)
		if err != nil {
			return StatsReport{}, err
		}
		st := core.ComputeStats(all)
		observability.RecordSkipped("stats", st.Skipped)
		return StatsReport{Stats: st}, nil
	}

	p, err := core.ParsePeriod(period)
	if err != nil {
		return StatsReport{}, err
	}
	kept, from, to, undated, err := s.window(ctx, p)
	if err != nil {
		return StatsReport{}, err
	}
	st := core.ComputeStats(kept)
	observability.RecordSkipped("stats", st.Skipped+undated)
	return StatsReport{Stats: st, Period: p, From: &from, To: &to, Undated: undated}, nil
}

// Trend buckets every record by period (week when empty). With from and to
// set, the series covers exactly that range.
func (s *ActivityService) Trend(ctx context.Context, period, from, to string) (core.Trend, error) {
	p, err := parseOptionalPeriod(period, DefaultTrendPeriod)
	if err != nil {
		return core.Trend{}, err
	}

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if (from == "") != (to == "") {
		return core.Trend{}, fmt.Errorf("%w: from and to must be given together", core.ErrInvalidRange)
	}

	all, err := s.Snapshot(ctx)
	if err != nil {
		return core.Trend{}, err
	}

	var trend core.Trend
	if from == "" {
		trend, err = core.ComputeTrend(all, p)
	} else {
		var fromDate, toDate core.Date
		fromDate, err = core.ParseDate(from)
		if err != nil {
			return core.Trend{}, fmt.Errorf("%w: from %q", core.ErrInvalidRange, from)
		}
		toDate, err = core.ParseDate(to)
		if err != nil {
			return core.Trend{}, fmt.Errorf("%w: to %q", core.ErrInvalidRange, to)
		}
		trend, err = core.ComputeTrendRange(all, p, fromDate, toDate)
	}
	if err != nil {
		return core.Trend{}, err
	}
	observability.RecordSkipped("trend", trend.Skipped+trend.InvalidCharges)
	return trend, nil
}

// ByPersonnel counts the records of the recent window (month when empty)
// per person, busiest first.
func (s *ActivityService) ByPersonnel(ctx context.Context, period string) (PersonnelReport, error) {
	p, err := parseOptionalPeriod(period, DefaultBreakdownPeriod)
	if err != nil {
		return PersonnelReport{}, err
	}
	kept, _, _, undated, err := s.window(ctx, p)
	if err != nil {
		return PersonnelReport{}, err
	}
	observability.RecordSkipped("by_personnel", undated)
	return PersonnelReport{
		Period:  p,
		Groups:  core.SortPersonnelByCount(core.GroupByPersonnel(kept)),
		Undated: undated,
	}, nil
}

// ByLocation counts and sums the records of the recent window (month when
// empty) per work location, busiest first.
func (s *ActivityService) ByLocation(ctx context.Context, period string) (LocationReport, error) {
	p, err := parseOptionalPeriod(period, DefaultBreakdownPeriod)
	if err != nil {
		return LocationReport{}, err
	}
	kept, _, _, undated, err := s.window(ctx, p)
	if err != nil {
		return LocationReport{}, err
	}
	b := core.GroupByLocation(kept)
	observability.RecordSkipped("by_location", b.Skipped+undated)
	return LocationReport{
		Period:  p,
		Groups:  core.SortLocationsByCount(b.Groups),
		Skipped: b.Skipped,
		Undated: undated,
	}, nil
}
