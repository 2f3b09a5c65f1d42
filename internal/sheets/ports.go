package sheets

import (
	"context"
	"time"

	"activitylog/internal/core"
)

// Ports for outbound adapters.
type (
	// Exporter mirrors activity records into an external report.
	Exporter interface {
		// UpsertActivity writes r over its existing row, or appends it.
		UpsertActivity(ctx context.Context, r core.ActivityRecord) error
		// RemoveActivity clears the row of id. A missing row is not an error.
		RemoveActivity(ctx context.Context, id int64) error
		// ReplaceActivities rewrites every row from rs.
		ReplaceActivities(ctx context.Context, rs []core.ActivityRecord) error
		WriteSummary(ctx context.Context, s Summary) error
	}

	// Summary is the dashboard overview written next to the activity rows.
	Summary struct {
		GeneratedAt time.Time
		Stats       core.Stats
		Personnel   []core.PersonnelMetric
		Locations   []core.LocationMetric
		// LocationSkipped counts records left out of location revenue.
		LocationSkipped int
	}
)

// BuildSummary aggregates rs the same way the dashboard endpoints do, over
// every record rather than a recent window.
func BuildSummary(rs []core.ActivityRecord, now time.Time) Summary {
	b := core.GroupByLocation(rs)
	return Summary{
		GeneratedAt:     now.UTC(),
		Stats:           core.ComputeStats(rs),
		Personnel:       core.SortPersonnelByCount(core.GroupByPersonnel(rs)),
		Locations:       core.SortLocationsByCount(b.Groups),
		LocationSkipped: b.Skipped,
	}
}
