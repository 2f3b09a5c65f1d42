// Package memory keeps exported rows in process. The worker falls back to it
// when no spreadsheet is configured.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"activitylog/internal/core"
	ports "activitylog/internal/sheets"
)

type Exporter struct {
	mu       sync.Mutex
	rows     map[int64]core.ActivityRecord
	summary  *ports.Summary
	upserts  int
	removals int
	rewrites int
}

var _ ports.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[int64]core.ActivityRecord)}
}

func (e *Exporter) UpsertActivity(_ context.Context, r core.ActivityRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[r.ID] = r
	e.upserts++
	return nil
}

func (e *Exporter) RemoveActivity(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rows, id)
	e.removals++
	return nil
}

func (e *Exporter) ReplaceActivities(_ context.Context, rs []core.ActivityRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = make(map[int64]core.ActivityRecord, len(rs))
	for _, r := range rs {
		e.rows[r.ID] = r
	}
	e.rewrites++
	return nil
}

func (e *Exporter) WriteSummary(_ context.Context, s ports.Summary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summary = &s
	return nil
}

// Rows returns the exported records ordered by id.
func (e *Exporter) Rows() []core.ActivityRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.ActivityRecord, 0, len(e.rows))
	for _, r := range e.rows {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b core.ActivityRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Summary returns the last summary written, if any.
func (e *Exporter) Summary() (ports.Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return ports.Summary{}, false
	}
	return *e.summary, true
}

// Counts reports how many upserts, removals and full rewrites were applied.
func (e *Exporter) Counts() (upserts, removals, rewrites int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upserts, e.removals, e.rewrites
}
