// Package records defines the record store port shared by every backend:
// the in-memory store, the SQLite repository and the remote REST client.
package records

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"activitylog/internal/core"
)

const (
	StatusCompleted = "Completed"
	StatusPending   = "Pending"
)

var (
	ErrNotFound      = errors.New("activity not found")
	ErrInvalidFilter = errors.New("invalid filter")
)

// Filter narrows ListActivities. Empty fields match everything.
type Filter struct {
	// Status is Completed or Pending and matches activity_completed.
	Status string
	// Personnel matches exactly.
	Personnel string
}

// Normalize canonicalizes the status spelling and rejects unknown statuses.
func (f Filter) Normalize() (Filter, error) {
	f.Personnel = strings.TrimSpace(f.Personnel)
	status := strings.TrimSpace(f.Status)
	switch {
	case status == "" || strings.EqualFold(status, "all"):
		f.Status = ""
	case strings.EqualFold(status, StatusCompleted):
		f.Status = StatusCompleted
	case strings.EqualFold(status, StatusPending):
		f.Status = StatusPending
	default:
		return Filter{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	return f, nil
}

// Matches reports whether r passes a normalized filter.
func (f Filter) Matches(r core.ActivityRecord) bool {
	switch f.Status {
	case StatusCompleted:
		if !r.ActivityCompleted {
			return false
		}
	case StatusPending:
		if r.ActivityCompleted {
			return false
		}
	}
	return f.Personnel == "" || r.Personnel == f.Personnel
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Ports for record store backends.
type (
	Lister interface {
		ListActivities(ctx context.Context, f Filter) ([]core.ActivityRecord, error)
	}

	Getter interface {
		GetActivity(ctx context.Context, id int64) (core.ActivityRecord, error)
	}

	Writer interface {
		CreateActivity(ctx context.Context, r core.ActivityRecord) (core.ActivityRecord, error)
		UpdateActivity(ctx context.Context, id int64, p core.ActivityPatch) (core.ActivityRecord, error)
		DeleteActivity(ctx context.Context, id int64) error
	}

	PersonnelLister interface {
		// ListPersonnel returns the distinct personnel names, sorted.
		ListPersonnel(ctx context.Context) ([]string, error)
	}

	// Store is the full record store.
	Store interface {
		Lister
		Getter
		Writer
		PersonnelLister
	}
)

// SortRecent orders records newest first, then by descending id. Records
// without a valid date sort last.
func SortRecent(rs []core.ActivityRecord) {
	slices.SortStableFunc(rs, func(a, b core.ActivityRecord) int {
		av, bv := a.ActivityDate.Valid(), b.ActivityDate.Valid()
		switch {
		case av && !bv:
			return -1
		case !av && bv:
			return 1
		case av && bv && !a.ActivityDate.Equal(b.ActivityDate.Time):
			return b.ActivityDate.Compare(a.ActivityDate.Time)
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// DistinctPersonnel returns the sorted, non-blank personnel names of rs.
func DistinctPersonnel(rs []core.ActivityRecord) []string {
	seen := make(map[string]struct{}, len(rs))
	out := make([]string, 0)
	for _, r := range rs {
		name := strings.TrimSpace(r.Personnel)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
