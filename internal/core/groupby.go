package core

import (
	"cmp"
	"slices"
	"strings"
)

// Unassigned is the group key for records with a blank grouping field.
const Unassigned = "Unassigned"

type (
	PersonnelMetric struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	LocationMetric struct {
		Location string `json:"location"`
		Count    int    `json:"count"`
		Revenue  Amount `json:"revenue"`
	}

	// LocationBreakdown holds location groups in first-seen order. Skipped
	// counts records whose charges were left out of Revenue.
	LocationBreakdown struct {
		Groups  []LocationMetric `json:"groups"`
		Skipped int              `json:"skipped"`
	}
)

func groupKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unassigned
	}
	return s
}

// GroupByPersonnel counts records per personnel in a single pass. Groups come
// back in the order their key was first seen.
func GroupByPersonnel(records []ActivityRecord) []PersonnelMetric {
	groups := make([]PersonnelMetric, 0)
	index := make(map[string]int)
	for _, r := range records {
		key := groupKey(r.Personnel)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, PersonnelMetric{Name: key})
		}
		groups[i].Count++
	}
	return groups
}

// GroupByLocation counts records and sums revenue per work location.
func GroupByLocation(records []ActivityRecord) LocationBreakdown {
	out := LocationBreakdown{Groups: make([]LocationMetric, 0)}
	index := make(map[string]int)
	for _, r := range records {
		key := groupKey(r.WorkLocation)
		i, ok := index[key]
		if !ok {
			i = len(out.Groups)
			index[key] = i
			out.Groups = append(out.Groups, LocationMetric{Location: key})
		}
		out.Groups[i].Count++
		amount, err := r.Charges.Amount()
		if err != nil {
			out.Skipped++
			continue
		}
		if out.Groups[i].Revenue, err = out.Groups[i].Revenue.Add(amount); err != nil {
			out.Skipped++
		}
	}
	return out
}

// SortPersonnelByCount returns a copy sorted by count descending, then name.
func SortPersonnelByCount(groups []PersonnelMetric) []PersonnelMetric {
	sorted := slices.Clone(groups)
	slices.SortStableFunc(sorted, func(a, b PersonnelMetric) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return sorted
}

// SortLocationsByCount returns a copy sorted by count descending, then
// location.
func SortLocationsByCount(groups []LocationMetric) []LocationMetric {
	sorted := slices.Clone(groups)
	slices.SortStableFunc(sorted, func(a, b LocationMetric) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Location, b.Location)
	})
	return sorted
}
