package domain

import (
	"math"
	"sort"
)

// ComputeBoroughStats aggregates processing-time statistics per borough
// for one calendar year. Permits with an empty normalized borough are
// left out entirely. Results are sorted ascending by borough name so
// repeated runs over the same input produce identical snapshots.
func ComputeBoroughStats(permits []NormalizedPermit, year int) []BoroughStats {
	groups := make(map[string][]NormalizedPermit)
	for _, p := range permits {
		if p.BoroughNormalized == "" {
			continue
		}
		groups[p.BoroughNormalized] = append(groups[p.BoroughNormalized], p)
	}

	boroughs := make([]string, 0, len(groups))
	for name := range groups {
		boroughs = append(boroughs, name)
	}
	sort.Strings(boroughs)

	stats := make([]BoroughStats, 0, len(boroughs))
	for _, name := range boroughs {
		stats = append(stats, boroughStats(name, year, groups[name]))
	}
	return stats
}

func boroughStats(borough string, year int, permits []NormalizedPermit) BoroughStats {
	issued := 0
	days := make([]int, 0, len(permits))
	for _, p := range permits {
		if p.IssueDate == nil {
			continue
		}
		issued++
		if p.ProcessingDays != nil && *p.ProcessingDays >= 0 {
			days = append(days, *p.ProcessingDays)
		}
	}
	sort.Ints(days)

	s := BoroughStats{
		Borough:        borough,
		Year:           year,
		TotalPermits:   len(permits),
		PermitsIssued:  issued,
		PermitsPending: len(permits) - issued,
	}
	// Issued permits can lack a usable duration (unparseable or reversed
	// dates); with no durations at all the distribution fields stay zero.
	if len(days) == 0 {
		return s
	}

	s.MedianProcessingDays = round1(median(days))
	s.AvgProcessingDays = round1(mean(days))
	s.P90ProcessingDays = round1(percentile90(days))
	s.PctWithin90Days = round2(pctWithin(days, 90))
	s.PctWithin120Days = round2(pctWithin(days, 120))
	return s
}

// median of a sorted slice: the middle element, or the mean of the two
// middle elements when the count is even.
func median(sorted []int) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func mean(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// percentile90 is the nearest-rank 90th percentile of a sorted slice:
// the element at index floor(0.9·n), clamped to the last element.
func percentile90(sorted []int) float64 {
	idx := int(float64(len(sorted)) * 0.9)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx])
}

// pctWithin is the share of values at or under threshold, as a percentage.
func pctWithin(values []int, threshold int) float64 {
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values)) * 100
}

// round1 and round2 round half away from zero to one and two decimals.
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
