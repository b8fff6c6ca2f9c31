package domain

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Snapshot is the per-reservoir statistical summary. All means are rounded
// half-up to two decimals; a nil pointer marks a window with no
// observations and serializes as null. Snapshots are immutable once
// computed.
type Snapshot struct {
	ReferenceDate time.Time
	VolumeCurrent float64
	CapacityTotal float64

	MeanLastWeek      *float64 // trailing 7 days
	MeanLastFortnight *float64 // trailing 14 days
	MeanLastMonth     *float64 // trailing 30 days

	MeanPriorYearMonth *float64 // same calendar month, one year earlier

	MeanMonth3y  *float64
	MeanMonth5y  *float64
	MeanMonth10y *float64
	MeanMonth20y *float64
	MeanMonthAll *float64
}

// Compute derives the Snapshot for one reservoir's series. It is a pure
// function of its input: no cross-reservoir state, so callers may compute
// reservoirs in parallel.
//
// The series need not be pre-sorted. Records tied at the maximum date keep
// their original order (stable sort), so the reference record for same-day
// duplicate readings is the first one that arrived.
func Compute(series Series) Snapshot {
	if len(series) == 0 {
		return Snapshot{}
	}

	sorted := make(Series, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})

	ref := sorted[0]
	refDate := ref.Date
	refMonth := refDate.Month()

	cohort := make(Series, 0, len(sorted))
	for _, r := range sorted {
		if r.Date.Month() == refMonth {
			cohort = append(cohort, r)
		}
	}

	return Snapshot{
		ReferenceDate:      refDate,
		VolumeCurrent:      round2(ref.VolumeCurrent),
		CapacityTotal:      round2(ref.CapacityTotal),
		MeanLastWeek:       meanSince(sorted, refDate.AddDate(0, 0, -7)),
		MeanLastFortnight:  meanSince(sorted, refDate.AddDate(0, 0, -14)),
		MeanLastMonth:      meanSince(sorted, refDate.AddDate(0, 0, -30)),
		MeanPriorYearMonth: meanPriorYearMonth(sorted, refDate),
		MeanMonth3y:        meanSince(cohort, AddYears(refDate, -3)),
		MeanMonth5y:        meanSince(cohort, AddYears(refDate, -5)),
		MeanMonth10y:       meanSince(cohort, AddYears(refDate, -10)),
		MeanMonth20y:       meanSince(cohort, AddYears(refDate, -20)),
		MeanMonthAll:       meanVolume(cohort),
	}
}

// meanSince averages VolumeCurrent over records dated on or after cutoff.
func meanSince(records Series, cutoff time.Time) *float64 {
	var values []float64
	for _, r := range records {
		if !r.Date.Before(cutoff) {
			values = append(values, r.VolumeCurrent)
		}
	}
	return roundedMean(values)
}

// meanPriorYearMonth averages records falling in the window
// (ref − 1y − 1m, ref − 1y + 1m] that also share the reference month.
// The double condition picks the closest year-ago occurrence of the month
// while tolerating reporting-date drift across years.
func meanPriorYearMonth(records Series, refDate time.Time) *float64 {
	// The lower bound is one combined 13-month shift so the day of month
	// clamps at most once.
	lower := AddMonths(refDate, -13)
	upper := AddMonths(AddYears(refDate, -1), 1)

	var values []float64
	for _, r := range records {
		if r.Date.After(lower) && !r.Date.After(upper) && r.Date.Month() == refDate.Month() {
			values = append(values, r.VolumeCurrent)
		}
	}
	return roundedMean(values)
}

func meanVolume(records Series) *float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		values = append(values, r.VolumeCurrent)
	}
	return roundedMean(values)
}

// roundedMean returns the 2-decimal mean of values, or nil for an empty
// window. Absence stays absence: it never collapses to zero or NaN.
func roundedMean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := round2(stat.Mean(values, nil))
	return &m
}

// round2 rounds half away from zero to two decimals, which is half-up for
// the non-negative magnitudes handled here.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
