package domain

import "time"

// AddYears shifts t by the given number of calendar years, preserving the
// day of month where valid and clamping otherwise (Feb 29 on a non-leap
// target year becomes Feb 28). time.Time.AddDate is unsuitable here: it
// normalizes Feb 29 + 1y to Mar 1, which would drift multi-year windows.
func AddYears(t time.Time, years int) time.Time {
	return clampedDate(t.Year()+years, t.Month(), t.Day())
}

// AddMonths shifts t by the given number of calendar months with the same
// day-of-month clamping rule (Jan 31 + 1m becomes Feb 28/29).
func AddMonths(t time.Time, months int) time.Time {
	total := t.Year()*12 + int(t.Month()) - 1 + months
	year, month := total/12, total%12
	if month < 0 {
		month += 12
		year--
	}
	return clampedDate(year, time.Month(month+1), t.Day())
}

func clampedDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// daysIn returns the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
