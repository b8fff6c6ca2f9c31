package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddYears(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Time
		years    int
		expected time.Time
	}{
		{"plain year back", date(2024, time.June, 15), -3, date(2021, time.June, 15)},
		{"leap day clamps down", date(2024, time.February, 29), -1, date(2023, time.February, 28)},
		{"leap day to leap year", date(2024, time.February, 29), -4, date(2020, time.February, 29)},
		{"forward", date(2020, time.February, 29), 1, date(2021, time.February, 28)},
		{"twenty years", date(2024, time.January, 31), -20, date(2004, time.January, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddYears(tt.in, tt.years))
		})
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Time
		months   int
		expected time.Time
	}{
		{"one month back", date(2024, time.March, 15), -1, date(2024, time.February, 15)},
		{"clamp to short month", date(2024, time.March, 31), -1, date(2024, time.February, 29)},
		{"clamp non-leap", date(2023, time.March, 31), -1, date(2023, time.February, 28)},
		{"across year boundary", date(2024, time.January, 10), -1, date(2023, time.December, 10)},
		{"thirteen back", date(2024, time.February, 29), -13, date(2023, time.January, 29)},
		{"forward into short month", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"zero is identity", date(2024, time.July, 4), 0, date(2024, time.July, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddMonths(tt.in, tt.months))
		})
	}
}

func TestAddYearsNotFixedOffset(t *testing.T) {
	// Three calendar years spanning a leap year is 1096 days, not 1095:
	// the subtraction must not drift the way a 365-day offset would.
	ref := date(2024, time.June, 15)
	assert.Equal(t, date(2021, time.June, 15), AddYears(ref, -3))
	assert.NotEqual(t, ref.AddDate(0, 0, -3*365), AddYears(ref, -3))
}
