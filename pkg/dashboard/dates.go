package dashboard

import "time"

// dayKeyLayout formats a calendar day key.
const dayKeyLayout = "2006-01-02"

// DateRange is an inclusive UTC time range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// DayBounds returns the UTC day boundaries for t
// (00:00:00Z through 23:59:59Z). All calendar-day grouping in OmniLens
// uses UTC boundaries uniformly.
func DayBounds(t time.Time) DateRange {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	return DateRange{
		Start: start,
		End:   start.Add(24*time.Hour - time.Second),
	}
}

// MonthBounds returns the UTC boundaries of the calendar month
// containing t.
func MonthBounds(t time.Time) DateRange {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)

	return DateRange{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Second),
	}
}

// YearBounds returns the UTC boundaries of the calendar year
// containing t.
func YearBounds(t time.Time) DateRange {
	u := t.UTC()
	start := time.Date(u.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	return DateRange{
		Start: start,
		End:   start.AddDate(1, 0, 0).Add(-time.Second),
	}
}

// DayKey formats t as a YYYY-MM-DD calendar key in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// ParseDayKey parses a YYYY-MM-DD calendar key into the UTC midnight
// of that day.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, time.UTC)
}
