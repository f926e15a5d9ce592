package pipeline

import "time"

// Window is an inclusive range of calendar dates.
type Window struct {
	Since time.Time
	Until time.Time
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Trailing covers the given number of days before asOf, ending yesterday.
func Trailing(asOf time.Time, days int) Window {
	asOf = civil(asOf)
	return Window{Since: asOf.AddDate(0, 0, -days), Until: asOf.AddDate(0, 0, -1)}
}

// CompleteMonths covers the n whole months before the month of asOf.
func CompleteMonths(asOf time.Time, n int) Window {
	start := firstOfMonth(asOf)
	return Window{Since: start.AddDate(0, -n, 0), Until: start.AddDate(0, 0, -1)}
}

func CalendarYear(year int) Window {
	return Window{
		Since: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// MonthlySplit divides a calendar year into consecutive windows of size
// months each.
func MonthlySplit(year, size int) []Window {
	if size <= 0 {
		size = 12
	}
	start := CalendarYear(year).Since
	var out []Window
	for months := 0; months < 12; months += size {
		since := start.AddDate(0, months, 0)
		n := min(size, 12-months)
		out = append(out, Window{Since: since, Until: since.AddDate(0, n, -1)})
	}
	return out
}

// LastCompleteMonthYear is the year of the month before the month of asOf.
func LastCompleteMonthYear(asOf time.Time) int {
	return firstOfMonth(asOf).AddDate(0, 0, -1).Year()
}
