package domain

import "time"

const periodLayout = "2006-01"

// NextDueDate adds one calendar month keeping the day of month, clamped to the last day
// of the target month (Jan 31 becomes Feb 28 or Feb 29).
func NextDueDate(due time.Time) time.Time {
	year, month, day := due.Date()
	firstOfTarget := time.Date(year, month+1, 1, 0, 0, 0, 0, due.Location())
	lastDay := daysIn(firstOfTarget)
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, due.Location())
}

// Period returns the YYYY-MM billing month of a date.
func Period(date time.Time) string {
	return date.Format(periodLayout)
}

// MonthBounds returns the first instant of the date's month and of the following month.
func MonthBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 1, 0)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
