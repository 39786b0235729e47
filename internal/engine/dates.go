package engine

import (
	"fmt"
	"time"
)

// All date arithmetic in the engines uses whole calendar days with an
// exclusive end (daysBetween(d, d) == 0) and an actual/365 day count.

// daysBetween returns the number of whole days from a to b.
func daysBetween(a, b time.Time) int {
	a = midnightUTC(a)
	b = midnightUTC(b)
	return int(b.Sub(a).Hours() / 24)
}

// midnightUTC strips the time-of-day and zone so day counts are stable
// regardless of how callers constructed their time values.
func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// quarterStart returns the first day of the calendar quarter containing t.
func quarterStart(t time.Time) time.Time {
	month := time.Month(((int(t.Month())-1)/3)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// nextQuarterStart returns the first day of the calendar quarter after the
// one containing t.
func nextQuarterStart(t time.Time) time.Time {
	return quarterStart(t).AddDate(0, 3, 0)
}

// quarterLabel formats the calendar quarter containing t, e.g. "2024-Q2".
func quarterLabel(t time.Time) string {
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}

// EstimatedDueDates returns the four estimated-payment due dates for a tax
// year: April 15, June 15 and September 15 of the year, then January 15 of
// the following year.
func EstimatedDueDates(taxYear int) [4]time.Time {
	return [4]time.Time{
		time.Date(taxYear, time.April, 15, 0, 0, 0, 0, time.UTC),
		time.Date(taxYear, time.June, 15, 0, 0, 0, 0, time.UTC),
		time.Date(taxYear, time.September, 15, 0, 0, 0, 0, time.UTC),
		time.Date(taxYear+1, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
}

// ReturnDueDate returns the annual return due date for a tax year,
// April 15 of the following year.
func ReturnDueDate(taxYear int) time.Time {
	return time.Date(taxYear+1, time.April, 15, 0, 0, 0, 0, time.UTC)
}
